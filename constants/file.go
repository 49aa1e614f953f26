package constants

import "strings"

// Media types accepted by the extraction service.
const (
	MediaTypePDF = "application/pdf"
	MediaTypeTXT = "text/plain"
	MediaTypeCSV = "text/csv"
)

// DefaultMaxUploadMB is the client-side size ceiling for a single upload.
const DefaultMaxUploadMB = 10

// DefaultAcceptedTypes holds the media types accepted when nothing is configured.
var DefaultAcceptedTypes = []string{MediaTypePDF, MediaTypeTXT, MediaTypeCSV}

// mediaTypeLabels maps MIME strings to the short labels shown to users.
var mediaTypeLabels = map[string]string{
	MediaTypePDF: "PDF",
	MediaTypeTXT: "TXT",
	MediaTypeCSV: "CSV",
}

// extMediaTypes is consulted before the platform MIME table, which varies between hosts.
var extMediaTypes = map[string]string{
	"pdf": MediaTypePDF,
	"txt": MediaTypeTXT,
	"csv": MediaTypeCSV,
}

// MediaTypeLabel returns the short label for a MIME string, falling back to the upper-cased subtype.
func MediaTypeLabel(mediaType string) string {
	if label, ok := mediaTypeLabels[mediaType]; ok {
		return label
	}
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return strings.ToUpper(sub)
	}
	return strings.ToUpper(mediaType)
}

// MediaTypeForExt returns the known media type for an extension, or "".
func MediaTypeForExt(ext string) string {
	return extMediaTypes[NormalizeExt(ext)]
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
