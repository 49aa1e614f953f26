package ingest

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/intake"
)

// Accepted reports whether the media type detected for path is one of accepted
// (the default PDF/TXT/CSV set when accepted is empty).
func Accepted(path string, accepted []string) bool {
	if len(accepted) == 0 {
		accepted = constants.DefaultAcceptedTypes
	}
	return slices.Contains(accepted, intake.DetectMediaType(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
