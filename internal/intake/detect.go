package intake

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

// FromPath describes a local file as a candidate for upload.
func FromPath(path string) (entity.CandidateFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.CandidateFile{}, fmt.Errorf("abs path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return entity.CandidateFile{}, fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return entity.CandidateFile{}, common.NewAppError("INTAKE_ERROR", fmt.Sprintf("%s is a directory", path), common.ErrInvalidInput)
	}
	return entity.CandidateFile{
		Name:      filepath.Base(abs),
		MediaType: DetectMediaType(abs),
		Size:      info.Size(),
		Path:      abs,
	}, nil
}

// DetectMediaType maps the extension to a media type without parameters.
func DetectMediaType(path string) string {
	ext := filepath.Ext(path)
	if mediaType := constants.MediaTypeForExt(ext); mediaType != "" {
		return mediaType
	}
	if guessed := mime.TypeByExtension(ext); guessed != "" {
		if mediaType, _, err := mime.ParseMediaType(guessed); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}
