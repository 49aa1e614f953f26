// Package intake gates candidate files before any network call and drives the upload flow.
package intake

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

const bytesPerMB = 1024 * 1024

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	UnsupportedType ErrorKind = "unsupported_type"
	TooLarge        ErrorKind = "too_large"
)

// ValidationError is a local, pre-flight rejection. It never reaches the network.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return common.ErrValidation
}

// Validate checks the media type against accepted and the size against maxSizeMB (MB of 1024*1024 bytes).
// It has no side effects.
func Validate(file entity.CandidateFile, accepted []string, maxSizeMB float64) error {
	if !slices.Contains(accepted, file.MediaType) {
		return &ValidationError{
			Kind:    UnsupportedType,
			Message: "Invalid file type. Supported types: " + ReadableTypes(accepted),
		}
	}
	if float64(file.Size) > maxSizeMB*bytesPerMB {
		return &ValidationError{
			Kind:    TooLarge,
			Message: fmt.Sprintf("File is too large. Maximum size: %sMB", strconv.FormatFloat(maxSizeMB, 'f', -1, 64)),
		}
	}
	return nil
}

// ReadableTypes joins the short labels of the accepted media types, e.g. "PDF, TXT, CSV".
func ReadableTypes(accepted []string) string {
	labels := make([]string, 0, len(accepted))
	for _, mediaType := range accepted {
		labels = append(labels, constants.MediaTypeLabel(mediaType))
	}
	return strings.Join(labels, ", ")
}
