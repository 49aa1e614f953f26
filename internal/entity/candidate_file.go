package entity

import (
	"io"
	"os"
)

// CandidateFile is a local document selected for submission. It lives only until it is
// validated and handed to the transfer client.
type CandidateFile struct {
	Name      string
	MediaType string
	Size      int64
	Path      string
}

// Open returns the file content for upload.
func (f CandidateFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}
