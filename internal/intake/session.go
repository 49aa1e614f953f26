package intake

import (
	"sync"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

// Session is one intake form: the currently selected file and the last validation error.
type Session struct {
	accepted []string
	maxMB    float64

	mu       sync.Mutex
	selected *entity.CandidateFile
	lastErr  error
}

// NewSession uses the default types and ceiling when accepted is empty or maxSizeMB <= 0.
func NewSession(accepted []string, maxSizeMB float64) *Session {
	if len(accepted) == 0 {
		accepted = constants.DefaultAcceptedTypes
	}
	if maxSizeMB <= 0 {
		maxSizeMB = constants.DefaultMaxUploadMB
	}
	return &Session{accepted: accepted, maxMB: maxSizeMB}
}

// Check validates file. A failure is recorded and discards the selection;
// a success clears any earlier error and selects the file.
func (s *Session) Check(file entity.CandidateFile) error {
	err := Validate(file, s.accepted, s.maxMB)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		s.selected = nil
		return err
	}
	s.lastErr = nil
	s.selected = &file
	return nil
}

// Err returns the recorded validation error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Selected returns the file that last passed validation.
func (s *Session) Selected() (entity.CandidateFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return entity.CandidateFile{}, false
	}
	return *s.selected, true
}

// Remove discards the selection and any recorded error.
func (s *Session) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.lastErr = nil
}

// AcceptedTypes returns the media types this session accepts.
func (s *Session) AcceptedTypes() []string {
	return s.accepted
}

// MaxSizeMB returns the size ceiling in megabytes.
func (s *Session) MaxSizeMB() float64 {
	return s.maxMB
}
