package poller

import "errors"

// ErrorKind classifies a PollError.
type ErrorKind string

const (
	MissingHandle   ErrorKind = "missing_handle"
	RetrievalFailed ErrorKind = "retrieval_failed"
	RegistryClosed  ErrorKind = "registry_closed"
)

const (
	missingHandleMessage   = "Job ID is missing"
	retrievalFailedMessage = "Failed to load job details. Please try again later."
	registryClosedMessage  = "poller registry is shut down"
)

// PollError ends a session in Errored. Message is stable and safe to display;
// Err carries the underlying cause for RetrievalFailed.
type PollError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PollError) Error() string {
	return e.Message
}

func (e *PollError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a PollError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pErr *PollError
	return errors.As(err, &pErr) && pErr.Kind == kind
}
