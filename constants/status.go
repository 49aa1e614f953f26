package constants

// JobStatus is the status tag the extraction service reports for a job.
type JobStatus string

// Stable values (exact strings on the wire).
const (
	JobStatusPending    JobStatus = "pending"    // accepted, not started
	JobStatusProcessing JobStatus = "processing" // in progress
	JobStatusCompleted  JobStatus = "completed"  // terminal success
	JobStatusFailed     JobStatus = "failed"     // terminal failure
)

// IsTerminal reports whether no further status changes are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
