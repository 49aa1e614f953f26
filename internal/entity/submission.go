package entity

import "time"

// Submission records that a file's content was accepted by the service under a job id.
type Submission struct {
	ContentHash string    `json:"content_hash"`
	FileName    string    `json:"file_name"`
	SourcePath  string    `json:"source_path"`
	JobID       JobID     `json:"job_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}
