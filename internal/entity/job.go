package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/extract-tracker/constants"
)

// JobID is the opaque job handle. The service may encode it as a JSON string or integer.
type JobID string

func (id JobID) String() string { return string(id) }

// UnmarshalJSON accepts "42", 42 and null.
func (id *JobID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = JobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("job_id: %w", err)
	}
	*id = JobID(n.String())
	return nil
}

// JobHandle is the service's answer to a submission.
type JobHandle struct {
	JobID     JobID               `json:"job_id"`
	FileName  string              `json:"file_name"`
	Status    constants.JobStatus `json:"status"`
	Message   string              `json:"message"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

// JobSnapshot is the full state of one job as reported by one query.
// A newer snapshot replaces an older one wholesale.
type JobSnapshot struct {
	JobID        JobID               `json:"job_id"`
	FileName     string              `json:"file_name"`
	Status       constants.JobStatus `json:"status"`
	Progress     *float64            `json:"progress,omitempty"`
	Message      string              `json:"message"`
	Results      *JobResults         `json:"results,omitempty"`
	DownloadURLs *DownloadURLs       `json:"download_urls,omitempty"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
}

// JobResults is the structured payload of a completed job.
type JobResults struct {
	ExtractedData ExtractedData `json:"extracted_data"`
	CleanedData   CleanedData   `json:"cleaned_data"`
	Analysis      Analysis      `json:"analysis"`
	Charts        []ChartData   `json:"charts_data"`
}

// ExtractedData is the raw extraction output; key field values are strings or numbers.
type ExtractedData struct {
	TextContent string         `json:"text_content"`
	Tables      []Table        `json:"tables"`
	KeyFields   map[string]any `json:"key_fields"`
}

// CleanedData is the normalized extraction output; key field values are strings or numbers.
type CleanedData struct {
	TextContent string         `json:"text_content"`
	Tables      []Table        `json:"tables"`
	KeyFields   map[string]any `json:"key_fields"`
}

// Table is a header row plus data rows; cells are strings or numbers.
type Table struct {
	Title  string   `json:"title"`
	Header []string `json:"header"`
	Rows   [][]any  `json:"rows"`
}

// Analysis summarises the document.
type Analysis struct {
	Summary   string   `json:"summary"`
	Keywords  []string `json:"keywords"`
	Sentiment string   `json:"sentiment"` // positive|negative|neutral
}

// ChartData describes one chart with row-oriented data.
type ChartData struct {
	Type  string           `json:"type"` // bar|pie|line
	Title string           `json:"title"`
	Data  []map[string]any `json:"data"`
}

// DownloadURLs locates the CSV and JSON exports of a completed job.
type DownloadURLs struct {
	CSV  string `json:"csv"`
	JSON string `json:"json"`
}

// ProgressPercent returns the reported progress, or -1 when absent.
func (s JobSnapshot) ProgressPercent() float64 {
	if s.Progress == nil {
		return -1
	}
	return *s.Progress
}
