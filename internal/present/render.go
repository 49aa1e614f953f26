// Package present renders job snapshots for a terminal.
package present

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

// StatusLabel returns the display label for a job status.
func StatusLabel(s constants.JobStatus) string {
	switch s {
	case constants.JobStatusPending:
		return "Pending"
	case constants.JobStatusProcessing:
		return "Processing"
	case constants.JobStatusCompleted:
		return "Completed"
	case constants.JobStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ProgressBar draws a fixed-width bar for a percentage in [0, 100].
func ProgressBar(percent int, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), percent)
}

type Renderer struct {
	w   io.Writer
	now func() time.Time
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, now: time.Now}
}

// Candidate prints one line describing a local file about to be submitted.
func (r *Renderer) Candidate(file entity.CandidateFile) {
	fmt.Fprintf(r.w, "%s (%s, %s)\n", file.Name, constants.MediaTypeLabel(file.MediaType), humanize.IBytes(uint64(max(file.Size, 0))))
}

// Snapshot prints the job header and, when present, its results.
func (r *Renderer) Snapshot(snap entity.JobSnapshot) {
	fmt.Fprintf(r.w, "Job %s  %s\n", snap.JobID, StatusLabel(snap.Status))
	if snap.FileName != "" {
		fmt.Fprintf(r.w, "File:     %s\n", snap.FileName)
	}
	if p := snap.ProgressPercent(); p >= 0 {
		fmt.Fprintf(r.w, "Progress: %s\n", ProgressBar(int(p), 20))
	}
	if snap.Message != "" {
		fmt.Fprintf(r.w, "Message:  %s\n", snap.Message)
	}
	if snap.UpdatedAt != "" {
		fmt.Fprintf(r.w, "Updated:  %s\n", snap.UpdatedAt)
	}
	if snap.Results != nil {
		r.results(snap.Results)
	}
	if d := snap.DownloadURLs; d != nil && (d.CSV != "" || d.JSON != "") {
		fmt.Fprintln(r.w, "\nDownloads:")
		if d.CSV != "" {
			fmt.Fprintf(r.w, "  csv:  %s\n", d.CSV)
		}
		if d.JSON != "" {
			fmt.Fprintf(r.w, "  json: %s\n", d.JSON)
		}
	}
}

func (r *Renderer) results(res *entity.JobResults) {
	a := res.Analysis
	if a.Summary != "" {
		fmt.Fprintf(r.w, "\nSummary:\n  %s\n", a.Summary)
	}
	if len(a.Keywords) > 0 {
		fmt.Fprintf(r.w, "Keywords: %s\n", strings.Join(a.Keywords, ", "))
	}
	if a.Sentiment != "" {
		fmt.Fprintf(r.w, "Sentiment: %s\n", a.Sentiment)
	}

	fields := map[string]string{}
	for k, v := range res.ExtractedData.KeyFields {
		fields[k] = cell(v)
	}
	for k, v := range res.CleanedData.KeyFields {
		fields[k] = cell(v)
	}
	if len(fields) > 0 {
		fmt.Fprintln(r.w, "\nKey fields:")
		t := r.table([]string{"Field", "Value"})
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			t.Append([]string{k, fields[k]})
		}
		t.Render()
	}

	tables := res.CleanedData.Tables
	if len(tables) == 0 {
		tables = res.ExtractedData.Tables
	}
	for i, tbl := range tables {
		title := tbl.Title
		if title == "" {
			title = "Table " + strconv.Itoa(i+1)
		}
		fmt.Fprintf(r.w, "\n%s:\n", title)
		t := r.table(tbl.Header)
		for _, row := range tbl.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = cell(v)
			}
			t.Append(cells)
		}
		t.Render()
	}

	for _, c := range res.Charts {
		fmt.Fprintf(r.w, "\nChart: %s (%s, %d points)\n", c.Title, c.Type, len(c.Data))
	}
}

// List prints one row per job.
func (r *Renderer) List(snaps []entity.JobSnapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(r.w, "No jobs.")
		return
	}
	t := r.table([]string{"Job ID", "File", "Status", "Progress", "Updated"})
	for _, s := range snaps {
		progress := ""
		if p := s.ProgressPercent(); p >= 0 {
			progress = strconv.Itoa(int(p)) + "%"
		}
		t.Append([]string{s.JobID.String(), s.FileName, StatusLabel(s.Status), progress, s.UpdatedAt})
	}
	t.Render()
}

// Submissions prints the local submission ledger.
func (r *Renderer) Submissions(subs []entity.Submission) {
	if len(subs) == 0 {
		fmt.Fprintln(r.w, "No submissions recorded.")
		return
	}
	t := r.table([]string{"Job ID", "File", "Submitted", "Hash"})
	now := r.now()
	for _, s := range subs {
		t.Append([]string{s.JobID.String(), s.FileName, humanize.RelTime(s.SubmittedAt, now, "ago", "from now"), shortHash(s.ContentHash)})
	}
	t.Render()
}

func (r *Renderer) table(header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(r.w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
