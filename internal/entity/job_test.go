package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/extract-tracker/constants"
)

func TestJobIDAcceptsStringAndInteger(t *testing.T) {
	var h JobHandle
	require.NoError(t, json.Unmarshal([]byte(`{"job_id": 42, "status": "pending"}`), &h))
	assert.Equal(t, JobID("42"), h.JobID)

	require.NoError(t, json.Unmarshal([]byte(`{"job_id": "abc-1", "status": "pending"}`), &h))
	assert.Equal(t, JobID("abc-1"), h.JobID)

	require.NoError(t, json.Unmarshal([]byte(`{"job_id": null}`), &h))
	assert.Empty(t, h.JobID)

	assert.Error(t, json.Unmarshal([]byte(`{"job_id": true}`), &h))
}

func TestJobSnapshotDecodesResults(t *testing.T) {
	raw := `{
		"job_id": "j1", "file_name": "report.pdf", "status": "completed", "progress": 100,
		"message": "done",
		"results": {
			"extracted_data": {"text_content": "t", "tables": [{"title": "T", "header": ["a","b"], "rows": [["x", 1]]}], "key_fields": {"k": "v"}},
			"cleaned_data": {"text_content": "t", "tables": [], "key_fields": {"total": 12.5}},
			"analysis": {"summary": "s", "keywords": ["k1"], "sentiment": "neutral"},
			"charts_data": [{"type": "bar", "title": "C", "data": [{"name": "a", "value": 1}]}]
		},
		"download_urls": {"csv": "/d/j1.csv", "json": "/d/j1.json"},
		"created_at": "2024-05-01T10:00:00", "updated_at": "2024-05-01T10:01:00"
	}`
	var s JobSnapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, constants.JobStatusCompleted, s.Status)
	assert.Equal(t, float64(100), s.ProgressPercent())
	require.NotNil(t, s.Results)
	assert.Equal(t, []any{"x", float64(1)}, s.Results.ExtractedData.Tables[0].Rows[0])
	assert.Equal(t, 12.5, s.Results.CleanedData.KeyFields["total"])
	assert.Equal(t, "/d/j1.csv", s.DownloadURLs.CSV)
	assert.Len(t, s.Results.Charts, 1)
}

func TestProgressPercentAbsent(t *testing.T) {
	assert.Equal(t, float64(-1), JobSnapshot{}.ProgressPercent())
}
