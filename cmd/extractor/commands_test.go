package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/extract-tracker/internal/client"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
	"github.com/joseph-ayodele/extract-tracker/internal/intake"
)

func TestDownloadLocation(t *testing.T) {
	urls := &entity.DownloadURLs{CSV: "/api/v1/download/7/csv"}

	loc, err := downloadLocation(urls, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/download/7/csv", loc)

	_, err = downloadLocation(urls, "json")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = downloadLocation(urls, "xml")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = downloadLocation(nil, "csv")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSplitTypes(t *testing.T) {
	assert.Equal(t, []string{"application/pdf", "text/csv"}, splitTypes(" application/pdf, ,text/csv "))
	assert.Nil(t, splitTypes(""))
}

func TestMarkReported(t *testing.T) {
	assert.NoError(t, markReported(nil))

	var rep reportedError
	assert.True(t, errors.As(markReported(&intake.ValidationError{Message: "bad"}), &rep))
	assert.True(t, errors.As(markReported(&client.APIError{Detail: "boom"}), &rep))
	assert.False(t, errors.As(markReported(errors.New("plain")), &rep))
}

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})
	r.Get("/api/v1/jobs/", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"job_id": 7, "file_name": "report.pdf", "status": "completed", "message": "done",
			"created_at": "2024-01-01T00:00:00", "updated_at": "2024-01-01T00:01:00",
		}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestListCommand(t *testing.T) {
	srv := newFakeAPI(t)
	out, _, err := runCLI(t, "list", "--api-url", srv.URL+"/api/v1", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "report.pdf")
}

func TestDoctorCommand(t *testing.T) {
	srv := newFakeAPI(t)
	ledger := filepath.Join(t.TempDir(), "ledger.db")
	out, _, err := runCLI(t, "doctor", "--api-url", srv.URL+"/api/v1", "--ledger", ledger, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "service:  healthy")
	assert.Contains(t, out, "ok")
	_, statErr := os.Stat(ledger)
	assert.NoError(t, statErr)
}

func TestSubmitRejectsUnsupportedType(t *testing.T) {
	srv := newFakeAPI(t)
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	_, errOut, err := runCLI(t, "submit", path, "--no-ledger", "--api-url", srv.URL+"/api/v1", "--log-level", "error")
	require.Error(t, err)
	var rep reportedError
	assert.True(t, errors.As(err, &rep))
	assert.Contains(t, errOut, "Invalid file")
}
