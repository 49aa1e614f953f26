package core

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/extract-tracker/internal/client"
	"github.com/joseph-ayodele/extract-tracker/internal/export"
	"github.com/joseph-ayodele/extract-tracker/internal/intake"
	"github.com/joseph-ayodele/extract-tracker/internal/poller"
	"github.com/joseph-ayodele/extract-tracker/internal/progress"
	"github.com/joseph-ayodele/extract-tracker/internal/repository"
)

// fakeService completes each job on its second status query.
type fakeService struct {
	mu      sync.Mutex
	submits int
	queries map[string]int
}

func (s *fakeService) router() chi.Router {
	r := chi.NewRouter()
	r.Post("/api/v1/jobs/", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		s.submits++
		id := 100 + s.submits
		s.mu.Unlock()
		writeJSON(w, map[string]any{"job_id": id, "file_name": "f", "status": "pending", "message": "queued"})
	})
	r.Get("/api/v1/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		s.mu.Lock()
		s.queries[id]++
		n := s.queries[id]
		s.mu.Unlock()
		if n < 2 {
			writeJSON(w, map[string]any{"job_id": id, "status": "processing", "progress": 40})
			return
		}
		writeJSON(w, map[string]any{
			"job_id": id, "file_name": "f", "status": "completed", "progress": 100,
			"results": map[string]any{
				"extracted_data": map[string]any{"key_fields": map[string]any{"total": "9.99"}},
				"cleaned_data":   map[string]any{"tables": []any{}},
				"analysis":       map[string]any{"summary": "ok"},
			},
		})
	})
	return r
}

func (s *fakeService) Submits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	svc      *fakeService
	proc     *Processor
	ledger   repository.SubmissionRepository
	exports  string
	registry *poller.Registry
}

func newFixture(t *testing.T, wait bool) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := &fakeService{queries: map[string]int{}}
	srv := httptest.NewServer(svc.router())
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL+"/api/v1", client.WithLogger(logger))
	require.NoError(t, err)

	db, err := repository.Open(context.Background(), repository.Config{Path: filepath.Join(t.TempDir(), "ledger.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	ledger := repository.NewSubmissionRepository(db, logger)

	registry := poller.NewRegistry(c, nil, poller.WithInterval(10*time.Millisecond), poller.WithLogger(logger))
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })

	exports := filepath.Join(t.TempDir(), "exports")
	proc := NewProcessor(logger, c, registry, nil,
		WithLedger(ledger),
		WithExport(export.NewService(logger), exports),
		WithSimulator(progress.NewSimulator(5*time.Millisecond)),
		WithWait(wait),
	)
	return &fixture{svc: svc, proc: proc, ledger: ledger, exports: exports, registry: registry}
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessFileSubmitsTracksAndExports(t *testing.T) {
	fx := newFixture(t, true)
	var states []intake.State
	var mu sync.Mutex
	fx.proc.onUpload = func(s intake.State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}

	out, err := fx.proc.ProcessFile(context.Background(), Request{Path: writeDoc(t, "notes.txt", "hello")})
	require.NoError(t, err)
	assert.Equal(t, "101", out.JobID.String())
	assert.False(t, out.Deduplicated)
	require.NotNil(t, out.View)
	assert.Equal(t, poller.Completed, out.View.State)
	assert.Equal(t, filepath.Join(fx.exports, "101.xlsx"), out.ExportPath)
	assert.FileExists(t, out.ExportPath)

	sub, err := fx.ledger.GetByHash(context.Background(), out.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, out.JobID, sub.JobID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, progress.Complete, states[len(states)-1].Progress)
}

func TestProcessFileDeduplicatesByContent(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	first, err := fx.proc.ProcessFile(ctx, Request{Path: writeDoc(t, "a.csv", "x,y\n1,2\n")})
	require.NoError(t, err)
	second, err := fx.proc.ProcessFile(ctx, Request{Path: writeDoc(t, "copy.csv", "x,y\n1,2\n")})
	require.NoError(t, err)

	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, 1, fx.svc.Submits())
	assert.Nil(t, second.View)

	forced, err := fx.proc.ProcessFile(ctx, Request{Path: writeDoc(t, "again.csv", "x,y\n1,2\n"), Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Deduplicated)
	assert.Equal(t, 2, fx.svc.Submits())
}

func TestProcessFileRejectsInvalidFileBeforeNetwork(t *testing.T) {
	fx := newFixture(t, true)
	_, err := fx.proc.ProcessFile(context.Background(), Request{Path: writeDoc(t, "photo.png", "\x89PNG")})

	var vErr *intake.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, intake.UnsupportedType, vErr.Kind)
	assert.Equal(t, 0, fx.svc.Submits())
}

func TestTrackExistingJob(t *testing.T) {
	fx := newFixture(t, false)
	view, path, err := fx.proc.Track(context.Background(), "555")
	require.NoError(t, err)
	assert.Equal(t, poller.Completed, view.State)
	assert.Equal(t, filepath.Join(fx.exports, "555.xlsx"), path)
	assert.Eventually(t, func() bool { return len(fx.registry.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestTrackMissingHandle(t *testing.T) {
	fx := newFixture(t, false)
	_, _, err := fx.proc.Track(context.Background(), "")
	assert.True(t, poller.IsKind(err, poller.MissingHandle))
}

func TestHashFileIsStable(t *testing.T) {
	path := writeDoc(t, "a.txt", "abc")
	file, err := intake.FromPath(path)
	require.NoError(t, err)
	h, err := hashFile(file)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
	assert.Len(t, h, 64)
}
