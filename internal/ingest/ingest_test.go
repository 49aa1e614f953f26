package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/extract-tracker/internal/core"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
)

func touch(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"), "x")
	touch(t, filepath.Join(root, "b.TXT"), "x")
	touch(t, filepath.Join(root, "photo.png"), "x")
	touch(t, filepath.Join(root, "nested", "c.csv"), "x")
	touch(t, filepath.Join(root, ".hidden", "d.pdf"), "x")
	touch(t, filepath.Join(root, ".e.pdf"), "x")

	paths, stats, err := ScanDirectory(root, nil, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, "b.TXT"),
		filepath.Join(root, "nested", "c.csv"),
	}, paths)
	assert.EqualValues(t, 4, stats.Scanned)
	assert.EqualValues(t, 3, stats.Matched)

	paths, _, err = ScanDirectory(root, []string{"application/pdf"}, false)
	require.NoError(t, err)
	assert.Len(t, paths, 3)

	_, _, err = ScanDirectory("", nil, true)
	assert.Error(t, err)
	_, _, err = ScanDirectory(filepath.Join(root, "missing"), nil, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type stubProcessor struct {
	mu    sync.Mutex
	seen  []string
	dedup map[string]bool
	fail  map[string]bool
}

func (s *stubProcessor) ProcessFile(_ context.Context, req core.Request) (*core.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, req.Path)
	base := filepath.Base(req.Path)
	if s.fail[base] {
		return nil, errors.New("Upload failed")
	}
	return &core.Outcome{JobID: entity.JobID("job-" + base), ContentHash: "h-" + base, Deduplicated: s.dedup[base]}, nil
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"), "x")
	touch(t, filepath.Join(root, "b.csv"), "x")
	touch(t, filepath.Join(root, "c.txt"), "x")

	proc := &stubProcessor{dedup: map[string]bool{"b.csv": true}, fail: map[string]bool{"c.txt": true}}
	u := NewUsecase(proc, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	results, stats, err := u.IngestDirectory(context.Background(), root, true, false)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.EqualValues(t, DirStats{Scanned: 3, Matched: 3, Succeeded: 2, Deduplicated: 1, Failed: 1}, stats)

	byName := map[string]FileResult{}
	for _, r := range results {
		byName[filepath.Base(r.Path)] = r
	}
	assert.Equal(t, "job-a.pdf", byName["a.pdf"].JobID)
	assert.True(t, byName["b.csv"].Deduplicated)
	assert.Equal(t, "Upload failed", byName["c.txt"].Err)
}

func recvPath(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "watcher channel closed")
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watcher event")
		return ""
	}
}

func TestWatcherInitialScanAndNewFiles(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.pdf")
	touch(t, existing, "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    50 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.Equal(t, existing, recvPath(t, events))

	touch(t, filepath.Join(root, "ignored.png"), "x")
	touch(t, filepath.Join(root, ".tmp.pdf"), "x")
	fresh := filepath.Join(root, "fresh.csv")
	f, err := os.Create(fresh)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = f.WriteString(strings.Repeat("a,b\n", 10))
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	assert.Equal(t, fresh, recvPath(t, events))
	select {
	case p := <-events:
		t.Fatalf("unexpected extra event %q", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-events
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	sub := filepath.Join(root, "inbox")
	require.NoError(t, os.Mkdir(sub, 0o755))
	doc := filepath.Join(sub, "doc.txt")
	touch(t, doc, "hello")
	assert.Equal(t, doc, recvPath(t, events))
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/a/.git"))
	assert.False(t, IsHidden("/a/b.pdf"))
	assert.False(t, IsHidden("."))
}
