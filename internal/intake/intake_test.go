package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/extract-tracker/constants"
	"github.com/joseph-ayodele/extract-tracker/internal/common"
	"github.com/joseph-ayodele/extract-tracker/internal/entity"
	"github.com/joseph-ayodele/extract-tracker/internal/notify"
	"github.com/joseph-ayodele/extract-tracker/internal/progress"
)

const mb = 1024 * 1024

func TestValidate(t *testing.T) {
	accepted := constants.DefaultAcceptedTypes
	tests := []struct {
		name     string
		file     entity.CandidateFile
		wantKind ErrorKind
		wantMsg  string
	}{
		{"pdf under limit", entity.CandidateFile{Name: "a.pdf", MediaType: constants.MediaTypePDF, Size: 2 * mb}, "", ""},
		{"exactly at limit", entity.CandidateFile{Name: "a.csv", MediaType: constants.MediaTypeCSV, Size: 10 * mb}, "", ""},
		{"one byte over", entity.CandidateFile{Name: "a.csv", MediaType: constants.MediaTypeCSV, Size: 10*mb + 1}, TooLarge, "File is too large. Maximum size: 10MB"},
		{"png", entity.CandidateFile{Name: "a.png", MediaType: "image/png", Size: 1024}, UnsupportedType, "Invalid file type. Supported types: PDF, TXT, CSV"},
		{"oversized png reports type first", entity.CandidateFile{Name: "a.png", MediaType: "image/png", Size: 50 * mb}, UnsupportedType, "Invalid file type. Supported types: PDF, TXT, CSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.file, accepted, constants.DefaultMaxUploadMB)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantKind, vErr.Kind)
			assert.Equal(t, tt.wantMsg, vErr.Message)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestValidateFractionalCeiling(t *testing.T) {
	err := Validate(entity.CandidateFile{MediaType: constants.MediaTypeTXT, Size: 2 * mb}, constants.DefaultAcceptedTypes, 1.5)
	require.Error(t, err)
	assert.Equal(t, "File is too large. Maximum size: 1.5MB", err.Error())
}

func TestReadableTypes(t *testing.T) {
	assert.Equal(t, "PDF, TXT, CSV", ReadableTypes(constants.DefaultAcceptedTypes))
	assert.Equal(t, "PDF, JSON", ReadableTypes([]string{constants.MediaTypePDF, "application/json"}))
}

func TestSessionRecordsAndClearsErrors(t *testing.T) {
	s := NewSession(nil, 0)

	err := s.Check(entity.CandidateFile{Name: "x.png", MediaType: "image/png", Size: 10})
	require.Error(t, err)
	assert.Equal(t, err, s.Err())
	_, ok := s.Selected()
	assert.False(t, ok)

	good := entity.CandidateFile{Name: "x.pdf", MediaType: constants.MediaTypePDF, Size: 10}
	require.NoError(t, s.Check(good))
	assert.NoError(t, s.Err())
	selected, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, good, selected)

	s.Remove()
	_, ok = s.Selected()
	assert.False(t, ok)
	assert.Equal(t, float64(constants.DefaultMaxUploadMB), s.MaxSizeMB())
}

func TestSessionCheckIsIdempotentForValidFile(t *testing.T) {
	s := NewSession(nil, 0)
	good := entity.CandidateFile{Name: "x.csv", MediaType: constants.MediaTypeCSV, Size: 1024}

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Check(good))
		assert.Nil(t, s.Err())
		selected, ok := s.Selected()
		require.True(t, ok)
		assert.Equal(t, good, selected)
	}
	assert.NoError(t, Validate(good, s.AcceptedTypes(), s.MaxSizeMB()))
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Report.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	file, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "Report.PDF", file.Name)
	assert.Equal(t, constants.MediaTypePDF, file.MediaType)
	assert.EqualValues(t, 8, file.Size)
	assert.Equal(t, path, file.Path)

	_, err = FromPath(dir)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = FromPath(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDetectMediaTypeFallsBack(t *testing.T) {
	assert.Equal(t, constants.MediaTypeCSV, DetectMediaType("a.csv"))
	assert.Equal(t, "application/octet-stream", DetectMediaType("a.nosuchext"))
}

type stubSubmitter struct {
	mu     sync.Mutex
	calls  int
	block  chan struct{}
	handle entity.JobHandle
	err    error
}

func (s *stubSubmitter) Submit(ctx context.Context, _ entity.CandidateFile) (entity.JobHandle, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return entity.JobHandle{}, ctx.Err()
		}
	}
	return s.handle, s.err
}

func (s *stubSubmitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu   sync.Mutex
	seen []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recorder) All() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.seen...)
}

func pdf() entity.CandidateFile {
	return entity.CandidateFile{Name: "report.pdf", MediaType: constants.MediaTypePDF, Size: 2 * mb}
}

func fakeSimulator(clock clockwork.Clock) *progress.Simulator {
	return progress.NewSimulator(200*time.Millisecond, progress.WithClock(clock), progress.WithIncrement(func() int { return 5 }))
}

func TestUploadRejectsInvalidFileWithoutSubmitting(t *testing.T) {
	sub := &stubSubmitter{}
	rec := &recorder{}
	u := NewUploader(sub, nil, rec)

	_, err := u.Upload(context.Background(), entity.CandidateFile{Name: "photo.png", MediaType: "image/png", Size: 1024})
	require.Error(t, err)
	assert.Equal(t, 0, sub.Calls())

	state := u.State()
	assert.False(t, state.Uploading)
	assert.Equal(t, "Invalid file type. Supported types: PDF, TXT, CSV", state.Error)

	seen := rec.All()
	require.Len(t, seen, 1)
	assert.Equal(t, notify.KindError, seen[0].Kind)
}

func TestUploadSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &stubSubmitter{handle: entity.JobHandle{JobID: "abc123", Status: constants.JobStatusPending}}
	rec := &recorder{}
	u := NewUploader(sub, nil, rec, WithSimulator(fakeSimulator(clock)))

	handle, err := u.Upload(context.Background(), pdf())
	require.NoError(t, err)
	assert.Equal(t, entity.JobID("abc123"), handle.JobID)
	assert.Equal(t, 1, sub.Calls())

	state := u.State()
	assert.Equal(t, progress.Complete, state.Progress)
	assert.Empty(t, state.Error)
	assert.False(t, state.Uploading)
	assert.Equal(t, entity.JobID("abc123"), state.JobID)

	seen := rec.All()
	require.Len(t, seen, 1)
	assert.Equal(t, notify.KindSuccess, seen[0].Kind)
	assert.Equal(t, "File uploaded successfully!", seen[0].Title)
	assert.Equal(t, "Your file is now being processed.", seen[0].Description)
}

func TestUploadFailureResetsProgressAndKeepsError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &stubSubmitter{block: make(chan struct{}), err: errors.New("File type not supported")}
	rec := &recorder{}
	u := NewUploader(sub, nil, rec, WithSimulator(fakeSimulator(clock)))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), pdf())
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return u.State().Progress == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, u.State().Uploading)

	close(sub.block)
	require.Error(t, <-done)

	state := u.State()
	assert.Equal(t, 0, state.Progress)
	assert.False(t, state.Uploading)
	assert.Equal(t, "File type not supported", state.Error)

	seen := rec.All()
	require.Len(t, seen, 1)
	assert.Equal(t, "Upload failed", seen[0].Title)
	assert.Equal(t, "File type not supported", seen[0].Description)
}

func TestUploadRefusesConcurrentSubmit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sub := &stubSubmitter{block: make(chan struct{}), handle: entity.JobHandle{JobID: "j1"}}
	u := NewUploader(sub, nil, nil, WithSimulator(fakeSimulator(clock)))

	done := make(chan error, 1)
	go func() {
		_, err := u.Upload(context.Background(), pdf())
		done <- err
	}()
	require.Eventually(t, func() bool { return sub.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := u.Upload(context.Background(), pdf())
	assert.ErrorIs(t, err, ErrUploadInProgress)

	close(sub.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, sub.Calls())
}
