package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiFansOutInOrder(t *testing.T) {
	var got []string
	a := Func(func(_ context.Context, n Notification) { got = append(got, "a:"+n.Title) })
	b := Func(func(_ context.Context, n Notification) { got = append(got, "b:"+n.Title) })

	Multi{a, nil, b}.Notify(context.Background(), Success("j1", "done", ""))
	assert.Equal(t, []string{"a:done", "b:done"}, got)
}

func TestConstructorsFillIdentity(t *testing.T) {
	n := Error("j9", "Processing failed", "bad pdf")
	assert.Equal(t, KindError, n.Kind)
	assert.Equal(t, "j9", n.JobID)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.At.IsZero())
	assert.NotEqual(t, n.ID, Error("j9", "x", "").ID)
}

func TestLogNotifierUsesErrorLevelForFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	NewLogNotifier(logger).Notify(context.Background(), Error("j1", "Upload failed", "boom"))

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="Upload failed"`)
	assert.Contains(t, out, "description=boom")
}
