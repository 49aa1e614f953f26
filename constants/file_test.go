package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaTypeLabel(t *testing.T) {
	assert.Equal(t, "PDF", MediaTypeLabel(MediaTypePDF))
	assert.Equal(t, "TXT", MediaTypeLabel(MediaTypeTXT))
	assert.Equal(t, "CSV", MediaTypeLabel(MediaTypeCSV))
	assert.Equal(t, "PNG", MediaTypeLabel("image/png"))
	assert.Equal(t, "WEIRD", MediaTypeLabel("weird"))
}

func TestMediaTypeForExt(t *testing.T) {
	assert.Equal(t, MediaTypePDF, MediaTypeForExt(".PDF"))
	assert.Equal(t, MediaTypeCSV, MediaTypeForExt("csv"))
	assert.Empty(t, MediaTypeForExt(".png"))
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
}
