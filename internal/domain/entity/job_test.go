package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingJobWireFormat(t *testing.T) {
	job := ProcessingJob{ID: 42, Filename: "unprocessed-videos/a.mp4"}

	body, err := job.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"filename":"unprocessed-videos/a.mp4"}`, string(body))
}

func TestDecodeProcessingJob(t *testing.T) {
	job, err := DecodeProcessingJob([]byte(`{"id": 9, "filename": "unprocessed-videos/x.mp4"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), job.ID)
	assert.Equal(t, "unprocessed-videos/x.mp4", job.Filename)
}

func TestDecodeProcessingJobRejectsBadBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":         `{invalid json`,
		"missing id":       `{"filename": "a.mp4"}`,
		"missing filename": `{"id": 3}`,
		"negative id":      `{"id": -1, "filename": "a.mp4"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProcessingJob([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidJob)
		})
	}
}

func TestNewProcessingJobSnapshotsRecord(t *testing.T) {
	v := NewVideoRecord("t", "unprocessed-videos/a.mp4", 1)
	v.ID = 5

	job := NewProcessingJob(v)
	v.Filename = "changed"

	assert.Equal(t, ProcessingJob{ID: 5, Filename: "unprocessed-videos/a.mp4"}, job)
}

func TestJobResultAcknowledgePolicy(t *testing.T) {
	assert.True(t, Succeeded("a.mp4", "processed-videos/a_processed.mp4").ShouldAcknowledge())
	assert.True(t, Failed("a.mp4", FailureTerminal, "FFmpeg error").ShouldAcknowledge())
	assert.False(t, Failed("a.mp4", FailureTransient, "source not found").ShouldAcknowledge())
}
