package usecase

import (
	"os"
	"strings"
	"testing"

	"github.com/risingstars/video-pipeline/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageUploadWritesAndRemoves(t *testing.T) {
	dir := t.TempDir()

	staged, err := StageUpload(dir, strings.NewReader("0123456789"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), staged.Size())
	assert.FileExists(t, staged.Path())

	require.NoError(t, staged.Remove())
	assert.NoFileExists(t, staged.Path())
	assert.NoError(t, staged.Remove())
}

func TestStageUploadOverLimitLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	_, err := StageUpload(dir, strings.NewReader("0123456789X"), 10)
	assert.True(t, apperror.Is(err, apperror.ErrFileTooLarge))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
