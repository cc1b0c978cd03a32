package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("pq: connection reset")
	err := Wrap(cause, ErrInternal)

	assert.Equal(t, ErrInternal.Message, err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("upload: %w", Wrap(errors.New("send failed"), ErrQueueUnavailable))

	assert.True(t, Is(err, ErrQueueUnavailable))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, StatusCode(err))
	assert.Equal(t, "queue_unavailable", Code(err))
	assert.Equal(t, ErrQueueUnavailable.Message, SafeMessage(err))
}

func TestPlainErrorsMapToInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, ErrInternal.Code, Code(err))
	assert.Equal(t, ErrInternal.Message, SafeMessage(err))
}

func TestWithMessage(t *testing.T) {
	err := WithMessage(ErrInvalidDuration, "Video duration is 12.0s; it must be between 20 and 60 seconds")

	assert.Equal(t, ErrInvalidDuration.Code, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Contains(t, err.Error(), "12.0s")
}
