package minio

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(miniogo.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(fmt.Errorf("get: %w", miniogo.ErrorResponse{StatusCode: http.StatusNotFound})))
	assert.False(t, isNotFound(miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
	assert.False(t, isNotFound(errors.New("connection reset")))
}
