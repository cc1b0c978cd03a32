package apperror

import (
	"errors"
	"net/http"
)

// Error is what the API is allowed to tell a client. Internal carries the
// cause for logs and never reaches the response.
type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

var (
	ErrNotFound = &Error{
		Code:       "not_found",
		Message:    "The requested resource was not found",
		StatusCode: http.StatusNotFound,
	}

	ErrUnauthorized = &Error{
		Code:       "unauthorized",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &Error{
		Code:       "forbidden",
		Message:    "You don't have permission to access this resource",
		StatusCode: http.StatusForbidden,
	}

	ErrBadRequest = &Error{
		Code:       "bad_request",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrFileTooLarge = &Error{
		Code:       "file_too_large",
		Message:    "The uploaded file exceeds the maximum allowed size of 100 MB",
		StatusCode: http.StatusRequestEntityTooLarge,
	}

	ErrInvalidFileType = &Error{
		Code:       "invalid_file_type",
		Message:    "Only MP4 files are allowed",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidDuration = &Error{
		Code:       "invalid_duration",
		Message:    "Video duration must be between 20 and 60 seconds",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidResolution = &Error{
		Code:       "invalid_resolution",
		Message:    "Video resolution must be at least 1080p",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotDeletable = &Error{
		Code:       "not_deletable",
		Message:    "The video was already processed and can no longer be deleted",
		StatusCode: http.StatusBadRequest,
	}

	ErrAlreadyVoted = &Error{
		Code:       "already_voted",
		Message:    "You have already voted for this video",
		StatusCode: http.StatusBadRequest,
	}

	ErrQueueUnavailable = &Error{
		Code:       "queue_unavailable",
		Message:    "The video could not be queued for processing. Please try again later",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrStorageUnavailable = &Error{
		Code:       "storage_unavailable",
		Message:    "The video could not be stored. Please try again later",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrInternal = &Error{
		Code:       "internal_error",
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}
)

func New(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Internal:   err,
	}
}

// WithMessage keeps the code and status of appErr but replaces the text.
func WithMessage(appErr *Error, message string) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    message,
		StatusCode: appErr.StatusCode,
		Internal:   appErr.Internal,
	}
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}
