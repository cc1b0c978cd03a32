package usecase

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/risingstars/video-pipeline/internal/apperror"
	"github.com/risingstars/video-pipeline/internal/domain/port"
)

const (
	AcceptedExtension = ".mp4"
	MaxUploadBytes    = 100 * 1024 * 1024

	MinDurationSeconds = 20.0
	MaxDurationSeconds = 60.0

	MinWidth  = 1920
	MinHeight = 1080
)

// Decision is the outcome of an upload check. Reason is nil when Accepted.
type Decision struct {
	Accepted bool
	Reason   *apperror.Error
}

func accept() Decision { return Decision{Accepted: true} }

func reject(reason *apperror.Error) Decision { return Decision{Reason: reason} }

// ValidateUpload checks what is known before the bytes are read.
func ValidateUpload(filename string, size, maxSize int64) Decision {
	if !strings.EqualFold(filepath.Ext(filename), AcceptedExtension) {
		return reject(apperror.ErrInvalidFileType)
	}
	if maxSize <= 0 {
		maxSize = MaxUploadBytes
	}
	if size > maxSize {
		return reject(apperror.ErrFileTooLarge)
	}
	return accept()
}

// ValidateMedia gates on what the inspector reported. Duration is checked
// first so an unreadable file is never reported as a resolution problem.
//
// The resolution floor rejects only when both dimensions are below it:
// 1920x1000 passes, 1919x1079 does not.
func ValidateMedia(info port.MediaInfo) Decision {
	if math.IsNaN(info.Duration) || math.IsInf(info.Duration, 0) || info.Duration <= 0 {
		return reject(apperror.WithMessage(apperror.ErrInvalidDuration,
			"Video duration could not be determined"))
	}
	if info.Duration < MinDurationSeconds || info.Duration > MaxDurationSeconds {
		return reject(apperror.WithMessage(apperror.ErrInvalidDuration,
			fmt.Sprintf("Video duration is %.2fs; it must be between %.0f and %.0f seconds",
				info.Duration, MinDurationSeconds, MaxDurationSeconds)))
	}
	if info.Height < MinHeight && info.Width < MinWidth {
		return reject(apperror.WithMessage(apperror.ErrInvalidResolution,
			fmt.Sprintf("Video resolution %dx%d is below the 1080p minimum", info.Width, info.Height)))
	}
	return accept()
}
