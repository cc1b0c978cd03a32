package usecase

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/risingstars/video-pipeline/internal/apperror"
)

// StagedFile is an upload spooled to local disk. Remove must be deferred
// as soon as StageUpload returns; it is safe to call more than once.
type StagedFile struct {
	path string
	size int64
}

// StageUpload copies r into a new file under dir, refusing more than limit
// bytes. Nothing is left on disk when it returns an error.
func StageUpload(dir string, r io.Reader, limit int64) (*StagedFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	f, err := os.CreateTemp(dir, "upload-*"+AcceptedExtension)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	staged := &StagedFile{path: f.Name()}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = staged.Remove()
		return nil, fmt.Errorf("write staging file: %w", err)
	}
	if n > limit {
		_ = staged.Remove()
		return nil, apperror.ErrFileTooLarge
	}

	staged.size = n
	return staged, nil
}

func (s *StagedFile) Path() string { return s.path }

func (s *StagedFile) Size() int64 { return s.size }

func (s *StagedFile) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
