package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes an external media tool and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CheckBinaries verifies the tools are on PATH before a worker starts taking jobs.
func CheckBinaries(paths ...string) error {
	for _, p := range paths {
		if _, err := exec.LookPath(p); err != nil {
			return fmt.Errorf("%s not available: %w", p, err)
		}
	}
	return nil
}

const maxDiagnosticBytes = 4096

// ToolError is a nonzero exit (or failed start) of ffmpeg during one stage.
type ToolError struct {
	Stage    string
	ExitCode int
	Output   string
	Err      error
}

func newToolError(stage string, err error, output []byte) *ToolError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	out := string(output)
	if len(out) > maxDiagnosticBytes {
		out = out[len(out)-maxDiagnosticBytes:]
	}

	return &ToolError{Stage: stage, ExitCode: code, Output: out, Err: err}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("FFmpeg error in stage %s (exit %d): %v, output: %s", e.Stage, e.ExitCode, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
