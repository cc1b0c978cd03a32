package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"go.uber.org/zap"
)

// EncodeParams is the canonical output format shared by every stage and by
// the pre-normalized watermark clip.
type EncodeParams struct {
	Width         int
	Height        int
	FPS           int
	TrimSeconds   int
	Preset        string
	CRF           int
	AudioBitrate  string
	AudioRate     int
	AudioChannels int
}

func DefaultEncodeParams() EncodeParams {
	return EncodeParams{
		Width:         1920,
		Height:        1080,
		FPS:           30,
		TrimSeconds:   30,
		Preset:        "medium",
		CRF:           23,
		AudioBitrate:  "128k",
		AudioRate:     44100,
		AudioChannels: 2,
	}
}

type stage struct {
	name   string
	output func(in port.TransformInput) string
	args   func(p EncodeParams, in port.TransformInput, input, output string) []string
}

// pipeline is run in order; each stage consumes the previous stage's output.
var pipeline = []stage{
	{
		name: "normalize",
		output: func(in port.TransformInput) string {
			return filepath.Join(in.WorkDir, baseName(in.SourcePath)+".tmp.mp4")
		},
		args: normalizeArgs,
	},
	{
		name: "concat",
		output: func(in port.TransformInput) string {
			return filepath.Join(in.WorkDir, baseName(in.SourcePath)+"_processed.mp4")
		},
		args: concatArgs,
	},
}

type Transformer struct {
	ffmpegPath string
	params     EncodeParams
	runner     Runner
	logger     *zap.Logger
}

var _ port.Transformer = (*Transformer)(nil)

func NewTransformer(ffmpegPath string, params EncodeParams, runner Runner, logger *zap.Logger) *Transformer {
	return &Transformer{ffmpegPath: ffmpegPath, params: params, runner: runner, logger: logger}
}

// Transform runs normalize then concat. A failing stage aborts the whole
// transform with a *ToolError; nothing it produced is usable.
func (t *Transformer) Transform(ctx context.Context, in port.TransformInput) (string, error) {
	current := in.SourcePath
	for _, s := range pipeline {
		out := s.output(in)
		args := s.args(t.params, in, current, out)

		start := time.Now()
		output, err := t.runner.Run(ctx, t.ffmpegPath, args...)
		if err != nil {
			toolErr := newToolError(s.name, err, output)
			t.logger.Error("ffmpeg stage failed",
				zap.String("stage", s.name),
				zap.Int("exit_code", toolErr.ExitCode),
				zap.String("output", toolErr.Output),
			)
			return "", toolErr
		}
		metrics.JobProcessingDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())

		t.logger.Info("ffmpeg stage completed",
			zap.String("stage", s.name),
			zap.String("output", out),
			zap.Duration("took", time.Since(start)),
		)
		current = out
	}
	return current, nil
}

func normalizeArgs(p EncodeParams, in port.TransformInput, input, output string) []string {
	args := []string{"-i", input}
	if !in.SourceHasAudio {
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", p.AudioRate),
		)
	}

	args = append(args,
		"-t", strconv.Itoa(p.TrimSeconds),
		"-vf", videoFilter(p),
	)
	if !in.SourceHasAudio {
		args = append(args, "-map", "0:v:0", "-map", "1:a:0", "-shortest")
	}

	args = append(args, encodeArgs(p)...)
	args = append(args,
		"-ar", strconv.Itoa(p.AudioRate),
		"-ac", strconv.Itoa(p.AudioChannels),
		"-y", output,
	)
	return args
}

func concatArgs(p EncodeParams, in port.TransformInput, input, output string) []string {
	args := []string{
		"-i", in.WatermarkPath,
		"-i", input,
		"-i", in.WatermarkPath,
		"-filter_complex", "[0:v][0:a][1:v][1:a][2:v][2:a]concat=n=3:v=1:a=1[v][a]",
		"-map", "[v]",
		"-map", "[a]",
	}
	args = append(args, encodeArgs(p)...)
	return append(args, "-y", output)
}

func videoFilter(p EncodeParams) string {
	return fmt.Sprintf(
		"fps=%d,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.FPS, p.Width, p.Height, p.Width, p.Height,
	)
}

func encodeArgs(p EncodeParams) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-c:a", "aac",
		"-b:a", p.AudioBitrate,
	}
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
