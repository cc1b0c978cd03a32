package ffmpeg

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

type Inspector struct {
	ffprobePath string
	timeout     time.Duration
	runner      Runner
	logger      *zap.Logger
}

var _ port.MediaInspector = (*Inspector)(nil)

func NewInspector(ffprobePath string, timeout time.Duration, runner Runner, logger *zap.Logger) *Inspector {
	return &Inspector{ffprobePath: ffprobePath, timeout: timeout, runner: runner, logger: logger}
}

// Inspect never fails: anything ffprobe cannot read yields the zero MediaInfo.
func (i *Inspector) Inspect(ctx context.Context, path string) port.MediaInfo {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	output, err := i.runner.Run(ctx, i.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	if err != nil {
		i.logger.Warn("ffprobe failed, treating media as undeterminable",
			zap.String("path", path),
			zap.Error(err),
		)
		return port.MediaInfo{}
	}

	info := ParseProbe(output)
	i.logger.Debug("media inspected",
		zap.String("path", path),
		zap.Float64("duration", info.Duration),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Bool("has_audio", info.HasAudio),
	)
	return info
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// ParseProbe picks the first video stream that carries a finite positive
// duration. Without one, only Probed is set; unreadable output yields the
// zero MediaInfo.
func ParseProbe(data []byte) port.MediaInfo {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return port.MediaInfo{}
	}

	info := port.MediaInfo{Probed: true}
	found := false
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if found || s.Duration == "" {
				continue
			}
			d, err := strconv.ParseFloat(s.Duration, 64)
			if err != nil || math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
				continue
			}
			info.Duration = d
			info.Width = s.Width
			info.Height = s.Height
			found = true
		}
	}

	if !found {
		return port.MediaInfo{Probed: true}
	}
	return info
}
