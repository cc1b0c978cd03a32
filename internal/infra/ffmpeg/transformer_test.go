package ffmpeg

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testInput(hasAudio bool) port.TransformInput {
	return port.TransformInput{
		SourcePath:     "/work/7/3f2a.mp4",
		WatermarkPath:  "/assets/watermark.mp4",
		WorkDir:        "/work/7",
		SourceHasAudio: hasAudio,
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestTransformRunsStagesInOrder(t *testing.T) {
	runner := &fakeRunner{}
	tr := NewTransformer("ffmpeg", DefaultEncodeParams(), runner, zap.NewNop())

	out, err := tr.Transform(context.Background(), testInput(true))
	require.NoError(t, err)
	assert.Equal(t, "/work/7/3f2a_processed.mp4", out)

	require.Len(t, runner.calls, 2)
	normalize, concat := runner.calls[0].args, runner.calls[1].args

	assert.Equal(t, "/work/7/3f2a.mp4", argValue(normalize, "-i"))
	assert.Equal(t, "30", argValue(normalize, "-t"))
	assert.Equal(t,
		"fps=30,scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2",
		argValue(normalize, "-vf"))
	assert.Equal(t, "libx264", argValue(normalize, "-c:v"))
	assert.Equal(t, "medium", argValue(normalize, "-preset"))
	assert.Equal(t, "23", argValue(normalize, "-crf"))
	assert.Equal(t, "aac", argValue(normalize, "-c:a"))
	assert.Equal(t, "128k", argValue(normalize, "-b:a"))
	assert.Equal(t, "44100", argValue(normalize, "-ar"))
	assert.Equal(t, "2", argValue(normalize, "-ac"))
	assert.Equal(t, "/work/7/3f2a.tmp.mp4", normalize[len(normalize)-1])
	assert.NotContains(t, normalize, "lavfi")

	var inputs []string
	for i, a := range concat {
		if a == "-i" {
			inputs = append(inputs, concat[i+1])
		}
	}
	assert.Equal(t, []string{"/assets/watermark.mp4", "/work/7/3f2a.tmp.mp4", "/assets/watermark.mp4"}, inputs)
	assert.Equal(t, "[0:v][0:a][1:v][1:a][2:v][2:a]concat=n=3:v=1:a=1[v][a]", argValue(concat, "-filter_complex"))
	assert.Contains(t, strings.Join(concat, " "), "-map [v] -map [a]")
	assert.Equal(t, "/work/7/3f2a_processed.mp4", concat[len(concat)-1])
}

func TestNormalizeAddsSilentTrackWhenSourceHasNoAudio(t *testing.T) {
	args := normalizeArgs(DefaultEncodeParams(), testInput(false), "/work/7/3f2a.mp4", "/work/7/3f2a.tmp.mp4")
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f lavfi -i anullsrc=channel_layout=stereo:sample_rate=44100")
	assert.Contains(t, joined, "-map 0:v:0 -map 1:a:0 -shortest")
}

func TestTransformFailsOnConcatStage(t *testing.T) {
	runner := &fakeRunner{failOn: 2, output: []byte("Error initializing complex filters")}
	tr := NewTransformer("ffmpeg", DefaultEncodeParams(), runner, zap.NewNop())

	out, err := tr.Transform(context.Background(), testInput(true))

	assert.Empty(t, out)
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "concat", toolErr.Stage)
	assert.Contains(t, err.Error(), "FFmpeg")
	assert.Contains(t, toolErr.Output, "complex filters")
}

func TestTransformStopsAfterNormalizeFailure(t *testing.T) {
	runner := &fakeRunner{failOn: 1}
	tr := NewTransformer("ffmpeg", DefaultEncodeParams(), runner, zap.NewNop())

	_, err := tr.Transform(context.Background(), testInput(true))

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "normalize", toolErr.Stage)
	assert.Len(t, runner.calls, 1)
}

func TestTransformRealPipeline(t *testing.T) {
	skipIfNoFFmpeg(t)
	if testing.Short() {
		t.Skip("skipping encode in short mode")
	}

	dir := t.TempDir()
	watermark := filepath.Join(dir, "watermark.mp4")
	source := filepath.Join(dir, "source.mp4")

	params := DefaultEncodeParams()
	params.Preset = "ultrafast"

	out, err := exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=duration=1:size=1920x1080:rate=30",
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=44100:duration=1",
		"-ac", "2", "-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-shortest", "-y", watermark,
	).CombinedOutput()
	require.NoError(t, err, string(out))

	out, err = exec.Command("ffmpeg",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=640x360:rate=25",
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p", "-y", source,
	).CombinedOutput()
	require.NoError(t, err, string(out))

	tr := NewTransformer("ffmpeg", params, ExecRunner{}, zap.NewNop())
	result, err := tr.Transform(context.Background(), port.TransformInput{
		SourcePath:     source,
		WatermarkPath:  watermark,
		WorkDir:        dir,
		SourceHasAudio: false,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "source_processed.mp4"), result)

	info := NewInspector("ffprobe", 0, ExecRunner{}, zap.NewNop()).Inspect(context.Background(), result)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.True(t, info.HasAudio)
	assert.InDelta(t, 4.0, info.Duration, 0.5)
}
