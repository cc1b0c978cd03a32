package port

import "context"

// MediaInfo is what the inspector could read from a container. A zero
// Duration means undeterminable. Probed is false when the streams could not
// be read at all, in which case HasAudio says nothing.
type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
	HasAudio bool
	Probed   bool
}

type MediaInspector interface {
	Inspect(ctx context.Context, path string) MediaInfo
}

type TransformInput struct {
	SourcePath     string
	WatermarkPath  string
	WorkDir        string
	SourceHasAudio bool
}

// Transformer writes all of its files under in.WorkDir and returns the
// path of the final output.
type Transformer interface {
	Transform(ctx context.Context, in TransformInput) (string, error)
}
