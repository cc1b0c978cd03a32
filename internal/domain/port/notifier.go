package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, videoID int64, videoKey string, errorMsg string) error
}
