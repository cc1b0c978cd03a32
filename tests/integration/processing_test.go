package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/risingstars/video-pipeline/internal/bootstrap"
	"github.com/risingstars/video-pipeline/internal/domain/entity"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"github.com/risingstars/video-pipeline/internal/infra/config"
	"github.com/risingstars/video-pipeline/internal/infra/email"
	"github.com/risingstars/video-pipeline/internal/infra/ffmpeg"
	"github.com/risingstars/video-pipeline/internal/infra/postgres"
	"github.com/risingstars/video-pipeline/internal/usecase"
	"github.com/risingstars/video-pipeline/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBucket   = "videos"
	testExchange = "risingstars.video"
	testQueue    = "video.processing"
	testDLQ      = "video.processing.dlq"
)

type pipelineEnv struct {
	pool     *pgxpool.Pool
	store    port.BlobStore
	queues   *bootstrap.Queues
	minio    *miniogo.Client
	rmqURL   string
	log      *zap.Logger
	tempDir  string
	mediaDir string

	// maxAttempts is handed to the worker loop; zero retries forever.
	maxAttempts int
}

func newPipelineEnv(ctx context.Context, t *testing.T) *pipelineEnv {
	t.Helper()
	pool, dbURL := startPostgres(ctx, t)
	rmqURL := startRabbitMQ(ctx, t)
	minioEndpoint := startMinIO(ctx, t)

	log, err := logger.New("debug")
	require.NoError(t, err)

	cfg := &config.Config{
		QueueBackend:            config.QueueBackendRabbitMQ,
		RabbitMQURL:             rmqURL,
		RabbitMQProcessingQueue: testQueue,
		RabbitMQDLQ:             testDLQ,
		RabbitMQExchange:        testExchange,
		RabbitMQPrefetch:        1,
		RabbitMQRetryBaseDelay:  100 * time.Millisecond,
		StorageBackend:          config.StorageBackendMinIO,
		Bucket:                  testBucket,
		MinIOEndpoint:           minioEndpoint,
		MinIOAccessKey:          "minioadmin",
		MinIOSecretKey:          "minioadmin",
		DatabaseURL:             dbURL,
	}

	store, err := bootstrap.NewBlobStore(ctx, cfg, log)
	require.NoError(t, err)

	queues, err := bootstrap.NewQueues(ctx, cfg, true, log)
	require.NoError(t, err)
	t.Cleanup(queues.Close)

	client, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	return &pipelineEnv{
		pool:     pool,
		store:    store,
		queues:   queues,
		minio:    client,
		rmqURL:   rmqURL,
		log:      log,
		tempDir:  t.TempDir(),
		mediaDir: t.TempDir(),
	}
}

func (e *pipelineEnv) startWorker(ctx context.Context, t *testing.T, watermark string) {
	t.Helper()
	params := ffmpeg.DefaultEncodeParams()
	params.Preset = "ultrafast"

	runner := ffmpeg.ExecRunner{}
	processor := usecase.NewProcessVideoUseCase(
		postgres.NewVideoRepository(e.pool), e.store,
		ffmpeg.NewInspector("ffprobe", 30*time.Second, runner, e.log),
		ffmpeg.NewTransformer("ffmpeg", params, runner, e.log),
		e.log,
		usecase.ProcessVideoConfig{TempDir: e.tempDir, WatermarkPath: watermark},
	)
	// An empty recipient turns failure emails into no-ops.
	notifier := email.NewSMTPNotifier("localhost", 1025, "worker@test.local", "", e.log)

	loop := usecase.NewLoop(e.queues.Jobs, processor, e.queues.DLQ, notifier, e.log, usecase.LoopConfig{
		ReceiveBatch: 1,
		ReceiveWait:  time.Second,
		PollInterval: 100 * time.Millisecond,
		MaxAttempts:  e.maxAttempts,
	})

	workerCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(workerCtx)
	}()
	t.Cleanup(func() {
		stop()
		<-done
	})
}

func generate(t *testing.T, args ...string) {
	t.Helper()
	out, err := exec.Command("ffmpeg", append([]string{"-hide_banner", "-loglevel", "error"}, args...)...).CombinedOutput()
	require.NoError(t, err, string(out))
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if err := ffmpeg.CheckBinaries("ffmpeg", "ffprobe"); err != nil {
		t.Skipf("media tools unavailable: %v", err)
	}
}

func TestUploadThenProcessEndToEnd(t *testing.T) {
	skipInShortMode(t)
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	env := newPipelineEnv(ctx, t)

	watermark := filepath.Join(env.mediaDir, "watermark.mp4")
	generate(t,
		"-f", "lavfi", "-i", "color=c=black:size=1920x1080:rate=30:duration=1",
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-shortest", "-y", watermark,
	)
	// A silent source also exercises the added audio track.
	source := filepath.Join(env.mediaDir, "clip.mp4")
	generate(t,
		"-f", "lavfi", "-i", "testsrc=duration=21:size=1920x1080:rate=30",
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p", "-y", source,
	)

	env.startWorker(ctx, t, watermark)

	owner := createUser(ctx, t, env.pool, "Ana", "ana@example.com")
	repo := postgres.NewVideoRepository(env.pool)
	upload := usecase.NewUploadVideoUseCase(repo, env.store, env.queues.Jobs,
		ffmpeg.NewInspector("ffprobe", 30*time.Second, ffmpeg.ExecRunner{}, env.log), env.log,
		usecase.UploadVideoConfig{TempDir: env.tempDir})

	f, err := os.Open(source)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	out, err := upload.Execute(ctx, usecase.UploadVideoInput{
		Title:    "Crossover",
		Filename: "Clip.MP4",
		Size:     info.Size(),
		Content:  f,
		OwnerID:  owner,
	})
	require.NoError(t, err)

	var video *entity.VideoRecord
	require.Eventually(t, func() bool {
		video, err = repo.FindByID(ctx, out.VideoID)
		return err == nil && video.IsProcessed()
	}, 8*time.Minute, time.Second, "video was never marked processed")

	assert.Equal(t, entity.ProcessedKey(out.Key), video.Filename)
	require.NotNil(t, video.ProcessedAt)

	stat, err := env.minio.StatObject(ctx, testBucket, video.Filename, miniogo.StatObjectOptions{})
	require.NoError(t, err)
	assert.Positive(t, stat.Size)

	local := filepath.Join(env.mediaDir, "result.mp4")
	require.True(t, env.store.Get(ctx, video.Filename, local))
	media := ffmpeg.NewInspector("ffprobe", 30*time.Second, ffmpeg.ExecRunner{}, env.log).Inspect(ctx, local)
	assert.Equal(t, 1920, media.Width)
	assert.Equal(t, 1080, media.Height)
	assert.True(t, media.HasAudio)
	assert.InDelta(t, 23.0, media.Duration, 1.0)

	// The scratch dir is removed just after the record update.
	assert.Eventually(t, func() bool {
		entries, err := os.ReadDir(env.tempDir)
		return err == nil && len(entries) == 0
	}, 10*time.Second, 100*time.Millisecond, "scratch files left behind")
}

func TestMalformedMessageIsDeadLettered(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env := newPipelineEnv(ctx, t)
	env.startWorker(ctx, t, filepath.Join(env.mediaDir, "unused.mp4"))

	conn, err := amqp.Dial(env.rmqURL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	err = ch.PublishWithContext(ctx, testExchange, testQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        []byte(`{invalid json`),
	})
	require.NoError(t, err)

	var dead amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(testDLQ, true)
		if err != nil || !ok {
			return false
		}
		dead = msg
		return true
	}, time.Minute, 200*time.Millisecond, "malformed message never reached the DLQ")

	assert.Equal(t, `{invalid json`, string(dead.Body))
	assert.NotEmpty(t, dead.Headers["x-dlq-reason"])

	// Acknowledged, so nothing is left to redeliver.
	require.Eventually(t, func() bool {
		q, err := ch.QueueDeclarePassive(testQueue, true, false, false, false, nil)
		return err == nil && q.Messages == 0
	}, 30*time.Second, 200*time.Millisecond)
}

func TestMissingSourceIsDeadLetteredAfterMaxAttempts(t *testing.T) {
	skipInShortMode(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	env := newPipelineEnv(ctx, t)
	env.maxAttempts = 3
	env.startWorker(ctx, t, filepath.Join(env.mediaDir, "unused.mp4"))

	owner := createUser(ctx, t, env.pool, "Bia", "bia@example.com")
	repo := postgres.NewVideoRepository(env.pool)
	video := entity.NewVideoRecord("Ghost", entity.UnprocessedPrefix+"ghost.mp4", owner)
	require.NoError(t, repo.Create(ctx, video))
	require.True(t, env.queues.Jobs.Enqueue(ctx, entity.NewProcessingJob(video)))

	conn, err := amqp.Dial(env.rmqURL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	var dead amqp.Delivery
	require.Eventually(t, func() bool {
		msg, ok, err := ch.Get(testDLQ, true)
		if err != nil || !ok {
			return false
		}
		dead = msg
		return true
	}, 2*time.Minute, 200*time.Millisecond, "job with a missing source was never retired")

	job, err := entity.DecodeProcessingJob(dead.Body)
	require.NoError(t, err)
	assert.Equal(t, video.ID, job.ID)
	assert.Contains(t, dead.Headers["x-dlq-reason"], "gave up after 3 attempts")

	got, err := repo.FindByID(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusUploaded, got.Status)

	require.Eventually(t, func() bool {
		q, err := ch.QueueDeclarePassive(testQueue, true, false, false, false, nil)
		return err == nil && q.Messages == 0
	}, 30*time.Second, 200*time.Millisecond)
}
