package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/risingstars/video-pipeline/internal/bootstrap"
	"github.com/risingstars/video-pipeline/internal/infra/config"
	"github.com/risingstars/video-pipeline/internal/infra/email"
	"github.com/risingstars/video-pipeline/internal/infra/ffmpeg"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"github.com/risingstars/video-pipeline/internal/infra/postgres"
	"github.com/risingstars/video-pipeline/internal/infra/tracing"
	"github.com/risingstars/video-pipeline/internal/usecase"
	"github.com/risingstars/video-pipeline/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run returns an error only when the worker stopped on its own rather than
// on a signal, so the supervisor restarts it.
func run() error {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video worker",
		zap.String("queue_backend", cfg.QueueBackend),
		zap.String("storage_backend", cfg.StorageBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "video-worker")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	fatalOnErr(ffmpeg.CheckBinaries(cfg.FFmpegPath, cfg.FFprobePath), "check media tools")
	if _, err := os.Stat(cfg.WatermarkPath); err != nil {
		fatalOnErr(err, "stat watermark clip")
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	store, err := bootstrap.NewBlobStore(ctx, cfg, log)
	fatalOnErr(err, "open blob store")

	queues, err := bootstrap.NewQueues(ctx, cfg, true, log)
	fatalOnErr(err, "open job queue")
	defer queues.Close()

	params := ffmpeg.DefaultEncodeParams()
	params.Preset = cfg.FFmpegPreset
	params.CRF = cfg.FFmpegCRF

	runner := ffmpeg.ExecRunner{}
	inspector := ffmpeg.NewInspector(cfg.FFprobePath, cfg.ProbeTimeout, runner, log)
	transformer := ffmpeg.NewTransformer(cfg.FFmpegPath, params, runner, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log)

	processor := usecase.NewProcessVideoUseCase(
		postgres.NewVideoRepository(pool), store, inspector, transformer, log,
		usecase.ProcessVideoConfig{
			TempDir:       cfg.TempDir,
			WatermarkPath: cfg.WatermarkPath,
		},
	)

	loop := usecase.NewLoop(queues.Jobs, processor, queues.DLQ, notifier, log, usecase.LoopConfig{
		ReceiveBatch: cfg.ReceiveBatch,
		ReceiveWait:  cfg.ReceiveWait,
		PollInterval: cfg.PollInterval,
		MaxAttempts:  cfg.MaxAttempts,
		JobTimeout:   cfg.JobTimeout,
	})

	checks := map[string]metrics.ReadinessCheck{
		"postgres": pool.Ping,
	}
	if queues.Ready != nil {
		checks["queue"] = queues.Ready
	}
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, checks, log)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("video worker started, consuming jobs")

	runErr := loop.Run(ctx)
	if runErr != nil {
		log.Error("worker loop error", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("video worker stopped")
	return runErr
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
