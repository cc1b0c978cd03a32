package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/risingstars/video-pipeline/internal/bootstrap"
	"github.com/risingstars/video-pipeline/internal/infra/config"
	"github.com/risingstars/video-pipeline/internal/infra/ffmpeg"
	"github.com/risingstars/video-pipeline/internal/infra/httpapi"
	"github.com/risingstars/video-pipeline/internal/infra/metrics"
	"github.com/risingstars/video-pipeline/internal/infra/postgres"
	"github.com/risingstars/video-pipeline/internal/infra/tracing"
	"github.com/risingstars/video-pipeline/internal/usecase"
	"github.com/risingstars/video-pipeline/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")
	if cfg.JWTSecret == "" {
		fatalOnErr(errors.New("JWT_SECRET is required"), "load config")
	}

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting video api",
		zap.String("queue_backend", cfg.QueueBackend),
		zap.String("storage_backend", cfg.StorageBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "video-api")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	// ffprobe is needed to validate uploads; ffmpeg is not.
	fatalOnErr(ffmpeg.CheckBinaries(cfg.FFprobePath), "check media tools")

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	store, err := bootstrap.NewBlobStore(ctx, cfg, log)
	fatalOnErr(err, "open blob store")

	queues, err := bootstrap.NewQueues(ctx, cfg, false, log)
	fatalOnErr(err, "open job queue")
	defer queues.Close()

	videos := postgres.NewVideoRepository(pool)
	inspector := ffmpeg.NewInspector(cfg.FFprobePath, cfg.ProbeTimeout, ffmpeg.ExecRunner{}, log)

	handler := httpapi.NewHandler(
		usecase.NewUploadVideoUseCase(videos, store, queues.Jobs, inspector, log, usecase.UploadVideoConfig{
			TempDir: cfg.TempDir,
			MaxSize: cfg.MaxUploadSize,
		}),
		usecase.NewManageVideosUseCase(videos, store, log),
		usecase.NewVoteUseCase(postgres.NewVoteRepository(pool), log),
		log,
		httpapi.HandlerConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			MaxUploadSize: cfg.MaxUploadSize,
		},
	)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           httpapi.NewRouter(handler, cfg.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	checks := map[string]metrics.ReadinessCheck{
		"postgres": pool.Ping,
	}
	if queues.Ready != nil {
		checks["queue"] = queues.Ready
	}
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, checks, log)

	go func() {
		log.Info("api server starting", zap.Int("port", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", zap.Error(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	// Uploads can take a while to stream in.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api server shutdown", zap.Error(err))
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("video api stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
