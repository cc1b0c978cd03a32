package minio

import (
	"context"
	"errors"
	"fmt"
	"os"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

type Storage struct {
	client *miniogo.Client
	bucket string
	logger *zap.Logger
}

var _ port.BlobStore = (*Storage)(nil)

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

func NewStorage(cfg StorageConfig, logger *zap.Logger) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("bucket created", zap.String("bucket", s.bucket))
	}
	return nil
}

func (s *Storage) Put(ctx context.Context, localPath string, key string) bool {
	info, err := s.client.FPutObject(ctx, s.bucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		s.logger.Error("failed to upload object",
			zap.String("key", key),
			zap.String("path", localPath),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("object uploaded", zap.String("key", key), zap.Int64("size", info.Size))
	return true
}

func (s *Storage) Get(ctx context.Context, key string, localPath string) bool {
	err := s.client.FGetObject(ctx, s.bucket, key, localPath, miniogo.GetObjectOptions{})
	if err != nil {
		_ = os.Remove(localPath)
		if isNotFound(err) {
			s.logger.Warn("object not found", zap.String("key", key))
		} else {
			s.logger.Error("failed to download object", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	s.logger.Info("object downloaded", zap.String("key", key), zap.String("path", localPath))
	return true
}

// Delete treats a missing object as already deleted.
func (s *Storage) Delete(ctx context.Context, key string) bool {
	err := s.client.RemoveObject(ctx, s.bucket, key, miniogo.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		s.logger.Error("failed to delete object", zap.String("key", key), zap.Error(err))
		return false
	}

	s.logger.Info("object deleted", zap.String("key", key))
	return true
}

func isNotFound(err error) bool {
	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == 404
	}
	return false
}
