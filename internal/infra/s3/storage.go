package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/risingstars/video-pipeline/internal/domain/port"
	"go.uber.org/zap"
)

// API is the subset of the S3 client used by Storage.
type API interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
}

type Storage struct {
	client API
	bucket string
	logger *zap.Logger
}

var _ port.BlobStore = (*Storage)(nil)

func NewStorage(client API, bucket string, logger *zap.Logger) *Storage {
	return &Storage{client: client, bucket: bucket, logger: logger}
}

// NewClient builds an S3 client, optionally pointed at a custom endpoint
// with path-style addressing.
func NewClient(cfg aws.Config, endpoint string) *awss3.Client {
	return awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

func (s *Storage) Put(ctx context.Context, localPath string, key string) bool {
	f, err := os.Open(localPath)
	if err != nil {
		s.logger.Error("failed to open file for upload", zap.String("path", localPath), zap.Error(err))
		return false
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		s.logger.Error("failed to upload object", zap.String("key", key), zap.Error(err))
		return false
	}

	s.logger.Info("object uploaded", zap.String("bucket", s.bucket), zap.String("key", key))
	return true
}

func (s *Storage) Get(ctx context.Context, key string, localPath string) bool {
	if err := s.download(ctx, key, localPath); err != nil {
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

func (s *Storage) download(ctx context.Context, key, localPath string) error {
	resp, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", key, err)
	}
	return out.Close()
}

// Delete treats a missing object as already deleted; S3 itself answers
// 204 for absent keys.
func (s *Storage) Delete(ctx context.Context, key string) bool {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		s.logger.Error("failed to delete object", zap.String("key", key), zap.Error(err))
		return false
	}

	s.logger.Info("object deleted", zap.String("key", key))
	return true
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
