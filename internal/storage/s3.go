package storage

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// KeyPrefix is prepended to the base name of every archived recording.
const KeyPrefix = "recordings/"

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage wraps LocalStorage and archives recordings to S3.
// Recordings stay on local disk for playback; S3 keeps a copy.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
	bucket string
	region string
	logger *slog.Logger
}

// NewS3Storage creates a new S3Storage instance.
// The dir parameter specifies where recordings are stored locally.
// The cfg parameter contains S3 configuration.
func NewS3Storage(dir string, cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	local, err := NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		LocalStorage: local,
		client:       client,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		logger:       logger,
	}, nil
}

// ObjectKey returns the S3 key a recording is archived under.
func ObjectKey(p string) string {
	return KeyPrefix + filepath.Base(p)
}

// Archive uploads the recording at p to S3 and returns the public URL.
func (s *S3Storage) Archive(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p) // #nosec G304 - path is a recording produced by the recorder
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := ObjectKey(p)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	s.logger.Info("recording archived", slog.String("key", key), slog.String("url", url))
	return url, nil
}

// Delete removes the local recording and its archived copy.
// A failure to delete the archived copy is logged, not returned.
func (s *S3Storage) Delete(ctx context.Context, p string) error {
	if err := s.LocalStorage.Delete(ctx, p); err != nil {
		return err
	}

	key := ObjectKey(p)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		s.logger.Warn("failed to delete archived recording",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Storage = (*S3Storage)(nil)
