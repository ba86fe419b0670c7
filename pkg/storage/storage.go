// Package storage uploads generated media to an S3-compatible bucket and
// hands back public URLs. Cloudflare R2 is preferred when configured, with
// AWS S3 as the fallback.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/bottylabs/botty/pkg/logger"
)

// Uploader uploads a blob and returns a public URL for it.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// R2Config configures the Cloudflare R2 provider. All fields are required.
type R2Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	AccountID       string
	PublicURL       string
}

func (c R2Config) complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" &&
		c.Bucket != "" && c.AccountID != "" && c.PublicURL != ""
}

// S3Config configures the AWS S3 provider.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
}

func (c S3Config) complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

// Store is an S3-compatible uploader.
type Store struct {
	client    *s3.Client
	bucket    string
	publicURL func(key string) string
}

// NewR2 builds an uploader against a Cloudflare R2 bucket.
func NewR2(ctx context.Context, cfg R2Config) (*Store, error) {
	if !cfg.complete() {
		return nil, fmt.Errorf("incomplete R2 configuration: access key, secret, bucket, account id and public URL are all required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	base := strings.TrimRight(cfg.PublicURL, "/")
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: func(key string) string { return base + "/" + key },
	}, nil
}

// NewS3 builds an uploader against an AWS S3 bucket.
func NewS3(ctx context.Context, cfg S3Config) (*Store, error) {
	if !cfg.complete() {
		return nil, fmt.Errorf("incomplete S3 configuration: access key, secret and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	bucket := cfg.Bucket
	return &Store{
		client: client,
		bucket: bucket,
		publicURL: func(key string) string {
			return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
		},
	}, nil
}

// New picks the configured provider, preferring R2. Neither being configured
// is a deployment error with a descriptive message.
func New(ctx context.Context, r2 R2Config, s3cfg S3Config) (*Store, error) {
	if r2.complete() {
		logger.InfoC("storage", "Using Cloudflare R2 for media uploads")
		return NewR2(ctx, r2)
	}
	if s3cfg.complete() {
		logger.InfoC("storage", "Using AWS S3 for media uploads")
		return NewS3(ctx, s3cfg)
	}
	return nil, fmt.Errorf(
		"cloud storage is required but not configured: set R2 (access key id, secret, bucket, account id, public URL) or S3 (access key id, secret, bucket) credentials")
}

// Upload stores the blob under a fresh uuid key and returns its public URL.
func (s *Store) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := uuid.NewString() + extensionFor(contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	url := s.publicURL(key)
	logger.DebugCF("storage", "Uploaded blob",
		map[string]any{"key": key, "bytes": len(data), "url": url})
	return url, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
