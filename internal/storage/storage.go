// Package storage archives serialized runs to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/fx"

	"github.com/reactome/release-qa-sub001/domain/checks"
	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// Module provides the run archiver. Include it only when storage is
// configured; without it runs are kept in memory only.
var Module = fx.Module("storage",
	fx.Provide(
		fx.Annotate(
			NewArchiver,
			fx.As(new(checks.Archiver)),
		),
	),
)

// putObjectAPI is the subset of *s3.Client the archiver uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes objects under a key prefix in one bucket.
type Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	log    *slog.Logger
}

// NewArchiver creates an S3 client from cfg.Storage. A custom endpoint
// switches to path-style addressing for MinIO and similar servers.
func NewArchiver(cfg *config.Config, log *slog.Logger) (*Archiver, error) {
	sc := cfg.Storage
	if !sc.IsConfigured() {
		return nil, fmt.Errorf("storage not configured: S3_BUCKET is empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(sc.Region)}
	if sc.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(sc.AccessKeyID, sc.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if sc.Endpoint != "" {
			o.BaseEndpoint = aws.String(sc.Endpoint)
			o.UsePathStyle = true
		}
	})

	log.Info("run archive initialized",
		logger.Scope("storage"),
		slog.String("endpoint", sc.Endpoint),
		slog.String("bucket", sc.Bucket),
	)

	return newArchiver(client, sc.Bucket, sc.Prefix, log), nil
}

func newArchiver(client putObjectAPI, bucket, prefix string, log *slog.Logger) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log.With(logger.Scope("storage")),
	}
}

// ObjectKey joins the configured prefix and key.
func (a *Archiver) ObjectKey(key string) string {
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

// Put uploads body under key.
func (a *Archiver) Put(ctx context.Context, key string, body []byte, contentType string) error {
	objectKey := a.ObjectKey(key)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		a.log.Error("failed to upload object",
			slog.String("key", objectKey),
			logger.Error(err),
		)
		return fmt.Errorf("upload failed: %w", err)
	}

	a.log.Debug("object uploaded",
		slog.String("key", objectKey),
		slog.String("bucket", a.bucket),
		slog.Int("size", len(body)),
	)
	return nil
}
