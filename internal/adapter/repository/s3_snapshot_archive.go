package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/entity"
	"github.com/wekeepgrowing/semo-backend-monorepo/services/reconciler/internal/domain/repository"
)

// objectPutter is the subset of *s3.Client the archive needs
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveConfig locates the archive bucket. Any S3-compatible endpoint works.
type S3ArchiveConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

type s3SnapshotArchive struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3SnapshotArchive creates an archive writing one JSON object per run
func NewS3SnapshotArchive(ctx context.Context, cfg S3ArchiveConfig, logger *zap.Logger) (repository.SnapshotArchive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newS3SnapshotArchive(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3SnapshotArchive(client objectPutter, bucket, prefix string, logger *zap.Logger) *s3SnapshotArchive {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &s3SnapshotArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}
}

// ObjectKey is the archive key of a snapshot: <prefix>YYYY/MM/DD/<run id>.json
func (a *s3SnapshotArchive) ObjectKey(snapshot *entity.ReconciliationSnapshot) string {
	return fmt.Sprintf("%s%s/%s.json", a.prefix, snapshot.AsOf.UTC().Format("2006/01/02"), snapshot.RunID.String())
}

// Archive uploads the snapshot and returns its s3:// location
func (a *s3SnapshotArchive) Archive(ctx context.Context, snapshot *entity.ReconciliationSnapshot) (string, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := a.ObjectKey(snapshot)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"run-id": snapshot.RunID.String(),
			"mode":   string(snapshot.Mode),
		},
	})
	if err != nil {
		a.logger.Error("Failed to upload snapshot",
			zap.String("bucket", a.bucket),
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
