package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/formaworks/forma-api/internal/domain"
)

// S3Backend stores artifacts in an S3 bucket using the same object key
// scheme as the local backend.
type S3Backend struct {
	client *s3.S3
	bucket string
	logger *slog.Logger
	now    func() time.Time
}

// S3Config carries the settings needed to reach a bucket.
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string

	// Endpoint optionally targets an S3-compatible store (e.g. MinIO).
	Endpoint string
}

// NewS3Backend creates an S3-backed storage backend.
func NewS3Backend(cfg S3Config, logger *slog.Logger) (*S3Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket name cannot be empty")
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(
			credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}

	return &S3Backend{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		logger: logger.With(slog.String("component", "s3_storage")),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

var _ Backend = (*S3Backend)(nil)

// Save implements Backend.Save.
func (b *S3Backend) Save(ctx context.Context, taskID uuid.UUID, data []byte, kind domain.ArtifactKind, format string) (string, error) {
	key := objectKey(taskID, kind, format, b.now())

	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(ContentTypeFor(key)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	b.logger.Info("artifact saved",
		slog.String("bucket", b.bucket),
		slog.String("key", key),
		slog.Int("size", len(data)))
	return key, nil
}

// Read implements Backend.Read.
func (b *S3Backend) Read(ctx context.Context, ref string) ([]byte, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body %s: %w", ref, err)
	}
	return data, nil
}

// Delete implements Backend.Delete. S3's DeleteObject succeeds on absent
// keys, so a HeadObject check keeps the idempotent false-on-absent contract.
func (b *S3Backend) Delete(ctx context.Context, ref string) (bool, error) {
	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", ref, err)
	}

	_, err = b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete object %s: %w", ref, err)
	}

	b.logger.Info("artifact deleted",
		slog.String("bucket", b.bucket),
		slog.String("key", ref))
	return true, nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
