// Package archive keeps a copy of every uploaded file in object storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/smallbiznis/usagelens/internal/config"
	"github.com/smallbiznis/usagelens/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrBucketNotFound = errors.New("archive bucket not found")
	ErrAccessDenied   = errors.New("archive access denied")
)

// Store persists raw upload bodies.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

var Module = fx.Module("archive",
	fx.Provide(NewStore),
)

// Key is the object name used for an upload's original file.
func Key(uploadID, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "upload.csv"
	}
	return "uploads/" + uploadID + "/" + name
}

// NewStore returns a MinIO-backed store when archiving is configured and a
// no-op otherwise.
func NewStore(cfg config.Config, log *zap.Logger) (Store, error) {
	if !cfg.Archive.Enabled() {
		return Noop{}, nil
	}
	store, err := NewMinioStore(cfg.Archive)
	if err != nil {
		return nil, err
	}
	log.Info("upload archive enabled",
		zap.String("endpoint", cfg.Archive.Endpoint),
		zap.String("bucket", cfg.Archive.Bucket),
	)
	return store, nil
}

type Noop struct{}

func (Noop) Put(context.Context, string, []byte, string) error { return nil }

type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore does not create the bucket; it must exist already.
func NewMinioStore(cfg config.ArchiveConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	ctx, span := tracing.Tracer().Start(ctx, "archive.put",
		trace.WithAttributes(
			attribute.String("archive.key", key),
			attribute.Int("file.size", len(body)),
		))
	defer span.End()

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return classifyError(err)
	}
	return nil
}

func classifyError(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		switch resp.Code {
		case "NoSuchBucket":
			return fmt.Errorf("put object: %w", ErrBucketNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("put object: %w", ErrAccessDenied)
		}
	}
	return fmt.Errorf("put object: %w", err)
}
