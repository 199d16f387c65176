// Package archive uploads run outputs to S3-compatible object storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/roach88/refdrift/internal/config"
)

// objectStore is the subset of *minio.Client the uploader needs.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader stores run files under <prefix>/<run-id>/<basename>.
type Uploader struct {
	store  objectStore
	bucket string
	prefix string
	logger *slog.Logger
}

// New creates an uploader for cfg. Credentials are required.
func New(cfg config.Archive, logger *slog.Logger) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("archive access key and secret key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}
	return newUploader(mc, cfg.Bucket, cfg.Prefix, logger), nil
}

func newUploader(store objectStore, bucket, prefix string, logger *slog.Logger) *Uploader {
	if bucket == "" {
		bucket = "refdrift"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Uploader{store: store, bucket: bucket, prefix: prefix, logger: logger}
}

// EnsureBucket creates the bucket if it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.store.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := u.store.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		u.logger.Info("created archive bucket", "bucket", u.bucket)
	}
	return nil
}

// Key returns the object key for a run file.
func (u *Uploader) Key(runID, file string) string {
	return path.Join(u.prefix, runID, filepath.Base(file))
}

// UploadRun uploads the given files for a run and returns their keys.
// Files that do not exist are skipped.
func (u *Uploader) UploadRun(ctx context.Context, runID string, files ...string) ([]string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	var keys []string
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			u.logger.Debug("archive file missing, skipping", "file", f)
			continue
		}

		key := u.Key(runID, f)
		_, err := u.store.FPutObject(ctx, u.bucket, key, f, minio.PutObjectOptions{
			ContentType: contentType(f),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", key, err)
		}
		u.logger.Info("archived", "bucket", u.bucket, "key", key)
		keys = append(keys, key)
	}
	return keys, nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".txt", ".log":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	case ".db", ".sqlite":
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}
