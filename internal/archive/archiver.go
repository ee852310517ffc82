// Package archive stores completed decision summaries in S3-compatible
// object storage and hands out pre-signed download URLs. When no bucket is
// configured the NoopArchiver is used and the service stays local-only.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/verdict/internal/config"
)

// ErrNotConfigured is returned when summary archiving is not configured.
var ErrNotConfigured = errors.New("summary archive not configured")

// Archiver uploads summaries and generates pre-signed download URLs.
type Archiver interface {
	// Upload stores the markdown summary of a decision.
	Upload(ctx context.Context, decisionID, summary string) error

	// PresignedURL returns a pre-signed URL for downloading the summary.
	// Returns ErrNotConfigured when archiving is disabled.
	PresignedURL(ctx context.Context, decisionID string) (url string, expiry time.Time, err error)

	// Enabled reports whether uploads go anywhere.
	Enabled() bool
}

// s3Client is the subset of *minio.Client used by S3Archiver.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

var (
	_ Archiver = (*S3Archiver)(nil)
	_ Archiver = (*NoopArchiver)(nil)
	_ s3Client = (*minio.Client)(nil)
)

// S3Archiver writes summaries to an S3-compatible bucket.
type S3Archiver struct {
	client    s3Client
	bucket    string
	urlExpiry time.Duration
}

// Upload writes the summary to {decision_id}/summary.md.
func (a *S3Archiver) Upload(ctx context.Context, decisionID, summary string) error {
	_, err := a.client.PutObject(ctx, a.bucket, objectKey(decisionID),
		strings.NewReader(summary), int64(len(summary)),
		minio.PutObjectOptions{ContentType: "text/markdown; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("upload summary to S3: %w", err)
	}
	return nil
}

// PresignedURL returns a pre-signed GET URL for the summary.
func (a *S3Archiver) PresignedURL(ctx context.Context, decisionID string) (string, time.Time, error) {
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, objectKey(decisionID), a.urlExpiry, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	return presigned.String(), time.Now().Add(a.urlExpiry), nil
}

// Enabled always reports true.
func (a *S3Archiver) Enabled() bool { return true }

// NoopArchiver is used when no bucket is configured.
type NoopArchiver struct{}

// Upload does nothing.
func (NoopArchiver) Upload(ctx context.Context, decisionID, summary string) error {
	return nil
}

// PresignedURL returns ErrNotConfigured.
func (NoopArchiver) PresignedURL(ctx context.Context, decisionID string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// Enabled always reports false.
func (NoopArchiver) Enabled() bool { return false }

// New returns a NoopArchiver when cfg.Bucket is empty and an S3Archiver
// otherwise.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return NoopArchiver{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	expiry := time.Duration(cfg.URLExpiry)
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &S3Archiver{client: client, bucket: cfg.Bucket, urlExpiry: expiry}, nil
}

// stripScheme removes an http:// or https:// prefix from endpoint, which
// minio does not accept, and sets useSSL to match it.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	}
	return endpoint
}

// objectKey returns the object key for a decision's summary.
func objectKey(decisionID string) string {
	return decisionID + "/summary.md"
}
