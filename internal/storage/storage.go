// ABOUTME: Plan image uploads to S3-compatible object storage via minio-go
// ABOUTME: Deterministic object naming and public URL construction

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/movilplan/movilchat/internal/config"
)

// ErrNotConfigured is returned when the storage section is absent from
// the configuration.
var ErrNotConfigured = errors.New("object storage is not configured")

// Uploader stores plan images in a bucket.
type Uploader struct {
	client        *minio.Client
	bucket        string
	endpoint      string
	useSSL        bool
	publicBaseURL string
	logger        *slog.Logger

	now func() time.Time
}

// NewUploader creates an uploader from the storage configuration.
// Returns ErrNotConfigured when the section is empty.
func NewUploader(cfg config.StorageConfig) (*Uploader, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		endpoint:      cfg.Endpoint,
		useSSL:        cfg.UseSSL,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		logger:        slog.Default().With("component", "storage"),
		now:           time.Now,
	}, nil
}

// ObjectName builds the bucket key for a plan image: planID_timestamp.ext.
func (u *Uploader) ObjectName(planID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s_%d%s", planID, u.now().Unix(), ext)
}

// UploadPlanImage stores an image for a plan and returns its public URL.
func (u *Uploader) UploadPlanImage(ctx context.Context, planID, filename string, r io.Reader, size int64) (string, error) {
	objectName := u.ObjectName(planID, filename)

	contentType := mime.TypeByExtension(path.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, u.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", objectName, err)
	}

	u.logger.Info("plan image uploaded", "plan_id", planID, "object", objectName)
	return u.PublicURL(objectName), nil
}

// RemovePlanImage deletes an object from the bucket.
func (u *Uploader) RemovePlanImage(ctx context.Context, objectName string) error {
	if err := u.client.RemoveObject(ctx, u.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing %s: %w", objectName, err)
	}
	u.logger.Info("plan image removed", "object", objectName)
	return nil
}

// PublicURL returns the browsable URL for an object.
func (u *Uploader) PublicURL(objectName string) string {
	if u.publicBaseURL != "" {
		return u.publicBaseURL + "/" + objectName
	}
	scheme := "http"
	if u.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, u.endpoint, u.bucket, objectName)
}
