// Package storage archives the uploaded invoice documents in MinIO so the
// original file stays available next to its history entry. Like the
// history store, it is optional: a nil Archive skips archiving.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Archive struct {
	client *minio.Client
	bucket string
	log    zerolog.Logger
}

// Open connects using the MINIO_* environment variables. Nil Archive with
// nil error means archiving is not configured.
func Open(ctx context.Context) (*Archive, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "facturas"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: os.Getenv("MINIO_USE_SSL") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	a := &Archive{client: client, bucket: bucket, log: log.With().Str("component", "storage").Logger()}
	a.log.Info().Str("bucket", bucket).Msg("document archive ready")
	return a, nil
}

// Enabled reports whether archiving is configured.
func (a *Archive) Enabled() bool { return a != nil }

// Store uploads one document under {entity}/YYYY/MM/{uuid}{ext} and returns
// the object path for the history record.
func (a *Archive) Store(ctx context.Context, entityID string, data []byte, contentType string) (string, error) {
	if a == nil {
		return "", nil
	}
	now := time.Now()
	objectName := fmt.Sprintf("%s/%d/%02d/%s%s",
		entityID, now.Year(), now.Month(), uuid.NewString(), fileExtension(contentType))

	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to archive document: %w", err)
	}
	return fmt.Sprintf("%s/%s", a.bucket, objectName), nil
}

// PresignedURL returns a temporary link to an archived document.
func (a *Archive) PresignedURL(ctx context.Context, objectPath string) (string, error) {
	if a == nil {
		return "", fmt.Errorf("document archive is not configured")
	}
	objectName := strings.TrimPrefix(objectPath, a.bucket+"/")
	url, err := a.client.PresignedGetObject(ctx, a.bucket, objectName, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// Delete removes an archived document.
func (a *Archive) Delete(ctx context.Context, objectPath string) error {
	if a == nil {
		return nil
	}
	objectName := strings.TrimPrefix(objectPath, a.bucket+"/")
	return a.client.RemoveObject(ctx, a.bucket, objectName, minio.RemoveObjectOptions{})
}

func fileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
