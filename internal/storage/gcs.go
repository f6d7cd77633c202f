package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"

	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"
)

// GCSStore implements BlobStore on Google Cloud Storage. It assumes
// Application Default Credentials are configured.
type GCSStore struct {
	client *gcs.Client
	log    logger.Logger
}

// NewGCSStore creates a blob store backed by a shared GCS client.
func NewGCSStore(ctx context.Context, log logger.Logger) (*GCSStore, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, ingerrors.InternalError("storage client creation", err)
	}
	return &GCSStore{
		client: client,
		log:    log.WithComponent("storage"),
	}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Download fetches the full object bytes.
func (s *GCSStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, ingerrors.StorageIOError(ingerrors.CodeDownloadFailed, bucket, path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, ingerrors.StorageIOError(ingerrors.CodeDownloadFailed, bucket, path, err)
	}

	s.log.WithFields(logger.Fields{
		"bucket": bucket,
		"path":   path,
		"bytes":  len(data),
	}).Debug("downloaded object")
	return data, nil
}

// Upload writes the object, replacing any existing one at the same path.
func (s *GCSStore) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	writer := s.client.Bucket(bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return ingerrors.StorageIOError(ingerrors.CodeUploadFailed, bucket, path, err)
	}
	if err := writer.Close(); err != nil {
		return ingerrors.StorageIOError(ingerrors.CodeUploadFailed, bucket, path, err)
	}

	s.log.WithFields(logger.Fields{
		"bucket": bucket,
		"path":   path,
		"bytes":  len(data),
	}).Debug("uploaded object")
	return nil
}
