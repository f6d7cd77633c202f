// Package storage abstracts the blob store holding the uploaded
// spreadsheets. Objects live under {account_id}/{file_name} inside a
// per-report-type bucket.
package storage

import "context"

// Bucket names for the two report types.
const (
	BucketFinancial    = "financeiro"
	BucketConciliation = "conciliacao"
)

// BlobStore fetches and stores spreadsheet bytes.
type BlobStore interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
}

// ObjectPath builds the canonical object path for a tenant's file.
func ObjectPath(accountID, fileName string) string {
	return accountID + "/" + fileName
}
