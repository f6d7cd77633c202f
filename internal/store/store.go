// Package store defines the persistence ports consumed by the ingestion
// pipelines. The orchestrator and writer depend on these narrow interfaces;
// the postgres subpackage provides the production implementation and tests
// substitute in-memory fakes.
package store

import (
	"context"
	"time"

	"ifood-ingestion-service/internal/models"
)

// Record is one row ready for persistence, keyed by database column name.
type Record map[string]interface{}

// StatusUpdate carries one transition of a ReceivedFile's lifecycle.
// Nil pointer fields clear the corresponding column, which is how entering
// 'processing' wipes stale processed_at and error fields from a prior run.
type StatusUpdate struct {
	FileID       string
	Status       models.FileStatus
	ProcessedAt  *time.Time
	ErrorMessage *string
	ErrorDetails *string
}

// FileStore reads and transitions ReceivedFile tracking records.
type FileStore interface {
	GetReceivedFile(ctx context.Context, id string) (*models.ReceivedFile, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) error
}

// RowStore persists normalized transaction rows idempotently: records whose
// conflict column matches an existing row update it in place.
type RowStore interface {
	UpsertBatch(ctx context.Context, table string, records []Record, conflictColumn string) error
}

// KpiStore triggers and persists daily KPI recomputation.
type KpiStore interface {
	// RecalculateDailyKpis invokes the database-side recompute function for
	// the given account and ISO dates (YYYY-MM-DD).
	RecalculateDailyKpis(ctx context.Context, accountID string, dates []string) error

	// UpsertDailyKpis persists locally computed aggregates. Used by the
	// fallback calculator when the database-side function is unavailable.
	UpsertDailyKpis(ctx context.Context, kpis []models.DailyKpi) error
}
