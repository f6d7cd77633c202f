// Package postgres implements the store interfaces on a pgx connection pool.
//
// Batch upserts are issued as single multi-row INSERT ... ON CONFLICT
// statements so each batch is atomic: a constraint violation anywhere in the
// batch rolls the whole batch back, which is what lets the writer report a
// clean committed/aborted boundary.
package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/store"
	ingerrors "ifood-ingestion-service/pkg/errors"
	"ifood-ingestion-service/pkg/logger"
)

// Store is the production persistence layer. It implements store.FileStore,
// store.RowStore, store.KpiStore and logger.LogSink.
type Store struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, databaseURL string, log logger.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, ingerrors.ConfigurationError(ingerrors.CodeInvalidConfig, "database.url", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, ingerrors.InternalError("database pool creation", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ingerrors.InternalError("database connection check", err)
	}

	return &Store{
		pool: pool,
		log:  log.WithComponent("postgres"),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateReceivedFile registers a new tracking record for an upload.
func (s *Store) CreateReceivedFile(ctx context.Context, file *models.ReceivedFile) error {
	const query = `
		INSERT INTO received_files (id, account_id, original_file_name, storage_path, status)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		file.ID,
		file.AccountID,
		file.OriginalFileName,
		file.StoragePath,
		string(file.Status),
	)
	if err != nil {
		return ingerrors.StatusUpdateError(file.ID, file.Status.String(), err)
	}

	s.log.WithFields(logger.Fields{
		"file_id":    file.ID,
		"account_id": file.AccountID,
	}).Info("registered received file")
	return nil
}

// GetReceivedFile loads one tracking record by id.
func (s *Store) GetReceivedFile(ctx context.Context, id string) (*models.ReceivedFile, error) {
	const query = `
		SELECT id, account_id, original_file_name, storage_path, status,
		       processed_at, error_message, error_details
		FROM received_files
		WHERE id = $1`

	var file models.ReceivedFile
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.AccountID,
		&file.OriginalFileName,
		&file.StoragePath,
		&file.Status,
		&file.ProcessedAt,
		&file.ErrorMessage,
		&file.ErrorDetails,
	)
	if err == pgx.ErrNoRows {
		return nil, ingerrors.New(ingerrors.CategoryStatus, ingerrors.CodeFileNotFound,
			fmt.Sprintf("received file %s not found", id)).
			WithContext("file_id", id).
			WithSuggestion("verify the file id; the upload may not have been registered")
	}
	if err != nil {
		return nil, ingerrors.Wrap(err, ingerrors.CategoryStatus, ingerrors.CodeStatusWriteFailed,
			fmt.Sprintf("failed to load received file %s", id))
	}
	return &file, nil
}

// UpdateStatus transitions a tracking record. Nil pointer fields clear their
// columns, so the caller fully determines the post-transition row.
func (s *Store) UpdateStatus(ctx context.Context, update store.StatusUpdate) error {
	const query = `
		UPDATE received_files
		SET status = $1, processed_at = $2, error_message = $3, error_details = $4
		WHERE id = $5`

	tag, err := s.pool.Exec(ctx, query,
		string(update.Status),
		update.ProcessedAt,
		update.ErrorMessage,
		update.ErrorDetails,
		update.FileID,
	)
	if err != nil {
		return ingerrors.StatusUpdateError(update.FileID, update.Status.String(), err)
	}
	if tag.RowsAffected() == 0 {
		return ingerrors.StatusUpdateError(update.FileID, update.Status.String(),
			fmt.Errorf("no received_files row matched id %s", update.FileID))
	}

	s.log.WithFields(logger.Fields{
		"file_id": update.FileID,
		"status":  update.Status.String(),
	}).Debug("updated received file status")
	return nil
}

// UpsertBatch writes one batch of records into the given table. All records
// in a batch must share the same column set; columns are taken from the
// first record in sorted order.
func (s *Store) UpsertBatch(ctx context.Context, table string, records []store.Record, conflictColumn string) error {
	if len(records) == 0 {
		return nil
	}

	columns := make([]string, 0, len(records[0]))
	for col := range records[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	query, args := buildUpsert(table, columns, records, conflictColumn)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return err
	}

	s.log.WithFields(logger.Fields{
		"table": table,
		"rows":  len(records),
	}).Debug("upserted batch")
	return nil
}

func buildUpsert(table string, columns []string, records []store.Record, conflictColumn string) (string, []interface{}) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier{table}.Sanitize())
	b.WriteString(" (")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{col}.Sanitize())
	}
	b.WriteString(") VALUES ")

	args := make([]interface{}, 0, len(records)*len(columns))
	placeholder := 1
	for i, record := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, col := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", placeholder)
			placeholder++
			args = append(args, record[col])
		}
		b.WriteByte(')')
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(pgx.Identifier{conflictColumn}.Sanitize())
	b.WriteString(") DO UPDATE SET ")
	first := true
	for _, col := range columns {
		if col == conflictColumn || col == "id" || col == "created_at" {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		quoted := pgx.Identifier{col}.Sanitize()
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", quoted, quoted)
	}

	return b.String(), args
}

// RecalculateDailyKpis invokes the recompute function for the given account
// and ISO dates.
func (s *Store) RecalculateDailyKpis(ctx context.Context, accountID string, dates []string) error {
	const query = `SELECT recalculate_daily_kpis_for_dates($1, $2::date[])`

	if _, err := s.pool.Exec(ctx, query, accountID, dates); err != nil {
		return ingerrors.KpiError(accountID, dates, err)
	}

	s.log.WithFields(logger.Fields{
		"account_id": accountID,
		"dates":      len(dates),
	}).Debug("triggered daily KPI recalculation")
	return nil
}

// UpsertDailyKpis persists locally computed aggregates keyed by
// (account_id, kpi_date).
func (s *Store) UpsertDailyKpis(ctx context.Context, kpis []models.DailyKpi) error {
	if len(kpis) == 0 {
		return nil
	}

	const query = `
		INSERT INTO daily_kpis (account_id, kpi_date, total_sales, order_count, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id, kpi_date) DO UPDATE SET
			total_sales = EXCLUDED.total_sales,
			order_count = EXCLUDED.order_count,
			updated_at = EXCLUDED.updated_at`

	batch := &pgx.Batch{}
	for _, kpi := range kpis {
		batch.Queue(query, kpi.AccountID, kpi.KpiDate, kpi.TotalSales, kpi.OrderCount, kpi.UpdatedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range kpis {
		if _, err := results.Exec(); err != nil {
			return ingerrors.KpiError(kpisAccount(kpis), kpiDates(kpis), err)
		}
	}
	return nil
}

func kpisAccount(kpis []models.DailyKpi) string {
	if len(kpis) == 0 {
		return ""
	}
	return kpis[0].AccountID
}

func kpiDates(kpis []models.DailyKpi) []string {
	dates := make([]string, len(kpis))
	for i, kpi := range kpis {
		dates[i] = kpi.KpiDate
	}
	return dates
}

// InsertLogs implements logger.LogSink, persisting audit records into the
// logs table.
func (s *Store) InsertLogs(ctx context.Context, records []logger.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
		INSERT INTO logs (level, message, file_id, account_id, context, source, logged_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(query,
			record.Level,
			record.Message,
			record.FileID,
			record.AccountID,
			record.Context,
			record.Source,
			record.LoggedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
