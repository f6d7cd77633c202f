package kpi

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/pkg/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ErrorLevel
	log, err := logger.NewLogger(cfg)
	if err != nil {
		t.Fatalf("creating test logger: %v", err)
	}
	return log
}

type recordingStore struct {
	triggers [][]string
	upserts  []models.DailyKpi
	fail     bool
}

func (s *recordingStore) RecalculateDailyKpis(ctx context.Context, accountID string, dates []string) error {
	if s.fail {
		return fmt.Errorf("simulated failure")
	}
	s.triggers = append(s.triggers, dates)
	return nil
}

func (s *recordingStore) UpsertDailyKpis(ctx context.Context, kpis []models.DailyKpi) error {
	s.upserts = append(s.upserts, kpis...)
	return nil
}

func financialRow(date string, total float64) models.FinancialRow {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.FinancialRow{OrderDate: &parsed, OrderTotal: &total}
}

func TestRecalculatorTrigger(t *testing.T) {
	store := &recordingStore{}
	recalc := NewRecalculator(store, testLogger(t))

	err := recalc.Trigger(context.Background(), "acct-1", []string{"2025-03-02", "2025-03-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.triggers) != 1 {
		t.Fatalf("expected one call, got %d", len(store.triggers))
	}
	got := store.triggers[0]
	if got[0] != "2025-03-01" || got[1] != "2025-03-02" {
		t.Errorf("dates must be sorted, got %v", got)
	}
}

func TestRecalculatorTriggerNoDates(t *testing.T) {
	store := &recordingStore{fail: true}
	recalc := NewRecalculator(store, testLogger(t))

	if err := recalc.Trigger(context.Background(), "acct-1", nil); err != nil {
		t.Fatalf("no affected dates must be a no-op, got %v", err)
	}
}

func TestCalculatorAggregate(t *testing.T) {
	calc := NewCalculator(&recordingStore{}, testLogger(t))

	rows := []models.FinancialRow{
		financialRow("2025-03-01", 126.00),
		financialRow("2025-03-01", 74.10),
		financialRow("2025-03-02", 50.00),
		{OrderTotal: nil}, // no date, no total: skipped
	}

	kpis := calc.Aggregate("acct-1", rows)
	if len(kpis) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(kpis))
	}

	first := kpis[0]
	if first.KpiDate != "2025-03-01" {
		t.Errorf("first bucket date = %s", first.KpiDate)
	}
	if first.TotalSales != 200.10 {
		t.Errorf("TotalSales = %v, want 200.10", first.TotalSales)
	}
	if first.OrderCount != 2 {
		t.Errorf("OrderCount = %d, want 2", first.OrderCount)
	}
	if kpis[1].KpiDate != "2025-03-02" || kpis[1].TotalSales != 50.00 {
		t.Errorf("second bucket = %+v", kpis[1])
	}
}

func TestCalculatorAggregateAvoidsFloatDrift(t *testing.T) {
	calc := NewCalculator(&recordingStore{}, testLogger(t))

	// 0.1 added ten times drifts under float accumulation; decimal sums
	// must land exactly on 1.00.
	rows := make([]models.FinancialRow, 10)
	for i := range rows {
		rows[i] = financialRow("2025-03-01", 0.1)
	}

	kpis := calc.Aggregate("acct-1", rows)
	if len(kpis) != 1 {
		t.Fatalf("expected one bucket, got %d", len(kpis))
	}
	if kpis[0].TotalSales != 1.0 {
		t.Errorf("TotalSales = %v, want exactly 1.0", kpis[0].TotalSales)
	}
}

func TestCalculatorRecompute(t *testing.T) {
	store := &recordingStore{}
	calc := NewCalculator(store, testLogger(t))

	err := calc.Recompute(context.Background(), "acct-1", []models.FinancialRow{
		financialRow("2025-03-01", 100.00),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(store.upserts))
	}
	if store.upserts[0].AccountID != "acct-1" {
		t.Errorf("AccountID = %s", store.upserts[0].AccountID)
	}
}

func TestCalculatorRecomputeEmpty(t *testing.T) {
	store := &recordingStore{}
	calc := NewCalculator(store, testLogger(t))

	if err := calc.Recompute(context.Background(), "acct-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.upserts) != 0 {
		t.Error("no rows must mean no upserts")
	}
}
