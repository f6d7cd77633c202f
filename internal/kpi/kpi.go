// Package kpi recomputes per-tenant daily aggregates after an ingestion run
// touches transaction rows.
//
// The primary path delegates to the database-side recompute function, which
// sees the full persisted history for each affected date. The Calculator is
// a local fallback used when that function is unavailable: it aggregates the
// rows of the current run only, summing with decimals so repeated ingestion
// of the same file cannot drift totals through float accumulation.
package kpi

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ifood-ingestion-service/internal/models"
	"ifood-ingestion-service/internal/store"
	"ifood-ingestion-service/pkg/logger"
)

// Recalculator triggers the database-side recompute for the affected dates.
type Recalculator struct {
	store store.KpiStore
	log   logger.Logger
}

// NewRecalculator creates a Recalculator.
func NewRecalculator(kpiStore store.KpiStore, log logger.Logger) *Recalculator {
	return &Recalculator{
		store: kpiStore,
		log:   log.WithComponent("kpi"),
	}
}

// Trigger invokes the recompute function for the given account and ISO
// dates. A no-op when no dates were affected.
func (r *Recalculator) Trigger(ctx context.Context, accountID string, dates []string) error {
	if len(dates) == 0 {
		return nil
	}

	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)

	if err := r.store.RecalculateDailyKpis(ctx, accountID, sorted); err != nil {
		return err
	}

	r.log.WithFields(logger.Fields{
		"account_id": accountID,
		"dates":      len(sorted),
	}).Info("daily KPI recalculation triggered")
	return nil
}

// Calculator aggregates financial rows into DailyKpi records locally.
type Calculator struct {
	store store.KpiStore
	log   logger.Logger
	now   func() time.Time
}

// NewCalculator creates a Calculator.
func NewCalculator(kpiStore store.KpiStore, log logger.Logger) *Calculator {
	return &Calculator{
		store: kpiStore,
		log:   log.WithComponent("kpi"),
		now:   time.Now,
	}
}

// Aggregate folds financial rows into one DailyKpi per order date. Rows
// without an order date or order total are skipped. Results are sorted by
// date for deterministic persistence.
func (c *Calculator) Aggregate(accountID string, rows []models.FinancialRow) []models.DailyKpi {
	type bucket struct {
		total  decimal.Decimal
		orders int
	}
	buckets := make(map[string]*bucket)

	for _, row := range rows {
		if row.OrderDate == nil || row.OrderTotal == nil {
			continue
		}
		date := row.OrderDate.Format("2006-01-02")
		b, ok := buckets[date]
		if !ok {
			b = &bucket{}
			buckets[date] = b
		}
		b.total = b.total.Add(decimal.NewFromFloat(*row.OrderTotal))
		b.orders++
	}

	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	updatedAt := c.now().UTC()
	kpis := make([]models.DailyKpi, 0, len(dates))
	for _, date := range dates {
		b := buckets[date]
		total, _ := b.total.Round(2).Float64()
		kpis = append(kpis, models.DailyKpi{
			AccountID:  accountID,
			KpiDate:    date,
			TotalSales: total,
			OrderCount: b.orders,
			UpdatedAt:  updatedAt,
		})
	}
	return kpis
}

// Recompute aggregates and persists in one step.
func (c *Calculator) Recompute(ctx context.Context, accountID string, rows []models.FinancialRow) error {
	kpis := c.Aggregate(accountID, rows)
	if len(kpis) == 0 {
		return nil
	}
	if err := c.store.UpsertDailyKpis(ctx, kpis); err != nil {
		return err
	}

	c.log.WithFields(logger.Fields{
		"account_id": accountID,
		"days":       len(kpis),
	}).Info("daily KPIs recomputed locally")
	return nil
}
