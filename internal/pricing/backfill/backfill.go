// Package backfill finds the most recent stored prices before a date. It
// reads the record store only; the remote source is never consulted.
package backfill

import (
	"context"
	"time"

	"mandi-prices/internal/common/config"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
)

// RecordSource is the single store query the walk needs.
type RecordSource interface {
	RecordsOn(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error)
}

type Resolver struct {
	store RecordSource
}

func New(store RecordSource) *Resolver {
	return &Resolver{store: store}
}

// Walk checks before-1, before-2, ... before-maxLookbackDays with one store
// query per day and returns every row of the first day that has any. The
// window is clamped to [1, config.MaxLookbackCeiling]. found is false when the
// window is exhausted.
func (r *Resolver) Walk(ctx context.Context, f models.Filter, before time.Time, maxLookbackDays int) (records []models.PriceRecord, found bool, err error) {
	maxLookbackDays = clamp(maxLookbackDays)
	before = models.Day(before)

	calls := 0
	defer func() { metrics.BackfillStoreCalls.Observe(float64(calls)) }()

	for offset := 1; offset <= maxLookbackDays; offset++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		calls++
		records, err := r.store.RecordsOn(ctx, f, before.AddDate(0, 0, -offset))
		if err != nil {
			return nil, false, err
		}
		if len(records) > 0 {
			return records, true, nil
		}
	}
	return nil, false, nil
}

// LastAvailable is Walk narrowed to a single row: the first row of the most
// recent day with data.
func (r *Resolver) LastAvailable(ctx context.Context, f models.Filter, before time.Time, maxLookbackDays int) (models.PriceRecord, bool, error) {
	records, found, err := r.Walk(ctx, f, before, maxLookbackDays)
	if err != nil || !found {
		return models.PriceRecord{}, false, err
	}
	return records[0], true, nil
}

func clamp(days int) int {
	if days < 1 {
		return 1
	}
	if days > config.MaxLookbackCeiling {
		return config.MaxLookbackCeiling
	}
	return days
}
