// Package store reads price rows from the record store. The refresh job owns
// writes; nothing here mutates price_records.
package store

import (
	"context"
	"time"

	"mandi-prices/internal/models"
)

// Store is the read-only view the resolution engine needs.
type Store interface {
	// RecordsOn returns rows matching f on exactly day.
	RecordsOn(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error)
	// LatestRecords returns every row matching f on the most recent arrival date
	// within [notBefore, onOrBefore], or nothing.
	LatestRecords(ctx context.Context, f models.Filter, onOrBefore, notBefore time.Time) ([]models.PriceRecord, error)
	// HasRecords reports whether any row ever matched f.
	HasRecords(ctx context.Context, f models.Filter) (bool, error)
	MarketEntries(ctx context.Context) ([]models.NameEntry, error)
	CommodityEntries(ctx context.Context) ([]models.NameEntry, error)
}
