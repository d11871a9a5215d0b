package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mandi-prices/internal/models"
)

// exact runs the tier-1 query for the intent's date. A specific day is a
// single store lookup. Without a day (or for a range ending today) the most
// recent rows within the lookback window are wanted, which also asks the
// remote source for today's prices.
func (r *run) exact(ctx context.Context, in models.Intent, f models.Filter) ([]models.PriceRecord, error) {
	ctx, span := r.e.tracer.Start(ctx, "tier.exact", trace.WithAttributes(
		attribute.String("filter", f.Key()),
	))
	defer span.End()

	if in.Date != nil && !in.DateIsRange {
		return r.e.store.RecordsOn(ctx, f, *in.Date)
	}

	if in.Date != nil && in.Date.Before(r.today) {
		end := *in.Date
		return r.e.store.LatestRecords(ctx, f, end, end.AddDate(0, 0, -r.e.cfg.MaxLookbackDays))
	}
	return r.current(ctx, f)
}

type answer struct {
	fromRemote bool
	records    []models.PriceRecord
	err        error
}

// current fans out to the remote source and the store concurrently. A
// non-empty remote answer, or a store answer dated today, wins immediately
// and cancels the other call. An older store answer is held until the remote
// call has finished empty-handed. Remote failures are logged and absorbed.
func (r *run) current(ctx context.Context, f models.Filter) ([]models.PriceRecord, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	answers := make(chan answer, 2)
	pending := 1

	if r.e.remote != nil {
		pending++
		go func() {
			rctx, rcancel := context.WithTimeout(ctx, r.e.cfg.RemoteTimeout)
			defer rcancel()
			records, err := r.e.remote.FetchRecords(rctx, f, r.today)
			answers <- answer{fromRemote: true, records: records, err: err}
		}()
	}

	go func() {
		records, err := r.e.store.LatestRecords(ctx, f, r.today, r.today.AddDate(0, 0, -r.e.cfg.MaxLookbackDays))
		answers <- answer{records: records, err: err}
	}()

	var (
		held     []models.PriceRecord
		storeErr error
	)
	for ; pending > 0; pending-- {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case a := <-answers:
			if a.fromRemote {
				if a.err != nil {
					r.log.Warn("Remote source unavailable, using stored prices", map[string]interface{}{
						"error": a.err.Error(),
					})
					continue
				}
				if len(a.records) > 0 {
					return a.records, nil
				}
				continue
			}

			if a.err != nil {
				storeErr = a.err
				continue
			}
			if len(a.records) > 0 && isDay(a.records[0].Date, r.today) {
				return a.records, nil
			}
			held = a.records
		}
	}

	if storeErr != nil {
		return nil, storeErr
	}
	return held, nil
}

func isDay(t, day time.Time) bool {
	return models.Day(t).Equal(day)
}
