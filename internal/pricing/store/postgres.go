package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
)

const recordColumns = `commodity, variety, market, district, state, arrival_date,
	min_price, max_price, modal_price, arrival_quantity`

// Postgres implements Store over the price_records table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) RecordsOn(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error) {
	where, args := whereClause(f)
	args = append(args, models.Day(day))

	query := fmt.Sprintf(`
		SELECT %s
		FROM price_records
		WHERE %s AND arrival_date = $%d
		ORDER BY state, district, market, commodity, variety
	`, recordColumns, where, len(args))

	return p.queryRecords(ctx, "records_on", query, args...)
}

func (p *Postgres) LatestRecords(ctx context.Context, f models.Filter, onOrBefore, notBefore time.Time) ([]models.PriceRecord, error) {
	where, args := whereClause(f)
	args = append(args, models.Day(notBefore), models.Day(onOrBefore))
	from, to := len(args)-1, len(args)

	// The filter placeholders are shared by the outer query and the subquery.
	query := fmt.Sprintf(`
		SELECT %s
		FROM price_records
		WHERE %s AND arrival_date = (
			SELECT MAX(arrival_date)
			FROM price_records
			WHERE %s AND arrival_date BETWEEN $%d AND $%d
		)
		ORDER BY state, district, market, commodity, variety
	`, recordColumns, where, where, from, to)

	return p.queryRecords(ctx, "latest_records", query, args...)
}

func (p *Postgres) HasRecords(ctx context.Context, f models.Filter) (bool, error) {
	where, args := whereClause(f)
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM price_records WHERE %s)`, where)

	metrics.StoreQueries.WithLabelValues("has_records").Inc()

	var exists bool
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, errors.NewStoreUnavailableError("has_records", err)
	}
	return exists, nil
}

func (p *Postgres) MarketEntries(ctx context.Context) ([]models.NameEntry, error) {
	query := `
		SELECT market, district, state, MAX(arrival_date)
		FROM price_records
		GROUP BY market, district, state
		ORDER BY state, district, market
	`

	metrics.StoreQueries.WithLabelValues("market_entries").Inc()

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("market_entries", err)
	}
	defer rows.Close()

	var entries []models.NameEntry
	for rows.Next() {
		var (
			market, district, state string
			lastSeen                time.Time
		)
		if err := rows.Scan(&market, &district, &state, &lastSeen); err != nil {
			return nil, errors.NewStoreUnavailableError("market_entries", err)
		}
		entries = append(entries, models.NewNameEntry(models.NameKindMarket, market, district, state, nil, lastSeen))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError("market_entries", err)
	}
	return entries, nil
}

func (p *Postgres) CommodityEntries(ctx context.Context) ([]models.NameEntry, error) {
	query := `
		SELECT commodity, MAX(arrival_date)
		FROM price_records
		GROUP BY commodity
		ORDER BY commodity
	`

	metrics.StoreQueries.WithLabelValues("commodity_entries").Inc()

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("commodity_entries", err)
	}
	defer rows.Close()

	var entries []models.NameEntry
	for rows.Next() {
		var (
			commodity string
			lastSeen  time.Time
		)
		if err := rows.Scan(&commodity, &lastSeen); err != nil {
			return nil, errors.NewStoreUnavailableError("commodity_entries", err)
		}
		entries = append(entries, models.NewNameEntry(models.NameKindCommodity, commodity, "", "", nil, lastSeen))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError("commodity_entries", err)
	}
	return entries, nil
}

func (p *Postgres) queryRecords(ctx context.Context, name, query string, args ...interface{}) ([]models.PriceRecord, error) {
	metrics.StoreQueries.WithLabelValues(name).Inc()

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreUnavailableError(name, err)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var (
			r        models.PriceRecord
			quantity decimal.NullDecimal
		)
		if err := rows.Scan(
			&r.Commodity, &r.Variety, &r.Market, &r.District, &r.State, &r.Date,
			&r.MinPrice, &r.MaxPrice, &r.ModalPrice, &quantity,
		); err != nil {
			return nil, errors.NewStoreUnavailableError(name, err)
		}
		r.Date = models.Day(r.Date)
		if quantity.Valid {
			r.ArrivalQuantity = quantity.Decimal
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError(name, err)
	}
	return records, nil
}

// whereClause renders the case-insensitive filter. Placeholders start at $1.
func whereClause(f models.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	if len(f.Commodities) > 0 {
		lowered := make([]string, 0, len(f.Commodities))
		for _, c := range f.Commodities {
			lowered = append(lowered, strings.ToLower(strings.TrimSpace(c)))
		}
		args = append(args, pq.Array(lowered))
		conds = append(conds, fmt.Sprintf("LOWER(commodity) = ANY($%d)", len(args)))
	}
	for _, col := range []struct {
		name  string
		value string
	}{
		{"market", f.Market},
		{"district", f.District},
		{"state", f.State},
	} {
		if v := strings.TrimSpace(col.value); v != "" {
			args = append(args, strings.ToLower(v))
			conds = append(conds, fmt.Sprintf("LOWER(%s) = $%d", col.name, len(args)))
		}
	}

	if len(conds) == 0 {
		return "TRUE", args
	}
	return strings.Join(conds, " AND "), args
}
