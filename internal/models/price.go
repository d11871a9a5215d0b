// internal/models/price.go
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one stored arrival/price row. Rows are append-only and never mutated.
// Prices are per quintal in rupees.
type PriceRecord struct {
	Commodity       string          `json:"commodity" db:"commodity"`
	Variety         string          `json:"variety" db:"variety"`
	Market          string          `json:"market" db:"market"`
	District        string          `json:"district" db:"district"`
	State           string          `json:"state" db:"state"`
	Date            time.Time       `json:"date" db:"arrival_date"`
	MinPrice        decimal.Decimal `json:"minPrice" db:"min_price"`
	MaxPrice        decimal.Decimal `json:"maxPrice" db:"max_price"`
	ModalPrice      decimal.Decimal `json:"modalPrice" db:"modal_price"`
	ArrivalQuantity decimal.Decimal `json:"arrivalQuantity" db:"arrival_quantity"`
}

// Filter selects price rows. Empty fields are unconstrained; matching is case-insensitive.
// Commodities holds alternatives (a commodity and its aliases) matched with OR.
type Filter struct {
	Commodities []string
	Market      string
	District    string
	State       string
}

// FilterFromIntent maps the non-nil intent fields onto a Filter.
func FilterFromIntent(i Intent) Filter {
	f := Filter{
		Market:   i.MarketName(),
		District: i.DistrictName(),
		State:    i.StateName(),
	}
	if c := i.CommodityName(); c != "" {
		f.Commodities = []string{c}
	}
	return f
}

// Location drops the commodity constraint.
func (f Filter) Location() Filter {
	return Filter{Market: f.Market, District: f.District, State: f.State}
}

// Key is a stable, lowercase identity used for caching.
func (f Filter) Key() string {
	parts := []string{
		"c=" + strings.ToLower(strings.Join(f.Commodities, ",")),
		"m=" + strings.ToLower(f.Market),
		"d=" + strings.ToLower(f.District),
		"s=" + strings.ToLower(f.State),
	}
	return strings.Join(parts, "|")
}
