// Package remote fetches current-day prices from the data.gov.in Agmarknet
// resource. Calls are idempotent GETs bounded by a per-call timeout and a
// process-wide rate limit. Nothing here retries.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mandi-prices/internal/common/errors"
	apphttp "mandi-prices/internal/common/http"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
)

// Fetcher returns price rows for one day from the remote source.
type Fetcher interface {
	FetchRecords(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error)
}

const (
	remoteDateLayout = "02/01/2006"
	maxPages         = 5
)

type Config struct {
	BaseURL       string
	ResourceID    string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	PageLimit     int
}

type Client struct {
	config Config
	http   *apphttp.Client
	logger logger.Logger
}

func NewClient(config Config, log logger.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.PageLimit <= 0 {
		config.PageLimit = 100
	}
	return &Client{
		config: config,
		http:   apphttp.NewClient(config.Timeout, apphttp.WithRateLimit(config.RatePerSecond, config.Burst)),
		logger: log,
	}
}

type response struct {
	Total   int         `json:"total"`
	Count   int         `json:"count"`
	Records []rawRecord `json:"records"`
}

type rawRecord struct {
	State       string          `json:"state"`
	District    string          `json:"district"`
	Market      string          `json:"market"`
	Commodity   string          `json:"commodity"`
	Variety     string          `json:"variety"`
	Grade       string          `json:"grade"`
	ArrivalDate string          `json:"arrival_date"`
	MinPrice    json.RawMessage `json:"min_price"`
	MaxPrice    json.RawMessage `json:"max_price"`
	ModalPrice  json.RawMessage `json:"modal_price"`
}

// FetchRecords queries each commodity alternative in turn (or the location
// alone) and keeps rows that match f case-insensitively on day.
func (c *Client) FetchRecords(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	day = models.Day(day)
	commodities := f.Commodities
	if len(commodities) == 0 {
		commodities = []string{""}
	}

	var out []models.PriceRecord
	for _, commodity := range commodities {
		records, err := c.fetchAll(ctx, f, commodity, day)
		if err != nil {
			metrics.RemoteFetches.WithLabelValues("error").Inc()
			return nil, errors.NewRemoteUnavailableError(err)
		}
		out = append(out, records...)
	}

	if len(out) == 0 {
		metrics.RemoteFetches.WithLabelValues("empty").Inc()
	} else {
		metrics.RemoteFetches.WithLabelValues("ok").Inc()
	}
	return out, nil
}

func (c *Client) fetchAll(ctx context.Context, f models.Filter, commodity string, day time.Time) ([]models.PriceRecord, error) {
	var out []models.PriceRecord
	for page := 0; page < maxPages; page++ {
		var resp response
		if err := c.http.GetJSON(ctx, c.requestURL(f, commodity, day, page*c.config.PageLimit), &resp); err != nil {
			return nil, err
		}

		for _, raw := range resp.Records {
			rec, ok := c.convert(raw)
			if !ok || !rec.Date.Equal(day) || !matches(rec, f) {
				continue
			}
			out = append(out, rec)
		}

		if len(resp.Records) < c.config.PageLimit {
			break
		}
	}
	return out, nil
}

func (c *Client) requestURL(f models.Filter, commodity string, day time.Time, offset int) string {
	q := url.Values{}
	q.Set("api-key", c.config.APIKey)
	q.Set("format", "json")
	q.Set("limit", fmt.Sprint(c.config.PageLimit))
	q.Set("offset", fmt.Sprint(offset))
	q.Set("filters[arrival_date]", day.Format(remoteDateLayout))
	setIf(q, "filters[state]", f.State)
	setIf(q, "filters[district]", f.District)
	setIf(q, "filters[market]", f.Market)
	setIf(q, "filters[commodity]", commodity)

	return strings.TrimRight(c.config.BaseURL, "/") + "/" + c.config.ResourceID + "?" + q.Encode()
}

func setIf(q url.Values, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		q.Set(key, v)
	}
}

func (c *Client) convert(raw rawRecord) (models.PriceRecord, bool) {
	date, err := time.Parse(remoteDateLayout, strings.TrimSpace(raw.ArrivalDate))
	if err != nil {
		c.logger.Warn("Skipping remote record with bad arrival date", map[string]interface{}{
			"market":      raw.Market,
			"arrivalDate": raw.ArrivalDate,
		})
		return models.PriceRecord{}, false
	}

	minPrice, ok1 := parsePrice(raw.MinPrice)
	maxPrice, ok2 := parsePrice(raw.MaxPrice)
	modal, ok3 := parsePrice(raw.ModalPrice)
	if !ok1 || !ok2 || !ok3 {
		c.logger.Warn("Skipping remote record with bad price", map[string]interface{}{
			"market":    raw.Market,
			"commodity": raw.Commodity,
		})
		return models.PriceRecord{}, false
	}

	variety := strings.TrimSpace(raw.Variety)
	if g := strings.TrimSpace(raw.Grade); g != "" && !strings.EqualFold(g, "FAQ") {
		variety = strings.TrimSpace(variety + " " + g)
	}

	return models.PriceRecord{
		Commodity:  strings.TrimSpace(raw.Commodity),
		Variety:    variety,
		Market:     strings.TrimSpace(raw.Market),
		District:   strings.TrimSpace(raw.District),
		State:      strings.TrimSpace(raw.State),
		Date:       models.Day(date),
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		ModalPrice: modal,
	}, true
}

// parsePrice accepts both quoted and bare numbers; the feed uses either.
func parsePrice(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func matches(r models.PriceRecord, f models.Filter) bool {
	if len(f.Commodities) > 0 {
		found := false
		for _, c := range f.Commodities {
			if strings.EqualFold(strings.TrimSpace(c), r.Commodity) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return equalOrEmpty(f.Market, r.Market) &&
		equalOrEmpty(f.District, r.District) &&
		equalOrEmpty(f.State, r.State)
}

func equalOrEmpty(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, got)
}
