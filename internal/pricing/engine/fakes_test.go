package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/models"
)

// memStore is an in-memory store.Store that counts every call.
type memStore struct {
	mu          sync.Mutex
	rows        []models.PriceRecord
	err         error
	latestDelay time.Duration

	recordsOnDays []time.Time
	latestCalls   int
	hasCalls      int
	latestAborted int32
}

func (s *memStore) RecordsOn(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordsOnDays = append(s.recordsOnDays, models.Day(day))
	if s.err != nil {
		return nil, s.err
	}
	var out []models.PriceRecord
	for _, r := range s.rows {
		if matchesFilter(r, f) && r.Date.Equal(models.Day(day)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) LatestRecords(ctx context.Context, f models.Filter, onOrBefore, notBefore time.Time) ([]models.PriceRecord, error) {
	if s.latestDelay > 0 {
		select {
		case <-ctx.Done():
			atomic.AddInt32(&s.latestAborted, 1)
			return nil, ctx.Err()
		case <-time.After(s.latestDelay):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestCalls++
	if s.err != nil {
		return nil, s.err
	}

	var latest time.Time
	for _, r := range s.rows {
		if matchesFilter(r, f) && !r.Date.Before(notBefore) && !r.Date.After(onOrBefore) && r.Date.After(latest) {
			latest = r.Date
		}
	}
	var out []models.PriceRecord
	for _, r := range s.rows {
		if matchesFilter(r, f) && r.Date.Equal(latest) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) HasRecords(ctx context.Context, f models.Filter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCalls++
	if s.err != nil {
		return false, s.err
	}
	for _, r := range s.rows {
		if matchesFilter(r, f) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MarketEntries(ctx context.Context) ([]models.NameEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct{ market, district, state string }
	last := map[key]time.Time{}
	for _, r := range s.rows {
		k := key{r.Market, r.District, r.State}
		if r.Date.After(last[k]) {
			last[k] = r.Date
		}
	}
	var out []models.NameEntry
	for k, seen := range last {
		out = append(out, models.NewNameEntry(models.NameKindMarket, k.market, k.district, k.state, nil, seen))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })
	return out, nil
}

func (s *memStore) CommodityEntries(ctx context.Context) ([]models.NameEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := map[string]time.Time{}
	for _, r := range s.rows {
		if r.Date.After(last[r.Commodity]) {
			last[r.Commodity] = r.Date
		}
	}
	var out []models.NameEntry
	for c, seen := range last {
		out = append(out, models.NewNameEntry(models.NameKindCommodity, c, "", "", nil, seen))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName < out[j].CanonicalName })
	return out, nil
}

func (s *memStore) backfillCalls(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.recordsOnDays {
		if d.Before(models.Day(before)) {
			n++
		}
	}
	return n
}

func (s *memStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recordsOnDays) + s.latestCalls + s.hasCalls
}

func matchesFilter(r models.PriceRecord, f models.Filter) bool {
	if len(f.Commodities) > 0 {
		ok := false
		for _, c := range f.Commodities {
			if strings.EqualFold(c, r.Commodity) {
				ok = true
			}
		}
		if !ok {
			return false
		}
	}
	eq := func(want, got string) bool { return want == "" || strings.EqualFold(want, got) }
	return eq(f.Market, r.Market) && eq(f.District, r.District) && eq(f.State, r.State)
}

// fakeRemote answers every fetch with the same rows after an optional delay.
// With block set it waits for cancellation.
type fakeRemote struct {
	records []models.PriceRecord
	err     error
	delay   time.Duration
	block   bool
	calls   int32
}

func (f *fakeRemote) FetchRecords(ctx context.Context, filter models.Filter, day time.Time) ([]models.PriceRecord, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block {
		<-ctx.Done()
		return nil, errors.NewRemoteUnavailableError(ctx.Err())
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, errors.NewRemoteUnavailableError(ctx.Err())
		case <-time.After(f.delay):
		}
	}
	var out []models.PriceRecord
	for _, r := range f.records {
		if matchesFilter(r, filter) {
			out = append(out, r)
		}
	}
	return out, f.err
}

func date(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)
}

func row(commodity, market, district, state string, day time.Time, modal int64) models.PriceRecord {
	return models.PriceRecord{
		Commodity:  commodity,
		Variety:    "Other",
		Market:     market,
		District:   district,
		State:      state,
		Date:       day,
		MinPrice:   decimal.NewFromInt(modal - 300),
		MaxPrice:   decimal.NewFromInt(modal + 250),
		ModalPrice: decimal.NewFromInt(modal),
	}
}

const (
	ap = "Andhra Pradesh"
	tn = "Tamil Nadu"
)

func fixtureRows() []models.PriceRecord {
	return []models.PriceRecord{
		row("Cotton", "Adoni", "Kurnool", ap, date(10, 18), 7250),
		row("Onion", "Adoni", "Kurnool", ap, date(10, 20), 1200),
		row("Bengal Gram(Gram)(Whole)", "Adoni", "Kurnool", ap, date(10, 20), 5600),
		row("Onion", "Kurnool", "Kurnool", ap, date(10, 20), 1150),
		row("Cotton", "Yemmiganur", "Kurnool", ap, date(10, 21), 7100),
		row("Coconut", "Ravulapelem", "East Godavari", ap, date(10, 19), 1400),
		row("Maize", "Rajahmundry", "East Godavari", ap, date(10, 20), 2100),
		row("Paddy(Dhan)(Common)", "Mandapeta", "East Godavari", ap, date(10, 21), 2300),
		row("Dry Chillies", "Narasaraopeta", "Palnadu", ap, date(10, 20), 14500),
		row("Maize", "Eluru", "West Godavari", ap, date(10, 15), 2050),
		row("Onion", "Hubli", "Dharwad", "Karnataka", date(10, 20), 1300),
		row("Tomato", "Guduru", "Tiruvallur", tn, date(10, 20), 900),
		row("Tomato", "Gudura", "Tiruvallur", tn, date(10, 20), 900),
		row("Tomato", "Guduri", "Tiruvallur", tn, date(10, 20), 900),
		row("Tomato", "Gudor", "Tiruvallur", tn, date(10, 20), 900),
		row("Tomato", "Gadur", "Tiruvallur", tn, date(10, 20), 900),
		row("Tomato", "Gidur", "Tiruvallur", tn, date(10, 20), 900),
		row("Tomato", "Goodur", "Tiruvallur", tn, date(10, 20), 900),
	}
}

// staticDirectory lists markets that exist but never reported a price.
type staticDirectory []models.NameEntry

func (d staticDirectory) DirectoryMarkets(ctx context.Context) ([]models.NameEntry, error) {
	return d, nil
}

func fixtureDirectory() staticDirectory {
	return staticDirectory{
		models.NewNameEntry(models.NameKindMarket, "Kothapeta", "East Godavari", ap, nil, time.Time{}),
		models.NewNameEntry(models.NameKindMarket, "Yemmiganuru", "Kurnool", ap, nil, time.Time{}),
	}
}
