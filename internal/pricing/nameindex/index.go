// Package nameindex keeps the set of known market, district and commodity
// names. The index is rebuilt from the record store (plus the optional market
// directory and the static alias table) and published as an immutable
// snapshot; readers never lock.
package nameindex

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/aliases"
	"mandi-prices/internal/pricing/fuzzy"
)

// EntrySource supplies names observed in price rows.
type EntrySource interface {
	MarketEntries(ctx context.Context) ([]models.NameEntry, error)
	CommodityEntries(ctx context.Context) ([]models.NameEntry, error)
}

type Index struct {
	source    EntrySource
	directory DirectorySource
	aliases   *aliases.Table
	logger    logger.Logger
	current   atomic.Pointer[Snapshot]
}

// New returns an index holding an empty snapshot; call Reload to fill it.
// directory may be nil.
func New(source EntrySource, directory DirectorySource, table *aliases.Table, log logger.Logger) *Index {
	if table == nil {
		table = aliases.Default()
	}
	x := &Index{
		source:    source,
		directory: directory,
		aliases:   table,
		logger:    log,
	}
	x.current.Store(Build(nil, nil, nil, table))
	return x
}

// Current returns the snapshot in effect. Callers should hold on to one
// snapshot for the duration of a resolution.
func (x *Index) Current() *Snapshot {
	return x.current.Load()
}

// Reload rebuilds the snapshot. A store failure keeps the previous snapshot;
// a directory failure only drops directory-only markets from the new one.
func (x *Index) Reload(ctx context.Context) error {
	var markets, directory, commodities []models.NameEntry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		markets, err = x.source.MarketEntries(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		commodities, err = x.source.CommodityEntries(gctx)
		return err
	})
	if x.directory != nil {
		g.Go(func() error {
			entries, err := x.directory.DirectoryMarkets(gctx)
			if err != nil {
				x.logger.Warn("Market directory unavailable, indexing store names only", map[string]interface{}{
					"error": err.Error(),
				})
				return nil
			}
			directory = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snap := Build(markets, directory, commodities, x.aliases)
	x.current.Store(snap)

	metrics.NameIndexEntries.WithLabelValues(string(models.NameKindMarket)).Set(float64(len(snap.markets)))
	metrics.NameIndexEntries.WithLabelValues(string(models.NameKindDistrict)).Set(float64(len(snap.districts)))
	metrics.NameIndexEntries.WithLabelValues(string(models.NameKindCommodity)).Set(float64(len(snap.commodities)))

	x.logger.Info("Name index reloaded", map[string]interface{}{
		"markets":     len(snap.markets),
		"districts":   len(snap.districts),
		"commodities": len(snap.commodities),
	})
	return nil
}

// Run reloads every interval until ctx is done.
func (x *Index) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := x.Reload(ctx); err != nil {
				x.logger.Error("Name index reload failed, keeping previous snapshot", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}
	}
}

// Snapshot is an immutable view of every known name.
type Snapshot struct {
	markets     []models.NameEntry
	districts   []models.NameEntry
	commodities []models.NameEntry

	marketKeys    map[string][]int
	districtKeys  map[string][]int
	commodityKeys map[string]int
	stateNames    map[string]string
}

// Build merges store markets with directory markets (store rows win for
// LastSeenDate) and attaches alias-table names to markets and commodities.
func Build(markets, directory, commodities []models.NameEntry, table *aliases.Table) *Snapshot {
	s := &Snapshot{
		marketKeys:    make(map[string][]int),
		districtKeys:  make(map[string][]int),
		commodityKeys: make(map[string]int),
		stateNames:    make(map[string]string),
	}

	byPlace := make(map[string]int)
	add := func(e models.NameEntry) {
		key := placeKey(e.CanonicalName, e.District, e.State)
		if pos, ok := byPlace[key]; ok {
			merged := s.markets[pos].WithAliases(e.Aliases)
			if e.LastSeenDate.After(merged.LastSeenDate) {
				merged.LastSeenDate = e.LastSeenDate
			}
			s.markets[pos] = merged
			return
		}
		byPlace[key] = len(s.markets)
		s.markets = append(s.markets, e)
	}
	for _, e := range markets {
		add(e)
	}
	for _, e := range directory {
		add(e)
	}

	sort.SliceStable(s.markets, func(i, j int) bool {
		a, b := s.markets[i], s.markets[j]
		if a.State != b.State {
			return a.State < b.State
		}
		if a.District != b.District {
			return a.District < b.District
		}
		return a.CanonicalName < b.CanonicalName
	})

	districtPos := make(map[string]int)
	for i := range s.markets {
		if table != nil {
			s.markets[i] = s.markets[i].WithAliases(table.MarketAliases(s.markets[i].CanonicalName))
		}
		m := s.markets[i]
		for _, name := range m.Names() {
			k := fuzzy.Normalize(name)
			s.marketKeys[k] = append(s.marketKeys[k], i)
		}
		if sk := fuzzy.Normalize(m.State); sk != "" {
			if _, ok := s.stateNames[sk]; !ok || m.HasData() {
				s.stateNames[sk] = m.State
			}
		}

		if m.District == "" {
			continue
		}
		dk := placeKey(m.District, "", m.State)
		if pos, ok := districtPos[dk]; ok {
			if m.LastSeenDate.After(s.districts[pos].LastSeenDate) {
				s.districts[pos].LastSeenDate = m.LastSeenDate
			}
			continue
		}
		districtPos[dk] = len(s.districts)
		s.districts = append(s.districts, models.NewNameEntry(models.NameKindDistrict, m.District, m.District, m.State, nil, m.LastSeenDate))
	}
	for i, d := range s.districts {
		k := fuzzy.Normalize(d.CanonicalName)
		s.districtKeys[k] = append(s.districtKeys[k], i)
	}

	seen := make(map[string]bool)
	for _, c := range commodities {
		k := fuzzy.Normalize(c.CanonicalName)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if table != nil {
			c = c.WithAliases(table.CommodityAliases(c.CanonicalName))
		}
		s.commodities = append(s.commodities, c)
	}
	sort.SliceStable(s.commodities, func(i, j int) bool {
		return s.commodities[i].CanonicalName < s.commodities[j].CanonicalName
	})
	for i, c := range s.commodities {
		for _, name := range c.Names() {
			k := fuzzy.Normalize(name)
			if _, taken := s.commodityKeys[k]; !taken {
				s.commodityKeys[k] = i
			}
		}
	}

	return s
}

func placeKey(name, district, state string) string {
	return fuzzy.Normalize(name) + "|" + fuzzy.Normalize(district) + "|" + fuzzy.Normalize(state)
}
