package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/fuzzy"
	"mandi-prices/internal/pricing/geo"
	"mandi-prices/internal/pricing/nameindex"
)

// run is the per-resolution state. It is never shared across resolutions.
type run struct {
	e     *Engine
	snap  *nameindex.Snapshot
	today time.Time
	log   logger.Logger
}

// pass carries what earlier tiers already did to the intent.
type pass struct {
	tier               models.Tier
	locationCorrected  bool
	commodityCorrected bool
}

var tierDepth = map[models.Tier]int{
	models.TierNone:               0,
	models.TierAliasExpansion:     1,
	models.TierSpellingCorrection: 2,
	models.TierGeographic:         3,
	models.TierHistorical:         4,
}

// deeper records t when it is deeper than the tier used so far.
func (p pass) deeper(t models.Tier) pass {
	if tierDepth[t] > tierDepth[p.tier] {
		p.tier = t
	}
	return p
}

// place is a location confirmed by the name index.
type place struct {
	known    bool
	market   string
	district string
	state    string
	hasData  bool
}

func (p place) name() string {
	if p.market != "" {
		return p.market
	}
	return p.district
}

func (r *run) resolve(ctx context.Context, in models.Intent, p pass) (models.ResolutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc, ok := r.locate(&in, &p)
	if !ok {
		return r.correctLocation(ctx, in, p)
	}
	if !r.commodityKnown(&in) {
		return r.correctCommodity(ctx, in, p)
	}

	// Tier 1: exact lookup.
	f := models.FilterFromIntent(in)
	records, err := r.exact(ctx, in, f)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		return r.resolved(records, p), nil
	}

	// Tier 2: commodity aliases, one query over every untried alternative.
	if alts := r.alternates(in, true); len(alts) > 0 {
		for _, a := range alts {
			in = in.WithAliasTried(a)
		}
		af := f
		af.Commodities = alts

		_, span := r.e.tracer.Start(ctx, "tier.alias_expansion", trace.WithAttributes(
			attribute.StringSlice("aliases", alts),
		))
		records, err = r.exact(ctx, in, af)
		span.End()
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			return r.resolved(records, p.deeper(models.TierAliasExpansion)), nil
		}
	}

	// Tier 4: a real place that never had a single row.
	if loc.known && !loc.hasData {
		has, err := r.e.store.HasRecords(ctx, f.Location())
		if err != nil {
			return nil, err
		}
		if !has {
			return r.noDataForPlace(loc), nil
		}
	}

	// Tier 5: walk back from the requested day. Questions without a specific
	// day already covered the lookback window in tier 1.
	if in.Date != nil && !in.DateIsRange {
		bf := f
		if in.CommodityName() != "" {
			bf.Commodities = append([]string{in.CommodityName()}, r.alternates(in, false)...)
		}

		bctx, span := r.e.tracer.Start(ctx, "tier.historical")
		records, found, err := r.e.backfill.Walk(bctx, bf, *in.Date, r.e.cfg.MaxLookbackDays)
		span.End()
		if err != nil {
			return nil, err
		}
		if found {
			return r.resolved(records, p.deeper(models.TierHistorical)), nil
		}
	}

	// Exhausted: offer nearby markets rather than nothing.
	if loc.known {
		cands := geo.NearbyMarkets(r.snap, loc.district, loc.state, loc.market, r.e.cfg.GeographicLimit)
		if len(cands) > 0 {
			return &models.NeedsDisambiguation{
				Candidates: capCandidates(cands, r.e.cfg.MaxCandidates),
				Reason:     models.ReasonNoDataForExactMatch,
			}, nil
		}
	}

	return &models.NotFound{Reason: notFoundReason(in)}, nil
}

// locate checks the intent's market (or district) against the name index and
// rewrites every name it confirms to the indexed spelling, so the store sees
// the text it holds. Only a market given by alias counts as a fallback tier.
// ok is false when the name is unknown. With an empty index nothing can be
// checked and the location passes through unverified.
func (r *run) locate(in *models.Intent, p *pass) (place, bool) {
	if s, ok := r.snap.LookupState(in.StateName()); ok {
		in.State = models.StringPtr(s)
	}

	switch {
	case in.MarketName() != "":
		if len(r.snap.Markets("")) == 0 {
			return place{}, true
		}
		m, ok := r.snap.LookupMarket(in.MarketName(), in.DistrictName(), in.StateName())
		if !ok {
			return place{}, false
		}
		in.Market = models.StringPtr(m.Entry.CanonicalName)
		if in.DistrictName() != "" && m.Entry.District != "" {
			in.District = models.StringPtr(m.Entry.District)
		}
		if in.StateName() != "" && m.Entry.State != "" {
			in.State = models.StringPtr(m.Entry.State)
		}
		if m.ViaAlias {
			*p = p.deeper(models.TierAliasExpansion)
			r.log.Debug("Market given by alias", map[string]interface{}{
				"canonical": m.Entry.CanonicalName,
			})
		}
		return place{
			known:    true,
			market:   m.Entry.CanonicalName,
			district: m.Entry.District,
			state:    m.Entry.State,
			hasData:  m.Entry.HasData(),
		}, true

	case in.DistrictName() != "":
		if len(r.snap.Districts("")) == 0 {
			return place{}, true
		}
		d, ok := r.snap.LookupDistrict(in.DistrictName(), in.StateName())
		if !ok {
			return place{}, false
		}
		in.District = models.StringPtr(d.CanonicalName)
		if in.StateName() != "" && d.State != "" {
			in.State = models.StringPtr(d.State)
		}
		return place{
			known:    true,
			district: d.CanonicalName,
			state:    d.State,
			hasData:  d.HasData(),
		}, true
	}
	return place{}, true
}

// commodityKnown is true when the commodity is absent, indexed (directly or
// by alias), in the static alias table, or when there is no index to check.
// A commodity matching an indexed name is rewritten to that spelling; one
// given by alias is left for tier 2.
func (r *run) commodityKnown(in *models.Intent) bool {
	c := in.CommodityName()
	if c == "" || len(r.snap.Commodities()) == 0 {
		return true
	}
	if m, ok := r.snap.LookupCommodity(c); ok {
		if !m.ViaAlias {
			in.Commodity = models.StringPtr(m.Entry.CanonicalName)
		}
		return true
	}
	return r.e.aliases.HasCommodity(c)
}

// Tier 3 for the location.
func (r *run) correctLocation(ctx context.Context, in models.Intent, p pass) (models.ResolutionResult, error) {
	name, pool := in.MarketName(), r.snap.Markets(in.StateName())
	if name == "" {
		name, pool = in.DistrictName(), r.snap.Districts(in.StateName())
	}

	_, span := r.e.tracer.Start(ctx, "tier.spelling_correction", trace.WithAttributes(
		attribute.String("name", name),
	))
	cands := fuzzy.Match(name, pool, r.e.cfg.SimilarityFloor)
	span.End()

	if sure, ok := r.single(cands); ok && !p.locationCorrected {
		r.log.Info("Location auto-corrected", map[string]interface{}{
			"from":       name,
			"to":         sure.Entry.CanonicalName,
			"similarity": sure.Similarity,
		})
		corrected := in.WithLocation(sure.Entry.CanonicalName)
		if in.MarketName() != "" {
			corrected.District = models.StringPtr(sure.Entry.District)
		}
		corrected.State = models.StringPtr(sure.Entry.State)

		next := p.deeper(models.TierSpellingCorrection)
		next.locationCorrected = true
		return r.resolve(ctx, corrected, next)
	}

	if len(cands) == 0 {
		return &models.NotFound{Reason: fmt.Sprintf("no known market or district matches %q", name)}, nil
	}
	return &models.NeedsDisambiguation{
		Candidates: capCandidates(cands, r.e.cfg.MaxCandidates),
		Reason:     models.ReasonNoExactMatch,
	}, nil
}

// Tier 3 for the commodity.
func (r *run) correctCommodity(ctx context.Context, in models.Intent, p pass) (models.ResolutionResult, error) {
	name := in.CommodityName()
	cands := fuzzy.Match(name, r.snap.Commodities(), r.e.cfg.SimilarityFloor)

	if sure, ok := r.single(cands); ok && !p.commodityCorrected {
		r.log.Info("Commodity auto-corrected", map[string]interface{}{
			"from":       name,
			"to":         sure.Entry.CanonicalName,
			"similarity": sure.Similarity,
		})
		next := p.deeper(models.TierSpellingCorrection)
		next.commodityCorrected = true
		return r.resolve(ctx, in.WithCommodity(sure.Entry.CanonicalName), next)
	}

	if len(cands) == 0 {
		return &models.NotFound{Reason: fmt.Sprintf("no prices recorded for commodity %q", name)}, nil
	}
	return &models.NeedsDisambiguation{
		Candidates: capCandidates(cands, r.e.cfg.MaxCandidates),
		Reason:     models.ReasonNoExactMatch,
	}, nil
}

// single returns the only candidate at or above the high-confidence bound.
func (r *run) single(cands []models.Candidate) (models.Candidate, bool) {
	var (
		hit   models.Candidate
		count int
	)
	for _, c := range cands {
		if c.Similarity >= r.e.cfg.HighConfidence {
			hit = c
			count++
		}
	}
	return hit, count == 1
}

// noDataForPlace answers tier 4. When the name also reads like a misspelling
// of markets that do have data, both suggestion sets are returned together.
func (r *run) noDataForPlace(loc place) models.ResolutionResult {
	nearby := geo.NearbyMarkets(r.snap, loc.district, loc.state, loc.market, r.e.cfg.GeographicLimit)

	var spelling []models.Candidate
	for _, c := range fuzzy.Match(loc.name(), r.snap.Markets(loc.state), r.e.cfg.SimilarityFloor) {
		if !c.Entry.HasData() || fuzzy.Equal(c.Entry.CanonicalName, loc.name()) {
			continue
		}
		spelling = append(spelling, c)
	}

	var cands []models.Candidate
	if len(spelling) == 0 {
		cands = capCandidates(nearby, r.e.cfg.MaxCandidates)
	} else {
		per := r.e.cfg.CombinedPerSource
		cands = append(cands, capCandidates(spelling, per)...)
		added := 0
		for _, c := range nearby {
			if added == per {
				break
			}
			if containsEntry(cands, c.Entry) {
				continue
			}
			cands = append(cands, c)
			added++
		}
	}

	if len(cands) == 0 {
		return &models.NotFound{Reason: fmt.Sprintf("no market with price data near %q", loc.name())}
	}
	return &models.NeedsDisambiguation{Candidates: cands, Reason: models.ReasonNoDataForExactMatch}
}

// alternates lists other names for the intent's commodity: the indexed
// canonical name (when the user gave an alias) and alias-table names, capped
// at MaxAliasesPerName. skipTried drops names an earlier pass already tried.
func (r *run) alternates(in models.Intent, skipTried bool) []string {
	c := in.CommodityName()
	if c == "" {
		return nil
	}

	var names []string
	if m, ok := r.snap.LookupCommodity(c); ok {
		names = append(names, m.Entry.Names()...)
	}
	names = append(names, r.e.aliases.CommodityAliases(c)...)

	seen := map[string]bool{fuzzy.Normalize(c): true}
	var out []string
	for _, n := range names {
		k := fuzzy.Normalize(n)
		if seen[k] || (skipTried && in.Tried(n)) {
			continue
		}
		seen[k] = true
		out = append(out, n)
		if len(out) == r.e.cfg.MaxAliasesPerName {
			break
		}
	}
	return out
}

func (r *run) resolved(records []models.PriceRecord, p pass) *models.Resolved {
	return &models.Resolved{
		Records:          records,
		MatchedExactly:   p.tier == models.TierNone,
		UsedFallbackTier: p.tier,
	}
}

func capCandidates(cands []models.Candidate, n int) []models.Candidate {
	if n > 0 && len(cands) > n {
		return cands[:n]
	}
	return cands
}

func containsEntry(cands []models.Candidate, e models.NameEntry) bool {
	for _, c := range cands {
		if fuzzy.Equal(c.Entry.CanonicalName, e.CanonicalName) &&
			fuzzy.Equal(c.Entry.District, e.District) &&
			fuzzy.Equal(c.Entry.State, e.State) {
			return true
		}
	}
	return false
}

func notFoundReason(in models.Intent) string {
	what := in.CommodityName()
	if what == "" {
		what = "prices"
	}
	if in.HasLocation() {
		return fmt.Sprintf("no %s data for %s", what, in.LocationName())
	}
	if s := in.StateName(); s != "" {
		return fmt.Sprintf("no %s data for %s", what, s)
	}
	return fmt.Sprintf("no %s data found", what)
}
