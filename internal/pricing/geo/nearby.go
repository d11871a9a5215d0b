// Package geo proposes nearby markets for a place that has no price data.
//
// "Nearby" is administrative containment, not distance: markets in the same
// district rank above markets elsewhere in the same state. There are no
// coordinates in the data set, so this is an approximation; a geodesic
// ranking can replace NearbyMarkets without changing its contract.
package geo

import (
	"sort"
	"strings"

	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/fuzzy"
)

const (
	RankSameDistrict = 1
	RankSameState    = 2
)

// MarketLister is satisfied by a name index snapshot.
type MarketLister interface {
	Markets(state string) []models.NameEntry
}

// NearbyMarkets returns up to limit markets that have reported prices, in
// the same district first and then the same state. Within a rank, markets
// with more recent data come first, then alphabetical order. The market
// named excluding is left out wherever it sits in the state.
func NearbyMarkets(src MarketLister, district, state, excluding string, limit int) []models.Candidate {
	if limit <= 0 || (district == "" && state == "") {
		return nil
	}

	var out []models.Candidate
	for _, m := range src.Markets(state) {
		if !m.HasData() {
			continue
		}
		if isExcluded(m, excluding, district, state) {
			continue
		}
		sameDistrict := district != "" && fuzzy.Equal(m.District, district) &&
			(state == "" || fuzzy.Equal(m.State, state))

		rank := 0
		switch {
		case sameDistrict:
			rank = RankSameDistrict
		case state != "" && fuzzy.Equal(m.State, state):
			rank = RankSameState
		default:
			continue
		}

		out = append(out, models.Candidate{
			Entry:        m,
			Similarity:   0,
			DistanceRank: rank,
			Source:       models.SourceGeographic,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DistanceRank != b.DistanceRank {
			return a.DistanceRank < b.DistanceRank
		}
		if !a.Entry.LastSeenDate.Equal(b.Entry.LastSeenDate) {
			return a.Entry.LastSeenDate.After(b.Entry.LastSeenDate)
		}
		return strings.ToLower(a.Entry.CanonicalName) < strings.ToLower(b.Entry.CanonicalName)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// isExcluded matches the asked-about market by name and state. A district on
// both sides must agree too, so a namesake elsewhere in the state survives.
func isExcluded(m models.NameEntry, excluding, district, state string) bool {
	if excluding == "" || !fuzzy.Equal(m.CanonicalName, excluding) {
		return false
	}
	if state != "" && !fuzzy.Equal(m.State, state) {
		return false
	}
	return district == "" || m.District == "" || fuzzy.Equal(m.District, district)
}
