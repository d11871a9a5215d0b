package nameindex

import (
	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/fuzzy"
)

// Match is a name found in the index.
type Match struct {
	Entry models.NameEntry
	// ViaAlias is set when the query matched an alias rather than the canonical name.
	ViaAlias bool
}

// LookupMarket finds a market by canonical name or alias, restricted to the
// given district and state when they are non-empty. Among several hits a
// canonical match wins, then the most recently reporting market.
func (s *Snapshot) LookupMarket(name, district, state string) (Match, bool) {
	key := fuzzy.Normalize(name)
	if key == "" {
		return Match{}, false
	}

	var (
		best  Match
		found bool
	)
	for _, pos := range s.marketKeys[key] {
		e := s.markets[pos]
		if !within(e, district, state) {
			continue
		}
		m := Match{Entry: e, ViaAlias: fuzzy.Normalize(e.CanonicalName) != key}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	return best, found
}

// LookupDistrict finds a district by name, restricted to state when non-empty.
func (s *Snapshot) LookupDistrict(name, state string) (models.NameEntry, bool) {
	for _, pos := range s.districtKeys[fuzzy.Normalize(name)] {
		d := s.districts[pos]
		if within(d, "", state) {
			return d, true
		}
	}
	return models.NameEntry{}, false
}

// LookupState returns the indexed spelling of a state name.
func (s *Snapshot) LookupState(name string) (string, bool) {
	state, ok := s.stateNames[fuzzy.Normalize(name)]
	return state, ok
}

func (s *Snapshot) LookupCommodity(name string) (Match, bool) {
	key := fuzzy.Normalize(name)
	pos, ok := s.commodityKeys[key]
	if !ok || key == "" {
		return Match{}, false
	}
	e := s.commodities[pos]
	return Match{Entry: e, ViaAlias: fuzzy.Normalize(e.CanonicalName) != key}, true
}

// Markets returns markets in state, or every market when state is empty or
// matches nothing.
func (s *Snapshot) Markets(state string) []models.NameEntry {
	return restrict(s.markets, state)
}

func (s *Snapshot) Districts(state string) []models.NameEntry {
	return restrict(s.districts, state)
}

func (s *Snapshot) Commodities() []models.NameEntry {
	return s.commodities
}

func restrict(entries []models.NameEntry, state string) []models.NameEntry {
	if fuzzy.Normalize(state) == "" {
		return entries
	}
	var out []models.NameEntry
	for _, e := range entries {
		if within(e, "", state) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return entries
	}
	return out
}

func within(e models.NameEntry, district, state string) bool {
	if district != "" && !fuzzy.Equal(e.District, district) {
		return false
	}
	if state != "" && !fuzzy.Equal(e.State, state) {
		return false
	}
	return true
}

func better(a, b Match) bool {
	if a.ViaAlias != b.ViaAlias {
		return !a.ViaAlias
	}
	return a.Entry.LastSeenDate.After(b.Entry.LastSeenDate)
}
