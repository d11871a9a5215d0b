// internal/models/name_entry.go
package models

import (
	"strings"
	"time"
)

type NameKind string

const (
	NameKindMarket    NameKind = "market"
	NameKindCommodity NameKind = "commodity"
	NameKindDistrict  NameKind = "district"
)

// NameEntry is a known market or commodity name observed in the store.
// Aliases never contain CanonicalName itself.
type NameEntry struct {
	Kind          NameKind  `json:"kind"`
	CanonicalName string    `json:"canonicalName"`
	District      string    `json:"district,omitempty"`
	State         string    `json:"state,omitempty"`
	Aliases       []string  `json:"aliases,omitempty"`
	LastSeenDate  time.Time `json:"lastSeenDate"`
}

// NewNameEntry builds an entry with de-duplicated aliases, dropping any alias
// whose normalized form equals the canonical name's.
func NewNameEntry(kind NameKind, canonical, district, state string, aliases []string, lastSeen time.Time) NameEntry {
	e := NameEntry{
		Kind:          kind,
		CanonicalName: strings.TrimSpace(canonical),
		District:      strings.TrimSpace(district),
		State:         strings.TrimSpace(state),
		LastSeenDate:  lastSeen,
	}
	e.Aliases = e.mergeAliases(aliases)
	return e
}

// WithAliases returns a copy with extra aliases merged in.
func (e NameEntry) WithAliases(aliases []string) NameEntry {
	out := e
	out.Aliases = e.mergeAliases(append(append([]string(nil), e.Aliases...), aliases...))
	return out
}

func (e NameEntry) mergeAliases(aliases []string) []string {
	seen := map[string]bool{NormalizeName(e.CanonicalName): true}
	var out []string
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		k := NormalizeName(a)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}

// HasData reports whether any price row was ever observed for the entry.
func (e NameEntry) HasData() bool {
	return !e.LastSeenDate.IsZero()
}

// Names returns the canonical name followed by the aliases.
func (e NameEntry) Names() []string {
	return append([]string{e.CanonicalName}, e.Aliases...)
}
