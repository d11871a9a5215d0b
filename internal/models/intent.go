// internal/models/intent.go
package models

import (
	"errors"
	"strings"
	"time"
)

var ErrEmptyIntent = errors.New("intent has no usable fields")

// Intent is the structured form of a farmer's question. Every field is optional;
// nil means the question did not mention it.
type Intent struct {
	Commodity    *string    `json:"commodity,omitempty"`
	Market       *string    `json:"market,omitempty"`
	District     *string    `json:"district,omitempty"`
	State        *string    `json:"state,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	DateIsRange  bool       `json:"dateIsRange"`
	AliasesTried []string   `json:"aliasesTried,omitempty"`
}

// StringPtr returns nil for blank input so callers never build sentinel strings.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func DatePtr(t time.Time) *time.Time {
	d := Day(t)
	return &d
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (i Intent) CommodityName() string { return value(i.Commodity) }
func (i Intent) MarketName() string    { return value(i.Market) }
func (i Intent) DistrictName() string  { return value(i.District) }
func (i Intent) StateName() string     { return value(i.State) }

// LocationName is the most specific place the intent mentions.
func (i Intent) LocationName() string {
	if m := i.MarketName(); m != "" {
		return m
	}
	return i.DistrictName()
}

func (i Intent) HasLocation() bool {
	return i.LocationName() != ""
}

// Validate rejects intents without a single usable field. Blank strings count as missing.
func (i Intent) Validate() error {
	if i.CommodityName() == "" && i.MarketName() == "" && i.DistrictName() == "" && i.StateName() == "" && i.Date == nil {
		return ErrEmptyIntent
	}
	return nil
}

// Clean returns a copy with blank fields dropped and the date truncated to a day.
func (i Intent) Clean() Intent {
	out := Intent{
		Commodity:   StringPtr(i.CommodityName()),
		Market:      StringPtr(i.MarketName()),
		District:    StringPtr(i.DistrictName()),
		State:       StringPtr(i.StateName()),
		DateIsRange: i.DateIsRange,
	}
	if i.Date != nil {
		out.Date = DatePtr(*i.Date)
	}
	if len(i.AliasesTried) > 0 {
		out.AliasesTried = append([]string(nil), i.AliasesTried...)
	}
	return out
}

func (i Intent) WithCommodity(name string) Intent {
	out := i.Clean()
	out.Commodity = StringPtr(name)
	return out
}

// WithLocation replaces the market (or district when no market was given).
func (i Intent) WithLocation(name string) Intent {
	out := i.Clean()
	if out.Market != nil {
		out.Market = StringPtr(name)
	} else {
		out.District = StringPtr(name)
	}
	return out
}

func (i Intent) WithAliasTried(alias string) Intent {
	out := i.Clean()
	out.AliasesTried = append(out.AliasesTried, alias)
	return out
}

// Tried reports whether alias was already attempted by an earlier pass.
func (i Intent) Tried(alias string) bool {
	for _, a := range i.AliasesTried {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(alias)) {
			return true
		}
	}
	return false
}
