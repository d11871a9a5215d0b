// Package intent turns loosely typed extractor output into a models.Intent.
// Nothing produced by an extractor is trusted: payloads are checked against
// an embedded JSON schema before any field is read.
package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/models"
)

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// payload mirrors the schema. Pointers distinguish absent from blank.
type payload struct {
	Commodity    *string  `json:"commodity"`
	Market       *string  `json:"market"`
	District     *string  `json:"district"`
	State        *string  `json:"state"`
	Date         *string  `json:"date"`
	DateIsRange  *bool    `json:"dateIsRange"`
	AliasesTried []string `json:"aliasesTried"`
}

// Validate checks raw against the intent schema.
func Validate(raw map[string]interface{}) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.NewInvalidIntentError(fmt.Sprintf("validation error: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return errors.NewInvalidIntentError(strings.Join(errs, "; "))
	}
	return nil
}

// Decode validates raw and builds an Intent. today anchors relative dates and
// must already be a calendar day in the caller's time zone.
func Decode(raw map[string]interface{}, today time.Time) (models.Intent, error) {
	if err := Validate(raw); err != nil {
		return models.Intent{}, err
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return models.Intent{}, errors.NewInvalidIntentError(err.Error())
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Intent{}, errors.NewInvalidIntentError(err.Error())
	}

	in := models.Intent{
		Commodity:    trimmed(p.Commodity),
		Market:       trimmed(p.Market),
		District:     trimmed(p.District),
		State:        trimmed(p.State),
		AliasesTried: p.AliasesTried,
	}
	if p.DateIsRange != nil {
		in.DateIsRange = *p.DateIsRange
	}
	if p.Date != nil && strings.TrimSpace(*p.Date) != "" {
		d, err := ParseDate(*p.Date, today)
		if err != nil {
			return models.Intent{}, errors.NewInvalidIntentError(err.Error())
		}
		in.Date = &d
	}

	in = in.Clean()
	if err := in.Validate(); err != nil {
		return models.Intent{}, errors.NewInvalidIntentError(err.Error())
	}
	return in, nil
}

// DecodeJSON is Decode for a serialized payload.
func DecodeJSON(data []byte, today time.Time) (models.Intent, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Intent{}, errors.NewInvalidIntentError(fmt.Sprintf("payload is not a JSON object: %v", err))
	}
	return Decode(raw, today)
}

// ParseDate accepts yyyy-mm-dd, dd/mm/yyyy, dd-mm-yyyy, "today" and "yesterday".
func ParseDate(s string, today time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "today":
		return models.Day(today), nil
	case "yesterday":
		return models.Day(today).AddDate(0, 0, -1), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	return models.StringPtr(*p)
}
