package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr bool
	}{
		{name: "empty", intent: Intent{}, wantErr: true},
		{name: "blank strings only", intent: Intent{Market: strp("  "), Commodity: strp("")}, wantErr: true},
		{name: "market only", intent: Intent{Market: strp("Adoni")}},
		{name: "date only", intent: Intent{Date: DatePtr(time.Now())}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyIntent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIntent_WithLocation(t *testing.T) {
	withMarket := Intent{Market: strp("Ravulapalem"), State: strp("Andhra Pradesh")}
	corrected := withMarket.WithLocation("Ravulapelem")
	assert.Equal(t, "Ravulapelem", corrected.MarketName())
	assert.Equal(t, "Ravulapalem", withMarket.MarketName(), "original must not change")

	districtOnly := Intent{District: strp("Kurnol")}
	assert.Equal(t, "Kurnool", districtOnly.WithLocation("Kurnool").DistrictName())
}

func TestIntent_Tried(t *testing.T) {
	i := Intent{Commodity: strp("corn")}.WithAliasTried("Maize")
	assert.True(t, i.Tried("maize "))
	assert.False(t, i.Tried("makka"))
}

func TestNewNameEntry_DropsCanonicalAlias(t *testing.T) {
	e := NewNameEntry(NameKindCommodity, "Maize", "", "", []string{"maize", " MAIZE", "Corn", "corn", ""}, time.Time{})
	assert.Equal(t, []string{"Corn"}, e.Aliases)
	assert.False(t, e.HasData())

	merged := e.WithAliases([]string{"Makka", "Maize"})
	assert.Equal(t, []string{"Corn", "Makka"}, merged.Aliases)
}

func TestNewNameEntry_ComparesNormalizedForms(t *testing.T) {
	e := NewNameEntry(NameKindCommodity, "Paddy(Dhan)(Common)", "", "",
		[]string{"Paddy (Dhan) (Common)", "paddy dhan common.", "()", "Paddy", "PADDY"}, time.Time{})
	assert.Equal(t, []string{"Paddy"}, e.Aliases)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Bengal Gram(Gram)(Whole)", "bengal gram gram whole"},
		{"  Andhra  Pradesh ", "andhra pradesh"},
		{"Andhra-Pradesh", "andhra pradesh"},
		{"Adoni.", "adoni"},
		{"Kodad's", "kodads"},
		{"Café", "cafe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

func TestFilter_Key(t *testing.T) {
	f := FilterFromIntent(Intent{Commodity: strp("Cotton"), Market: strp("Adoni")})
	assert.Equal(t, "c=cotton|m=adoni|d=|s=", f.Key())
	assert.Equal(t, Filter{Market: "Adoni"}, f.Location())
}

func strp(s string) *string { return &s }
