package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mandi-prices/internal/common/errors"
)

var today = time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2025-10-18", want: time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)},
		{in: "18/10/2025", want: time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)},
		{in: "18-10-2025", want: time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC)},
		{in: " Today ", want: today},
		{in: "yesterday", want: today.AddDate(0, 0, -1)},
		{in: "31/02/2025", wantErr: true},
		{in: "last week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, today)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Success(t *testing.T) {
	in, err := Decode(map[string]interface{}{
		"commodity":    " Cotton ",
		"market":       "Adoni",
		"district":     nil,
		"state":        "",
		"date":         "22/10/2025",
		"aliasesTried": []interface{}{"Kapas"},
		"confidence":   0.87,
	}, today)
	require.NoError(t, err)

	assert.Equal(t, "Cotton", in.CommodityName())
	assert.Equal(t, "Adoni", in.MarketName())
	assert.Nil(t, in.District)
	assert.Nil(t, in.State, "blank strings are treated as absent")
	require.NotNil(t, in.Date)
	assert.Equal(t, today, *in.Date)
	assert.False(t, in.DateIsRange)
	assert.True(t, in.Tried("kapas"))
}

func TestDecode_Range(t *testing.T) {
	in, err := DecodeJSON([]byte(`{"commodity":"Onion","date":"2025-10-19","dateIsRange":true}`), today)
	require.NoError(t, err)
	assert.True(t, in.DateIsRange)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not an object", payload: `["Cotton"]`},
		{name: "number commodity", payload: `{"commodity": 42}`},
		{name: "bad date format", payload: `{"market": "Adoni", "date": "Oct 22"}`},
		{name: "impossible date", payload: `{"market": "Adoni", "date": "2025-13-40"}`},
		{name: "aliases not strings", payload: `{"commodity": "corn", "aliasesTried": [1, 2]}`},
		{name: "no usable field", payload: `{"market": "   ", "confidence": 0.2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJSON([]byte(tt.payload), today)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidIntent), err.Error())
		})
	}
}
