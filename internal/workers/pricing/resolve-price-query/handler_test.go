// internal/workers/pricing/resolve-price-query/handler_test.go
package resolvepricequery

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mandi-prices/internal/common/errors"
	"mandi-prices/internal/models"
)

// ==========================
// Test Logger Implementation
// ==========================

type TestLogger struct {
	t      *testing.T
	fields map[string]interface{}
}

func NewTestLogger(t *testing.T) *TestLogger {
	return &TestLogger{t: t, fields: map[string]interface{}{}}
}

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v %v", msg, l.fields, fields)
}

func (l *TestLogger) With(fields map[string]interface{}) Logger {
	merged := map[string]interface{}{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{t: l.t, fields: merged}
}

// ==========================
// Fakes
// ==========================

type fakeResolver struct {
	result models.ResolutionResult
	err    error
	got    []models.Intent
}

func (f *fakeResolver) Resolve(ctx context.Context, in models.Intent) (models.ResolutionResult, error) {
	f.got = append(f.got, in)
	return f.result, f.err
}

type fakeExtractor struct {
	intent models.Intent
	err    error
	calls  int
}

func (f *fakeExtractor) ExtractIntent(ctx context.Context, text string) (models.Intent, error) {
	f.calls++
	return f.intent, f.err
}

func newTestHandler(t *testing.T, r *fakeResolver, x *fakeExtractor) *Handler {
	t.Helper()
	var h *Handler
	if x == nil {
		h = NewHandler(&Config{Timeout: 5 * time.Second}, r, nil, nil, NewTestLogger(t))
	} else {
		h = NewHandler(&Config{Timeout: 5 * time.Second}, r, x, nil, NewTestLogger(t))
	}
	h.now = func() time.Time { return time.Date(2025, 10, 22, 8, 0, 0, 0, time.UTC) }
	return h
}

func adoniCotton() models.PriceRecord {
	return models.PriceRecord{
		Commodity:  "Cotton",
		Variety:    "Other",
		Market:     "Adoni",
		District:   "Kurnool",
		State:      "Andhra Pradesh",
		Date:       time.Date(2025, 10, 18, 0, 0, 0, 0, time.UTC),
		MinPrice:   decimal.NewFromInt(6900),
		MaxPrice:   decimal.NewFromInt(7500),
		ModalPrice: decimal.NewFromInt(7250),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_StructuredIntent(t *testing.T) {
	r := &fakeResolver{result: &models.Resolved{
		Records:          []models.PriceRecord{adoniCotton()},
		UsedFallbackTier: models.TierHistorical,
	}}
	h := newTestHandler(t, r, nil)

	out, err := h.Execute(context.Background(), &Input{
		Intent: map[string]interface{}{
			"commodity": "Cotton",
			"market":    "Adoni",
			"date":      "today",
		},
		ResolutionID: "res-123",
	})
	require.NoError(t, err)

	require.Len(t, r.got, 1)
	assert.Equal(t, "Adoni", r.got[0].MarketName())
	require.NotNil(t, r.got[0].Date)
	assert.Equal(t, time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC), *r.got[0].Date)

	assert.Equal(t, "res-123", out.ResolutionID)
	assert.Equal(t, models.KindResolved, out.Kind)
	assert.Len(t, out.Records, 1)
	assert.False(t, out.MatchedExactly)
	assert.Equal(t, models.TierHistorical, out.UsedFallbackTier)
	assert.Empty(t, out.Candidates)
}

func TestHandler_Execute_GeneratesResolutionID(t *testing.T) {
	h := newTestHandler(t, &fakeResolver{result: &models.NotFound{Reason: "no Cotton data for Zzyzx"}}, nil)

	out, err := h.Execute(context.Background(), &Input{Intent: map[string]interface{}{"market": "Zzyzx"}})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(out.ResolutionID)
	assert.NoError(t, parseErr)
	assert.Equal(t, models.KindNotFound, out.Kind)
	assert.Equal(t, "no Cotton data for Zzyzx", out.Reason)
}

func TestHandler_Execute_Disambiguation(t *testing.T) {
	entry := models.NewNameEntry(models.NameKindMarket, "Ravulapelem", "East Godavari", "Andhra Pradesh", nil, time.Time{})
	r := &fakeResolver{result: &models.NeedsDisambiguation{
		Candidates: []models.Candidate{{Entry: entry, Similarity: 0.909, DistanceRank: 1, Source: models.SourceSpelling}},
		Reason:     models.ReasonNoExactMatch,
	}}
	h := newTestHandler(t, r, nil)

	out, err := h.Execute(context.Background(), &Input{Intent: map[string]interface{}{"market": "Ravulapalem"}})
	require.NoError(t, err)
	assert.Equal(t, models.KindNeedsDisambiguation, out.Kind)
	assert.Equal(t, string(models.ReasonNoExactMatch), out.Reason)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, "Ravulapelem", out.Candidates[0].Entry.CanonicalName)
}

func TestHandler_Execute_QuestionUsesExtractor(t *testing.T) {
	x := &fakeExtractor{intent: models.Intent{Commodity: models.StringPtr("Onion"), District: models.StringPtr("Kurnool")}}
	r := &fakeResolver{result: &models.NotFound{Reason: "none"}}
	h := newTestHandler(t, r, x)

	_, err := h.Execute(context.Background(), &Input{Question: "onion rate in kurnool"})
	require.NoError(t, err)
	assert.Equal(t, 1, x.calls)
	require.Len(t, r.got, 1)
	assert.Equal(t, "Kurnool", r.got[0].DistrictName())
}

func TestHandler_Execute_IntentWinsOverQuestion(t *testing.T) {
	x := &fakeExtractor{}
	h := newTestHandler(t, &fakeResolver{result: &models.NotFound{}}, x)

	_, err := h.Execute(context.Background(), &Input{
		Question: "ignored",
		Intent:   map[string]interface{}{"commodity": "Maize"},
	})
	require.NoError(t, err)
	assert.Zero(t, x.calls)
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	storeDown := apperrors.NewStoreUnavailableError("records_on", stderrors.New("connection refused"))

	tests := []struct {
		name      string
		input     *Input
		resolver  *fakeResolver
		extractor *fakeExtractor
		wantCode  apperrors.ErrorCode
	}{
		{
			name:     "nil input",
			input:    nil,
			resolver: &fakeResolver{},
			wantCode: apperrors.ErrCodeInvalidIntent,
		},
		{
			name:     "empty job",
			input:    &Input{},
			resolver: &fakeResolver{},
			wantCode: apperrors.ErrCodeInvalidIntent,
		},
		{
			name:     "question without extractor",
			input:    &Input{Question: "cotton price"},
			resolver: &fakeResolver{},
			wantCode: apperrors.ErrCodeInvalidIntent,
		},
		{
			name:     "intent fails schema",
			input:    &Input{Intent: map[string]interface{}{"commodity": 7}},
			resolver: &fakeResolver{},
			wantCode: apperrors.ErrCodeInvalidIntent,
		},
		{
			name:      "extractor timeout",
			input:     &Input{Question: "cotton price"},
			resolver:  &fakeResolver{},
			extractor: &fakeExtractor{err: apperrors.NewIntentAPITimeoutError()},
			wantCode:  apperrors.ErrCodeIntentAPITimeout,
		},
		{
			name:     "store unavailable",
			input:    &Input{Intent: map[string]interface{}{"market": "Adoni"}},
			resolver: &fakeResolver{err: storeDown},
			wantCode: apperrors.ErrCodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.resolver, tt.extractor)
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), err.Error())
		})
	}
}

func TestHandler_Execute_SchemaFailureNeverReachesResolver(t *testing.T) {
	r := &fakeResolver{}
	h := newTestHandler(t, r, nil)

	_, err := h.Execute(context.Background(), &Input{Intent: map[string]interface{}{"date": "next monday", "market": "Adoni"}})
	require.Error(t, err)
	assert.Empty(t, r.got)
}
