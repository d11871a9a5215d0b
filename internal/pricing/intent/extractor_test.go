package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mandi-prices/internal/common/errors"
	"mandi-prices/internal/common/logger"
)

func newTestExtractor(t *testing.T, url string, timeout time.Duration) *HTTPExtractor {
	t.Helper()
	x := NewHTTPExtractor(HTTPConfig{
		BaseURL:    url,
		APIKey:     "secret",
		Timeout:    timeout,
		MaxRetries: 2,
	}, logger.NewTestLogger(t))
	x.now = func() time.Time { return time.Date(2025, 10, 22, 9, 0, 0, 0, time.UTC) }
	return x
}

func entitiesResponse(entities ...Entity) map[string]interface{} {
	return map[string]interface{}{
		"intent":     "price_query",
		"confidence": 0.93,
		"entities":   entities,
	}
}

func TestHTTPExtractor_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/parse-intent", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cotton price in adoni today", body["query"])

		_ = json.NewEncoder(w).Encode(entitiesResponse(
			Entity{Type: "commodity", Value: "cotton"},
			Entity{Type: "market", Value: "Adoni"},
			Entity{Type: "date", Value: "today"},
			Entity{Type: "sentiment", Value: "neutral"},
		))
	}))
	defer server.Close()

	in, err := newTestExtractor(t, server.URL, time.Second).ExtractIntent(context.Background(), "cotton price in adoni today")
	require.NoError(t, err)
	assert.Equal(t, "cotton", in.CommodityName())
	assert.Equal(t, "Adoni", in.MarketName())
	require.NotNil(t, in.Date)
	assert.Equal(t, time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC), *in.Date)
}

func TestHTTPExtractor_DateRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(entitiesResponse(
			Entity{Type: "commodity", Value: "Onion"},
			Entity{Type: "date_range", Value: "2025-10-19"},
		))
	}))
	defer server.Close()

	in, err := newTestExtractor(t, server.URL, time.Second).ExtractIntent(context.Background(), "onion prices last week")
	require.NoError(t, err)
	assert.True(t, in.DateIsRange)
}

func TestHTTPExtractor_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(entitiesResponse(Entity{Type: "market", Value: "Kurnool"}))
	}))
	defer server.Close()

	in, err := newTestExtractor(t, server.URL, 5*time.Second).ExtractIntent(context.Background(), "kurnool prices")
	require.NoError(t, err)
	assert.Equal(t, "Kurnool", in.MarketName())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPExtractor_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := newTestExtractor(t, server.URL, time.Second).ExtractIntent(context.Background(), "???")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIntentParsingFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPExtractor_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	_, err := newTestExtractor(t, server.URL, 50*time.Millisecond).ExtractIntent(context.Background(), "cotton")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIntentAPITimeout))
}

func TestHTTPExtractor_NothingRecognized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(entitiesResponse())
	}))
	defer server.Close()

	_, err := newTestExtractor(t, server.URL, time.Second).ExtractIntent(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidIntent))
}
