package remote

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "mandi-prices/internal/common/errors"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/models"
)

type stubFetcher struct {
	records []models.PriceRecord
	err     error
	calls   int
}

func (s *stubFetcher) FetchRecords(ctx context.Context, f models.Filter, day time.Time) ([]models.PriceRecord, error) {
	s.calls++
	return s.records, s.err
}

var (
	cacheDay    = time.Date(2025, 10, 22, 0, 0, 0, 0, time.UTC)
	cacheFilter = models.Filter{Commodities: []string{"Cotton"}, Market: "Adoni"}
	cottonRows  = []models.PriceRecord{{
		Commodity:  "Cotton",
		Variety:    "Other",
		Market:     "Adoni",
		District:   "Kurnool",
		State:      "Andhra Pradesh",
		Date:       cacheDay,
		MinPrice:   decimal.NewFromInt(6800),
		MaxPrice:   decimal.NewFromInt(7521),
		ModalPrice: decimal.NewFromInt(7250),
	}}
)

func TestCachedFetcher_MissThenWrite(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	next := &stubFetcher{records: cottonRows}
	c := NewCachedFetcher(next, rdb, 10*time.Minute, "mandi:remote:", logger.NewTestLogger(t))

	key := "mandi:remote:2025-10-22:" + cacheFilter.Key()
	data, err := json.Marshal(cottonRows)
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, data, 10*time.Minute).SetVal("OK")

	got, err := c.FetchRecords(context.Background(), cacheFilter, cacheDay)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedFetcher_Hit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	next := &stubFetcher{records: cottonRows}
	c := NewCachedFetcher(next, rdb, time.Minute, "p:", logger.NewTestLogger(t))

	first, err := c.FetchRecords(context.Background(), cacheFilter, cacheDay)
	require.NoError(t, err)
	second, err := c.FetchRecords(context.Background(), cacheFilter, cacheDay)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	require.Len(t, second, 1)
	assert.True(t, first[0].ModalPrice.Equal(second[0].ModalPrice))
	assert.True(t, first[0].Date.Equal(second[0].Date))

	mr.FastForward(2 * time.Minute)
	_, err = c.FetchRecords(context.Background(), cacheFilter, cacheDay)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcher_EmptyAnswersAreNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	next := &stubFetcher{}
	c := NewCachedFetcher(next, rdb, time.Minute, "p:", logger.NewTestLogger(t))

	for i := 0; i < 2; i++ {
		got, err := c.FetchRecords(context.Background(), cacheFilter, cacheDay)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 2, next.calls)
	assert.Empty(t, mr.Keys())
}

func TestCachedFetcher_RedisDownIsBypassed(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	next := &stubFetcher{records: cottonRows}
	c := NewCachedFetcher(next, rdb, time.Minute, "p:", logger.NewTestLogger(t))

	key := "p:2025-10-22:" + cacheFilter.Key()
	data, _ := json.Marshal(cottonRows)
	mock.ExpectGet(key).SetErr(stderrors.New("connection refused"))
	mock.ExpectSet(key, data, time.Minute).SetErr(stderrors.New("connection refused"))

	got, err := c.FetchRecords(context.Background(), cacheFilter, cacheDay)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCachedFetcher_RedisFailuresLoggedAsCacheUnavailable(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	core, logs := observer.New(zapcore.WarnLevel)
	next := &stubFetcher{records: cottonRows}
	c := NewCachedFetcher(next, rdb, time.Minute, "p:", logger.NewZapAdapter(zap.New(core)))

	key := "p:2025-10-22:" + cacheFilter.Key()
	data, _ := json.Marshal(cottonRows)
	mock.ExpectGet(key).SetErr(stderrors.New("connection refused"))
	mock.ExpectSet(key, data, time.Minute).SetErr(stderrors.New("connection refused"))

	_, err := c.FetchRecords(context.Background(), cacheFilter, cacheDay)
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, string(apperrors.ErrCodeCacheUnavailable), e.ContextMap()["code"])
		assert.Equal(t, key, e.ContextMap()["key"])
	}
	assert.Equal(t, "Remote cache read failed", entries[0].Message)
	assert.Equal(t, "Remote cache write failed", entries[1].Message)
}

func TestCachedFetcher_PropagatesRemoteError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	next := &stubFetcher{err: stderrors.New("boom")}
	_, err := NewCachedFetcher(next, rdb, time.Minute, "p:", logger.NewTestLogger(t)).
		FetchRecords(context.Background(), cacheFilter, cacheDay)
	assert.Error(t, err)
}
