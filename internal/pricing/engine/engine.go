// Package engine resolves a loosely specified price question into price
// records or a short list of candidates for the user to choose from.
//
// Resolution runs five ordered tiers until one yields a usable answer:
// exact lookup, commodity alias expansion, spelling correction, geographic
// fallback and historical backfill. The engine never writes to the store.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mandi-prices/internal/common/config"
	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/common/metrics"
	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/aliases"
	"mandi-prices/internal/pricing/backfill"
	"mandi-prices/internal/pricing/nameindex"
	"mandi-prices/internal/pricing/remote"
	"mandi-prices/internal/pricing/store"
)

type Config struct {
	HighConfidence    float64
	SimilarityFloor   float64
	MaxCandidates     int
	CombinedPerSource int
	GeographicLimit   int
	MaxLookbackDays   int
	MaxAliasesPerName int
	RemoteTimeout     time.Duration
	// Location decides which calendar day "today" is.
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		HighConfidence:    0.92,
		SimilarityFloor:   0.6,
		MaxCandidates:     5,
		CombinedPerSource: 3,
		GeographicLimit:   5,
		MaxLookbackDays:   30,
		MaxAliasesPerName: 4,
		RemoteTimeout:     5 * time.Second,
		Location:          time.UTC,
	}
}

// ConfigFrom maps the loaded configuration onto engine settings.
func ConfigFrom(cfg *config.Config) (Config, error) {
	r := cfg.Resolution
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid resolution.time_zone %q: %w", r.TimeZone, err)
	}
	return Config{
		HighConfidence:    r.HighConfidence,
		SimilarityFloor:   r.SimilarityFloor,
		MaxCandidates:     r.MaxCandidates,
		CombinedPerSource: r.CombinedPerSource,
		GeographicLimit:   r.GeographicLimit,
		MaxLookbackDays:   r.MaxLookbackDays,
		MaxAliasesPerName: r.MaxAliasesPerName,
		RemoteTimeout:     config.GetDuration(cfg.RemoteSource.Timeout),
		Location:          loc,
	}, nil
}

type Engine struct {
	cfg      Config
	store    store.Store
	remote   remote.Fetcher
	index    *nameindex.Index
	aliases  *aliases.Table
	backfill *backfill.Resolver
	logger   logger.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Engine)

// WithRemote enables the remote source for questions about today.
func WithRemote(f remote.Fetcher) Option {
	return func(e *Engine) { e.remote = f }
}

func WithAliases(t *aliases.Table) Option {
	return func(e *Engine) { e.aliases = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(cfg Config, st store.Store, index *nameindex.Index, log logger.Logger, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	e := &Engine{
		cfg:      cfg,
		store:    st,
		index:    index,
		aliases:  aliases.Default(),
		backfill: backfill.New(st),
		logger:   log,
		tracer:   otel.Tracer("mandi-prices/engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type resolutionIDKey struct{}

// WithResolutionID tags ctx so the engine logs under the caller's id.
func WithResolutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resolutionIDKey{}, id)
}

func resolutionID(ctx context.Context) string {
	if id, ok := ctx.Value(resolutionIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Resolve runs the tier pipeline for one intent. The only errors returned are
// INVALID_INTENT (before any tier runs), STORE_UNAVAILABLE and context errors;
// every other outcome is one of the three result variants.
func (e *Engine) Resolve(ctx context.Context, intent models.Intent) (models.ResolutionResult, error) {
	start := time.Now()
	id := resolutionID(ctx)

	ctx, span := e.tracer.Start(ctx, "engine.Resolve", trace.WithAttributes(
		attribute.String("resolution.id", id),
	))
	defer span.End()

	intent = intent.Clean()
	if err := intent.Validate(); err != nil {
		metrics.PriceResolutions.WithLabelValues("invalid_intent", string(models.TierNone)).Inc()
		return nil, errors.NewInvalidIntentError(err.Error())
	}

	r := &run{
		e:     e,
		snap:  e.index.Current(),
		today: models.Day(e.now().In(e.cfg.Location)),
		log: e.logger.With(map[string]interface{}{
			"resolutionId": id,
		}),
	}

	result, err := r.resolve(ctx, intent, pass{tier: models.TierNone})
	if err != nil && ctx.Err() == nil {
		if _, ok := errors.AsStandardError(err); !ok {
			err = errors.NewStoreUnavailableError("resolve", err)
		}
	}
	duration := time.Since(start)
	metrics.PriceResolutionDuration.Observe(duration.Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.PriceResolutions.WithLabelValues("error", string(models.TierNone)).Inc()
		r.log.Error("Resolution failed", map[string]interface{}{
			"error":    err.Error(),
			"duration": duration.String(),
		})
		return nil, err
	}

	tier := outcomeTier(result)
	span.SetAttributes(
		attribute.String("resolution.kind", string(result.Kind())),
		attribute.String("resolution.tier", string(tier)),
	)
	metrics.PriceResolutions.WithLabelValues(string(result.Kind()), string(tier)).Inc()
	r.log.Info("Resolution finished", map[string]interface{}{
		"kind":     result.Kind(),
		"tier":     tier,
		"duration": duration.String(),
	})
	return result, nil
}

// outcomeTier labels a result with the tier that produced it.
func outcomeTier(res models.ResolutionResult) models.Tier {
	switch v := res.(type) {
	case *models.Resolved:
		return v.UsedFallbackTier
	case *models.NeedsDisambiguation:
		if v.Reason == models.ReasonNoDataForExactMatch {
			return models.TierGeographic
		}
		return models.TierSpellingCorrection
	default:
		return models.TierNone
	}
}
