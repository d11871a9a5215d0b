// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mandi-prices/internal/common/camunda"
	"mandi-prices/internal/common/config"
	"mandi-prices/internal/common/database"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/common/observability"
	"mandi-prices/internal/pricing/aliases"
	"mandi-prices/internal/pricing/engine"
	"mandi-prices/internal/pricing/intent"
	"mandi-prices/internal/pricing/nameindex"
	"mandi-prices/internal/pricing/remote"
	"mandi-prices/internal/pricing/store"

	rpq "mandi-prices/internal/workers/pricing/resolve-price-query"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- PostgreSQL (record store) ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		return nil
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	records := store.NewPostgres(pg.DB)

	// --- Elasticsearch (market directory, optional) ---
	var directory nameindex.DirectorySource
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("market directory disabled", zap.Error(err))
		} else {
			directory = nameindex.NewElasticDirectory(esClient.Client, cfg.Database.Elasticsearch.DirectoryIndex, cfg.Database.Elasticsearch.MaxEntries)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Name index ---
	table, err := aliases.Load(cfg.Resolution.AliasTablePath)
	if err != nil {
		zapLog.Fatal("alias table load failed", zap.Error(err))
	}

	index := nameindex.New(records, directory, table, log)
	if err := index.Reload(ctx); err != nil {
		zapLog.Warn("initial name index load failed, names pass through unverified until the next reload", zap.Error(err))
	}
	go index.Run(ctx, config.GetDuration(cfg.Resolution.IndexRefreshInterval))

	// --- Engine ---
	engineCfg, err := engine.ConfigFrom(cfg)
	if err != nil {
		zapLog.Fatal("invalid resolution config", zap.Error(err))
	}
	opts := []engine.Option{engine.WithAliases(table)}

	if cfg.RemoteSource.Enabled() {
		var fetcher remote.Fetcher = remote.NewClient(remote.Config{
			BaseURL:       cfg.RemoteSource.BaseURL,
			ResourceID:    cfg.RemoteSource.ResourceID,
			APIKey:        cfg.RemoteSource.APIKey,
			Timeout:       config.GetDuration(cfg.RemoteSource.Timeout),
			RatePerSecond: cfg.RemoteSource.RatePerSecond,
			Burst:         cfg.RemoteSource.Burst,
			PageLimit:     cfg.RemoteSource.PageLimit,
		}, log)

		if cfg.RemoteSource.CacheTTL > 0 {
			rdb, err := database.NewRedis(cfg.Database.Redis)
			if err == nil {
				err = rdb.Ping(ctx)
			}
			if err != nil {
				zapLog.Warn("remote response cache disabled", zap.Error(err))
			} else {
				defer rdb.Close()
				fetcher = remote.NewCachedFetcher(fetcher, rdb.Client,
					config.GetDuration(cfg.RemoteSource.CacheTTL), cfg.RemoteSource.CacheKeyPrefix, log)
				zapLog.Info("Redis connected successfully")
			}
		}
		opts = append(opts, engine.WithRemote(fetcher))
	} else {
		zapLog.Info("remote price source not configured, answering from the store only")
	}

	resolver := engine.New(engineCfg, records, index, log, opts...)

	var extractor intent.Extractor
	if cfg.APIs.GenAI.BaseURL != "" {
		extractor = intent.NewHTTPExtractor(intent.HTTPConfig{
			BaseURL:    cfg.APIs.GenAI.BaseURL,
			APIKey:     cfg.APIs.GenAI.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
			MaxRetries: cfg.APIs.GenAI.MaxRetries,
			Location:   engineCfg.Location,
		}, log)
	}

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	handler := rpq.NewHandler(rpq.LoadConfig(cfg), resolver, extractor, obs, &workerLoggerAdapter{log})
	priceWorker := camunda.StartWorker(zeebe, rpq.TaskType, config.GetWorkerConfig(cfg, rpq.TaskType), handler.Handle, log)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pg.Ping(rctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err)
			return
		}
		if err := zeebe.HealthCheck(rctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := cfg.Metrics.Address
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if priceWorker != nil {
		priceWorker.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, err error) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if err != nil {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// workerLoggerAdapter satisfies the worker's own Logger interface.
type workerLoggerAdapter struct {
	logger.Logger
}

func (a *workerLoggerAdapter) With(fields map[string]interface{}) rpq.Logger {
	return &workerLoggerAdapter{a.Logger.With(fields)}
}
