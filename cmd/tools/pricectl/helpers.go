package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mandi-prices/internal/common/config"
	"mandi-prices/internal/common/database"
	"mandi-prices/internal/common/logger"
	"mandi-prices/internal/pricing/aliases"
	"mandi-prices/internal/pricing/engine"
	"mandi-prices/internal/pricing/nameindex"
	"mandi-prices/internal/pricing/remote"
	"mandi-prices/internal/pricing/store"
)

// session holds everything a command needs. close releases connections.
type session struct {
	cfg       *config.Config
	log       logger.Logger
	index     *nameindex.Index
	engine    *engine.Engine
	engineCfg engine.Config
	close     func()
}

func openSession(ctx context.Context, withRemote bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewStructured(rootFlags.logLevel, "console", "stderr")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	records := store.NewPostgres(pg.DB)

	table, err := aliases.Load(cfg.Resolution.AliasTablePath)
	if err != nil {
		pg.Close()
		return nil, err
	}

	var directory nameindex.DirectorySource
	if cfg.Database.Elasticsearch.Enabled() {
		if es, err := database.NewElasticsearch(cfg.Database.Elasticsearch); err == nil {
			directory = nameindex.NewElasticDirectory(es.Client, cfg.Database.Elasticsearch.DirectoryIndex, cfg.Database.Elasticsearch.MaxEntries)
		}
	}

	index := nameindex.New(records, directory, table, log)
	if err := index.Reload(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("load name index: %w", err)
	}

	engineCfg, err := engine.ConfigFrom(cfg)
	if err != nil {
		pg.Close()
		return nil, err
	}
	opts := []engine.Option{engine.WithAliases(table)}
	if withRemote && cfg.RemoteSource.Enabled() {
		opts = append(opts, engine.WithRemote(remote.NewClient(remote.Config{
			BaseURL:       cfg.RemoteSource.BaseURL,
			ResourceID:    cfg.RemoteSource.ResourceID,
			APIKey:        cfg.RemoteSource.APIKey,
			Timeout:       config.GetDuration(cfg.RemoteSource.Timeout),
			RatePerSecond: cfg.RemoteSource.RatePerSecond,
			Burst:         cfg.RemoteSource.Burst,
			PageLimit:     cfg.RemoteSource.PageLimit,
		}, log)))
	}

	return &session{
		cfg:       cfg,
		log:       log,
		index:     index,
		engine:    engine.New(engineCfg, records, index, log, opts...),
		engineCfg: engineCfg,
		close:     func() { pg.Close() },
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
