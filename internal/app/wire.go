package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hercules-motores/service-analytics/internal/audit"
	"github.com/hercules-motores/service-analytics/internal/cache"
	"github.com/hercules-motores/service-analytics/internal/config"
	"github.com/hercules-motores/service-analytics/internal/db"
	"github.com/hercules-motores/service-analytics/internal/decode"
	"github.com/hercules-motores/service-analytics/internal/importer"
	"github.com/hercules-motores/service-analytics/internal/orders"
	"github.com/hercules-motores/service-analytics/internal/store"
)

// Deps are the shared pieces every binary builds from the configuration.
type Deps struct {
	Store    store.Store
	Audit    audit.Recorder
	Schema   *orders.Schema
	Importer *importer.Orchestrator
	close    func()
}

func (d *Deps) Close() {
	if d.close != nil {
		d.close()
	}
}

// Build opens the configured store and cache and wires the orchestrator.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Deps, error) {
	deps := &Deps{}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		deps.Store = store.NewPostgres(pool)
		deps.Audit = audit.NewLogger(pool)
		deps.close = pool.Close
	default:
		deps.Store = store.NewMemory()
		deps.Audit = audit.NewSlogRecorder(logger)
	}

	schema := orders.DefaultSchema()
	if cfg.HeaderAliasesFile != "" {
		aliases, err := orders.LoadAliases(cfg.HeaderAliasesFile)
		if err != nil {
			deps.Close()
			return nil, err
		}
		if schema, err = schema.WithAliases(aliases); err != nil {
			deps.Close()
			return nil, err
		}
	}
	deps.Schema = schema

	var c cache.Cache = cache.NewMemory()
	if cfg.CacheDir != "" {
		fileCache, err := cache.NewFile(cfg.CacheDir)
		if err != nil {
			deps.Close()
			return nil, err
		}
		c = fileCache
	}

	deps.Importer = importer.New(importer.Options{
		Store:     deps.Store,
		Cache:     c,
		Decoder:   decode.Decoder{MaxRows: cfg.ImportMaxRows},
		Validator: orders.NewValidator(schema),
		Scope:     cfg.ImportScope,
		Logger:    logger,
	})
	return deps, nil
}
