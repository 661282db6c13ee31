package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/pario-ai/frugal/pkg/bucket"
	"github.com/pario-ai/frugal/pkg/budget"
	"github.com/pario-ai/frugal/pkg/cache"
	"github.com/pario-ai/frugal/pkg/cache/file"
	"github.com/pario-ai/frugal/pkg/cache/sqlite"
	"github.com/pario-ai/frugal/pkg/config"
	"github.com/pario-ai/frugal/pkg/llm"
	"github.com/pario-ai/frugal/pkg/pricing"
	"github.com/pario-ai/frugal/pkg/router"
	"github.com/pario-ai/frugal/pkg/tracker"
)

// OpenStore opens the cache backend named in cfg.
func OpenStore(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "file":
		return file.New(cfg.Dir)
	case "sqlite":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		return sqlite.New(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Build wires an Engine from configuration. When client is nil a client
// is created for every configured provider.
func Build(cfg *config.Config, logger *slog.Logger, client llm.Client) (_ *Engine, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func() error
	defer func() {
		if err != nil {
			for _, c := range slices.Backward(closers) {
				_ = c()
			}
		}
	}()

	rt, err := router.FromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	estimator := pricing.NewEstimator(pricing.FromConfig(cfg.Pricing), rt.DefaultModel())

	trackOpts := []tracker.Option{tracker.WithLogger(logger)}
	if cfg.Ledger.Enabled {
		if err := ensureDir(cfg.Ledger.DBPath); err != nil {
			return nil, err
		}
		ledger, err := tracker.OpenLedger(cfg.Ledger.DBPath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, ledger.Close)
		trackOpts = append(trackOpts, tracker.WithLedger(ledger))
	}

	var c *cache.Cache
	if cfg.Cache.Enabled {
		store, err := OpenStore(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		closers = append(closers, store.Close)
		c = cache.New(store,
			cache.WithMaxResponses(cfg.Cache.MaxResponsesPerSignature),
			cache.WithLogger(logger),
		)
	}

	clients := make(map[string]llm.Client)
	if client == nil {
		for _, p := range cfg.Providers {
			cl, err := llm.New(p)
			if err != nil {
				return nil, err
			}
			clients[p.Name] = cl
		}
		if len(clients) == 0 {
			return nil, errors.New("no model provider configured: set ANTHROPIC_API_KEY or OPENAI_API_KEY, or add providers to the config")
		}
	}

	e, err := New(Deps{
		Bucketer:  bucket.New(cfg.Buckets),
		Cache:     c,
		Router:    rt,
		Estimator: estimator,
		Tracker:   tracker.New(estimator.Table(), trackOpts...),
		Budget:    budget.New(cfg.Budget, logger),
		Client:    client,
		Clients:   clients,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	e.closers = closers
	return e, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
