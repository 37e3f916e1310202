package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/price-research/internal/advisory"
	"github.com/sells-group/price-research/internal/resilience"
	"github.com/sells-group/price-research/internal/store"
	"github.com/sells-group/price-research/pkg/anthropic"
)

// initStore opens the configured store and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newAdvisor returns the LLM advisor, or nil when it is disabled or has no key.
func newAdvisor() *advisory.Advisor {
	if !cfg.Advisory.Enabled || cfg.Anthropic.Key == "" {
		return nil
	}
	retry := resilience.DefaultRetryPolicy()
	if cfg.Anthropic.MaxRetries >= 0 {
		retry.Attempts = cfg.Anthropic.MaxRetries + 1
	}
	return advisory.New(anthropic.NewClient(cfg.Anthropic.Key, cfg.Anthropic.BaseURL), advisory.Config{
		Model:             cfg.Anthropic.Model,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		Timeout:           cfg.Anthropic.Timeout(),
		RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
		Retry:             retry,
		BreakerThreshold:  5,
		BreakerCooldown:   time.Minute,
	})
}
