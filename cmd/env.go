package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fukui-lab/subsidy-cli/internal/analysis"
	"github.com/fukui-lab/subsidy-cli/internal/fetcher"
	"github.com/fukui-lab/subsidy-cli/internal/profile"
	"github.com/fukui-lab/subsidy-cli/internal/store"
	"github.com/fukui-lab/subsidy-cli/pkg/anthropic"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "subsidies.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initHTTPFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}

// initExtractor picks the extraction strategy: assisted requires an
// Anthropic API key.
func initExtractor(assisted bool) (profile.Extractor, error) {
	if !assisted {
		return profile.NewHeuristicExtractor(profile.DefaultLexicon()), nil
	}

	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required for --assisted (SUBSIDY_ANTHROPIC_KEY)")
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return profile.NewAssistedExtractor(client, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens), nil
}

func initAnalyzer(ctx context.Context, assisted bool) (*analysis.Analyzer, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	ex, err := initExtractor(assisted)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}

	pages := fetcher.NewPageFetcher(initHTTPFetcher())
	return analysis.New(st, pages, ex), st, nil
}
