// Package app assembles the ticket source, vocabulary, result cache and
// analyzer from configuration. The worker and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/ticketsim/internal/analysis"
	"github.com/thebtf/ticketsim/internal/cache"
	"github.com/thebtf/ticketsim/internal/config"
	"github.com/thebtf/ticketsim/internal/selector"
	"github.com/thebtf/ticketsim/internal/source"
	"github.com/thebtf/ticketsim/internal/source/jira"
	"github.com/thebtf/ticketsim/internal/source/memory"
	"github.com/thebtf/ticketsim/internal/vocab"
	"github.com/thebtf/ticketsim/pkg/models"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Source   source.TicketSource
	Vocab    *vocab.Store
	Cache    cache.Cache
	Analyzer *analysis.Analyzer
}

// Build validates cfg and wires every component.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	src, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	store, err := vocab.NewStore(cfg.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}

	c, err := NewCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	acfg, err := AnalyzerConfig(cfg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Source:   src,
		Vocab:    store,
		Cache:    c,
		Analyzer: analysis.New(src, store, c, acfg),
	}, nil
}

// Close releases the cache.
func (a *App) Close() error {
	if a.Cache == nil {
		return nil
	}
	return a.Cache.Close()
}

// NewSource returns the fixture source when a tickets file is configured,
// the Jira adapter otherwise.
func NewSource(cfg *config.Config) (source.TicketSource, error) {
	if cfg.TicketsFile != "" {
		src, err := memory.LoadFile(cfg.TicketsFile)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.TicketsFile).Msg("Using ticket fixture file")
		return src, nil
	}
	if cfg.JiraURL == "" {
		return nil, errors.New("no ticket source configured")
	}
	timeout := time.Duration(cfg.JiraTimeoutSec) * time.Second
	client := jira.NewClient(cfg.JiraURL, cfg.JiraUsername, cfg.JiraAPIToken, timeout)
	log.Info().Str("url", cfg.JiraURL).Msg("Using Jira ticket source")
	return jira.NewAdapter(client), nil
}

// NewCache returns the configured result cache. An unreachable Redis falls
// back to the in-memory cache.
func NewCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	ttl := time.Duration(cfg.CacheTTLSec) * time.Second
	switch cfg.CacheBackend {
	case config.CacheNone:
		return cache.Nop{}, nil
	case config.CacheRedis:
		r := cache.NewRedis(cfg.RedisAddr, cfg.CacheKeyspace, ttl)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, using in-memory cache")
			_ = r.Close()
			return cache.NewMemory(ttl, cfg.CacheMaxSize), nil
		}
		return r, nil
	case config.CacheMemory, "":
		return cache.NewMemory(ttl, cfg.CacheMaxSize), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
}

// AnalyzerConfig maps configuration onto the analyzer.
func AnalyzerConfig(cfg *config.Config) (analysis.Config, error) {
	scoring := models.DefaultScoringConfig()
	scoring.MetadataWeight = cfg.MetadataWeight
	if err := scoring.Validate(); err != nil {
		return analysis.Config{}, fmt.Errorf("invalid scoring config: %w", err)
	}

	return analysis.Config{
		Scoring: scoring,
		Selector: selector.Config{
			Projects:        cfg.Projects,
			IssueTypes:      cfg.IssueTypes,
			MaxQueries:      cfg.MaxQueries,
			ResultsPerQuery: cfg.ResultsPerQuery,
		},
		DefaultThreshold: cfg.Threshold,
		MaxResults:       cfg.MaxResults,
		BatchSize:        cfg.BatchSize,
		BatchDelay:       time.Duration(cfg.BatchDelayMs) * time.Millisecond,
		GroupThreshold:   cfg.GroupThreshold,
		GroupMaxTickets:  cfg.GroupMaxTickets,
		SkipComments:     cfg.SkipComments,
	}, nil
}
