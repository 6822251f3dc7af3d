package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/benchscope/internal/cache"
	"github.com/jonathan/benchscope/internal/collectors"
	"github.com/jonathan/benchscope/internal/config"
	"github.com/jonathan/benchscope/internal/db"
	"github.com/jonathan/benchscope/internal/enrich"
	"github.com/jonathan/benchscope/internal/llm"
	"github.com/jonathan/benchscope/internal/notify"
	"github.com/jonathan/benchscope/internal/observability"
	"github.com/jonathan/benchscope/internal/pipeline"
	"github.com/jonathan/benchscope/internal/prefilter"
	"github.com/jonathan/benchscope/internal/scoring"
	"github.com/jonathan/benchscope/internal/storage"
	"github.com/jonathan/benchscope/internal/types"
)

// loadConfig builds the effective configuration: defaults, then the config
// file when given, then environment overrides. The result is validated.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// redisPingTimeout bounds the startup reachability check of the score cache
const redisPingTimeout = 3 * time.Second

// app holds the components shared by the subcommands
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	database *db.DB
	closers  []func() error
}

// newApp loads configuration and connects to Postgres when a database URL is
// configured. A failed connection is logged and the app continues without it.
func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: observability.NewLogger(cfg.Log, stderr)}

	if cfg.Storage.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			a.logger.Warn().Err(err).Msg("failed to connect to database, continuing without it")
		} else if err := database.Migrate(ctx); err != nil {
			database.Close()
			a.logger.Warn().Err(err).Msg("failed to migrate database, continuing without it")
		} else {
			a.database = database
			a.closers = append(a.closers, func() error { database.Close(); return nil })
		}
	}
	return a, nil
}

// Close releases everything the app opened, newest first
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close resource")
		}
	}
	a.closers = nil
}

// engine builds the scoring engine with its cache backend and, when a
// credential is configured, a model client.
func (a *app) engine(ctx context.Context) (*scoring.Engine, error) {
	var postgres cache.Backend
	if a.database != nil {
		postgres = a.database
	}
	backend, closeCache, err := cache.Open(a.cfg.Cache, postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to open score cache: %w", err)
	}
	a.closers = append(a.closers, closeCache)
	if redisBackend, ok := backend.(*cache.RedisBackend); ok {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		if err := redisBackend.Ping(pingCtx); err != nil {
			a.logger.Warn().Err(err).Msg("score cache unreachable, every lookup will miss")
		}
		cancel()
	}
	scoreCache := cache.NewScoreCache(backend, a.cfg.Cache, a.logger)

	llmCfg := llm.FromAppConfig(a.cfg.LLM)
	var client llm.Client
	if a.cfg.HasLLMCredential() {
		c, err := llm.NewClient(ctx, llmCfg, a.cfg.LLM.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		client = c
		a.closers = append(a.closers, c.Close)
	} else {
		a.logger.Warn().Msg("no LLM credential configured, candidates will be scored by rules")
	}

	return scoring.NewEngine(a.cfg.Scoring, client, scoreCache, a.logger).
		WithRetryPolicy(llm.PolicyFromConfig(llmCfg)), nil
}

// notifier returns nil when notifications are disabled
func (a *app) notifier() *notify.Notifier {
	if !a.cfg.Notify.Enabled {
		return nil
	}
	transport := notify.NewWebhookTransport(a.cfg.Notify.WebhookURL, a.cfg.Notify.WebhookSecret, a.cfg.Notify.Timeout())
	return notify.New(a.cfg.Notify, transport, a.logger).WithRanking(a.cfg.Scoring.Ranking)
}

// storage opens the SQLite fallback and pairs it with Postgres when connected
func (a *app) storage() (*storage.Manager, error) {
	fallback, err := storage.OpenSQLite(a.cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}

	var primary storage.Store
	if a.database != nil {
		primary = a.database
	}
	manager := storage.NewManager(a.cfg.Storage, primary, fallback, a.cfg.Scoring.Ranking, a.logger)
	a.closers = append(a.closers, manager.Close)
	return manager, nil
}

// pipeline assembles the full pipeline. withSinks wires storage, notifications
// and run records; dry runs leave them out.
func (a *app) pipeline(ctx context.Context, withEnrich, withSinks bool) (*pipeline.Pipeline, error) {
	engine, err := a.engine(ctx)
	if err != nil {
		return nil, err
	}
	deps := pipeline.Deps{
		Collectors: collectors.Defaults(a.cfg.Sources, a.logger),
		Filter:     prefilter.New(a.cfg.Prefilter, a.logger),
		Scorer:     engine,
		Ranking:    a.cfg.Scoring.Ranking,
	}
	if withEnrich || a.cfg.Sources.EnrichArxiv {
		deps.Enricher = enrich.New(a.cfg.Sources.Timeout(), a.logger)
	}
	if withSinks {
		manager, err := a.storage()
		if err != nil {
			return nil, err
		}
		deps.Storage = manager
		if n := a.notifier(); n != nil {
			deps.Notifier = n
		}
		if a.database != nil {
			deps.Runs = a.database
		}
	}
	return pipeline.New(deps, a.logger)
}

// readJSONFile decodes a JSON array file into v
func readJSONFile(path string, v any) error {
	if path == "" {
		return errors.New("--input is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// readCandidates loads raw candidates from a JSON file
func readCandidates(path string) ([]types.RawCandidate, error) {
	var candidates []types.RawCandidate
	if err := readJSONFile(path, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// readScored loads scored candidates from a JSON file
func readScored(path string) ([]types.ScoredCandidate, error) {
	var candidates []types.ScoredCandidate
	if err := readJSONFile(path, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// writeJSONFile writes v as indented JSON
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
