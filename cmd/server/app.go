package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashureev/aidiary/internal/agent"
	"github.com/ashureev/aidiary/internal/classify"
	"github.com/ashureev/aidiary/internal/config"
	"github.com/ashureev/aidiary/internal/conversation"
	"github.com/ashureev/aidiary/internal/guard"
	"github.com/ashureev/aidiary/internal/llm"
	"github.com/ashureev/aidiary/internal/metrics"
	"github.com/ashureev/aidiary/internal/report"
	"github.com/ashureev/aidiary/internal/store"
	"github.com/ashureev/aidiary/internal/title"
	"github.com/ashureev/aidiary/internal/tools"
)

// app holds the wired services shared by the serve and chat commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      *store.SQLiteStore
	metrics   *metrics.Metrics
	generator *llm.Bounded
	sessions  *conversation.Manager
	guard     *guard.DuplicateGuard
	chat      *agent.Service
	reports   *report.Service
	closers   []func()
}

// loadConfig loads configuration and installs the configured process logger.
func loadConfig() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, closeLog, err := config.SetupLogger(cfg, os.Stdout)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup logger: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, func() {
		if err := closeLog(); err != nil {
			slog.Warn("Failed to close log file", "error", err)
		}
	}, nil
}

// newApp opens the database and wires the chat pipeline. reg receives the
// Prometheus instruments.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(reg)}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a.repo = repo
	a.closers = append(a.closers, func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	})
	if err := repo.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	gen, closeGen, err := llm.New(cfg.Generator, a.metrics, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize generator: %w", err)
	}
	a.generator = gen
	a.closers = append(a.closers, closeGen)

	patterns := classify.DefaultPatterns()
	if cfg.Chat.PatternsFile != "" {
		if patterns, err = classify.LoadPatterns(cfg.Chat.PatternsFile); err != nil {
			a.Close()
			return nil, err
		}
		slog.Info("Classifier patterns loaded", "path", cfg.Chat.PatternsFile, "mode", patterns.Mode)
	}
	classifier, err := classify.New(patterns)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("compile classifier patterns: %w", err)
	}

	invoker, err := tools.New(repo, repo, repo, tools.WithMetrics(a.metrics))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize tools: %w", err)
	}

	convLog, err := agent.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize conversation logger: %w", err)
	}

	a.sessions = conversation.NewManager(repo, cfg.Chat.HistoryLimit)
	a.guard = guard.New(dedupStore(cfg, repo), cfg.Chat.DedupWindow)
	orchestrator := agent.NewOrchestrator(agent.Deps{
		Conversations: a.sessions,
		Generator:     gen,
		Classifier:    classifier,
		Tools:         invoker,
		Guard:         a.guard,
		Titles:        title.New(gen, cfg.Chat.TitleTimeout, a.metrics),
		Metrics:       a.metrics,
		HistoryLimit:  cfg.Chat.HistoryLimit,
	})
	a.chat = agent.NewService(orchestrator, convLog)
	a.closers = append(a.closers, a.chat.Close)
	a.reports = report.New(repo, gen, cfg.Generator.Timeout)
	return a, nil
}

// dedupStore picks the duplicate-guard backend. The memory store forgets
// fingerprints on restart.
func dedupStore(cfg *config.Config, repo *store.SQLiteStore) guard.Store {
	if cfg.Chat.DedupStore == config.DedupStoreMemory {
		return guard.NewMemoryStore()
	}
	return repo
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
