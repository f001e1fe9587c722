package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clause-agent/catalog"
	"clause-agent/config"
	"clause-agent/llmclient"
	"clause-agent/observability"
	"clause-agent/retrieval"
	"clause-agent/search"
	"clause-agent/session"
	"clause-agent/web"
	"clause-agent/workflow"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config (which includes log level setting)
	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	searchClient, err := search.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize search client", zap.Error(err))
	}

	llm := llmclient.New(cfg, logger)
	matcher := catalog.NewMatcher(searchClient, logger)
	ranker := retrieval.NewRanker(cfg, llm, searchClient, logger)
	metrics := observability.NewMetrics("clause_agent")

	engine := workflow.NewEngine(cfg, llm, matcher, ranker, searchClient, metrics, logger)

	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions := session.NewStore(30 * time.Minute)
	sessions.StartJanitor(ctx, time.Minute)

	webServer := web.NewServer(engine, sessions, metrics, logger, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.WebHost, cfg.WebPort)
	logger.Info("Starting insurance QA web server", zap.String("address", addr))
	if err := webServer.Start(ctx, addr); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}
