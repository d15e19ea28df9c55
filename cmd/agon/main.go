// AgonAI orchestration server: hosts the HTTP API, the debate/topic
// orchestrators, the fact-check worker, and the sandbox validator.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agonai/agon/pkg/agents"
	"github.com/agonai/agon/pkg/api"
	"github.com/agonai/agon/pkg/config"
	"github.com/agonai/agon/pkg/database"
	"github.com/agonai/agon/pkg/engine"
	"github.com/agonai/agon/pkg/events"
	"github.com/agonai/agon/pkg/factcheck"
	"github.com/agonai/agon/pkg/filter"
	"github.com/agonai/agon/pkg/llm"
	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/joho/godotenv"
)

// builtinAgentName is the canonical platform participant seeded at
// startup; the sandbox validator debates against it.
const builtinAgentName = "Claude Pro"

const shutdownTimeout = 15 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting AgonAI", "http_port", httpPort, "model", cfg.ClaudeModel)

	ctx := context.Background()

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL database")

	st := store.NewPostgresStore(dbClient.Pool())
	if err := ensureBuiltinAgent(ctx, st, cfg.ClaudeModel); err != nil {
		slog.Error("Failed to seed builtin agent", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	contentFilter := filter.New()
	llmClient := llm.NewAnthropicClient(cfg.AnthropicAPIKey, "")

	referee := factcheck.NewReferee(llmClient, cfg.ClaudeModel,
		time.Duration(cfg.URLFetchTimeoutSeconds)*time.Second)
	worker := factcheck.NewWorker(st, referee)
	if err := worker.RecoverPending(ctx); err != nil {
		slog.Error("Failed to recover pending fact-checks", "error", err)
		os.Exit(1)
	}
	worker.Start(ctx)
	defer worker.Stop()
	slog.Info("Fact-check worker started")

	factory := agents.NewFactory(cfg, llmClient)
	eng := engine.New(st, bus, contentFilter, worker, factory, cfg)
	analyzer := agents.NewSentimentAnalyzer(llmClient, cfg.ClaudeModel)

	server := api.NewServer(st, bus, eng, worker, analyzer, dbClient, cfg)
	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("AgonAI stopped")
}

// ensureBuiltinAgent seeds the canonical built-in participant if it is
// not present yet.
func ensureBuiltinAgent(ctx context.Context, st store.Store, model string) error {
	existing, err := st.ListAgents(ctx)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.Name == builtinAgentName {
			return nil
		}
	}

	agent := &models.Agent{
		Name:   builtinAgentName,
		Kind:   models.AgentKindBuiltin,
		Status: models.AgentStatusActive,
		Model:  model,
	}
	if err := st.CreateAgent(ctx, agent); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return err
	}
	slog.Info("Seeded builtin agent", "name", builtinAgentName)
	return nil
}
