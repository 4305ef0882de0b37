// Magellan orchestrator server — runs AI-driven preliminary due
// diligence sessions and serves the HTTP/WebSocket API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dengjianbo3/magellan/pkg/agent"
	"github.com/dengjianbo3/magellan/pkg/api"
	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/config"
	"github.com/dengjianbo3/magellan/pkg/prompt"
	"github.com/dengjianbo3/magellan/pkg/session"
	"github.com/dengjianbo3/magellan/pkg/store"
	"github.com/dengjianbo3/magellan/pkg/workflow"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting Magellan",
		"http_port", cfg.HTTPPort,
		"store_backend", cfg.StoreBackend,
		"max_concurrent_sessions", cfg.MaxConcurrentSessions)

	ctx := context.Background()

	// 1. Session store
	st, err := store.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Error closing session store", "error", err)
		}
	}()
	slog.Info("Session store initialized", "backend", cfg.StoreBackend)

	// 2. External service clients
	llmClient := clients.NewLLMClient(cfg.LLMGatewayURL, cfg.LLMModelID, cfg.LLMTemperature, cfg.LLMTimeout)
	webClient := clients.NewWebSearchClient(cfg.WebSearchURL, cfg.LLMTimeout)
	dataClient := clients.NewExternalDataClient(cfg.ExternalDataURL, cfg.LLMTimeout, 10*time.Minute)
	knowledgeClient := clients.NewKnowledgeClient(cfg.InternalKnowledgeURL, cfg.LLMTimeout)
	slog.Info("Service clients initialized",
		"llm_gateway", cfg.LLMGatewayURL,
		"model", cfg.LLMModelID)

	// 3. Agents and the workflow engine
	prompts := prompt.NewRegistry()
	genCfg := clients.GenConfig{
		ModelID: cfg.LLMModelID,
		Timeout: cfg.LLMTimeout,
	}
	deps := &agent.Deps{
		LLM:         llmClient,
		Web:         webClient,
		Data:        dataClient,
		Knowledge:   knowledgeClient,
		Prompts:     prompts,
		FanoutLimit: int64(cfg.PerSessionFanoutLimit),
		GenCfg:      genCfg,
	}
	engine := workflow.NewEngine(deps)

	// 4. Session manager
	manager := session.NewManager(cfg, st, engine)

	// 5. HTTP server
	server := api.NewServer(cfg, manager, llmClient, prompts, genCfg)
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Magellan started successfully")

	// 6. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 7. Graceful shutdown: stop accepting requests, then cancel any
	// workflows still running and wait for them to wind down.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	managerShutdownCtx, managerCancel := context.WithTimeout(ctx, 30*time.Second)
	defer managerCancel()
	if err := manager.Shutdown(managerShutdownCtx); err != nil {
		slog.Warn("Shutdown timeout exceeded — some sessions did not finish", "error", err)
	}

	slog.Info("Shutdown complete")
}
