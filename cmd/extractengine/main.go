// Command extractengine runs the content-extraction orchestration service:
// it loads configuration from the environment (SPEC_FULL.md §6.3), opens
// the two SQLite stores, seeds the strategy registry with the builtin
// catalog, and serves the HTTP API (component K) until it receives
// SIGINT/SIGTERM, at which point it drains in-flight requests and exits.
//
// Grounded on the teacher's cmd/hector/serve.go: start every long-running
// collaborator, select on an error channel and an OS signal channel, then
// shut down with a bounded deadline.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strataflow/extractengine/internal/config"
	"github.com/strataflow/extractengine/internal/logging"
	"github.com/strataflow/extractengine/internal/metrics"
	"github.com/strataflow/extractengine/pkg/httpapi"
	"github.com/strataflow/extractengine/pkg/llmclient"
	"github.com/strataflow/extractengine/pkg/ratelimit"
	"github.com/strataflow/extractengine/pkg/resolver"
	"github.com/strataflow/extractengine/pkg/store"
	"github.com/strataflow/extractengine/pkg/strategy"
)

// defaultProviderBaseURLs gives every recognized provider tag a wire
// endpoint, the way llms/registry.go in the teacher hard-codes a base URL
// per provider before layering per-call overrides on top.
var defaultProviderBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

func main() {
	if err := run(); err != nil {
		slog.Error("extractengine: fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stderr)
	log := logging.Get()

	configsPath, mappingsPath := splitDatabaseURL(cfg.DatabaseURL)

	configStore, err := store.NewConfigStore(configsPath)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer configStore.Close()

	mappingStore, err := store.NewMappingStore(mappingsPath)
	if err != nil {
		return fmt.Errorf("open mapping store: %w", err)
	}
	defer mappingStore.Close()

	providers := make(map[string]llmclient.ProviderConfig, len(defaultProviderBaseURLs))
	for tag, baseURL := range defaultProviderBaseURLs {
		providers[tag] = llmclient.ProviderConfig{
			BaseURL: baseURL,
			APIKey:  cfg.ProviderAPIKeys[tag],
		}
	}
	llmClient := llmclient.NewOpenAICompatibleClient(providers)

	reg := strategy.NewRegistry()
	strategy.RegisterBuiltins(reg, llmClient, strategy.DefaultLLMConfig{
		Provider: cfg.DefaultProvider,
		Model:    cfg.DefaultModel,
	})
	factory := strategy.NewFactory(reg)

	limiter := ratelimit.NewMemoryLimiter()
	dispatcher := resolver.New(configStore, mappingStore, factory, limiter)

	var metricsReg *metrics.Registry
	if cfg.EnableMetrics {
		metricsReg = metrics.New()
		dispatcher.WithMetrics(metricsReg)
	}

	deps := httpapi.Dependencies{
		Configs:        configStore,
		Mappings:       mappingStore,
		Registry:       reg,
		Factory:        factory,
		Dispatcher:     dispatcher,
		Metrics:        metricsReg,
		LLMClient:      llmClient,
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.EnableMetrics,
	}
	router := httpapi.NewRouter(deps)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("extractengine: listening", "addr", cfg.Addr(), "metrics", cfg.EnableMetrics)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("extractengine: shutting down")
	case err := <-errCh:
		log.Error("extractengine: server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// splitDatabaseURL derives the mapping-store path from the configured
// DATABASE_URL (which names the configurations database per SPEC_FULL.md
// §6.3's default of "./url_configurations.db"): the mapping store lives
// alongside it as url_mappings.db, matching §6.2's fixed two-file layout.
func splitDatabaseURL(databaseURL string) (configsPath, mappingsPath string) {
	const suffix = "url_configurations.db"
	if len(databaseURL) >= len(suffix) && databaseURL[len(databaseURL)-len(suffix):] == suffix {
		dir := databaseURL[:len(databaseURL)-len(suffix)]
		return databaseURL, dir + "url_mappings.db"
	}
	return databaseURL, "url_mappings.db"
}
