package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/all"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/audit"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/config"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/database"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/handlers"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/llm"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/logging"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/middleware"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/repositories"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/retry"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/services"
	"github.com/ekaya-inc/ekaya-dataagents/pkg/vault"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("vault_provider", cfg.Vault.Provider),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model))

	// Metadata store
	startupRetry := &retry.Config{
		MaxRetries:   10,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		Retry:          startupRetry,
	}, logger.Named("database"))
	if err != nil {
		return err
	}
	defer db.Close()

	stdDB := stdlib.OpenDBFromPool(db.Pool)
	if err := database.RunMigrations(stdDB, logger.Named("migrations")); err != nil {
		_ = stdDB.Close()
		return err
	}
	_ = stdDB.Close()

	// Credential vault
	provider, err := vault.NewProvider(cfg.Vault)
	if err != nil {
		return err
	}
	secretStore := vault.NewClient(provider, logger.Named("vault"))
	if err := secretStore.Init(ctx); err != nil {
		return err
	}

	// Adapters and model
	factory := datasource.NewAdapterFactory(datasource.Options{
		ConnectTimeout: cfg.Datasource.ConnectTimeout(),
		QueryTimeout:   cfg.Datasource.QueryTimeout(),
		Logger:         logger.Named("datasource"),
	})
	llmClient, err := llm.NewClientFromConfig(cfg.LLM, logger)
	if err != nil {
		return err
	}

	// Services
	agentRepo := repositories.NewAgentRepository(db)
	schemaRepo := repositories.NewSchemaRepository(db)

	auditor := audit.NewSecurityAuditor(logger)

	introspector := services.NewSchemaIntrospector(agentRepo, secretStore, factory, auditor, cfg.Datasource.ConnectTimeout(), logger)
	importer := services.NewTableImportService(introspector, schemaRepo, auditor, services.ImportOptions{
		Workers:       cfg.Datasource.ImportWorkers,
		CountFallback: cfg.Datasource.CountFallback,
	}, logger)
	inference := services.NewRelationshipInferenceService(agentRepo, schemaRepo, llmClient, services.InferenceOptions{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}, logger)

	// HTTP
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, logger).RegisterRoutes(mux)
	handlers.NewConnectionHandler(introspector, factory, logger).RegisterRoutes(mux)
	handlers.NewAgentHandler(introspector, importer, inference, logger).RegisterRoutes(mux)

	handler := middleware.Chain(mux,
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger.Named("http")),
		middleware.ClientIP(cfg.TrustProxy),
	)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-dataagents",
			zap.String("addr", srv.Addr),
			zap.Strings("engines", engineNames(factory)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func engineNames(factory datasource.AdapterFactory) []string {
	var names []string
	for _, info := range factory.ListEngines() {
		names = append(names, string(info.Engine))
	}
	return names
}
