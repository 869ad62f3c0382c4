package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/echotwin/echotwin/internal/api"
	"github.com/echotwin/echotwin/internal/auth"
	"github.com/echotwin/echotwin/internal/billing"
	"github.com/echotwin/echotwin/internal/config"
	"github.com/echotwin/echotwin/internal/core"
	"github.com/echotwin/echotwin/internal/store"
	"github.com/echotwin/echotwin/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Process-wide handles: created once here, read-only afterwards, and
	// injected into the services rather than reached for as globals.
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	vectors, err := vectorstore.NewSQLiteStore(dbStore.DB(), logger)
	if err != nil {
		logger.Fatal("failed to initialize vector store", zap.Error(err))
	}

	llm, err := core.NewLLMService(context.Background(), cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Fatal("failed to initialize LLM service", zap.Error(err))
	}
	defer llm.Close()

	quota := core.NewQuotaLedger(dbStore)
	ingestion := core.NewIngestionService(dbStore, vectors, llm, quota, cfg.ChunkSize, cfg.ChunkOverlap, logger)
	assistant := core.NewAssistantService(dbStore, vectors, llm, llm, cfg.RetrievalTopK, logger)
	intake := core.NewIntakeService(dbStore, ingestion, llm, logger)
	projects := core.NewProjectService(dbStore, vectors, logger)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	oauthSvc := auth.NewOAuthService(dbStore, tokens, cfg.OAuthCodeTTL, logger)
	billingSvc := billing.NewService(dbStore, cfg.StripeSecretKey, cfg.StripeWebhookSecret,
		cfg.StripePriceID, cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL,
		billing.ProLimits{
			ProjectLimit:     cfg.ProProjectLimit,
			ProfileCharLimit: cfg.ProProfileCharLimit,
			ProjectCharLimit: cfg.ProProjectCharLimit,
		}, logger)

	apiHandler := api.NewAPIHandler(dbStore, ingestion, assistant, intake, projects, quota,
		billingSvc, oauthSvc, tokens, cfg, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "DEBUG" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
