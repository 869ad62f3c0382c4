package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string

	// Quota limits per tier. Character limits are in extracted characters,
	// the unit charged by the ingestion pipeline.
	FreeProjectLimit     int64
	ProProjectLimit      int64
	FreeProfileCharLimit int64
	ProProfileCharLimit  int64
	FreeProjectCharLimit int64
	ProProjectCharLimit  int64

	// Retrieval parameters. ChunkOverlap must stay below ChunkSize.
	ChunkSize     int
	ChunkOverlap  int
	RetrievalTopK int

	// Billing (Stripe).
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceID       string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	// OAuth bridging.
	OAuthCodeTTL time.Duration
	TokenTTL     time.Duration

	UploadMaxBytes int64
}

func Load() (*Config, error) {
	// Load .env file if it exists; otherwise rely on the environment.
	_ = godotenv.Load()

	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "echotwin.db"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		FreeProjectLimit:     int64(getEnvAsInt("FREE_PROJECT_LIMIT", 3)),
		ProProjectLimit:      int64(getEnvAsInt("PRO_PROJECT_LIMIT", 10)),
		FreeProfileCharLimit: int64(getEnvAsInt("FREE_PROFILE_CHAR_LIMIT", 30000)),
		ProProfileCharLimit:  int64(getEnvAsInt("PRO_PROFILE_CHAR_LIMIT", 300000)),
		FreeProjectCharLimit: int64(getEnvAsInt("FREE_PROJECT_CHAR_LIMIT", 30000)),
		ProProjectCharLimit:  int64(getEnvAsInt("PRO_PROJECT_CHAR_LIMIT", 300000)),

		ChunkSize:     getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:  getEnvAsInt("CHUNK_OVERLAP", 100),
		RetrievalTopK: getEnvAsInt("RETRIEVAL_TOP_K", 5),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/billing/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/billing/cancel"),

		OAuthCodeTTL: getEnvAsDuration("OAUTH_CODE_TTL", 10*time.Minute),
		TokenTTL:     getEnvAsDuration("TOKEN_TTL", 24*time.Hour),

		UploadMaxBytes: int64(getEnvAsInt("UPLOAD_MAX_BYTES", 20<<20)),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
