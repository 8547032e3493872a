/**
 * @description
 * Configuration loader for the Klassik backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 * - standard "fmt": For error reporting
 *
 * @notes
 * - Fails fast if critical variables (Database URL, JWT secret) are missing.
 * - Load() returns a fully populated Config struct shared by the api and worker binaries.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Auth     AuthConfig
	Payments PaymentsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development" or "production"

	// Rate limiting for the auth endpoints
	RateLimitWindow time.Duration
	RateLimitMax    int
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// ChainConfig holds blockchain RPC endpoints and escrow settings
type ChainConfig struct {
	EthRPCURL             string
	EthWSURL              string
	EscrowAddress         string // escrow contract receiving ETH-side deposits
	KaspaHotWallet        string // hot wallet receiving KASPA-side deposits
	RequiredConfirmations int64
	ConfirmPollInterval   time.Duration
	BackfillBlocks        int64
	RPCTimeout            time.Duration
}

// AuthConfig holds wallet authentication settings
type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
	NonceTTL  time.Duration
}

// PaymentsConfig holds NOWPayments gateway settings for shop orders
type PaymentsConfig struct {
	APIKey      string
	APIURL      string
	IPNSecret   string
	CallbackURL string
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             getEnv("GO_ENV", "development"),
			RateLimitWindow: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			RateLimitMax:    getEnvAsInt("RATE_LIMIT_MAX", 10),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Chain: ChainConfig{
			EthRPCURL:             getEnv("ETH_RPC_URL", "http://127.0.0.1:8545"),
			EthWSURL:              getEnv("ETH_WS_URL", ""),
			EscrowAddress:         getEnv("ESCROW_CONTRACT_ADDRESS", ""),
			KaspaHotWallet:        getEnv("KASPA_HOT_WALLET", ""),
			RequiredConfirmations: int64(getEnvAsInt("REQUIRED_CONFIRMATIONS", 3)),
			ConfirmPollInterval:   getEnvAsDuration("CONFIRM_POLL_INTERVAL", 30*time.Second),
			BackfillBlocks:        int64(getEnvAsInt("BACKFILL_BLOCKS", 1000)),
			RPCTimeout:            getEnvAsDuration("CHAIN_RPC_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: sanitizeCredential(getEnv("JWT_SECRET", "")),
			JWTExpiry: getEnvAsDuration("JWT_EXPIRY", 7*24*time.Hour),
			NonceTTL:  getEnvAsDuration("NONCE_TTL", 10*time.Minute),
		},
		Payments: PaymentsConfig{
			APIKey:      sanitizeCredential(getEnv("NOWPAYMENTS_API_KEY", "")),
			APIURL:      getEnv("NOWPAYMENTS_API_URL", "https://api.nowpayments.io/v1"),
			IPNSecret:   sanitizeCredential(getEnv("NOWPAYMENTS_IPN_SECRET", "")),
			CallbackURL: getEnv("BASE_URL", "http://localhost:8080"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Chain.EscrowAddress == "" {
		// The api can create KASPA-source orders without it, but the watcher is disabled.
		fmt.Println("Warning: ESCROW_CONTRACT_ADDRESS is missing. Deposit watcher will be disabled.")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as int
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// Helper to get env var as duration (e.g. "30s", "10m", "168h")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
