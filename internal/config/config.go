// Package config loads gateway configuration from environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment represents the runtime environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// pricePrefix introduces per-method base-price overrides, e.g.
// PRICE_GETBLOCK=0.002. Keys that collide with other config options are
// filtered out in Load.
const pricePrefix = "PRICE_"

// Config holds all gateway configuration
type Config struct {
	Environment Environment
	Server      ServerConfig
	Billing     BillingConfig
	Pricing     PricingConfig
	Chain       ChainConfig
	Upstream    UpstreamConfig
	Facilitator FacilitatorConfig
	Store       StoreConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BillingConfig identifies the payment recipient and token
type BillingConfig struct {
	WalletAddress string
	Mint          string
	TokenSymbol   string
	ChainTag      string
}

// PricingConfig holds the default price and per-method overrides in
// human-readable token units
type PricingConfig struct {
	DefaultPrice float64
	Overrides    map[string]float64
}

// ChainConfig holds the chain client configuration
type ChainConfig struct {
	RPCURL string
}

// UpstreamConfig seeds the provider registry
type UpstreamConfig struct {
	DefaultURL    string
	FallbackURL   string
	UseFallback   bool
	ProvidersFile string
}

// FacilitatorConfig holds the optional external verifier and notifier
type FacilitatorConfig struct {
	VerifyURL string
	SettleURL string
}

// StoreConfig holds the invoice store configuration
type StoreConfig struct {
	RedisURL string
	TTL      time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	WindowMS int
	Max      int
}

// Load loads configuration from environment variables
func Load() *Config {
	// Default to production; development mode is an explicit opt-in
	env := Environment(getEnv("ENV", "production"))
	if env != EnvDevelopment && env != EnvProduction && env != EnvTest {
		env = EnvProduction
	}

	return &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
		},
		Billing: BillingConfig{
			WalletAddress: getEnv("PAYMENT_WALLET_ADDRESS", ""),
			Mint:          getEnv("BILLING_MINT", "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
			TokenSymbol:   getEnv("BILLING_TOKEN_SYMBOL", "USDC"),
			ChainTag:      getEnv("CHAIN", "solana"),
		},
		Pricing: PricingConfig{
			DefaultPrice: getFloat("PRICE_PER_QUERY", 0.001),
			Overrides:    priceOverrides(),
		},
		Chain: ChainConfig{
			RPCURL: getEnv("CHAIN_RPC_URL", "https://api.mainnet-beta.solana.com"),
		},
		Upstream: UpstreamConfig{
			DefaultURL:    getEnv("UPSTREAM_DEFAULT_URL", ""),
			FallbackURL:   getEnv("UPSTREAM_FALLBACK_URL", ""),
			UseFallback:   getBool("USE_FALLBACK", false),
			ProvidersFile: getEnv("PROVIDERS_FILE", ""),
		},
		Facilitator: FacilitatorConfig{
			VerifyURL: getEnv("FACILITATOR_VERIFY_URL", ""),
			SettleURL: getEnv("FACILITATOR_SETTLE_URL", ""),
		},
		Store: StoreConfig{
			RedisURL: getEnv("INVOICE_STORE_URL", ""),
			TTL:      time.Duration(getInt("INVOICE_TTL_SECONDS", 900)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			WindowMS: getInt("RATE_LIMIT_WINDOW_MS", 60_000),
			Max:      getInt("RATE_LIMIT_MAX", 100),
		},
	}
}

// priceOverrides collects every PRICE_<METHOD> variable, keyed by the
// upper-cased method name.
func priceOverrides() map[string]float64 {
	overrides := make(map[string]float64)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, pricePrefix) || key == "PRICE_PER_QUERY" {
			continue
		}
		price, err := strconv.ParseFloat(value, 64)
		if err != nil || price <= 0 {
			continue
		}
		overrides[strings.TrimPrefix(key, pricePrefix)] = price
	}
	return overrides
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks that all required configuration is present. Production
// refuses to boot without a payment wallet; development may run unbilled.
func (c *Config) Validate() error {
	var errs []string

	if c.Billing.WalletAddress == "" && c.Environment == EnvProduction {
		errs = append(errs, "PAYMENT_WALLET_ADDRESS is required in production")
	}
	if c.Upstream.DefaultURL == "" && c.Upstream.ProvidersFile == "" {
		errs = append(errs, "UPSTREAM_DEFAULT_URL or PROVIDERS_FILE is required")
	}
	if c.Upstream.UseFallback && c.Upstream.FallbackURL == "" {
		errs = append(errs, "USE_FALLBACK is set but UPSTREAM_FALLBACK_URL is empty")
	}
	if c.Store.TTL <= 0 {
		errs = append(errs, "INVOICE_TTL_SECONDS must be positive")
	}
	if c.Pricing.DefaultPrice <= 0 {
		errs = append(errs, "PRICE_PER_QUERY must be positive")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}
