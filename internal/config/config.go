// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	DBPath         string
	SeedPath       string

	Session         SessionConfig
	Cache           CacheConfig
	LLM             LLMConfig
	Payment         PaymentConfig
	Delivery        DeliveryConfig
	TypingDelay     TypingDelayConfig
	WhatsAppNumber  string
	Kafka           KafkaConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// SessionConfig controls conversation lifetime.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxHistory    int
}

// CacheConfig controls the catalog and recommendation caches.
type CacheConfig struct {
	MaxEntries           int
	TTL                  time.Duration
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
	SweepInterval        time.Duration
	RecommendationTTL    time.Duration
	StoreMaxAttempts     int
	StoreInitialBackoff  time.Duration
}

// LLMProviderConfig is one OpenAI-compatible endpoint. It is disabled when
// BaseURL is empty.
type LLMProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}

// Enabled reports whether the provider is configured.
func (p LLMProviderConfig) Enabled() bool {
	return p.BaseURL != "" && p.Model != ""
}

// LLMConfig controls the response pipeline's completion calls.
type LLMConfig struct {
	Primary      LLMProviderConfig
	Secondary    LLMProviderConfig
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
	HistoryTurns int
	Structured   bool
}

// PaymentConfig controls the card conversion.
type PaymentConfig struct {
	ExchangeRate       float64
	SettlementCurrency string
	MinCharge          int64
	// ConfirmSecret authenticates the processor's confirmation callback.
	// Empty disables the callback.
	ConfirmSecret string
}

// DeliveryConfig controls delivery pricing.
type DeliveryConfig struct {
	Fee         int64
	FreeCity    string
	DefaultCity string
}

// TypingDelayConfig controls the pause before replies. A zero Max disables it.
type TypingDelayConfig struct {
	Min     time.Duration
	Max     time.Duration
	PerChar time.Duration
	Jitter  time.Duration
}

// KafkaConfig controls finalized order publishing. Empty Brokers logs orders instead.
type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// RateLimitConfig controls per-visitor request limits. Requests <= 0 disables it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DBPath:         getEnv("DB_PATH", "./data/chatcheckout.db"),
		SeedPath:       getEnv("SEED_PATH", "./data/seed.json"),
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			MaxHistory:    getEnvInt("SESSION_MAX_HISTORY", 50),
		},
		Cache: CacheConfig{
			MaxEntries:           getEnvInt("CACHE_MAX_ENTRIES", 500),
			TTL:                  getEnvDuration("CACHE_TTL", 5*time.Minute),
			FetchTimeout:         getEnvDuration("CACHE_FETCH_TIMEOUT", 30*time.Second),
			MaxConcurrentFetches: getEnvInt("CACHE_MAX_CONCURRENT_FETCHES", 8),
			SweepInterval:        getEnvDuration("CACHE_SWEEP_INTERVAL", 60*time.Second),
			RecommendationTTL:    getEnvDuration("CACHE_RECOMMENDATION_TTL", 2*time.Minute),
			StoreMaxAttempts:     getEnvInt("STORE_MAX_ATTEMPTS", 3),
			StoreInitialBackoff:  getEnvDuration("STORE_INITIAL_BACKOFF", 100*time.Millisecond),
		},
		LLM: LLMConfig{
			Primary: LLMProviderConfig{
				Name:    getEnv("LLM_PRIMARY_NAME", "primary"),
				BaseURL: getEnv("LLM_PRIMARY_BASE_URL", ""),
				APIKey:  getEnv("LLM_PRIMARY_API_KEY", ""),
				Model:   getEnv("LLM_PRIMARY_MODEL", ""),
			},
			Secondary: LLMProviderConfig{
				Name:    getEnv("LLM_SECONDARY_NAME", "secondary"),
				BaseURL: getEnv("LLM_SECONDARY_BASE_URL", ""),
				APIKey:  getEnv("LLM_SECONDARY_API_KEY", ""),
				Model:   getEnv("LLM_SECONDARY_MODEL", ""),
			},
			Timeout:      getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			Temperature:  getEnvFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:    getEnvInt("LLM_MAX_TOKENS", 300),
			HistoryTurns: getEnvInt("LLM_HISTORY_TURNS", 6),
			Structured:   getEnvBool("LLM_STRUCTURED_OUTPUT", false),
		},
		Payment: PaymentConfig{
			ExchangeRate:       getEnvFloat("PAYMENT_EXCHANGE_RATE", 655.957),
			SettlementCurrency: getEnv("PAYMENT_SETTLEMENT_CURRENCY", "eur"),
			MinCharge:          int64(getEnvInt("PAYMENT_MIN_CHARGE", 50)),
			ConfirmSecret:      getEnv("PAYMENT_CONFIRM_SECRET", ""),
		},
		Delivery: DeliveryConfig{
			Fee:         int64(getEnvInt("DELIVERY_FEE", 2000)),
			FreeCity:    getEnv("DELIVERY_FREE_CITY", "Dakar"),
			DefaultCity: getEnv("DEFAULT_CITY", "Dakar"),
		},
		TypingDelay: TypingDelayConfig{
			Min:     getEnvDuration("TYPING_DELAY_MIN", 0),
			Max:     getEnvDuration("TYPING_DELAY_MAX", 0),
			PerChar: getEnvDuration("TYPING_DELAY_PER_CHAR", 15*time.Millisecond),
			Jitter:  getEnvDuration("TYPING_DELAY_JITTER", 0),
		},
		WhatsAppNumber: getEnv("WHATSAPP_NUMBER", ""),
		Kafka: KafkaConfig{
			Brokers:     getEnvList("KAFKA_BROKERS", nil),
			OrdersTopic: getEnv("KAFKA_ORDERS_TOPIC", "chatcheckout.orders"),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be > 0")
	}
	if c.Cache.FetchTimeout <= 0 {
		return fmt.Errorf("CACHE_FETCH_TIMEOUT must be > 0")
	}
	if c.Cache.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("CACHE_MAX_CONCURRENT_FETCHES must be > 0")
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be > 0")
	}
	if c.Cache.StoreMaxAttempts <= 0 {
		return fmt.Errorf("STORE_MAX_ATTEMPTS must be > 0")
	}
	if c.LLM.Secondary.Enabled() && !c.LLM.Primary.Enabled() {
		return fmt.Errorf("LLM_SECONDARY_* requires LLM_PRIMARY_* to be set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.Payment.ExchangeRate <= 0 {
		return fmt.Errorf("PAYMENT_EXCHANGE_RATE must be > 0")
	}
	if c.Payment.MinCharge <= 0 {
		return fmt.Errorf("PAYMENT_MIN_CHARGE must be > 0")
	}
	if c.Delivery.Fee < 0 {
		return fmt.Errorf("DELIVERY_FEE cannot be negative")
	}
	if c.Delivery.DefaultCity == "" {
		return fmt.Errorf("DEFAULT_CITY cannot be empty")
	}
	if c.TypingDelay.Max > 0 && c.TypingDelay.Min > c.TypingDelay.Max {
		return fmt.Errorf("TYPING_DELAY_MIN cannot exceed TYPING_DELAY_MAX")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.OrdersTopic == "" {
		return fmt.Errorf("KAFKA_ORDERS_TOPIC cannot be empty when KAFKA_BROKERS is set")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
