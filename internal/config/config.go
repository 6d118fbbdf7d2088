package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/MatchPredictor/internal/provider"
)

const (
	defaultModel       = "deepseek/deepseek-chat-v3-0324:free"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
	maxNumberedKeys    = 10
)

// Config holds all application configuration
type Config struct {
	LogLevel        string
	HTTPAddr        string
	CORSOrigins     []string
	CORSCredentials bool

	// AI providers
	Providers         []provider.Provider
	OpenRouterBaseURL string
	OpenRouterReferer string
	OpenRouterTitle   string
	OpenRouterTimeout time.Duration
	TopP              float64

	// Circuit breaker and retries
	CircuitFailureThreshold int
	CircuitTimeout          time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	RateLimitDelay          time.Duration

	// Cache
	CacheBackend string // memory, postgres or redis
	CacheTTL     time.Duration
	DBHost       string
	DBPort       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBSSLMode    string
	RedisAddr    string
	RedisPass    string
	RedisDB      int

	// API-Football
	FootballAPIKey  string
	FootballAPIHost string
	FootballBaseURL string
	RequestTimeout  time.Duration
	APIMinDelay     time.Duration
	APIMaxRetries   int
	APIBackoffBase  time.Duration
	BatchDelay      time.Duration

	// Telegram
	TelegramBotToken string
	DailyLimit       int
}

// providersFile is the PROVIDERS_FILE layout
type providersFile struct {
	Providers []struct {
		Name        string  `yaml:"name"`
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		Priority    int     `yaml:"priority"`
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"providers"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")
	cfg.CORSOrigins = splitList(getEnvWithDefault("CORS_ORIGINS", "*"))
	cfg.CORSCredentials = getEnvBoolWithDefault("CORS_ALLOW_CREDENTIALS", false)

	cfg.OpenRouterBaseURL = getEnvWithDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	cfg.OpenRouterReferer = os.Getenv("OPENROUTER_REFERER")
	cfg.OpenRouterTitle = getEnvWithDefault("OPENROUTER_TITLE", "MatchPredictor")
	cfg.OpenRouterTimeout = getEnvDurationMsWithDefault("OPENROUTER_TIMEOUT_MS", 60*time.Second)
	cfg.TopP = getEnvFloatWithDefault("OPENROUTER_TOP_P", 0.9)

	cfg.CircuitFailureThreshold = getEnvIntWithDefault("CIRCUIT_FAILURE_THRESHOLD", 5)
	cfg.CircuitTimeout = getEnvDurationMsWithDefault("CIRCUIT_TIMEOUT_MS", 60*time.Second)
	cfg.MaxRetries = getEnvIntWithDefault("LLM_MAX_RETRIES", 3)
	cfg.RetryDelay = getEnvDurationMsWithDefault("LLM_RETRY_DELAY_MS", time.Second)
	cfg.RateLimitDelay = getEnvDurationMsWithDefault("LLM_RATE_LIMIT_DELAY_MS", 2*time.Second)

	cfg.CacheBackend = strings.ToLower(getEnvWithDefault("CACHE_BACKEND", "memory"))
	cfg.CacheTTL = time.Duration(getEnvIntWithDefault("CACHE_TTL_HOURS", 7*24)) * time.Hour
	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = getEnvWithDefault("DB_USER", "postgres")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "predictor")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	cfg.RedisAddr = getEnvWithDefault("REDIS_ADDR", "localhost:6379")
	cfg.RedisPass = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvIntWithDefault("REDIS_DB", 0)

	cfg.FootballAPIKey = os.Getenv("FOOTBALL_API_KEY")
	cfg.FootballAPIHost = getEnvWithDefault("FOOTBALL_API_HOST", "api-football-v1.p.rapidapi.com")
	cfg.FootballBaseURL = getEnvWithDefault("FOOTBALL_API_BASE_URL", "https://api-football-v1.p.rapidapi.com/v3")
	cfg.RequestTimeout = time.Duration(getEnvIntWithDefault("REQUEST_TIMEOUT", 30)) * time.Second
	cfg.APIMinDelay = getEnvDurationMsWithDefault("API_MIN_DELAY_MS", time.Second)
	cfg.APIMaxRetries = getEnvIntWithDefault("API_MAX_RETRIES", 3)
	cfg.APIBackoffBase = getEnvDurationMsWithDefault("API_BACKOFF_BASE_MS", 2*time.Second)
	cfg.BatchDelay = getEnvDurationMsWithDefault("BATCH_DELAY_MS", time.Second)

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.DailyLimit = getEnvIntWithDefault("DAILY_LIMIT", 5)

	providers, err := loadProviders()
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CircuitFailureThreshold <= 0 {
		return fmt.Errorf("CIRCUIT_FAILURE_THRESHOLD must be positive, got %d", c.CircuitFailureThreshold)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must be positive, got %d", c.MaxRetries)
	}
	if len(c.Providers) == 0 {
		log.Warn().Msg("No AI providers configured, predictions will fail until one is added")
	}
	return nil
}

// loadProviders reads PROVIDERS_FILE when set, otherwise OPENROUTER_API_KEY and
// OPENROUTER_API_KEY_1..10. Numbered keys take their index as priority.
func loadProviders() ([]provider.Provider, error) {
	if path := os.Getenv("PROVIDERS_FILE"); path != "" {
		return loadProvidersFile(path)
	}

	model := getEnvWithDefault("OPENROUTER_MODEL", defaultModel)
	temperature := float32(getEnvFloatWithDefault("OPENROUTER_TEMPERATURE", defaultTemperature))
	maxTokens := getEnvIntWithDefault("OPENROUTER_MAX_TOKENS", defaultMaxTokens)

	var providers []provider.Provider
	add := func(name, key string, priority int) {
		providers = append(providers, provider.Provider{
			ID:          fmt.Sprintf("provider_%d", priority),
			Name:        name,
			APIKey:      key,
			Model:       model,
			Priority:    priority,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		add("OpenRouter", key, 0)
	}
	for i := 1; i <= maxNumberedKeys; i++ {
		if key := os.Getenv(fmt.Sprintf("OPENROUTER_API_KEY_%d", i)); key != "" {
			add(fmt.Sprintf("OpenRouter_%d", i), key, i)
		}
	}
	return providers, nil
}

func loadProvidersFile(path string) ([]provider.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	providers := make([]provider.Provider, 0, len(file.Providers))
	for i, p := range file.Providers {
		if p.APIKey == "" {
			return nil, fmt.Errorf("provider %d (%s): api_key is required", i+1, p.Name)
		}
		if p.Model == "" {
			p.Model = defaultModel
		}
		if p.Temperature == 0 {
			p.Temperature = defaultTemperature
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = defaultMaxTokens
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("OpenRouter_%d", i+1)
		}
		providers = append(providers, provider.Provider{
			ID:          fmt.Sprintf("provider_%d", i+1),
			Name:        p.Name,
			APIKey:      p.APIKey,
			Model:       p.Model,
			Priority:    p.Priority,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
		})
	}
	return providers, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDurationMsWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
