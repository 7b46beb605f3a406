package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	FreepikAPIKey  string
	FreepikBaseURL string
	WebhookSecret  string
	WebhookBaseURL string

	PromptProvider string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	OpenAIOrg      string

	APIAuthToken string
	GeoIPDBPath  string
	CachePath    string

	EnhanceTimeout     time.Duration
	SubmitTimeout      time.Duration
	StatusPollTimeout  time.Duration
	PostProcessTimeout time.Duration

	PollInterval time.Duration
	PollAfter    time.Duration
	TaskExpiry   time.Duration
	PollBatch    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		FreepikAPIKey:  os.Getenv("FREEPIK_API_KEY"),
		FreepikBaseURL: getEnv("FREEPIK_BASE_URL", "https://api.freepik.com"),
		WebhookSecret:  os.Getenv("FREEPIK_WEBHOOK_SECRET"),
		WebhookBaseURL: os.Getenv("FREEPIK_WEBHOOK_URL"),

		PromptProvider: getEnv("PROMPT_PROVIDER", "openai"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:      os.Getenv("OPENAI_ORG"),

		APIAuthToken: os.Getenv("API_AUTH_TOKEN"),
		GeoIPDBPath:  os.Getenv("GEOIP_DB_PATH"),
		CachePath:    getEnv("IMAGE_CACHE_PATH", "./cache"),

		EnhanceTimeout:     getEnvDuration("ENHANCE_TIMEOUT_SECONDS", 15),
		SubmitTimeout:      getEnvDuration("SUBMIT_TIMEOUT_SECONDS", 30),
		StatusPollTimeout:  getEnvDuration("STATUS_POLL_TIMEOUT_SECONDS", 10),
		PostProcessTimeout: getEnvDuration("POST_PROCESS_TIMEOUT_SECONDS", 60),

		PollInterval: getEnvDuration("POLL_INTERVAL_SECONDS", 5),
		PollAfter:    getEnvDuration("POLL_AFTER_SECONDS", 10),
		TaskExpiry:   getEnvDuration("TASK_EXPIRY_SECONDS", 1800),
		PollBatch:    getEnvInt("POLL_BATCH_SIZE", 20),

		HTTPReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT_SECONDS", 30),
		HTTPIdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WebhookSecret == "" && cfg.AppEnv != "development" {
		return nil, fmt.Errorf("FREEPIK_WEBHOOK_SECRET is required outside development")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallbackSeconds int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallbackSeconds))
}
