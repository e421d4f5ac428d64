// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	AppName     = "telegram-skinwise-bot"
	EnvFileName = "config.env"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the validated process configuration.
type Config struct {
	BotToken    string
	HTTPAddr    string
	JWTSecret   string
	CORSOrigins []string

	Provider      string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	DBPath      string
	DataKey     string
	OwnerUserID string

	DefaultTrials        int
	MaxImageBytes        int64
	InferenceTimeout     time.Duration
	MaxFollowUpTurns     int
	GateIngredientChecks bool

	LogLevel zerolog.Level
	LogFile  string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory and from ./.env. Variables already set are kept. Errors
// are ignored since the files may not exist.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load(".env")
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv. Every invalid or missing
// value is reported in the returned error.
func LoadFrom(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	cfg := &Config{
		BotToken:      get("BOT_TOKEN", ""),
		HTTPAddr:      get("HTTP_ADDR", ""),
		JWTSecret:     get("API_JWT_SECRET", ""),
		CORSOrigins:   splitList(get("CORS_ORIGINS", "*")),
		Provider:      strings.ToLower(get("INFERENCE_PROVIDER", ProviderGemini)),
		GeminiAPIKey:  get("GEMINI_API_KEY", ""),
		GeminiModel:   get("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:  get("OPENAI_API_KEY", ""),
		OpenAIModel:   get("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: get("OPENAI_BASE_URL", ""),
		DBPath:        get("SKINWISE_DB_PATH", "skinwise.db"),
		DataKey:       get("SKINWISE_DATA_KEY", ""),
		OwnerUserID:   get("OWNER_USER_ID", ""),
		LogFile:       get("LOG_FILE", ""),
	}

	var err error
	if cfg.DefaultTrials, err = strconv.Atoi(get("DEFAULT_TRIALS", "3")); err != nil || cfg.DefaultTrials < 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TRIALS must be a non-negative integer"))
	}
	if cfg.MaxImageBytes, err = strconv.ParseInt(get("MAX_IMAGE_BYTES", "16777216"), 10, 64); err != nil || cfg.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_BYTES must be a positive integer"))
	}
	if cfg.InferenceTimeout, err = time.ParseDuration(get("INFERENCE_TIMEOUT", "60s")); err != nil || cfg.InferenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("INFERENCE_TIMEOUT must be a duration such as 60s"))
	}
	if cfg.MaxFollowUpTurns, err = strconv.Atoi(get("MAX_FOLLOWUP_TURNS", "20")); err != nil || cfg.MaxFollowUpTurns < 2 {
		errs = append(errs, fmt.Errorf("MAX_FOLLOWUP_TURNS must be an integer of at least 2"))
	}
	if cfg.GateIngredientChecks, err = strconv.ParseBool(get("GATE_INGREDIENT_CHECKS", "false")); err != nil {
		errs = append(errs, fmt.Errorf("GATE_INGREDIENT_CHECKS must be true or false"))
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(get("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.BotToken == "" && cfg.HTTPAddr == "" {
		errs = append(errs, errors.New("at least one of BOT_TOKEN or HTTP_ADDR must be set"))
	}
	if cfg.HTTPAddr != "" && cfg.JWTSecret == "" {
		errs = append(errs, errors.New("API_JWT_SECRET is required when HTTP_ADDR is set"))
	}
	if cfg.DataKey == "" {
		errs = append(errs, errors.New("SKINWISE_DATA_KEY is not set"))
	}

	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("INFERENCE_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, cfg.Provider))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
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
