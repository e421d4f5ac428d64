package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"BOT_TOKEN":         "123:abc",
		"GEMINI_API_KEY":    "key",
		"SKINWISE_DATA_KEY": "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "skinwise.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.DefaultTrials)
	assert.Equal(t, int64(16<<20), cfg.MaxImageBytes)
	assert.Equal(t, 60*time.Second, cfg.InferenceTimeout)
	assert.Equal(t, 20, cfg.MaxFollowUpTurns)
	assert.False(t, cfg.GateIngredientChecks)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.HTTPAddr)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"HTTP_ADDR":              ":8080",
		"API_JWT_SECRET":         "jwt",
		"CORS_ORIGINS":           "https://a.example, https://b.example",
		"INFERENCE_PROVIDER":     "OpenAI",
		"OPENAI_API_KEY":         "sk",
		"OPENAI_BASE_URL":        "http://localhost:1234/v1",
		"SKINWISE_DATA_KEY":      "secret",
		"DEFAULT_TRIALS":         "5",
		"INFERENCE_TIMEOUT":      "15s",
		"GATE_INGREDIENT_CHECKS": "true",
		"LOG_LEVEL":              "DEBUG",
		"OWNER_USER_ID":          "tg:42",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 5, cfg.DefaultTrials)
	assert.Equal(t, 15*time.Second, cfg.InferenceTimeout)
	assert.True(t, cfg.GateIngredientChecks)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "tg:42", cfg.OwnerUserID)
}

func TestLoadFrom_ReportsAllErrors(t *testing.T) {
	_, err := LoadFrom(env(map[string]string{
		"HTTP_ADDR":          ":8080",
		"INFERENCE_PROVIDER": "gemini",
		"DEFAULT_TRIALS":     "many",
	}))
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "API_JWT_SECRET")
	assert.Contains(t, msg, "SKINWISE_DATA_KEY")
	assert.Contains(t, msg, "GEMINI_API_KEY")
	assert.Contains(t, msg, "DEFAULT_TRIALS")
}

func TestLoadFrom_RequiresASurface(t *testing.T) {
	_, err := LoadFrom(env(map[string]string{
		"GEMINI_API_KEY":    "key",
		"SKINWISE_DATA_KEY": "secret",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN or HTTP_ADDR")
}

func TestLoadFrom_UnknownProvider(t *testing.T) {
	_, err := LoadFrom(env(map[string]string{
		"BOT_TOKEN":          "t",
		"SKINWISE_DATA_KEY":  "secret",
		"INFERENCE_PROVIDER": "llama",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFERENCE_PROVIDER")
}
