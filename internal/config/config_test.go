package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "prod", cfg.LogMode)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, belief.DefaultParams(), cfg.BeliefParams())
	assert.Equal(t, compiler.DefaultConfig(), cfg.CompilerConfig())
	assert.Equal(t, 30*time.Second, cfg.PregenTimeout)
	assert.True(t, cfg.UseLLM)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"LEARNLOOP_HTTP_ADDR":         "127.0.0.1:9000",
		"LEARNLOOP_MASTERY_THRESHOLD": "0.7",
		"LEARNLOOP_LEARNING_RATE":     "0.4",
		"LEARNLOOP_DECAY_RATE":        "0.1",
		"LEARNLOOP_RECENCY_WINDOW":    "30s",
		"LEARNLOOP_TOP_K":             "3",
		"LEARNLOOP_REDIS_ADDR":        "localhost:6379",
		"LEARNLOOP_LOG_MODE":          "dev",
		"LEARNLOOP_USE_LLM":           "false",
		"LEARNLOOP_STORE":             "memory",
	})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, belief.Params{Alpha: 0.4, Beta: 0.1}, cfg.BeliefParams())
	cc := cfg.CompilerConfig()
	assert.Equal(t, 0.7, cc.MasteryThreshold)
	assert.Equal(t, 30*time.Second, cc.RecencyWindow)
	assert.Equal(t, 3, cc.TopK)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.False(t, cfg.UseLLM)
	assert.Equal(t, StoreMemory, cfg.Store)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"threshold above one":  {"LEARNLOOP_MASTERY_THRESHOLD": "1.5"},
		"zero learning rate":   {"LEARNLOOP_LEARNING_RATE": "0"},
		"decay rate above one": {"LEARNLOOP_DECAY_RATE": "1.2"},
		"zero top k":           {"LEARNLOOP_TOP_K": "0"},
		"negative penalty":     {"LEARNLOOP_RECENCY_PENALTY": "-0.1"},
		"bad duration":         {"LEARNLOOP_RECENCY_WINDOW": "later"},
		"bad number":           {"LEARNLOOP_TOP_K": "five"},
		"unknown log mode":     {"LEARNLOOP_LOG_MODE": "loud"},
		"unknown store":        {"LEARNLOOP_STORE": "postgres"},
		"zero pregen timeout":  {"LEARNLOOP_PREGEN_TIMEOUT": "0s"},
	}
	for name, environ := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(environ)
			assert.Error(t, err)
		})
	}
}
