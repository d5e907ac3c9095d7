// Package config loads server and engine settings from LEARNLOOP_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/compiler"
)

// Storage backends.
const (
	StoreSQLite = "sqlite"
	// StoreMemory keeps everything in process; state is lost on exit.
	StoreMemory = "memory"
)

// Config is the process configuration. Zero values are never used directly;
// every field has a default.
type Config struct {
	HTTPAddr   string `env:"LEARNLOOP_HTTP_ADDR"   envDefault:":8080"`
	Store      string `env:"LEARNLOOP_STORE"       envDefault:"sqlite"`
	DB         string `env:"LEARNLOOP_DB"`
	Curriculum string `env:"LEARNLOOP_CURRICULUM"`
	LogMode    string `env:"LEARNLOOP_LOG_MODE"    envDefault:"prod"`

	MasteryThreshold float64       `env:"LEARNLOOP_MASTERY_THRESHOLD" envDefault:"0.6"`
	LearningRate     float64       `env:"LEARNLOOP_LEARNING_RATE"     envDefault:"0.3"`
	DecayRate        float64       `env:"LEARNLOOP_DECAY_RATE"        envDefault:"0.15"`
	UrgencyBonus     float64       `env:"LEARNLOOP_URGENCY_BONUS"     envDefault:"0.25"`
	RecencyPenalty   float64       `env:"LEARNLOOP_RECENCY_PENALTY"   envDefault:"0.1"`
	RecencyWindow    time.Duration `env:"LEARNLOOP_RECENCY_WINDOW"    envDefault:"2m"`
	TopK             int           `env:"LEARNLOOP_TOP_K"             envDefault:"5"`

	RedisAddr     string        `env:"LEARNLOOP_REDIS_ADDR"`
	CardCacheTTL  time.Duration `env:"LEARNLOOP_CARD_CACHE_TTL"  envDefault:"24h"`
	PregenTimeout time.Duration `env:"LEARNLOOP_PREGEN_TIMEOUT"  envDefault:"30s"`
	UseLLM        bool          `env:"LEARNLOOP_USE_LLM"         envDefault:"true"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses an explicit environment map instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every tunable.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("LEARNLOOP_HTTP_ADDR must not be empty")
	}
	switch c.Store {
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("LEARNLOOP_STORE must be %s or %s, got %q", StoreSQLite, StoreMemory, c.Store)
	}
	switch c.LogMode {
	case "prod", "dev":
	default:
		return fmt.Errorf("LEARNLOOP_LOG_MODE must be prod or dev, got %q", c.LogMode)
	}
	if err := c.BeliefParams().Validate(); err != nil {
		return fmt.Errorf("belief update: %w", err)
	}
	if err := c.CompilerConfig().Validate(); err != nil {
		return fmt.Errorf("compiler: %w", err)
	}
	if c.PregenTimeout <= 0 {
		return fmt.Errorf("LEARNLOOP_PREGEN_TIMEOUT must be positive, got %s", c.PregenTimeout)
	}
	return nil
}

// BeliefParams returns the update-rule rates.
func (c Config) BeliefParams() belief.Params {
	return belief.Params{Alpha: c.LearningRate, Beta: c.DecayRate}
}

// CompilerConfig returns the scoring configuration.
func (c Config) CompilerConfig() compiler.Config {
	cc := compiler.DefaultConfig()
	cc.MasteryThreshold = c.MasteryThreshold
	cc.UrgencyBonus = c.UrgencyBonus
	cc.RecencyPenalty = c.RecencyPenalty
	cc.RecencyWindow = c.RecencyWindow
	cc.TopK = c.TopK
	return cc
}
