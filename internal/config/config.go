package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// APIKeyEnv names the provider credential. It is read from the process
// environment on every call, never cached in Config.
const APIKeyEnv = "ANTHROPIC_API_KEY"

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	AnthropicBaseURL   string        `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	AnthropicModel     string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-haiku-20240307"`
	AnthropicMaxTokens int           `env:"ANTHROPIC_MAX_TOKENS" envDefault:"300"`
	AnthropicTimeout   time.Duration `env:"ANTHROPIC_TIMEOUT" envDefault:"0s"`

	PersonaFile string `env:"PERSONA_FILE"`

	RateLimit  int           `env:"RATE_LIMIT" envDefault:"10"`
	RateWindow time.Duration `env:"RATE_WINDOW" envDefault:"1m"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogNoColor bool   `env:"LOG_NO_COLOR" envDefault:"false"`
}

func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	if cfg.RateWindow <= 0 {
		return nil, fmt.Errorf("RATE_WINDOW must be positive, got %s", cfg.RateWindow)
	}
	if cfg.AnthropicMaxTokens <= 0 {
		return nil, fmt.Errorf("ANTHROPIC_MAX_TOKENS must be positive, got %d", cfg.AnthropicMaxTokens)
	}

	return cfg, nil
}

// APIKey returns the provider credential as currently set in the environment.
func (c *Config) APIKey() string {
	return os.Getenv(APIKeyEnv)
}
