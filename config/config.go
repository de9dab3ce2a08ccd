package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"toolgate/engine"
	"toolgate/llm/openai"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Addr     string
	Model    string
	BaseURL  string
	APIKey   string
	LogLevel string
	Engine   engine.Config
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Call godotenv.Load first if a .env file should be honored.
func Load() (Config, error) {
	cfg := Config{
		Addr:     envOr("TOOLGATE_ADDR", ":8080"),
		Model:    envOr("TOOLGATE_MODEL", "gpt-4o"),
		BaseURL:  envOr("OPENAI_BASE_URL", openai.DefaultBaseURL),
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		LogLevel: envOr("TOOLGATE_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.Engine.MaxRounds, err = envInt("TOOLGATE_MAX_ROUNDS", 10); err != nil {
		return Config{}, err
	}
	if cfg.Engine.ToolTimeout, err = envDuration("TOOLGATE_TOOL_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Engine.ToolRetries, err = envInt("TOOLGATE_TOOL_RETRIES", 2); err != nil {
		return Config{}, err
	}
	if cfg.Engine.ToolRetries < 0 {
		return Config{}, fmt.Errorf("TOOLGATE_TOOL_RETRIES must not be negative, got %d", cfg.Engine.ToolRetries)
	}
	if cfg.Engine.ToolRetries == 0 {
		// The engine treats a zero as "use the default budget".
		cfg.Engine.ToolRetries = engine.NoRetries
	}
	if cfg.Engine.ToolConcurrency, err = envInt("TOOLGATE_TOOL_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}

	if cfg.Engine.MaxRounds < 1 {
		return Config{}, fmt.Errorf("TOOLGATE_MAX_ROUNDS must be at least 1, got %d", cfg.Engine.MaxRounds)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
