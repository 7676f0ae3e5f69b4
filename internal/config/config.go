package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Database
	DatabasePath string

	// Polling
	PollIntervalSeconds int

	// Per-server query timeout; must be shorter than the poll interval
	QueryTimeoutSeconds int

	// Name of the role allowed to use follow/unfollow commands
	AdminRole string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken: os.Getenv("DISCORD_BOT_TOKEN"),
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		AdminRole:    getEnvOrDefault("ADMIN_ROLE", "Server Status Admin"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	interval, err := getEnvInt("POLL_INTERVAL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.PollIntervalSeconds = interval

	timeout, err := getEnvInt("QUERY_TIMEOUT_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	cfg.QueryTimeoutSeconds = timeout

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.PollIntervalSeconds <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.QueryTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("QUERY_TIMEOUT_SECONDS must be positive")
	}
	if cfg.QueryTimeoutSeconds >= cfg.PollIntervalSeconds {
		return nil, fmt.Errorf("QUERY_TIMEOUT_SECONDS (%d) must be shorter than POLL_INTERVAL_SECONDS (%d)",
			cfg.QueryTimeoutSeconds, cfg.PollIntervalSeconds)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
