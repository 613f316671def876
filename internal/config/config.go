package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken   string `yaml:"discord_token"`
	AlertChannelID string `yaml:"alert_channel_id"`
	CommandPrefix  string `yaml:"command_prefix"`

	// Torn API
	TornAPIKey           string `yaml:"torn_api_key"`
	FactionID            int64  `yaml:"faction_id"`
	APIRequestsPerMinute int    `yaml:"api_requests_per_minute"`

	// Database
	DatabaseDriver  string `yaml:"database_driver"`
	DatabaseURL     string `yaml:"database_url"`
	UpsertBatchSize int    `yaml:"upsert_batch_size"`

	// Polling
	PollingIntervalSeconds int `yaml:"polling_interval_seconds"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from a .env file, the environment and finally
// the YAML file named by BOT_CONFIG_FILE, each layer overriding the last
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		AlertChannelID: os.Getenv("ALERT_CHANNEL_ID"),
		CommandPrefix:  getEnvOrDefault("COMMAND_PREFIX", "!"),
		TornAPIKey:     os.Getenv("TORN_API_KEY"),
		DatabaseDriver: getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", "./data/bot.db"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.FactionID, err = getInt64("FACTION_ID", 0); err != nil {
		return nil, err
	}
	if cfg.PollingIntervalSeconds, err = getInt("POLLING_INTERVAL_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.UpsertBatchSize, err = getInt("UPSERT_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.APIRequestsPerMinute, err = getInt("API_REQUESTS_PER_MINUTE", 90); err != nil {
		return nil, err
	}

	if path := os.Getenv("BOT_CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	if cfg.PollingIntervalSeconds <= 0 {
		return nil, fmt.Errorf("POLLING_INTERVAL_SECONDS must be positive")
	}
	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (sqlite, postgres)", cfg.DatabaseDriver)
	}

	return cfg, nil
}

// overlay applies the keys present in a YAML file on top of cfg
func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields needed to connect to Discord and the game API
func (c *Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_BOT_TOKEN is required"))
	}
	if c.TornAPIKey == "" {
		errs = append(errs, errors.New("TORN_API_KEY is required"))
	}
	if c.FactionID <= 0 {
		errs = append(errs, errors.New("FACTION_ID is required"))
	}
	return errors.Join(errs...)
}

// PollingInterval returns the monitor polling interval
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnvOrDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v, err := strconv.ParseInt(getEnvOrDefault(key, strconv.FormatInt(defaultValue, 10)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
