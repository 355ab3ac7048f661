package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kapu/untranslate-go/internal/domain"
)

type Config struct {
	YouTube  YouTubeConfig
	Restore  RestoreConfig
	Bridge   BridgeConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Logging  LoggingConfig
}

// YouTubeConfig holds official Data API credentials. The official path is a
// capability: with no credential (or the flag off) resolution goes straight
// to the internal API.
type YouTubeConfig struct {
	APIKey         string
	OAuthToken     string
	EnableOfficial bool
}

// HasCredential reports whether the official API can be called at all.
func (c YouTubeConfig) HasCredential() bool {
	return c.APIKey != "" || c.OAuthToken != ""
}

type RestoreConfig struct {
	Titles       bool
	Descriptions bool
	GuardMode    domain.GuardMode
}

type BridgeConfig struct {
	Enabled bool
	Addr    string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		YouTube: YouTubeConfig{
			APIKey:         getEnv("YOUTUBE_API_KEY", ""),
			OAuthToken:     getEnv("YOUTUBE_OAUTH_TOKEN", ""),
			EnableOfficial: getEnvBool("YOUTUBE_ENABLE_OFFICIAL", true),
		},
		Restore: RestoreConfig{
			Titles:       getEnvBool("RESTORE_TITLES", true),
			Descriptions: getEnvBool("RESTORE_DESCRIPTIONS", true),
			GuardMode:    domain.GuardMode(getEnv("GUARD_MODE", "enable")),
		},
		Bridge: BridgeConfig{
			Enabled: getEnvBool("BRIDGE_ENABLED", true),
			Addr:    getEnv("BRIDGE_ADDR", ":8750"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Enabled:  getEnvBool("POSTGRES_ENABLED", false),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "untranslated"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "untranslated"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.Restore.GuardMode.Valid() {
		return fmt.Errorf("GUARD_MODE must be %q or %q, got %q",
			domain.GuardEnable, domain.GuardDisable, c.Restore.GuardMode)
	}
	if c.Bridge.Enabled && strings.TrimSpace(c.Bridge.Addr) == "" {
		return fmt.Errorf("BRIDGE_ADDR is required when the bridge is enabled")
	}
	if c.YouTube.EnableOfficial && c.YouTube.APIKey != "" && c.YouTube.OAuthToken != "" {
		return fmt.Errorf("set YOUTUBE_API_KEY or YOUTUBE_OAUTH_TOKEN, not both")
	}
	if c.Postgres.Enabled && c.Postgres.User == "" {
		return fmt.Errorf("POSTGRES_USER is required when postgres is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
