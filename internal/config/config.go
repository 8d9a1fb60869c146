// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	AvatarDir   string
	AdminCode   string // empty disables the admin API entirely
	SessionTTL  time.Duration
	Sticker     StickerConfig
}

// StickerConfig controls the remote sticker search provider.
type StickerConfig struct {
	APIKey  string // empty falls back to the built-in sticker set
	BaseURL string
	Limit   int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	stickerLimit := getEnvInt("STICKER_LIMIT", 30)
	if stickerLimit <= 0 {
		stickerLimit = 30
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/pairchat.db"),
		AvatarDir:   getEnv("AVATAR_DIR", "./data/avatars"),
		AdminCode:   getEnv("ADMIN_CODE", ""),
		SessionTTL:  getEnvDuration("SESSION_TTL", time.Hour),
		Sticker: StickerConfig{
			APIKey:  getEnv("STICKER_API_KEY", ""),
			BaseURL: getEnv("STICKER_API_URL", "https://api.giphy.com/v1/stickers/search"),
			Limit:   stickerLimit,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.AvatarDir == "" {
		return fmt.Errorf("AVATAR_DIR cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.Sticker.BaseURL == "" {
		return fmt.Errorf("STICKER_API_URL cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
