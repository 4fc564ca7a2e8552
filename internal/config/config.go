// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath         string
	ListenAddr           string
	LogLevel             string
	DownloadDir          string
	CheckIntervalMinutes int
	MetadataTimeout      time.Duration
	// TelegramBotToken and TelegramChatID enable the optional Telegram
	// notification sink when both are set.
	TelegramBotToken string
	TelegramChatID   int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:         "./data/screener.db",
		ListenAddr:           ":8494",
		LogLevel:             "info",
		DownloadDir:          "./downloads",
		CheckIntervalMinutes: 30,
		MetadataTimeout:      45 * time.Second,
	}

	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("CHECK_INTERVAL_MINUTES"); v != "" {
		mins, err := strconv.Atoi(v)
		if err != nil || mins < 1 {
			return nil, fmt.Errorf("invalid CHECK_INTERVAL_MINUTES %q", v)
		}
		cfg.CheckIntervalMinutes = mins
	}
	if v := os.Getenv("METADATA_TIMEOUT_SECS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("invalid METADATA_TIMEOUT_SECS %q", v)
		}
		cfg.MetadataTimeout = time.Duration(secs) * time.Second
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", v, err)
		}
		cfg.TelegramChatID = chatID
	}

	return cfg, nil
}
