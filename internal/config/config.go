package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	defaultTimeout = 120 * time.Second
	defaultMaxMB   = 50
)

type Config struct {
	BaseURL      string
	BaseURLParam string
	HTTPTimeout  time.Duration
	MaxUploadMB  int
	LogLevel     string
	LogFile      string
}

// Load reads the client configuration from the environment.
func Load() Config {
	return Config{
		BaseURL:      envStr("RESEARCH_CHAT_BASE_URL", DefaultBaseURL),
		BaseURLParam: envStr("RESEARCH_CHAT_BASE_URL_PARAM", ""),
		HTTPTimeout:  time.Duration(envInt("RESEARCH_CHAT_HTTP_TIMEOUT_MS", int(defaultTimeout/time.Millisecond))) * time.Millisecond,
		MaxUploadMB:  envInt("RESEARCH_CHAT_MAX_UPLOAD_MB", defaultMaxMB),
		LogLevel:     envStr("LOG_LEVEL", "info"),
		LogFile:      envStr("RESEARCH_CHAT_LOG_FILE", ""),
	}
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Validate reports settings the client cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" && strings.TrimSpace(c.BaseURLParam) == "" {
		return errors.New("config: base URL or base URL parameter is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("config: max upload size must be positive, got %d MB", c.MaxUploadMB)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
