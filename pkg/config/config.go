package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envFacebookEmail     = "FB_EMAIL"
	envFacebookPassword  = "FB_PASSWORD"
	envCookieFile        = "ANYDOWN_COOKIE_FILE"
)

// Config is the root runtime configuration loaded once at startup.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Extractor ExtractorConfig `json:"extractor"`
	Delivery  DeliveryConfig  `json:"delivery,omitempty"`
	Status    StatusConfig    `json:"status,omitempty"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

// StatusConfig configures the health/readiness endpoint bind settings.
type StatusConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// TelegramConfig configures the Telegram channel integration.
type TelegramConfig struct {
	Token     string   `json:"token"`
	AllowFrom []string `json:"allow_from,omitempty"`
}

// ExtractorConfig configures the yt-dlp extraction backend.
type ExtractorConfig struct {
	BinaryPath          string         `json:"binary_path,omitempty"`
	CookieFile          string         `json:"cookie_file,omitempty"`
	Facebook            FacebookConfig `json:"facebook,omitempty"`
	ProbeTimeoutSeconds int            `json:"probe_timeout_seconds,omitempty"`
	FetchTimeoutSeconds int            `json:"fetch_timeout_seconds,omitempty"`
}

// FacebookConfig carries optional logged-in session credentials.
type FacebookConfig struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// DeliveryConfig controls upload behavior toward the messaging transport.
type DeliveryConfig struct {
	UploadTimeoutSeconds int `json:"upload_timeout_seconds,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
//
// A .env file in the working directory is loaded first when present, so the
// bot token and platform credentials can live outside the config file.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, fmt.Errorf("telegram.token is required (or set %s)", envTelegramBotToken)
	}

	return &cfg, nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Telegram.Token = token
	}

	if rawAllowFrom := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); rawAllowFrom != "" {
		cfg.Telegram.AllowFrom = parseCSV(rawAllowFrom)
	}

	if email := strings.TrimSpace(os.Getenv(envFacebookEmail)); email != "" {
		cfg.Extractor.Facebook.Email = email
	}

	if password := strings.TrimSpace(os.Getenv(envFacebookPassword)); password != "" {
		cfg.Extractor.Facebook.Password = password
	}

	if cookieFile := strings.TrimSpace(os.Getenv(envCookieFile)); cookieFile != "" {
		cfg.Extractor.CookieFile = cookieFile
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is ANYDOWN_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv("ANYDOWN_CONFIG")); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("ANYDOWN_CONFIG does not point to a file: %s", value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config.json not found (checked %s and %s)", candidates[0], candidates[1])
}
