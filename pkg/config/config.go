// Package config loads the server configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	DBPath    string `yaml:"db_path"`
	Port      string `yaml:"port"`
	UploadDir string `yaml:"upload_dir"`
	Timezone  string `yaml:"timezone"`

	Log       LogConfig       `yaml:"log"`
	AI        AIConfig        `yaml:"ai"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	OCR       OCRConfig       `yaml:"ocr"`
	Google    GoogleConfig    `yaml:"google"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Discord   DiscordConfig   `yaml:"discord"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	Export    ExportConfig    `yaml:"export"`
	Reprocess ReprocessConfig `yaml:"reprocess"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// AIConfig selects the generative analyzer. An empty provider or key turns
// it off.
type AIConfig struct {
	Provider string `yaml:"provider"` // gemini, openai, anthropic, moonshot
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

type PipelineConfig struct {
	AnalyzerTimeout      time.Duration `yaml:"analyzer_timeout"`
	AutoConvertThreshold float64       `yaml:"auto_convert_threshold"`
	RosterTTL            time.Duration `yaml:"roster_ttl"`
	RosterCacheSize      int           `yaml:"roster_cache_size"`
}

type OCRConfig struct {
	Engine   string        `yaml:"engine"` // http, gemini or empty for none
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

type GoogleConfig struct {
	CredentialsFile   string        `yaml:"credentials_file"`
	GmailUser         string        `yaml:"gmail_user"`
	CalendarID        string        `yaml:"calendar_id"`
	DriveFolderID     string        `yaml:"drive_folder_id"`
	DriveOwner        string        `yaml:"drive_owner"`
	DrivePollInterval time.Duration `yaml:"drive_poll_interval"`
	BackupFolderID    string        `yaml:"backup_folder_id"`
	BackupInterval    time.Duration `yaml:"backup_interval"`
}

// TelegramConfig maps chat IDs to owners.
type TelegramConfig struct {
	Token  string           `yaml:"token"`
	Owners map[int64]string `yaml:"owners"`
}

// DiscordConfig maps Discord user IDs to owners.
type DiscordConfig struct {
	Token  string            `yaml:"token"`
	Owners map[string]string `yaml:"owners"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
}

type ExportConfig struct {
	Dir        string `yaml:"dir"`
	Git        bool   `yaml:"git"`
	Push       bool   `yaml:"push"`
	SSHKeyPath string `yaml:"ssh_key_path"`
}

type ReprocessConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DBPath:    "family-capture.db",
		Port:      "8080",
		UploadDir: "uploads",
		Timezone:  "Local",
		Log:       LogConfig{Level: "INFO"},
		Pipeline: PipelineConfig{
			AnalyzerTimeout: 10 * time.Second,
			RosterTTL:       5 * time.Minute,
			RosterCacheSize: 128,
		},
		OCR: OCRConfig{Timeout: 30 * time.Second},
		Google: GoogleConfig{
			GmailUser:         "me",
			CalendarID:        "primary",
			DrivePollInterval: 2 * time.Minute,
			BackupInterval:    time.Hour,
		},
		Reprocess: ReprocessConfig{Interval: 5 * time.Minute, MaxAttempts: 3},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("CAPTURE_DB_PATH", c.DBPath)
	c.Port = getEnv("CAPTURE_PORT", c.Port)
	c.UploadDir = getEnv("CAPTURE_UPLOAD_DIR", c.UploadDir)
	c.Timezone = getEnv("CAPTURE_TIMEZONE", c.Timezone)
	c.Log.File = getEnv("CAPTURE_LOG_FILE", c.Log.File)
	c.Log.Level = getEnv("CAPTURE_LOG_LEVEL", c.Log.Level)
	c.AI.Provider = getEnv("CAPTURE_AI_PROVIDER", c.AI.Provider)
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv(apiKeyEnv(c.AI.Provider))
	}
	if c.OCR.Engine == "gemini" && c.OCR.APIKey == "" {
		c.OCR.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	c.Google.CredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.Google.CredentialsFile)
	c.Telegram.Token = getEnv("TELEGRAM_TOKEN", c.Telegram.Token)
	c.Discord.Token = getEnv("DISCORD_TOKEN", c.Discord.Token)
	c.Twilio.AccountSID = getEnv("TWILIO_ACCOUNT_SID", c.Twilio.AccountSID)
	c.Twilio.AuthToken = getEnv("TWILIO_AUTH_TOKEN", c.Twilio.AuthToken)
	c.Export.Dir = getEnv("CAPTURE_EXPORT_DIR", c.Export.Dir)

	if v := os.Getenv("CAPTURE_AUTO_CONVERT"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid CAPTURE_AUTO_CONVERT %q: %w", v, err)
		}
		c.Pipeline.AutoConvertThreshold = t
	}
	return nil
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if t := c.Pipeline.AutoConvertThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("auto_convert_threshold must be between 0 and 1, got %v", t))
	}
	switch c.OCR.Engine {
	case "", "gemini":
	case "http":
		if c.OCR.Endpoint == "" {
			errs = append(errs, errors.New("ocr.endpoint is required for the http engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ocr engine %q", c.OCR.Engine))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LogLevel parses Log.Level.
func (c Config) LogLevel() slog.Level {
	return parseLogLevel(c.Log.Level)
}

func apiKeyEnv(provider string) string {
	if provider == "" {
		return "GEMINI_API_KEY"
	}
	return strings.ToUpper(provider) + "_API_KEY"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
