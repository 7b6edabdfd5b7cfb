// Package config loads the service configuration: defaults, then TOML files,
// then WARREN_* environment variables, validated once at the end.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/askwarren/auth"
	"github.com/etnz/askwarren/mailer"
	"github.com/etnz/askwarren/store"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/phuslu/log"
)

// Duration is a time.Duration written as "30m" or "720h" in TOML files.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

type Server struct {
	Addr    string `toml:"addr" validate:"required"`
	BaseURL string `toml:"base_url" validate:"required,url"`
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `toml:"cors_origins"`
	// AnalysisPerMinute and AnalysisBurst throttle analyses per user.
	AnalysisPerMinute float64 `toml:"analysis_per_minute" validate:"gt=0"`
	AnalysisBurst     int     `toml:"analysis_burst" validate:"min=1"`
	// TickerSchedule is the cron spec of the market ticker refresh.
	TickerSchedule string `toml:"ticker_schedule" validate:"required"`
	MaxUploadMB    int64  `toml:"max_upload_mb" validate:"min=1"`
}

type Gemini struct {
	// APIKey defaults to GEMINI_API_KEY or GOOGLE_API_KEY, read by the client itself.
	APIKey string `toml:"api_key"`
}

type Files struct {
	Root string `toml:"root" validate:"required"`
	URL  string `toml:"url" validate:"required"`
}

type Auth struct {
	SessionTTL         Duration `toml:"session_ttl" validate:"gt=0"`
	VerifyTTL          Duration `toml:"verify_ttl" validate:"gt=0"`
	ResetTTL           Duration `toml:"reset_ttl" validate:"gt=0"`
	GoogleClientID     string   `toml:"google_client_id"`
	GoogleClientSecret string   `toml:"google_client_secret" validate:"required_with=GoogleClientID"`
}

type Log struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

type Database struct {
	Path     string `toml:"path" validate:"required_unless=InMemory true"`
	InMemory bool   `toml:"in_memory"`
}

// Config is the whole service configuration.
type Config struct {
	Server   Server        `toml:"server"`
	Gemini   Gemini        `toml:"gemini"`
	Database Database      `toml:"database"`
	Files    Files         `toml:"files"`
	Auth     Auth          `toml:"auth"`
	Mail     mailer.Config `toml:"mail"`
	Log      Log           `toml:"log"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			BaseURL:           "http://localhost:8080",
			AnalysisPerMinute: 2,
			AnalysisBurst:     3,
			TickerSchedule:    "@every 15m",
			MaxUploadMB:       50,
		},
		Database: Database{Path: "data/db"},
		Files:    Files{Root: "data/files", URL: "/files"},
		Auth: Auth{
			SessionTTL: Duration(30 * 24 * time.Hour),
			VerifyTTL:  Duration(48 * time.Hour),
			ResetTTL:   Duration(time.Hour),
		},
		Mail: mailer.Config{Port: 587, FromName: "Ask Warren"},
		Log:  Log{Level: "info", Format: "console"},
	}
}

// Load reads the files in order, later files overriding earlier ones, then
// applies the environment and validates the result.
func Load(paths ...string) (*Config, error) {
	cfg := Default()
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every constraint and reports them all at once.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overrides cfg with the WARREN_* variables found by getenv.
func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	str("WARREN_ADDR", &cfg.Server.Addr)
	str("WARREN_BASE_URL", &cfg.Server.BaseURL)
	if v := getenv("WARREN_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	str("WARREN_TICKER_SCHEDULE", &cfg.Server.TickerSchedule)
	str("WARREN_GEMINI_API_KEY", &cfg.Gemini.APIKey)
	str("WARREN_DB_PATH", &cfg.Database.Path)
	if v := getenv("WARREN_DB_IN_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.InMemory = b
		}
	}
	str("WARREN_FILES_ROOT", &cfg.Files.Root)
	str("WARREN_FILES_URL", &cfg.Files.URL)
	str("WARREN_GOOGLE_CLIENT_ID", &cfg.Auth.GoogleClientID)
	str("WARREN_GOOGLE_CLIENT_SECRET", &cfg.Auth.GoogleClientSecret)
	str("WARREN_SMTP_HOST", &cfg.Mail.Host)
	if v := getenv("WARREN_SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Mail.Port = p
		}
	}
	str("WARREN_SMTP_USERNAME", &cfg.Mail.Username)
	str("WARREN_SMTP_PASSWORD", &cfg.Mail.Password)
	str("WARREN_MAIL_FROM", &cfg.Mail.From)
	str("WARREN_LOG_LEVEL", &cfg.Log.Level)
	str("WARREN_LOG_FORMAT", &cfg.Log.Format)
}

// StoreConfig is the database configuration.
func (c *Config) StoreConfig() store.Config {
	return store.Config{Path: c.Database.Path, InMemory: c.Database.InMemory}
}

// AuthConfig is the account service configuration. Google sign-in is enabled
// when a client id is set.
func (c *Config) AuthConfig() auth.Config {
	a := auth.DefaultConfig(c.Server.BaseURL)
	a.SessionTTL = time.Duration(c.Auth.SessionTTL)
	a.VerifyTTL = time.Duration(c.Auth.VerifyTTL)
	a.ResetTTL = time.Duration(c.Auth.ResetTTL)
	if c.Auth.GoogleClientID != "" {
		a.Google = auth.GoogleConfig(c.Auth.GoogleClientID, c.Auth.GoogleClientSecret,
			strings.TrimSuffix(c.Server.BaseURL, "/")+"/api/auth/google/callback")
	}
	return a
}

// SetupLogging configures the default logger.
func (c *Config) SetupLogging() {
	logger := log.Logger{
		Level:      log.ParseLevel(c.Log.Level),
		TimeFormat: time.RFC3339,
	}
	if c.Log.Format == "json" {
		logger.Writer = &log.IOWriter{Writer: os.Stderr}
	} else {
		logger.TimeFormat = "15:04:05"
		logger.Writer = &log.ConsoleWriter{ColorOutput: true, Writer: os.Stderr}
	}
	log.DefaultLogger = logger
}
