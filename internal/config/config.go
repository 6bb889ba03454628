// Package config loads console settings. Sources are applied in order, later
// ones winning: built-in defaults, an optional YAML file, .env files, CONSOLE_*
// environment variables and finally command-line flags.
//
// .env files are loaded before environment overrides are read:
//
//  1. ENV_FILE (if set, only this file is loaded)
//  2. .env.local
//  3. .env
//
// godotenv never overwrites variables already present in the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSessionSecret is the placeholder that must not reach production.
const DefaultSessionSecret = "change-me-in-production"

const insecureDevSecret = "insecure-dev-only-session-secret-do-not-use"

// Config is the complete console configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// ServerConfig configures the console's own HTTP server.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" env:"CONSOLE_LISTEN"`
	BaseURL         string        `yaml:"base_url" env:"CONSOLE_BASE_URL"`
	SessionSecret   string        `yaml:"session_secret" env:"CONSOLE_SESSION_SECRET"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"CONSOLE_SHUTDOWN_TIMEOUT"`
	// LoginRatePerMinute bounds login attempts per client IP.
	LoginRatePerMinute int `yaml:"login_rate_per_minute" env:"CONSOLE_LOGIN_RATE"`
}

// APIConfig points the console at the Lost & Found REST API.
type APIConfig struct {
	BaseURL         string        `yaml:"base_url" env:"CONSOLE_API_URL"`
	Timeout         time.Duration `yaml:"timeout" env:"CONSOLE_API_TIMEOUT"`
	PageSize        int           `yaml:"page_size" env:"CONSOLE_PAGE_SIZE"`
	BulkConcurrency int           `yaml:"bulk_concurrency" env:"CONSOLE_BULK_CONCURRENCY"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" env:"CONSOLE_DB_PATH"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"CONSOLE_LOG_LEVEL"`
	Format string `yaml:"format" env:"CONSOLE_LOG_FORMAT"`
}

// RealtimeConfig sets the periodic refresh of real-time screens.
type RealtimeConfig struct {
	Interval time.Duration `yaml:"interval" env:"CONSOLE_REALTIME_INTERVAL"`
}

// NotifyConfig configures SendGrid digests for failed bulk actions.
type NotifyConfig struct {
	SendGridKey string `yaml:"sendgrid_key" env:"CONSOLE_SENDGRID_KEY"`
	FromAddress string `yaml:"from_address" env:"CONSOLE_FROM_EMAIL"`
	FromName    string `yaml:"from_name" env:"CONSOLE_FROM_NAME"`
	To          string `yaml:"to" env:"CONSOLE_NOTIFY_TO"`
	Sandbox     bool   `yaml:"sandbox" env:"CONSOLE_SENDGRID_SANDBOX"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:         ":8080",
			BaseURL:            "http://localhost:8080",
			ShutdownTimeout:    10 * time.Second,
			LoginRatePerMinute: 10,
		},
		API: APIConfig{
			BaseURL:         "http://localhost:8000/api/v1",
			Timeout:         15 * time.Second,
			PageSize:        25,
			BulkConcurrency: 8,
		},
		Store:    StoreConfig{Path: "./console.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Realtime: RealtimeConfig{Interval: 30 * time.Second},
		Notify: NotifyConfig{
			FromAddress: "console@lostfound.local",
			FromName:    "Lost & Found Console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), .env files and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}
	applyEnvToStruct(reflect.ValueOf(&cfg).Elem())
	return &cfg, nil
}

// Overrides are command-line values; empty fields leave the config alone.
type Overrides struct {
	ListenAddr string
	APIBaseURL string
	DBPath     string
	LogLevel   string
}

// Apply copies the non-empty overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.ListenAddr != "" {
		c.Server.ListenAddr = o.ListenAddr
	}
	if o.APIBaseURL != "" {
		c.API.BaseURL = o.APIBaseURL
	}
	if o.DBPath != "" {
		c.Store.Path = o.DBPath
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}

// Validate checks the configuration and fills in the development session
// secret when none is set on a plain-http deployment.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL))
	}
	if c.API.PageSize < 1 || c.API.PageSize > 100 {
		errs = append(errs, fmt.Errorf("api.page_size %d out of range 1-100", c.API.PageSize))
	}
	if c.API.BulkConcurrency < 1 {
		errs = append(errs, fmt.Errorf("api.bulk_concurrency must be positive, got %d", c.API.BulkConcurrency))
	}
	if c.Realtime.Interval < time.Second {
		errs = append(errs, fmt.Errorf("realtime.interval %v is below 1s", c.Realtime.Interval))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	if c.Server.SessionSecret == "" || c.Server.SessionSecret == DefaultSessionSecret {
		if strings.HasPrefix(c.Server.BaseURL, "https://") {
			errs = append(errs, errors.New("server.session_secret must be set to a strong random value in production (try: openssl rand -hex 32)"))
		} else {
			c.Server.SessionSecret = insecureDevSecret
		}
	}
	return errors.Join(errs...)
}

// InsecureSecret reports whether the development session secret is in use.
func (c *Config) InsecureSecret() bool {
	return c.Server.SessionSecret == insecureDevSecret
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", s, err)
	}
	return l, nil
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyEnvToStruct sets every field tagged `env:"NAME"` from the environment,
// recursing into nested structs. Unparseable values are ignored.
func applyEnvToStruct(v reflect.Value) {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			applyEnvToStruct(field)
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		if val := os.Getenv(name); val != "" {
			setFieldFromString(field, val)
		}
	}
}

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
			return
		}
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Bool:
		s := strings.ToLower(strings.TrimSpace(val))
		field.SetBool(s == "true" || s == "1" || s == "yes")
	}
}
