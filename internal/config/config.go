// Package config loads fraudwatch settings from a config file, the
// environment and an optional .env file.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/fraudwatch/internal/classifier"
	"github.com/Veraticus/fraudwatch/internal/common"
	"github.com/Veraticus/fraudwatch/internal/request"
)

// Development defaults.
const (
	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultAPIKey         = "your-api-key-here"
	DefaultPredictBaseURL = "https://pi-fraude-api-vncs.onrender.com"
	DefaultDatabasePath   = "$HOME/.local/share/fraudwatch/history.db"
	DefaultServerAddr     = ":8080"
	EnvPrefix             = "FRAUDWATCH"
)

// Config holds every setting the commands need.
type Config struct {
	API      APIConfig
	Client   ClientConfig
	Request  request.Config
	Catalog  CatalogConfig
	Database DatabaseConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Session  SessionConfig
}

// APIConfig locates the two classification endpoints.
type APIConfig struct {
	// BaseURL serves the manual /api/v1/classify endpoint.
	BaseURL string
	Key     string
	// PredictBaseURL serves the dashboard /predict endpoint.
	PredictBaseURL string
}

// ClientConfig tunes the HTTP classifier.
type ClientConfig struct {
	Timeout           time.Duration
	RetryDelay        time.Duration
	MaxAttempts       uint
	RequestsPerMinute int
}

// CatalogConfig points at an optional fraud examples file.
type CatalogConfig struct {
	FraudExamplesPath string
}

// DatabaseConfig locates the history database.
type DatabaseConfig struct {
	Path string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// SessionConfig tunes the submission session.
type SessionConfig struct {
	SubmissionTimeout time.Duration
}

// LoadDotEnv loads variables from .env files that exist. Variables already in
// the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		p = ExpandPath(p)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "failed to load %s", p)
		}
		slog.Debug("Loaded environment file", "path", p)
	}
	return nil
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	rd := request.DefaultConfig()

	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("api.key", DefaultAPIKey)
	v.SetDefault("api.predict_base_url", DefaultPredictBaseURL)
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.retry_delay", 2*time.Second)
	v.SetDefault("client.max_attempts", 0)
	v.SetDefault("client.requests_per_minute", 0)
	v.SetDefault("request.min_display_amount", rd.MinDisplayAmount)
	v.SetDefault("request.max_display_amount", rd.MaxDisplayAmount)
	v.SetDefault("request.max_amount", rd.MaxAmount)
	v.SetDefault("request.max_time_offset", rd.MaxTimeOffset)
	v.SetDefault("request.display_transmitted_amount", false)
	v.SetDefault("catalog.fraud_examples_path", "")
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("session.submission_timeout", time.Duration(0))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The bare names are what the hosted backend documents.
	_ = v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", "API_BASE_URL")
	_ = v.BindEnv("api.key", EnvPrefix+"_API_KEY", "API_KEY")
	_ = v.BindEnv("api.predict_base_url", EnvPrefix+"_API_PREDICT_BASE_URL", "PREDICT_BASE_URL")
}

// ReadFile reads the config file at path, or searches the default
// locations when path is empty. A missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(ExpandPath(path))
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config")
	}
	slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	return nil
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	maxAttempts := v.GetInt("client.max_attempts")
	if maxAttempts < 0 {
		return nil, errors.Newf("client.max_attempts cannot be negative, got %d", maxAttempts)
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:        v.GetString("api.base_url"),
			Key:            v.GetString("api.key"),
			PredictBaseURL: v.GetString("api.predict_base_url"),
		},
		Client: ClientConfig{
			Timeout:           v.GetDuration("client.timeout"),
			RetryDelay:        v.GetDuration("client.retry_delay"),
			MaxAttempts:       uint(maxAttempts),
			RequestsPerMinute: v.GetInt("client.requests_per_minute"),
		},
		Request: request.Config{
			MinDisplayAmount:         v.GetFloat64("request.min_display_amount"),
			MaxDisplayAmount:         v.GetFloat64("request.max_display_amount"),
			MaxAmount:                v.GetFloat64("request.max_amount"),
			MaxTimeOffset:            v.GetInt("request.max_time_offset"),
			DisplayTransmittedAmount: v.GetBool("request.display_transmitted_amount"),
		},
		Catalog: CatalogConfig{
			FraudExamplesPath: ExpandPath(v.GetString("catalog.fraud_examples_path")),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Session: SessionConfig{
			SubmissionTimeout: v.GetDuration("session.submission_timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.API.PredictBaseURL == "" {
		return errors.Wrap(common.ErrMissingConfig, "api.predict_base_url is required")
	}
	if c.API.BaseURL == "" {
		return errors.Wrap(common.ErrMissingConfig, "api.base_url is required")
	}
	if c.Client.RequestsPerMinute < 0 {
		return errors.Newf("client.requests_per_minute cannot be negative, got %d", c.Client.RequestsPerMinute)
	}
	if c.Session.SubmissionTimeout < 0 {
		return errors.New("session.submission_timeout cannot be negative")
	}
	if c.API.Key == DefaultAPIKey {
		slog.Debug("Using the development API key placeholder")
	}
	return nil
}

// DashboardClient returns the classifier settings for the /predict endpoint.
func (c *Config) DashboardClient() classifier.Config {
	return classifier.Config{
		BaseURL:           c.API.PredictBaseURL,
		Variant:           classifier.VariantDashboard,
		Timeout:           c.Client.Timeout,
		RetryDelay:        c.Client.RetryDelay,
		MaxAttempts:       c.Client.MaxAttempts,
		RequestsPerMinute: c.Client.RequestsPerMinute,
	}
}

// ManualClient returns the classifier settings for the form endpoint.
func (c *Config) ManualClient() classifier.Config {
	cfg := c.DashboardClient()
	cfg.BaseURL = c.API.BaseURL
	cfg.APIKey = c.API.Key
	cfg.Variant = classifier.VariantManual
	return cfg
}
