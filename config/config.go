// Package config provides configuration loading for the gateway monitor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

// Config holds the application configuration.
type Config struct {
	// Gateway configuration
	Gateway GatewayConfig `yaml:"gateway"`

	// HTTP server configuration (metrics, API and live updates)
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`

	// Saved readings database
	Store StoreConfig `yaml:"store"`

	// Remembered credentials file
	Settings SettingsConfig `yaml:"settings"`

	// MQTT state publishing
	MQTT MQTTConfig `yaml:"mqtt"`

	// Diagnostics reporting
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// GatewayConfig holds gateway connection settings.
type GatewayConfig struct {
	// URL is the base URL of the gateway
	URL string `yaml:"url"`

	// Model is the gateway API (unified, legacy, mock, or auto)
	Model string `yaml:"model"`

	// PollInterval is how often to poll the gateway
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout for gateway requests
	Timeout time.Duration `yaml:"timeout"`

	// Username for gateway authentication
	Username string `yaml:"username"`

	// Password for gateway authentication
	Password string `yaml:"password"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// RateLimit caps gateway requests per second (0 disables)
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`

	// TestMode serves canned data instead of talking to a gateway
	TestMode bool `yaml:"test_mode"`
}

// MetricsConfig holds HTTP server settings.
type MetricsConfig struct {
	// Port to serve on
	Port int `yaml:"port"`

	// Path for metrics endpoint
	Path string `yaml:"path"`

	// AllowedOrigins are the origin patterns accepted for websocket clients
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Format is the log format (json, text)
	Format string `yaml:"format"`
}

// StoreConfig holds the saved readings database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SettingsConfig holds the credentials file settings.
type SettingsConfig struct {
	Path string `yaml:"path"`

	// Passphrase protects the stored password (defaults to a machine key)
	Passphrase string `yaml:"passphrase"`
}

// MQTTConfig holds the MQTT publisher settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// DiagnosticsConfig holds diagnostics settings.
type DiagnosticsConfig struct {
	// Breadcrumbs is how many request breadcrumbs to keep per report
	Breadcrumbs int `yaml:"breadcrumbs"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			URL:                "http://192.168.12.1",
			Model:              "auto",
			PollInterval:       5 * time.Second,
			Timeout:            20 * time.Second,
			InsecureSkipVerify: true,
			RateLimit:          10,
			RateBurst:          5,
		},
		Metrics: MetricsConfig{
			Port: 9100,
			Path: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: "readings.db",
		},
		Settings: SettingsConfig{
			Path: "~/.config/gateway-monitor/settings.toml",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "tmobile",
		},
		Diagnostics: DiagnosticsConfig{
			Breadcrumbs: 50,
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// Environment variables override values from the config file.
func LoadConfigFromEnv(cfg *Config) {
	if url := os.Getenv("TMOBILE_GATEWAY_URL"); url != "" {
		cfg.Gateway.URL = url
	}

	if model := os.Getenv("TMOBILE_GATEWAY_MODEL"); model != "" {
		cfg.Gateway.Model = model
	}

	if interval := os.Getenv("TMOBILE_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Gateway.PollInterval = d
		}
	}

	if port := os.Getenv("TMOBILE_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}

	if username := os.Getenv("TMOBILE_GATEWAY_USERNAME"); username != "" {
		cfg.Gateway.Username = username
	}

	if password := os.Getenv("TMOBILE_GATEWAY_PASSWORD"); password != "" {
		cfg.Gateway.Password = password
	}

	if testMode := os.Getenv("TMOBILE_TEST_MODE"); testMode != "" {
		if b, err := strconv.ParseBool(testMode); err == nil {
			cfg.Gateway.TestMode = b
		}
	}

	if level := os.Getenv("TMOBILE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if format := os.Getenv("TMOBILE_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if path := os.Getenv("TMOBILE_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}

	if broker := os.Getenv("TMOBILE_MQTT_BROKER"); broker != "" {
		cfg.MQTT.Broker = broker
		cfg.MQTT.Enabled = true
	}
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if _, err := gateway.ParseModel(c.Gateway.Model); err != nil {
		errs = append(errs, fmt.Errorf("gateway.model: %w", err))
	}
	if !strings.HasPrefix(c.Gateway.URL, "http://") && !strings.HasPrefix(c.Gateway.URL, "https://") {
		errs = append(errs, fmt.Errorf("gateway.url must be an http(s) URL, got %q", c.Gateway.URL))
	}
	if c.Gateway.PollInterval <= 0 {
		errs = append(errs, errors.New("gateway.poll_interval must be positive"))
	}
	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.port must be 1-65535, got %d", c.Metrics.Port))
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	return errors.Join(errs...)
}

// ToGatewayConfig converts the config to a gateway.ClientConfig.
func (c *Config) ToGatewayConfig() gateway.ClientConfig {
	model, err := gateway.ParseModel(c.Gateway.Model)
	if err != nil {
		model = gateway.ModelAuto
	}

	return gateway.ClientConfig{
		URL:                strings.TrimRight(c.Gateway.URL, "/"),
		Model:              model,
		Timeout:            c.Gateway.Timeout,
		InsecureSkipVerify: c.Gateway.InsecureSkipVerify,
		RateLimit:          c.Gateway.RateLimit,
		RateBurst:          c.Gateway.RateBurst,
		TestMode:           c.Gateway.TestMode,
	}
}
