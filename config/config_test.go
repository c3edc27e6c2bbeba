package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmobile-dashboard/gateway-monitor/gateway"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)

	cfg, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.12.1", cfg.Gateway.URL)
	assert.Equal(t, 5*time.Second, cfg.Gateway.PollInterval)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  url: https://10.0.0.1/
  model: nokia
  poll_interval: 30s
  username: admin
metrics:
  port: 9200
  allowed_origins: ["localhost:*"]
logging:
  format: json
mqtt:
  enabled: true
  broker: tcp://broker:1883
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1/", cfg.Gateway.URL)
	assert.Equal(t, 30*time.Second, cfg.Gateway.PollInterval)
	assert.Equal(t, "admin", cfg.Gateway.Username)
	assert.Equal(t, 9200, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, []string{"localhost:*"}, cfg.Metrics.AllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "tmobile", cfg.MQTT.TopicPrefix)
	assert.NoError(t, cfg.Validate())

	gw := cfg.ToGatewayConfig()
	assert.Equal(t, "https://10.0.0.1", gw.URL)
	assert.Equal(t, gateway.ModelLegacy, gw.Model)
	assert.Equal(t, 20*time.Second, gw.Timeout)
	assert.True(t, gw.InsecureSkipVerify)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TMOBILE_GATEWAY_URL", "http://192.168.0.1")
	t.Setenv("TMOBILE_GATEWAY_MODEL", "unified")
	t.Setenv("TMOBILE_POLL_INTERVAL", "1m")
	t.Setenv("TMOBILE_METRICS_PORT", "not-a-port")
	t.Setenv("TMOBILE_GATEWAY_PASSWORD", "secret")
	t.Setenv("TMOBILE_TEST_MODE", "true")
	t.Setenv("TMOBILE_LOG_LEVEL", "debug")
	t.Setenv("TMOBILE_STORE_PATH", "/var/lib/readings.db")
	t.Setenv("TMOBILE_MQTT_BROKER", "tcp://mqtt:1883")

	cfg := DefaultConfig()
	LoadConfigFromEnv(&cfg)

	assert.Equal(t, "http://192.168.0.1", cfg.Gateway.URL)
	assert.Equal(t, "unified", cfg.Gateway.Model)
	assert.Equal(t, time.Minute, cfg.Gateway.PollInterval)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.Equal(t, "secret", cfg.Gateway.Password)
	assert.True(t, cfg.Gateway.TestMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/readings.db", cfg.Store.Path)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://mqtt:1883", cfg.MQTT.Broker)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Model = "zte"
	cfg.Gateway.URL = "192.168.12.1"
	cfg.Gateway.PollInterval = 0
	cfg.Metrics.Port = 70000
	cfg.Metrics.Path = "metrics"
	cfg.MQTT.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"gateway.model",
		"gateway.url",
		"gateway.poll_interval",
		"metrics.port",
		"metrics.path",
		"mqtt.broker",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestToGatewayConfigFallsBackToAuto(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Model = "bogus"
	assert.Equal(t, gateway.ModelAuto, cfg.ToGatewayConfig().Model)
}
