package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), quietLogger())
	assert.NoError(t, err)

	assert.Equal(t, 8080, config.HTTP.Port)
	assert.Equal(t, DefaultDiscoveryEndpoint, config.Devices.DiscoveryEndpoint)
	assert.Equal(t, 5, config.Buffer.MaxMinutes)
	assert.Equal(t, 12, config.Buffer.SamplesPerMinute)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Empty(t, config.Notify.TopicARN)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
http:
  host: 127.0.0.1
  port: 9090
devices:
  registry_path: lab-devices.json
  discovery_endpoint: devices.lab.internal:50051
  reconnect_base_sec: 5
buffer:
  max_minutes: 10
  samples_per_minute: 6
logging:
  level: debug
  format: json
`)

	config, err := LoadConfig(path, quietLogger())
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", config.HTTP.Host)
	assert.Equal(t, 9090, config.HTTP.Port)
	assert.Equal(t, "lab-devices.json", config.Devices.RegistryPath)
	assert.Equal(t, "devices.lab.internal:50051", config.Devices.DiscoveryEndpoint)
	assert.Equal(t, 5, config.Devices.ReconnectBaseSec)
	assert.Equal(t, 10, config.Buffer.MaxMinutes)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GRPC_SERVER", "sim.lab.internal:50099")
	t.Setenv("SNS_TOPIC_ARN", "arn:aws:sns:eu-west-1:123456789012:lab-events")
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEVICE_REGISTRY", "/etc/bridge/devices.json")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), quietLogger())
	assert.NoError(t, err)
	assert.Equal(t, "sim.lab.internal:50099", config.Devices.DiscoveryEndpoint)
	assert.Equal(t, "arn:aws:sns:eu-west-1:123456789012:lab-events", config.Notify.TopicARN)
	assert.Equal(t, 8088, config.HTTP.Port)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "/etc/bridge/devices.json", config.Devices.RegistryPath)
}

func TestLoadConfig_InvalidHTTPPortEnvIgnored(t *testing.T) {
	t.Setenv("HTTP_PORT", "eighty")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), quietLogger())
	assert.NoError(t, err)
	assert.Equal(t, 8080, config.HTTP.Port)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "http:\n  port: 70000\n"},
		{"non-positive buffer window", "buffer:\n  max_minutes: -1\n"},
		{"malformed discovery endpoint", "devices:\n  discovery_endpoint: not-a-hostport\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.content)
			_, err := LoadConfig(path, quietLogger())
			assert.Error(t, err)
		})
	}
}

func TestLoadDeviceRegistry(t *testing.T) {
	path := writeFile(t, t.TempDir(), "devices.json", `{
  "devices": [
    {"id": "HPLC-01", "type": "hplc", "status": "online", "location": "lab-1/bench-a", "host": "sim.lab.internal", "port": 50051},
    {"id": "CENTRIFUGE-01", "type": "centrifuge", "status": "online", "host": "sim.lab.internal", "port": 50051}
  ]
}`)

	registry, err := LoadDeviceRegistry(path, quietLogger())
	assert.NoError(t, err)
	assert.Len(t, registry.Devices, 2)
	assert.Equal(t, "HPLC-01", registry.Devices[0].ID)
	assert.Equal(t, "sim.lab.internal:50051", registry.Devices[0].Endpoint())
}

func TestLoadDeviceRegistry_MissingFileIsEmpty(t *testing.T) {
	registry, err := LoadDeviceRegistry(filepath.Join(t.TempDir(), "absent.json"), quietLogger())
	assert.NoError(t, err)
	assert.Empty(t, registry.Devices)
}

func TestLoadDeviceRegistry_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", `{"devices": [{"type": "hplc", "host": "h", "port": 1}]}`},
		{"duplicate id", `{"devices": [{"id": "A", "host": "h", "port": 1}, {"id": "A", "host": "h", "port": 1}]}`},
		{"no endpoint", `{"devices": [{"id": "A"}]}`},
		{"invalid json", `{"devices": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "devices.json", tt.content)
			_, err := LoadDeviceRegistry(path, quietLogger())
			assert.Error(t, err)
		})
	}
}
