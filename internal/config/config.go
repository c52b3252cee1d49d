package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultDiscoveryEndpoint is dialed for device discovery when the
// registry lists no devices and GRPC_SERVER is unset.
const DefaultDiscoveryEndpoint = "mock-devices.sila2.local:50051"

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Devices: DevicesConfig{
			RegistryPath:      "devices.json",
			DiscoveryEndpoint: DefaultDiscoveryEndpoint,
			CallTimeoutSec:    10,
			ReconnectBaseSec:  2,
		},
		Buffer: BufferConfig{
			MaxMinutes:       5,
			SamplesPerMinute: 12,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration. Environment overrides are
// applied in either case.
func LoadConfig(path string, logger *logrus.Logger) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Configuration file %s not found, using defaults", path)
		applyEnvironmentOverrides(config, logger)
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvironmentOverrides(config, logger)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func validateConfig(config *AppConfig) error {
	if config.HTTP.Port <= 0 || config.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in (0, 65535], got %d", config.HTTP.Port)
	}
	if config.Buffer.MaxMinutes <= 0 {
		return fmt.Errorf("buffer.max_minutes must be positive")
	}
	if config.Buffer.SamplesPerMinute <= 0 {
		return fmt.Errorf("buffer.samples_per_minute must be positive")
	}
	if config.Devices.DiscoveryEndpoint != "" {
		if _, _, err := net.SplitHostPort(config.Devices.DiscoveryEndpoint); err != nil {
			return fmt.Errorf("devices.discovery_endpoint must be host:port: %w", err)
		}
	}
	return nil
}

func applyEnvironmentOverrides(config *AppConfig, logger *logrus.Logger) {
	if endpoint := os.Getenv("GRPC_SERVER"); endpoint != "" {
		config.Devices.DiscoveryEndpoint = endpoint
	}
	if topic := os.Getenv("SNS_TOPIC_ARN"); topic != "" {
		config.Notify.TopicARN = topic
	}
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err != nil {
			logger.Warnf("Invalid HTTP_PORT: %s", portStr)
		} else {
			config.HTTP.Port = port
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if path := os.Getenv("DEVICE_REGISTRY"); path != "" {
		config.Devices.RegistryPath = path
	}
}

// LoadDeviceRegistry loads the JSON device configuration file. A missing
// file yields an empty registry so the caller can fall back to endpoint
// discovery.
func LoadDeviceRegistry(path string, logger *logrus.Logger) (*DeviceRegistry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Warnf("Device registry %s not found, relying on endpoint discovery", path)
		return &DeviceRegistry{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device registry: %w", err)
	}

	var registry DeviceRegistry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse device registry: %w", err)
	}

	seen := make(map[string]bool, len(registry.Devices))
	for _, d := range registry.Devices {
		if d.ID == "" {
			return nil, fmt.Errorf("device registry entry missing id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate device id %q in registry", d.ID)
		}
		seen[d.ID] = true
		if d.Host == "" || d.Port <= 0 {
			return nil, fmt.Errorf("device %s has no usable endpoint", d.ID)
		}
	}

	return &registry, nil
}

// Endpoint returns the device's host:port pair.
func (d DeviceDescriptor) Endpoint() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}
