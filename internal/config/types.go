package config

// AppConfig is the bridge's root configuration, loaded from YAML with
// environment overrides.
type AppConfig struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Devices DevicesConfig `yaml:"devices"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the bridge's HTTP server (MCP endpoint plus the
// observation API).
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DevicesConfig configures device discovery and the device-facing RPC
// layer.
type DevicesConfig struct {
	// RegistryPath is the JSON device configuration file. When the file
	// is missing or lists no devices, the bridge discovers devices by
	// calling ListDevices on DiscoveryEndpoint.
	RegistryPath string `yaml:"registry_path"`

	// DiscoveryEndpoint is the host:port fallback device endpoint,
	// overridable with GRPC_SERVER.
	DiscoveryEndpoint string `yaml:"discovery_endpoint"`

	// CallTimeoutSec bounds every unary device call.
	CallTimeoutSec int `yaml:"call_timeout_sec"`

	// ReconnectBaseSec is the ingestor's base backoff between stream
	// reopen attempts.
	ReconnectBaseSec int `yaml:"reconnect_base_sec"`
}

// BufferConfig sizes the rolling telemetry buffer.
type BufferConfig struct {
	MaxMinutes       int `yaml:"max_minutes"`
	SamplesPerMinute int `yaml:"samples_per_minute"`
}

// NotifyConfig configures outbound device-event notifications. An empty
// TopicARN disables publishing; events are dropped.
type NotifyConfig struct {
	TopicARN string `yaml:"topic_arn"`
}

// LoggingConfig controls logrus setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DeviceDescriptor is one entry of the JSON device registry. Immutable
// after load except Status, which each query refreshes from the device.
type DeviceDescriptor struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Location string `json:"location"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

// DeviceRegistry is the parsed device configuration file.
type DeviceRegistry struct {
	Devices []DeviceDescriptor `json:"devices"`
}
