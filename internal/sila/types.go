package sila

import "time"

// DeviceInfo is a device's self-reported identity and state, returned by
// GetDeviceInfo and ListDevices. The device is authoritative for Status;
// the bridge never caches it.
type DeviceInfo struct {
	DeviceID   string            `cbor:"device_id" json:"device_id"`
	DeviceType string            `cbor:"device_type" json:"device_type"`
	Status     string            `cbor:"status" json:"status"`
	Properties map[string]string `cbor:"properties,omitempty" json:"properties,omitempty"`
	Timestamp  time.Time         `cbor:"timestamp" json:"timestamp"`
}

// CommandRequest asks a device to execute a named operation. Operations
// are opaque strings; validation is the device's responsibility.
type CommandRequest struct {
	DeviceID   string         `cbor:"device_id" json:"device_id"`
	Operation  string         `cbor:"operation" json:"operation"`
	Parameters map[string]any `cbor:"parameters,omitempty" json:"parameters,omitempty"`
}

// CommandResult is a device's answer to a CommandRequest.
type CommandResult struct {
	DeviceID  string         `cbor:"device_id" json:"device_id"`
	Operation string         `cbor:"operation" json:"operation"`
	Success   bool           `cbor:"success" json:"success"`
	Status    string         `cbor:"status" json:"status"`
	Result    map[string]any `cbor:"result,omitempty" json:"result,omitempty"`
	Timestamp time.Time      `cbor:"timestamp" json:"timestamp"`
}

// DeviceList is the ListDevices response.
type DeviceList struct {
	Devices   []DeviceInfo `cbor:"devices" json:"devices"`
	Count     int          `cbor:"count" json:"count"`
	Timestamp time.Time    `cbor:"timestamp" json:"timestamp"`
}

// TelemetrySample is one timestamped reading pushed on a telemetry
// subscription. Scenario is a simulator-only tag; real devices never set
// it.
type TelemetrySample struct {
	DeviceID       string    `cbor:"device_id" json:"device_id"`
	Timestamp      time.Time `cbor:"timestamp" json:"timestamp"`
	Temperature    float64   `cbor:"temperature" json:"temperature"`
	Target         float64   `cbor:"target,omitempty" json:"target_temperature,omitempty"`
	Scenario       string    `cbor:"scenario,omitempty" json:"scenario,omitempty"`
	ElapsedSeconds float64   `cbor:"elapsed_seconds,omitempty" json:"elapsed_seconds,omitempty"`
}

// getInfoParams is the GetDeviceInfo request payload.
type getInfoParams struct {
	DeviceID string `cbor:"device_id"`
}

// subscribeParams is the SubscribeTelemetry request payload. An empty
// DeviceID subscribes to all devices served by the endpoint.
type subscribeParams struct {
	DeviceID string `cbor:"device_id,omitempty"`
}
