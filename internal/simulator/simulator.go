// Package simulator hosts mock laboratory devices behind the device RPC
// protocol, including a telemetry generator that runs a heating scenario
// toward each device's target temperature.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/sila"
)

// sampleInterval matches the bridge's default 12 samples/minute cadence.
const sampleInterval = 5 * time.Second

// heatingRatePerMinute is how fast a simulated device approaches its
// target temperature.
const heatingRatePerMinute = 4.0

// Device is one simulated instrument.
type Device struct {
	ID          string
	Type        string
	Location    string
	Temperature float64
	Target      float64

	status        string
	scenario      string
	scenarioStart time.Time
}

// Simulator implements sila.Handler over a fixed device set.
type Simulator struct {
	mu      sync.Mutex
	devices map[string]*Device
	order   []string
	logger  *logrus.Logger
	now     func() time.Time
}

// DefaultDevices is the standard mock laboratory.
func DefaultDevices() []*Device {
	return []*Device{
		{ID: "HPLC-01", Type: "hplc", Location: "lab-1/bench-a", Temperature: 22.0, Target: 22.0},
		{ID: "CENTRIFUGE-01", Type: "centrifuge", Location: "lab-1/bench-b", Temperature: 21.5, Target: 21.5},
		{ID: "PIPETTE-01", Type: "pipette", Location: "lab-1/bench-c", Temperature: 21.0, Target: 21.0},
	}
}

// New creates a simulator hosting the given devices.
func New(devices []*Device, logger *logrus.Logger) *Simulator {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Simulator{
		devices: make(map[string]*Device, len(devices)),
		logger:  logger,
		now:     time.Now,
	}
	for _, d := range devices {
		if d.status == "" {
			d.status = "ready"
		}
		s.devices[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	return s
}

func (s *Simulator) GetDeviceInfo(_ context.Context, deviceID string) (*sila.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return nil, &sila.RPCError{Code: sila.CodeNotFound, Message: fmt.Sprintf("unknown device %q", deviceID)}
	}
	return s.infoLocked(d), nil
}

func (s *Simulator) ListDevices(_ context.Context) (*sila.DeviceList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := &sila.DeviceList{Timestamp: s.now().UTC()}
	for _, id := range s.order {
		list.Devices = append(list.Devices, *s.infoLocked(s.devices[id]))
	}
	list.Count = len(list.Devices)
	return list, nil
}

func (s *Simulator) ExecuteCommand(_ context.Context, req *sila.CommandRequest) (*sila.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[req.DeviceID]
	if !ok {
		return nil, &sila.RPCError{Code: sila.CodeNotFound, Message: fmt.Sprintf("unknown device %q", req.DeviceID)}
	}

	result := &sila.CommandResult{
		DeviceID:  req.DeviceID,
		Operation: req.Operation,
		Success:   true,
		Timestamp: s.now().UTC(),
	}

	switch req.Operation {
	case "set_temperature":
		target, ok := numberParam(req.Parameters, "target")
		if !ok {
			return nil, &sila.RPCError{Code: sila.CodeInvalidArguments, Message: "set_temperature requires a numeric target"}
		}
		d.Target = target
		d.scenario = "temperature_ramp"
		d.scenarioStart = s.now()
		result.Result = map[string]any{"target": target}

	case "dose_volume":
		volume, ok := numberParam(req.Parameters, "volume_ml")
		if !ok {
			return nil, &sila.RPCError{Code: sila.CodeInvalidArguments, Message: "dose_volume requires a numeric volume_ml"}
		}
		result.Result = map[string]any{"dispensed_ml": volume}

	case "stop":
		d.status = "ready"
		d.scenario = ""

	default:
		// Opaque operations: start_* flips the device busy, anything else
		// is acknowledged as-is. Validation is the device's concern and
		// the mock accepts everything.
		if len(req.Operation) > 6 && req.Operation[:6] == "start_" {
			d.status = "busy"
			d.scenario = req.Operation[6:]
			d.scenarioStart = s.now()
		}
		if req.Parameters != nil {
			result.Result = map[string]any{"parameters": req.Parameters}
		}
	}

	result.Status = d.status
	return result, nil
}

// SubscribeTelemetry pushes a sample per device per interval until the
// context is canceled or the connection drops.
func (s *Simulator) SubscribeTelemetry(ctx context.Context, deviceID string, send func(*sila.TelemetrySample) error) error {
	if deviceID != "" {
		s.mu.Lock()
		_, ok := s.devices[deviceID]
		s.mu.Unlock()
		if !ok {
			return &sila.RPCError{Code: sila.CodeNotFound, Message: fmt.Sprintf("unknown device %q", deviceID)}
		}
	}

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, sample := range s.step() {
				if deviceID != "" && sample.DeviceID != deviceID {
					continue
				}
				if err := send(&sample); err != nil {
					return err
				}
			}
		}
	}
}

// step advances every device's temperature toward its target and returns
// the resulting samples.
func (s *Simulator) step() []sila.TelemetrySample {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	perStep := heatingRatePerMinute * sampleInterval.Minutes()

	samples := make([]sila.TelemetrySample, 0, len(s.order))
	for _, id := range s.order {
		d := s.devices[id]
		delta := d.Target - d.Temperature
		switch {
		case delta > perStep:
			d.Temperature += perStep
		case delta < -perStep:
			d.Temperature -= perStep
		default:
			d.Temperature = d.Target
		}
		// Sensor noise keeps flat lines from looking synthetic.
		d.Temperature += (rand.Float64() - 0.5) * 0.1

		sample := sila.TelemetrySample{
			DeviceID:    id,
			Timestamp:   now,
			Temperature: d.Temperature,
			Target:      d.Target,
			Scenario:    d.scenario,
		}
		if d.scenario != "" {
			sample.ElapsedSeconds = now.Sub(d.scenarioStart).Seconds()
		}
		samples = append(samples, sample)
	}
	return samples
}

func (s *Simulator) infoLocked(d *Device) *sila.DeviceInfo {
	return &sila.DeviceInfo{
		DeviceID:   d.ID,
		DeviceType: d.Type,
		Status:     d.status,
		Properties: map[string]string{
			"location":            d.Location,
			"current_temperature": fmt.Sprintf("%.2f", d.Temperature),
			"target_temperature":  fmt.Sprintf("%.2f", d.Target),
		},
		Timestamp: s.now().UTC(),
	}
}

func numberParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
