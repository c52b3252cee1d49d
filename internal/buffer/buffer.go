// Package buffer holds the bridge's only shared mutable state: a bounded
// in-memory window of recent telemetry samples. Tool handlers and the
// observation API read it; per-device ingestors write it.
package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/silabio/sila2-bridge/internal/sila"
)

const (
	// DefaultMaxMinutes is the widest history window kept in memory.
	DefaultMaxMinutes = 5

	// DefaultSamplesPerMinute matches the simulator's 5-second cadence.
	DefaultSamplesPerMinute = 12

	// MaxWindowMinutes bounds the minutes argument of History.
	MaxWindowMinutes = 60
)

// Rolling is a FIFO buffer of telemetry samples with time-window queries.
// A single mutex guards all state; readers receive copied snapshots, so a
// concurrent append never mutates a returned slice.
type Rolling struct {
	mu       sync.Mutex
	samples  []sila.TelemetrySample
	capacity int
	now      func() time.Time
}

// New creates a buffer holding maxMinutes × samplesPerMinute samples.
// Non-positive arguments fall back to the defaults.
func New(maxMinutes, samplesPerMinute int) *Rolling {
	if maxMinutes <= 0 {
		maxMinutes = DefaultMaxMinutes
	}
	if samplesPerMinute <= 0 {
		samplesPerMinute = DefaultSamplesPerMinute
	}
	capacity := maxMinutes * samplesPerMinute
	return &Rolling{
		samples:  make([]sila.TelemetrySample, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Add appends a sample, evicting the oldest when the buffer is full. It
// fails only on structurally invalid samples.
func (r *Rolling) Add(sample sila.TelemetrySample) error {
	if sample.DeviceID == "" {
		return fmt.Errorf("sample has no device id")
	}
	if sample.Timestamp.IsZero() {
		return fmt.Errorf("sample for %s has no timestamp", sample.DeviceID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.samples) == r.capacity {
		copy(r.samples, r.samples[1:])
		r.samples = r.samples[:len(r.samples)-1]
	}
	r.samples = append(r.samples, sample)
	return nil
}

// History returns the samples whose timestamp is strictly after
// now − minutes, in insertion order. deviceID filters to one device when
// non-empty. minutes must be in [1, MaxWindowMinutes].
func (r *Rolling) History(deviceID string, minutes int) ([]sila.TelemetrySample, error) {
	if minutes < 1 || minutes > MaxWindowMinutes {
		return nil, fmt.Errorf("minutes must be between 1 and %d, got %d", MaxWindowMinutes, minutes)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-time.Duration(minutes) * time.Minute)
	out := make([]sila.TelemetrySample, 0, len(r.samples))
	for _, s := range r.samples {
		if !s.Timestamp.After(cutoff) {
			continue
		}
		if deviceID != "" && s.DeviceID != deviceID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Devices returns the device ids present in the current buffer contents,
// in first-seen order.
func (r *Rolling) Devices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, 8)
	out := make([]string, 0, 8)
	for _, s := range r.samples {
		if !seen[s.DeviceID] {
			seen[s.DeviceID] = true
			out = append(out, s.DeviceID)
		}
	}
	return out
}

// Latest returns the most recent sample for deviceID, or false when the
// buffer holds none.
func (r *Rolling) Latest(deviceID string) (sila.TelemetrySample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.samples) - 1; i >= 0; i-- {
		if r.samples[i].DeviceID == deviceID {
			return r.samples[i], true
		}
	}
	return sila.TelemetrySample{}, false
}

// Len returns the number of buffered samples.
func (r *Rolling) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}
