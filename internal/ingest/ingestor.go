// Package ingest runs one background worker per device, pulling samples
// from the device's telemetry stream into the rolling buffer. Workers are
// independent: a failing device backs off and reconnects without stalling
// the others.
package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/buffer"
	"github.com/silabio/sila2-bridge/internal/bus"
	"github.com/silabio/sila2-bridge/internal/sila"
)

// Stream yields telemetry samples until it fails or is closed.
type Stream interface {
	Next() (*sila.TelemetrySample, error)
	Close() error
}

// Source opens telemetry streams. *sila.Client is adapted to it via
// ClientSource.
type Source interface {
	Subscribe(ctx context.Context, deviceID string) (Stream, error)
}

// ClientSource adapts a device RPC client to Source.
type ClientSource struct {
	Client *sila.Client
}

func (s ClientSource) Subscribe(ctx context.Context, deviceID string) (Stream, error) {
	sub, err := s.Client.Subscribe(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

const (
	defaultBaseBackoff = 2 * time.Second
	maxBackoff         = 30 * time.Second
)

// Ingestor is the per-device telemetry worker.
type Ingestor struct {
	deviceID    string
	source      Source
	buffer      *buffer.Rolling
	bus         *bus.EventBus
	logger      *logrus.Logger
	baseBackoff time.Duration
}

// New creates an ingestor for deviceID. bus may be nil when no one is
// observing.
func New(deviceID string, source Source, buf *buffer.Rolling, eventBus *bus.EventBus, logger *logrus.Logger) *Ingestor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ingestor{
		deviceID:    deviceID,
		source:      source,
		buffer:      buf,
		bus:         eventBus,
		logger:      logger,
		baseBackoff: defaultBaseBackoff,
	}
}

// SetBaseBackoff overrides the reconnect base delay.
func (i *Ingestor) SetBaseBackoff(d time.Duration) {
	if d > 0 {
		i.baseBackoff = d
	}
}

// Run pumps samples until ctx is canceled. On stream termination or error
// it sleeps an attempt-scaled backoff and reopens the subscription.
func (i *Ingestor) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := i.source.Subscribe(ctx, i.deviceID)
		if err != nil {
			attempt++
			i.logger.Warnf("Telemetry subscribe for %s failed (attempt %d): %v", i.deviceID, attempt, err)
			if !i.sleep(ctx, attempt) {
				return
			}
			continue
		}

		attempt = 0
		i.logger.Infof("Telemetry stream connected for %s", i.deviceID)
		if i.bus != nil {
			i.bus.PublishStreamConnected(i.deviceID)
		}

		err = i.pump(ctx, stream)
		stream.Close()
		if ctx.Err() != nil {
			return
		}

		i.logger.Warnf("Telemetry stream for %s lost: %v", i.deviceID, err)
		if i.bus != nil {
			i.bus.PublishStreamLost(i.deviceID, err.Error())
		}

		attempt++
		if !i.sleep(ctx, attempt) {
			return
		}
	}
}

// pump forwards samples into the buffer until the stream fails.
func (i *Ingestor) pump(ctx context.Context, stream Stream) error {
	for {
		sample, err := stream.Next()
		if err != nil {
			return err
		}
		if err := i.buffer.Add(*sample); err != nil {
			// Structurally invalid samples are a device bug; skip them.
			i.logger.Warnf("Dropping invalid sample from %s: %v", i.deviceID, err)
			continue
		}
		if i.bus != nil {
			i.bus.PublishTelemetry(*sample)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (i *Ingestor) sleep(ctx context.Context, attempt int) bool {
	backoff := time.Duration(attempt) * i.baseBackoff
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	select {
	case <-time.After(backoff):
		return true
	case <-ctx.Done():
		return false
	}
}
