package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/silabio/sila2-bridge/internal/bus"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []map[string]any
}

func (r *recordingPublisher) PublishEvent(_ context.Context, subject string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	r.payloads = append(r.payloads, payload)
}

func (r *recordingPublisher) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

func TestNew_EmptyTopicIsNop(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	publisher, err := New(context.Background(), "", logger)
	assert.NoError(t, err)
	assert.IsType(t, NopPublisher{}, publisher)

	// Must be safe to call.
	publisher.PublishEvent(context.Background(), "sila2.command_executed", map[string]any{"device_id": "HPLC-01"})
}

func TestAttach_ForwardsDeviceEvents(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	eventBus := bus.NewEventBus(logger)
	defer eventBus.Stop()

	recorder := &recordingPublisher{}
	Attach(eventBus, recorder)

	eventBus.PublishCommandExecuted("HPLC-01", "set_temperature", true)
	eventBus.PublishStreamConnected("HPLC-01")
	eventBus.PublishStreamLost("HPLC-01", "connection reset")

	assert.Eventually(t, func() bool {
		return len(recorder.snapshot()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	subjects := recorder.snapshot()
	assert.Contains(t, subjects, "sila2.command_executed")
	assert.Contains(t, subjects, "sila2.stream_connected")
	assert.Contains(t, subjects, "sila2.stream_lost")
}

func TestAttach_IgnoresTelemetryEvents(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	eventBus := bus.NewEventBus(logger)
	defer eventBus.Stop()

	recorder := &recordingPublisher{}
	Attach(eventBus, recorder)

	eventBus.PublishAsync(bus.EventTelemetrySample, map[string]any{"device_id": "HPLC-01"})
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, recorder.snapshot())
}
