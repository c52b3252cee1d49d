package logger

import (
	"github.com/sirupsen/logrus"
)

// BusSink is where BusHook forwards entries. Kept as an interface so the
// hook does not import the bus package (the bus itself logs).
type BusSink interface {
	PublishAsync(eventType string, payload map[string]any)
}

// BusHook mirrors warning-and-above log entries onto the event bus so
// websocket observers see device failures without tailing stdout.
type BusHook struct {
	sink BusSink
}

// NewBusHook creates a hook publishing to sink.
func NewBusHook(sink BusSink) *BusHook {
	return &BusHook{sink: sink}
}

// Levels returns the log levels this hook is interested in.
func (h *BusHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
	}
}

// Fire is called when a log event occurs.
func (h *BusHook) Fire(entry *logrus.Entry) error {
	if h.sink == nil {
		return nil
	}

	payload := map[string]any{
		"level":   entry.Level.String(),
		"message": entry.Message,
		"time":    entry.Time,
	}
	for key, value := range entry.Data {
		payload[key] = value
	}

	h.sink.PublishAsync("bridgeLog", payload)
	return nil
}
