package logger

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/silabio/sila2-bridge/internal/config"
)

type recordingSink struct {
	types    []string
	payloads []map[string]any
}

func (r *recordingSink) PublishAsync(eventType string, payload map[string]any) {
	r.types = append(r.types, eventType)
	r.payloads = append(r.payloads, payload)
}

func TestNew_Levels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New(config.LoggingConfig{Level: "debug"}).GetLevel())
	assert.Equal(t, logrus.WarnLevel, New(config.LoggingConfig{Level: "WARN"}).GetLevel())
	// Unknown levels fall back to info.
	assert.Equal(t, logrus.InfoLevel, New(config.LoggingConfig{Level: "verbose"}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(config.LoggingConfig{}).GetLevel())
}

func TestNew_Formatter(t *testing.T) {
	assert.IsType(t, &logrus.JSONFormatter{}, New(config.LoggingConfig{Format: "json"}).Formatter)
	assert.IsType(t, &logrus.TextFormatter{}, New(config.LoggingConfig{Format: "text"}).Formatter)
	assert.IsType(t, &logrus.TextFormatter{}, New(config.LoggingConfig{}).Formatter)
}

func TestBusHook_ForwardsEntry(t *testing.T) {
	sink := &recordingSink{}
	hook := NewBusHook(sink)

	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Level:   logrus.WarnLevel,
		Message: "telemetry stream lost",
		Time:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Data:    logrus.Fields{"device_id": "HPLC-01"},
	}

	assert.NoError(t, hook.Fire(entry))
	assert.Equal(t, []string{"bridgeLog"}, sink.types)
	assert.Equal(t, "warning", sink.payloads[0]["level"])
	assert.Equal(t, "telemetry stream lost", sink.payloads[0]["message"])
	assert.Equal(t, "HPLC-01", sink.payloads[0]["device_id"])
}

func TestBusHook_Levels(t *testing.T) {
	hook := NewBusHook(nil)
	levels := hook.Levels()
	assert.Contains(t, levels, logrus.WarnLevel)
	assert.Contains(t, levels, logrus.ErrorLevel)
	assert.NotContains(t, levels, logrus.InfoLevel)
	assert.NotContains(t, levels, logrus.DebugLevel)

	// A nil sink is tolerated.
	assert.NoError(t, hook.Fire(&logrus.Entry{Level: logrus.WarnLevel}))
}
