package sila

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakeHandler serves a fixed pair of devices.
type fakeHandler struct {
	samples []TelemetrySample
}

func (h *fakeHandler) GetDeviceInfo(_ context.Context, deviceID string) (*DeviceInfo, error) {
	if deviceID != "HPLC-01" && deviceID != "CENTRIFUGE-01" {
		return nil, &RPCError{Code: CodeNotFound, Message: fmt.Sprintf("unknown device %q", deviceID)}
	}
	return &DeviceInfo{
		DeviceID:   deviceID,
		DeviceType: "hplc",
		Status:     "online",
		Properties: map[string]string{"current_temperature": "22.0"},
		Timestamp:  time.Now().UTC(),
	}, nil
}

func (h *fakeHandler) ExecuteCommand(_ context.Context, req *CommandRequest) (*CommandResult, error) {
	if req.Operation == "" {
		return nil, &RPCError{Code: CodeInvalidArguments, Message: "operation is required"}
	}
	return &CommandResult{
		DeviceID:  req.DeviceID,
		Operation: req.Operation,
		Success:   true,
		Status:    "busy",
		Result:    map[string]any{"accepted": true},
		Timestamp: time.Now().UTC(),
	}, nil
}

func (h *fakeHandler) ListDevices(_ context.Context) (*DeviceList, error) {
	return &DeviceList{
		Devices: []DeviceInfo{
			{DeviceID: "HPLC-01", DeviceType: "hplc", Status: "online"},
			{DeviceID: "CENTRIFUGE-01", DeviceType: "centrifuge", Status: "online"},
		},
		Count:     2,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (h *fakeHandler) SubscribeTelemetry(ctx context.Context, deviceID string, send func(*TelemetrySample) error) error {
	for i := range h.samples {
		if deviceID != "" && h.samples[i].DeviceID != deviceID {
			continue
		}
		if err := send(&h.samples[i]); err != nil {
			return err
		}
	}
	return nil
}

func startTestServer(t *testing.T, handler Handler) (string, func()) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	server := NewServer(handler, logger)
	addr, err := server.Listen("127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(ctx)
	}()
	return addr, func() {
		cancel()
		server.Close()
		<-done
	}
}

func TestClient_GetInfo(t *testing.T) {
	addr, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	client := NewClient(addr, nil)
	info, err := client.GetInfo(context.Background(), "HPLC-01")
	assert.NoError(t, err)
	assert.Equal(t, "HPLC-01", info.DeviceID)
	assert.Equal(t, "online", info.Status)
	assert.Equal(t, "22.0", info.Properties["current_temperature"])
}

func TestClient_GetInfo_NotFound(t *testing.T) {
	addr, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	client := NewClient(addr, nil)
	_, err := client.GetInfo(context.Background(), "GHOST-99")
	assert.Error(t, err)

	var rpcErr *RPCError
	assert.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeNotFound, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "GHOST-99")
}

func TestClient_ExecuteCommand(t *testing.T) {
	addr, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	client := NewClient(addr, nil)
	result, err := client.ExecuteCommand(context.Background(), "HPLC-01", "set_temperature", map[string]any{"target": 40.0})
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "set_temperature", result.Operation)
	assert.Equal(t, "busy", result.Status)
}

func TestClient_ListDevices(t *testing.T) {
	addr, stop := startTestServer(t, &fakeHandler{})
	defer stop()

	client := NewClient(addr, nil)
	list, err := client.ListDevices(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Len(t, list.Devices, 2)
	assert.Equal(t, "HPLC-01", list.Devices[0].DeviceID)
}

func TestClient_Unavailable(t *testing.T) {
	// Nothing listens here.
	client := NewClient("127.0.0.1:1", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := client.ListDevices(ctx)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestClient_Subscribe(t *testing.T) {
	now := time.Now().UTC()
	handler := &fakeHandler{
		samples: []TelemetrySample{
			{DeviceID: "HPLC-01", Timestamp: now, Temperature: 25.0},
			{DeviceID: "CENTRIFUGE-01", Timestamp: now, Temperature: 21.5},
			{DeviceID: "HPLC-01", Timestamp: now.Add(5 * time.Second), Temperature: 25.3},
		},
	}
	addr, stop := startTestServer(t, handler)
	defer stop()

	client := NewClient(addr, nil)
	sub, err := client.Subscribe(context.Background(), "HPLC-01")
	assert.NoError(t, err)
	defer sub.Close()

	first, err := sub.Next()
	assert.NoError(t, err)
	assert.Equal(t, "HPLC-01", first.DeviceID)
	assert.Equal(t, 25.0, first.Temperature)

	second, err := sub.Next()
	assert.NoError(t, err)
	assert.Equal(t, 25.3, second.Temperature)

	// Stream drained; the server ends it cleanly, which surfaces as an
	// unavailable error so the ingestor reconnects.
	_, err = sub.Next()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestClient_SubscribeAllDevices(t *testing.T) {
	now := time.Now().UTC()
	handler := &fakeHandler{
		samples: []TelemetrySample{
			{DeviceID: "HPLC-01", Timestamp: now, Temperature: 25.0},
			{DeviceID: "CENTRIFUGE-01", Timestamp: now, Temperature: 21.5},
		},
	}
	addr, stop := startTestServer(t, handler)
	defer stop()

	client := NewClient(addr, nil)
	sub, err := client.Subscribe(context.Background(), "")
	assert.NoError(t, err)
	defer sub.Close()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		sample, err := sub.Next()
		assert.NoError(t, err)
		seen[sample.DeviceID] = true
	}
	assert.True(t, seen["HPLC-01"])
	assert.True(t, seen["CENTRIFUGE-01"])
}
