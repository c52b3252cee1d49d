package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/silabio/sila2-bridge/internal/buffer"
	"github.com/silabio/sila2-bridge/internal/sila"
	"github.com/silabio/sila2-bridge/internal/tools"
)

type stubDevices struct{}

func (stubDevices) List(_ context.Context) ([]tools.DeviceView, *tools.ToolError) {
	return []tools.DeviceView{
		{DeviceID: "HPLC-01", DeviceType: "hplc", Status: "online"},
		{DeviceID: "CENTRIFUGE-01", DeviceType: "centrifuge", Status: "online"},
		{DeviceID: "PIPETTE-01", DeviceType: "pipette", Status: "online"},
	}, nil
}

func (stubDevices) Info(_ context.Context, deviceID string) (*sila.DeviceInfo, *tools.ToolError) {
	if deviceID != "HPLC-01" {
		return nil, &tools.ToolError{Kind: tools.KindNotFound, Message: "unknown device " + deviceID}
	}
	return &sila.DeviceInfo{
		DeviceID:   "HPLC-01",
		DeviceType: "hplc",
		Status:     "online",
		Properties: map[string]string{"current_temperature": "22.0"},
		Timestamp:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (stubDevices) Execute(_ context.Context, deviceID, operation string, _ map[string]any) (*sila.CommandResult, *tools.ToolError) {
	return &sila.CommandResult{
		DeviceID:  deviceID,
		Operation: operation,
		Success:   true,
		Status:    "busy",
		Timestamp: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	registry := tools.NewRegistry(stubDevices{}, buffer.New(0, 0), nil, logger)
	router := gin.New()
	NewServer(registry, logger).Register(router)
	return router
}

func postMCP(t *testing.T, router *gin.Engine, body string) Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

// resultText unwraps the text content of a successful tool response.
func resultText(t *testing.T, resp Response) map[string]any {
	t.Helper()
	assert.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	content := result["content"].([]any)
	assert.Len(t, content, 1)
	entry := content[0].(map[string]any)
	assert.Equal(t, "text", entry["type"])

	var payload map[string]any
	assert.NoError(t, json.Unmarshal([]byte(entry["text"].(string)), &payload))
	return payload
}

func TestHandle_CanonicalToolCall(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{
		"jsonrpc": "2.0",
		"method": "tools/call",
		"params": {"name": "list_devices", "arguments": {}},
		"id": 3
	}`)

	assert.Equal(t, 3.0, resp.ID)
	payload := resultText(t, resp)
	assert.Equal(t, 3.0, payload["count"])
	devices := payload["devices"].([]any)
	first := devices[0].(map[string]any)
	assert.Equal(t, "HPLC-01", first["device_id"])
}

func TestHandle_ShortShape(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"name": "get_device_status", "arguments": {"device_id": "HPLC-01"}}`)

	assert.Equal(t, 1.0, resp.ID)
	payload := resultText(t, resp)
	assert.Equal(t, "HPLC-01", payload["device_id"])
	assert.Equal(t, "online", payload["status"])
}

func TestHandle_GatewayPrefixedName(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"name": "lab-gw___get_device_status", "arguments": {"device_id": "HPLC-01"}}`)
	payload := resultText(t, resp)
	assert.Equal(t, "HPLC-01", payload["device_id"])
}

func TestHandle_EmptyBodyListsDevices(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, ``)
	assert.Equal(t, 1.0, resp.ID)
	payload := resultText(t, resp)
	assert.Equal(t, 3.0, payload["count"])
}

func TestHandle_UnknownTool(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"name": "open_airlock", "arguments": {}}`)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "open_airlock")
}

func TestHandle_UnsupportedMethod(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"jsonrpc": "2.0", "method": "resources/list", "id": 5}`)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, 5.0, resp.ID)
}

func TestHandle_InvalidJSON(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"name": `)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestHandle_ErrorCodeMapping(t *testing.T) {
	router := newTestRouter()

	// Unknown device is an argument problem.
	resp := postMCP(t, router, `{"name": "get_device_status", "arguments": {"device_id": "GHOST-99"}}`)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	// Missing required argument likewise.
	resp = postMCP(t, router, `{"name": "get_device_status", "arguments": {}}`)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestHandle_Initialize(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"jsonrpc": "2.0", "method": "initialize", "id": 1}`)
	assert.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, serverName, info["name"])
}

func TestHandle_ToolsList(t *testing.T) {
	router := newTestRouter()

	resp := postMCP(t, router, `{"jsonrpc": "2.0", "method": "tools/list", "id": 2}`)
	assert.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	list := result["tools"].([]any)
	assert.Len(t, list, 10)

	names := make(map[string]bool, len(list))
	for _, entry := range list {
		tool := entry.(map[string]any)
		names[tool["name"].(string)] = true
		assert.NotEmpty(t, tool["description"])
		assert.NotEmpty(t, tool["feature"])
		assert.NotNil(t, tool["inputSchema"])
	}
	assert.True(t, names["list_devices"])
	assert.True(t, names["analyze_heating_rate"])
}

func TestHandle_GetTemperatureFromBuffer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	buf := buffer.New(0, 0)
	assert.NoError(t, buf.Add(sila.TelemetrySample{
		DeviceID:    "HPLC-01",
		Timestamp:   time.Now().UTC(),
		Temperature: 37.4,
		Target:      40.0,
	}))

	registry := tools.NewRegistry(stubDevices{}, buf, nil, logger)
	router := gin.New()
	NewServer(registry, logger).Register(router)

	resp := postMCP(t, router, `{"name": "get_temperature", "arguments": {"device_id": "HPLC-01"}}`)
	payload := resultText(t, resp)
	assert.Equal(t, "buffer", payload["source"])
	assert.Equal(t, 37.4, payload["temperature"])
	assert.Equal(t, 40.0, payload["target_temperature"])
}
