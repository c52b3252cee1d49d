// Package proxy implements the stateless cloud-boundary forwarder: it
// turns gateway invocation events into canonical JSON-RPC tools/call
// requests and relays the bridge's answer verbatim.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// toolNameField is the gateway context metadata field carrying the
// intended tool name.
const toolNameField = "bedrockAgentCoreToolName"

// gatewayPrefixSeparator splits a gateway routing prefix from the tool
// name.
const gatewayPrefixSeparator = "___"

// forwardTimeout bounds the round trip to the MCP server.
const forwardTimeout = 30 * time.Second

// DefaultEndpoint is the MCP server URL when MCP_ENDPOINT is unset.
const DefaultEndpoint = "http://bridge.sila2.local:8080"

// ErrNoToolName is returned when a non-empty event carries no resolvable
// tool name. The caller answers with JSON-RPC -32600.
var ErrNoToolName = errors.New("event has no tool name")

// ExtractToolName pulls the intended tool name out of the caller-supplied
// context metadata. It checks the top level first, then the nested
// context objects gateways use.
func ExtractToolName(event map[string]any) string {
	if name, ok := event[toolNameField].(string); ok {
		return name
	}
	for _, key := range []string{"context", "clientContext"} {
		nested, ok := event[key].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := nested[toolNameField].(string); ok {
			return name
		}
		if custom, ok := nested["custom"].(map[string]any); ok {
			if name, ok := custom[toolNameField].(string); ok {
				return name
			}
		}
	}
	return ""
}

// StripPrefix removes a gateway routing prefix: everything up to and
// including the first "___".
func StripPrefix(name string) string {
	if i := strings.Index(name, gatewayPrefixSeparator); i >= 0 {
		return name[i+len(gatewayPrefixSeparator):]
	}
	return name
}

// BuildRequest constructs the canonical tools/call envelope for one
// gateway event. The raw event body, minus its routing metadata, becomes
// the tool arguments. An empty event with no tool name defaults to
// list_devices; a non-empty one fails with ErrNoToolName.
func BuildRequest(event map[string]any) (map[string]any, error) {
	name := StripPrefix(ExtractToolName(event))

	arguments := make(map[string]any, len(event))
	for k, v := range event {
		if k == toolNameField || k == "context" || k == "clientContext" {
			continue
		}
		arguments[k] = v
	}

	if name == "" {
		if len(arguments) > 0 {
			return nil, ErrNoToolName
		}
		name = "list_devices"
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": arguments,
		},
		"id": 1,
	}, nil
}

// Forwarder posts canonical requests to the MCP server.
type Forwarder struct {
	endpoint string
	client   *http.Client
	logger   *logrus.Logger
}

// NewForwarder creates a forwarder for the MCP server at endpoint.
func NewForwarder(endpoint string, logger *logrus.Logger) *Forwarder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Forwarder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: forwardTimeout},
		logger:   logger,
	}
}

// Forward posts the request and returns the MCP response body verbatim
// with its HTTP status.
func (f *Forwarder) Forward(ctx context.Context, request map[string]any) ([]byte, int, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("forward to MCP server: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read MCP response: %w", err)
	}
	return payload, resp.StatusCode, nil
}
