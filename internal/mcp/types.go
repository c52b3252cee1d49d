// Package mcp serves the bridge's tool-call endpoint: a single POST /mcp
// accepting JSON-RPC 2.0 tool-call envelopes in the wire shapes real
// gateways produce, normalizing them into one internal form before
// dispatch.
package mcp

// JSON-RPC error codes used on the wire.
const (
	CodeInvalidRequest = -32600
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// ToolCall is the normalized logical form of every accepted input shape.
// All code past normalization sees only this.
type ToolCall struct {
	Name      string
	Arguments map[string]any
	ID        any
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// textContent is the single content entry of a successful tool result.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolResult is the result member of a successful tool call.
type toolResult struct {
	Content []textContent `json:"content"`
}

func successResponse(id any, text string) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  toolResult{Content: []textContent{{Type: "text", Text: text}}},
		ID:      id,
	}
}

func errorResponse(id any, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}
