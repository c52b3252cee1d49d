package mcp

import (
	"fmt"
	"strings"
)

// gatewayPrefixSeparator splits a gateway routing prefix from the tool
// name. Everything up to and including the first separator is dropped.
const gatewayPrefixSeparator = "___"

// defaultTool answers empty or arguments-only request bodies.
const defaultTool = "list_devices"

// normalizeError is a normalization failure with its JSON-RPC code.
type normalizeError struct {
	code    int
	message string
}

func (e *normalizeError) Error() string {
	return e.message
}

// normalize folds the four accepted wire shapes into one ToolCall:
//
//  1. canonical: {"jsonrpc":"2.0","method":"tools/call","params":{"name","arguments"},"id":N}
//  2. short: {"name": T, "arguments": A}
//  3. short with a gateway prefix on the name, separated by "___"
//  4. empty or arguments-only body, treated as list_devices with the body
//     as its arguments
//
// id defaults to 1 when absent.
func normalize(raw map[string]any) (ToolCall, *normalizeError) {
	call := ToolCall{ID: requestID(raw)}

	if methodValue, ok := raw["method"]; ok {
		method, ok := methodValue.(string)
		if !ok {
			return call, &normalizeError{CodeInvalidRequest, "method must be a string"}
		}
		if method != "tools/call" {
			return call, &normalizeError{CodeInvalidRequest, fmt.Sprintf("unsupported method %q", method)}
		}
		params, _ := raw["params"].(map[string]any)
		if params == nil {
			return call, &normalizeError{CodeInvalidRequest, "tools/call request has no params"}
		}
		name, args, err := nameAndArguments(params)
		if err != nil {
			return call, err
		}
		call.Name = name
		call.Arguments = args
		return call, nil
	}

	if _, ok := raw["name"]; ok {
		name, args, err := nameAndArguments(raw)
		if err != nil {
			return call, err
		}
		call.Name = name
		call.Arguments = args
		return call, nil
	}

	// Empty body or arguments-only body: the gateway dropped the tool
	// name. Default to listing devices, keeping the body as arguments.
	args := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "id" || k == "jsonrpc" {
			continue
		}
		args[k] = v
	}
	call.Name = defaultTool
	call.Arguments = args
	return call, nil
}

func nameAndArguments(m map[string]any) (string, map[string]any, *normalizeError) {
	nameValue, ok := m["name"]
	if !ok {
		return "", nil, &normalizeError{CodeInvalidRequest, "tool call has no name"}
	}
	name, ok := nameValue.(string)
	if !ok || name == "" {
		return "", nil, &normalizeError{CodeInvalidRequest, "tool name must be a non-empty string"}
	}
	name = stripGatewayPrefix(name)
	if name == "" {
		return "", nil, &normalizeError{CodeInvalidRequest, "tool name is empty after prefix stripping"}
	}

	args, _ := m["arguments"].(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return name, args, nil
}

// stripGatewayPrefix removes a gateway routing prefix from a tool name:
// everything up to and including the first "___".
func stripGatewayPrefix(name string) string {
	if i := strings.Index(name, gatewayPrefixSeparator); i >= 0 {
		return name[i+len(gatewayPrefixSeparator):]
	}
	return name
}

// requestID extracts the JSON-RPC id, defaulting to 1.
func requestID(raw map[string]any) any {
	if id, ok := raw["id"]; ok && id != nil {
		return id
	}
	return 1
}
