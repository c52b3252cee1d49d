package tools

import "fmt"

// Error kinds returned by tool handlers. The MCP server maps them onto
// JSON-RPC codes.
const (
	KindInvalidArguments = "invalid_arguments"
	KindNotFound         = "not_found"
	KindRPCError         = "rpc_error"
	KindTimeout          = "timeout"
	KindInternal         = "internal_error"
)

// ToolError is a structured handler failure.
type ToolError struct {
	Kind    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func invalidArgs(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindInvalidArguments, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func rpcError(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindRPCError, Message: fmt.Sprintf(format, args...)}
}
