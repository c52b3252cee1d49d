package mcp

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/tools"
)

// serverName and serverVersion identify the bridge to MCP clients.
const (
	serverName    = "sila2-agent-bridge"
	serverVersion = "1.0.0"
)

// Server handles POST /mcp.
type Server struct {
	registry *tools.Registry
	logger   *logrus.Logger
}

// NewServer creates the MCP endpoint around a tool registry.
func NewServer(registry *tools.Registry, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{registry: registry, logger: logger}
}

// Register mounts the endpoint on a gin router.
func (s *Server) Register(router gin.IRouter) {
	router.POST("/mcp", s.handle)
}

func (s *Server) handle(c *gin.Context) {
	raw, err := decodeBody(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, errorResponse(1, CodeInvalidRequest, "invalid JSON body"))
		return
	}

	// Canonical MCP housekeeping methods, answered before tool-call
	// normalization so standard clients can discover the surface.
	if method, ok := raw["method"].(string); ok {
		switch method {
		case "initialize":
			c.JSON(http.StatusOK, s.initializeResponse(requestID(raw)))
			return
		case "tools/list":
			c.JSON(http.StatusOK, s.toolsListResponse(requestID(raw)))
			return
		}
	}

	call, nerr := normalize(raw)
	if nerr != nil {
		s.logger.Warnf("Rejecting tool call: %s", nerr.message)
		c.JSON(http.StatusOK, errorResponse(call.ID, nerr.code, nerr.message))
		return
	}

	if !s.registry.Has(call.Name) {
		c.JSON(http.StatusOK, errorResponse(call.ID, CodeInvalidRequest, "unknown tool "+call.Name))
		return
	}

	result, terr := s.registry.Call(c.Request.Context(), call.Name, call.Arguments)
	if terr != nil {
		s.logger.Warnf("Tool %s failed: %v", call.Name, terr)
		c.JSON(http.StatusOK, errorResponse(call.ID, codeForKind(terr.Kind), terr.Message))
		return
	}

	text, err := json.Marshal(result)
	if err != nil {
		s.logger.Errorf("Tool %s produced unmarshalable result: %v", call.Name, err)
		c.JSON(http.StatusOK, errorResponse(call.ID, CodeInternal, "failed to encode tool result"))
		return
	}
	c.JSON(http.StatusOK, successResponse(call.ID, string(text)))
}

// decodeBody tolerates an empty body, which shape 4 allows.
func decodeBody(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// codeForKind maps handler error kinds onto JSON-RPC codes. Unknown
// devices and bad values are argument problems; transport and internal
// failures are internal errors.
func codeForKind(kind string) int {
	switch kind {
	case tools.KindInvalidArguments, tools.KindNotFound:
		return CodeInvalidParams
	case tools.KindRPCError, tools.KindTimeout, tools.KindInternal:
		return CodeInternal
	}
	return CodeInternal
}

func (s *Server) initializeResponse(id any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result: map[string]any{
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		},
	}
}

func (s *Server) toolsListResponse(id any) Response {
	defs := s.registry.Tools()
	list := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		list = append(list, map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"inputSchema": def.InputSchema,
			"feature":     tools.FeatureFor(def.Name),
		})
	}
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  map[string]any{"tools": list},
	}
}
