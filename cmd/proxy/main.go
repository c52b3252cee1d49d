// The cloud-boundary proxy: accepts gateway invocation events, rewrites
// them into canonical JSON-RPC tools/call requests, and relays the MCP
// server's answer verbatim.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/silabio/sila2-bridge/internal/config"
	"github.com/silabio/sila2-bridge/internal/logger"
	"github.com/silabio/sila2-bridge/internal/proxy"
)

func main() {
	listen := flag.String("listen", ":8081", "address to listen on")
	flag.Parse()

	log := logger.New(config.LoggingConfig{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})

	endpoint := os.Getenv("MCP_ENDPOINT")
	if endpoint == "" {
		endpoint = proxy.DefaultEndpoint
	}
	forwarder := proxy.NewForwarder(endpoint, log)
	log.Infof("Proxying tool calls to %s", endpoint)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/", func(c *gin.Context) {
		var event map[string]any
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&event); err != nil {
				c.JSON(http.StatusOK, jsonRPCError(-32600, "invalid JSON body"))
				return
			}
		}
		if event == nil {
			event = map[string]any{}
		}

		request, err := proxy.BuildRequest(event)
		if err != nil {
			if errors.Is(err, proxy.ErrNoToolName) {
				c.JSON(http.StatusOK, jsonRPCError(-32600, "unable to determine tool name"))
				return
			}
			c.JSON(http.StatusOK, jsonRPCError(-32603, err.Error()))
			return
		}

		body, status, err := forwarder.Forward(c.Request.Context(), request)
		if err != nil {
			log.Errorf("Forward failed: %v", err)
			c.JSON(http.StatusOK, jsonRPCError(-32603, "MCP server unreachable"))
			return
		}
		c.Data(status, "application/json", body)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "endpoint": endpoint})
	})

	log.Infof("Proxy listening on %s", *listen)
	if err := router.Run(*listen); err != nil {
		log.Fatalf("Proxy failed: %v", err)
	}
}

func jsonRPCError(code int, message string) gin.H {
	return gin.H{
		"jsonrpc": "2.0",
		"error":   gin.H{"code": code, "message": message},
		"id":      1,
	}
}
