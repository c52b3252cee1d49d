// Package api exposes the read-only observation surface: buffer history,
// device presence, health, and a live websocket telemetry feed. Intended
// for in-cluster operators; no authentication.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/buffer"
	"github.com/silabio/sila2-bridge/internal/bus"
)

// defaultWindowMinutes is the history window when ?minutes is absent.
const defaultWindowMinutes = 5

// Server serves the observation endpoints.
type Server struct {
	buffer   *buffer.Rolling
	bus      *bus.EventBus
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewServer creates the observation API. eventBus may be nil, which
// disables the live feed.
func NewServer(buf *buffer.Rolling, eventBus *bus.EventBus, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		buffer: buf,
		bus:    eventBus,
		logger: logger,
		upgrader: websocket.Upgrader{
			// In-cluster observability surface; same trust domain as the
			// unauthenticated REST endpoints.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the endpoints on a gin router.
func (s *Server) Register(router gin.IRouter) {
	router.GET("/health", s.handleHealth)
	router.GET("/api/devices", s.handleDevices)
	router.GET("/api/history/:device_id", s.handleHistory)
	router.GET("/api/stream", s.handleStream)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"buffer_size": s.buffer.Len(),
		"devices":     len(s.buffer.Devices()),
	})
}

func (s *Server) handleDevices(c *gin.Context) {
	devices := s.buffer.Devices()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	deviceID := c.Param("device_id")

	minutes := defaultWindowMinutes
	if raw := c.Query("minutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "minutes must be an integer"})
			return
		}
		minutes = parsed
	}

	samples, err := s.buffer.History(deviceID, minutes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"count":     len(samples),
		"minutes":   minutes,
		"data":      samples,
	})
}

// handleStream upgrades to a websocket and relays live telemetry events.
// A consumer that cannot keep up is disconnected rather than allowed to
// block the publisher.
func (s *Server) handleStream(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed disabled"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := make(chan bus.Event, 64)
	subscription := s.bus.Subscribe(bus.EventTelemetrySample, func(event bus.Event) {
		select {
		case events <- event:
		default:
			// Consumer is behind; the writer loop will notice the gap
			// marker and close.
			select {
			case events <- bus.Event{Type: "overflow"}:
			default:
			}
		}
	})
	defer subscription.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain the read side so close frames and pings are processed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			if event.Type == "overflow" {
				s.logger.Warn("Dropping slow websocket telemetry consumer")
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
