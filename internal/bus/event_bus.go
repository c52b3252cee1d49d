package bus

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/sila"
)

type EventType string

const (
	EventTelemetrySample EventType = "telemetrySample"
	EventStreamConnected EventType = "streamConnected"
	EventStreamLost      EventType = "streamLost"
	EventCommandExecuted EventType = "commandExecuted"
	EventBridgeLog       EventType = "bridgeLog"
)

type Event struct {
	Type    EventType      `json:"type"`
	Payload map[string]any `json:"payload"`
}

type EventHandler func(event Event)

// Subscription identifies a registered handler so callers with a bounded
// lifetime (websocket feeds) can detach.
type Subscription struct {
	bus       *EventBus
	eventType EventType
	id        int
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.bus.unsubscribe(s.eventType, s.id)
}

// EventBus fans device events out to subscribers. Publishing never
// blocks: the channel is buffered and overflow drops the event with a
// warning. Handlers run in their own goroutines and panics are isolated.
type EventBus struct {
	mu        sync.RWMutex
	handlers  map[EventType]map[int]EventHandler
	nextID    int
	logger    *logrus.Logger
	eventChan chan Event
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewEventBus(logger *logrus.Logger) *EventBus {
	if logger == nil {
		logger = logrus.New()
	}
	eb := &EventBus{
		handlers:  make(map[EventType]map[int]EventHandler),
		logger:    logger,
		eventChan: make(chan Event, 256),
		stopChan:  make(chan struct{}),
	}

	go eb.processEvents()

	return eb
}

func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) *Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[int]EventHandler)
	}
	eb.nextID++
	eb.handlers[eventType][eb.nextID] = handler
	eb.logger.Debugf("Handler subscribed to event type: %s", eventType)
	return &Subscription{bus: eb, eventType: eventType, id: eb.nextID}
}

func (eb *EventBus) unsubscribe(eventType EventType, id int) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.handlers[eventType], id)
}

func (eb *EventBus) Publish(event Event) {
	select {
	case eb.eventChan <- event:
	case <-eb.stopChan:
	default:
		eb.logger.Warnf("Event channel full, dropping event: %s", event.Type)
	}
}

func (eb *EventBus) PublishAsync(eventType EventType, payload map[string]any) {
	eb.Publish(Event{Type: eventType, Payload: payload})
}

func (eb *EventBus) processEvents() {
	for {
		select {
		case event := <-eb.eventChan:
			eb.handleEvent(event)
		case <-eb.stopChan:
			eb.logger.Debug("EventBus stopped")
			return
		}
	}
}

func (eb *EventBus) handleEvent(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type]))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, handler := range handlers {
		// Run each handler in a goroutine to prevent blocking
		go func(h EventHandler) {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Errorf("Panic in event handler for %s: %v", event.Type, r)
				}
			}()
			h(event)
		}(handler)
	}
}

func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() {
		close(eb.stopChan)
	})
}

// PublishTelemetry publishes an ingested sample for live observers.
func (eb *EventBus) PublishTelemetry(sample sila.TelemetrySample) {
	eb.PublishAsync(EventTelemetrySample, map[string]any{
		"device_id": sample.DeviceID,
		"sample":    sample,
	})
}

// PublishStreamConnected records a telemetry stream coming up.
func (eb *EventBus) PublishStreamConnected(deviceID string) {
	eb.PublishAsync(EventStreamConnected, map[string]any{
		"device_id": deviceID,
		"timestamp": time.Now().UTC(),
	})
}

// PublishStreamLost records a telemetry stream going down.
func (eb *EventBus) PublishStreamLost(deviceID, reason string) {
	eb.PublishAsync(EventStreamLost, map[string]any{
		"device_id": deviceID,
		"reason":    reason,
		"timestamp": time.Now().UTC(),
	})
}

// PublishCommandExecuted records a command forwarded to a device.
func (eb *EventBus) PublishCommandExecuted(deviceID, operation string, success bool) {
	eb.PublishAsync(EventCommandExecuted, map[string]any{
		"device_id": deviceID,
		"operation": operation,
		"success":   success,
		"timestamp": time.Now().UTC(),
	})
}
