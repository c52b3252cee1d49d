package tools

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/silabio/sila2-bridge/internal/config"
	"github.com/silabio/sila2-bridge/internal/sila"
)

// DeviceView is one entry of a list_devices result: the configured
// descriptor refreshed with the device's live status where available.
type DeviceView struct {
	DeviceID   string            `json:"device_id"`
	DeviceType string            `json:"device_type"`
	Status     string            `json:"status"`
	Location   string            `json:"location,omitempty"`
	Endpoint   string            `json:"endpoint,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// DeviceService is the device-facing surface tool handlers call. Split
// from the registry so tests can substitute a fake.
type DeviceService interface {
	// List aggregates ListDevices across every configured endpoint,
	// de-duplicated by device identity.
	List(ctx context.Context) ([]DeviceView, *ToolError)

	// Info fetches one device's live descriptor.
	Info(ctx context.Context, deviceID string) (*sila.DeviceInfo, *ToolError)

	// Execute forwards an opaque command to one device.
	Execute(ctx context.Context, deviceID, operation string, parameters map[string]any) (*sila.CommandResult, *ToolError)
}

// ClientPool implements DeviceService over the device registry: one RPC
// client per distinct endpoint, shared by the devices living there. No
// cross-device locking; clients are read-only after construction.
type ClientPool struct {
	descriptors map[string]config.DeviceDescriptor
	order       []string
	byEndpoint  map[string]*sila.Client
	endpoints   []string
	logger      *logrus.Logger
}

// NewClientPool builds the pool from registry descriptors.
func NewClientPool(devices []config.DeviceDescriptor, logger *logrus.Logger) *ClientPool {
	if logger == nil {
		logger = logrus.New()
	}
	pool := &ClientPool{
		descriptors: make(map[string]config.DeviceDescriptor, len(devices)),
		byEndpoint:  make(map[string]*sila.Client),
		logger:      logger,
	}
	for _, d := range devices {
		pool.descriptors[d.ID] = d
		pool.order = append(pool.order, d.ID)
		endpoint := d.Endpoint()
		if _, ok := pool.byEndpoint[endpoint]; !ok {
			pool.byEndpoint[endpoint] = sila.NewClient(endpoint, logger)
			pool.endpoints = append(pool.endpoints, endpoint)
		}
	}
	return pool
}

// Descriptors returns the configured devices in registry order.
func (p *ClientPool) Descriptors() []config.DeviceDescriptor {
	out := make([]config.DeviceDescriptor, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.descriptors[id])
	}
	return out
}

// ClientFor returns the RPC client for one configured device.
func (p *ClientPool) ClientFor(deviceID string) (*sila.Client, bool) {
	d, ok := p.descriptors[deviceID]
	if !ok {
		return nil, false
	}
	return p.byEndpoint[d.Endpoint()], true
}

func (p *ClientPool) List(ctx context.Context) ([]DeviceView, *ToolError) {
	seen := make(map[string]bool)
	var views []DeviceView
	var lastErr error

	for _, endpoint := range p.endpoints {
		list, err := p.byEndpoint[endpoint].ListDevices(ctx)
		if err != nil {
			lastErr = err
			p.logger.Warnf("ListDevices on %s failed: %v", endpoint, err)
			continue
		}
		for _, info := range list.Devices {
			if seen[info.DeviceID] {
				continue
			}
			seen[info.DeviceID] = true
			view := DeviceView{
				DeviceID:   info.DeviceID,
				DeviceType: info.DeviceType,
				Status:     info.Status,
				Endpoint:   endpoint,
				Properties: info.Properties,
			}
			if d, ok := p.descriptors[info.DeviceID]; ok {
				view.Location = d.Location
			}
			views = append(views, view)
		}
	}

	// Configured devices an endpoint failed to report still show up, with
	// their registry status.
	for _, id := range p.order {
		if seen[id] {
			continue
		}
		d := p.descriptors[id]
		views = append(views, DeviceView{
			DeviceID:   d.ID,
			DeviceType: d.Type,
			Status:     d.Status,
			Location:   d.Location,
			Endpoint:   d.Endpoint(),
		})
	}

	if len(views) == 0 && lastErr != nil {
		return nil, rpcError("no device endpoint reachable: %v", lastErr)
	}
	return views, nil
}

func (p *ClientPool) Info(ctx context.Context, deviceID string) (*sila.DeviceInfo, *ToolError) {
	client, ok := p.ClientFor(deviceID)
	if !ok {
		return nil, notFound("unknown device %q", deviceID)
	}
	info, err := client.GetInfo(ctx, deviceID)
	if err != nil {
		return nil, toToolError(deviceID, err)
	}
	return info, nil
}

func (p *ClientPool) Execute(ctx context.Context, deviceID, operation string, parameters map[string]any) (*sila.CommandResult, *ToolError) {
	client, ok := p.ClientFor(deviceID)
	if !ok {
		return nil, notFound("unknown device %q", deviceID)
	}
	result, err := client.ExecuteCommand(ctx, deviceID, operation, parameters)
	if err != nil {
		return nil, toToolError(deviceID, err)
	}
	return result, nil
}

// toToolError converts device RPC failures into handler error kinds.
func toToolError(deviceID string, err error) *ToolError {
	var rpcErr *sila.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case sila.CodeNotFound:
			return notFound("device %s: %s", deviceID, rpcErr.Message)
		case sila.CodeInvalidArguments:
			return invalidArgs("device %s: %s", deviceID, rpcErr.Message)
		}
		return rpcError("device %s: %s", deviceID, rpcErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{Kind: KindTimeout, Message: "device " + deviceID + " timed out"}
	}
	if errors.Is(err, sila.ErrUnavailable) {
		return rpcError("device %s unreachable: %v", deviceID, err)
	}
	return &ToolError{Kind: KindInternal, Message: err.Error()}
}

// DescriptorsFromDiscovery builds registry descriptors for devices
// reported by the fallback discovery endpoint.
func DescriptorsFromDiscovery(ctx context.Context, endpoint string, logger *logrus.Logger) ([]config.DeviceDescriptor, error) {
	client := sila.NewClient(endpoint, logger)
	discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	list, err := client.ListDevices(discoverCtx)
	if err != nil {
		return nil, err
	}

	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	descriptors := make([]config.DeviceDescriptor, 0, len(list.Devices))
	for _, info := range list.Devices {
		descriptors = append(descriptors, config.DeviceDescriptor{
			ID:     info.DeviceID,
			Type:   info.DeviceType,
			Status: info.Status,
			Host:   host,
			Port:   port,
		})
	}
	return descriptors, nil
}
