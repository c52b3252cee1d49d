package sila

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// defaultCallTimeout bounds a unary call when the caller's context
// carries no deadline.
const defaultCallTimeout = 10 * time.Second

// Client talks to one device endpoint. Unary calls dial a fresh
// connection each time so a slow call never blocks another; Subscribe
// holds a dedicated connection for the life of the stream.
//
// The client surfaces typed errors and does not retry. Callers that need
// a live stream across failures (the ingestor) reopen the subscription
// themselves.
type Client struct {
	addr    string
	dialer  net.Dialer
	logger  *logrus.Logger
	nextID  atomic.Uint64
	timeout time.Duration
}

// NewClient creates a client for the device endpoint addr (host:port).
func NewClient(addr string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		addr:    addr,
		logger:  logger,
		timeout: defaultCallTimeout,
	}
}

// Addr returns the endpoint this client dials.
func (c *Client) Addr() string {
	return c.addr
}

// GetInfo fetches the device's current descriptor and status.
func (c *Client) GetInfo(ctx context.Context, deviceID string) (*DeviceInfo, error) {
	var info DeviceInfo
	if err := c.call(ctx, MethodGetDeviceInfo, getInfoParams{DeviceID: deviceID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ExecuteCommand forwards an opaque operation to the device.
func (c *Client) ExecuteCommand(ctx context.Context, deviceID, operation string, parameters map[string]any) (*CommandResult, error) {
	req := CommandRequest{DeviceID: deviceID, Operation: operation, Parameters: parameters}
	var result CommandResult
	if err := c.call(ctx, MethodExecuteCommand, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDevices lists every device served by this endpoint.
func (c *Client) ListDevices(ctx context.Context) (*DeviceList, error) {
	var list DeviceList
	if err := c.call(ctx, MethodListDevices, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// call performs one unary request on a fresh connection.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return unavailable(method, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := c.send(conn, method, params); err != nil {
		return unavailable(method, err)
	}

	f, err := readFrame(conn)
	if err != nil {
		return unavailable(method, err)
	}
	switch f.Type {
	case frameTypeResponse:
		var resp responseEnvelope
		if err := unmarshal(f.Payload, &resp); err != nil {
			return unavailable(method, err)
		}
		if out != nil && resp.Payload != nil {
			if err := unmarshal(resp.Payload, out); err != nil {
				return unavailable(method, err)
			}
		}
		return nil
	case frameTypeError:
		return decodeError(f.Payload)
	default:
		return unavailable(method, &RPCError{Code: CodeInternal, Message: "unexpected frame type"})
	}
}

func (c *Client) send(conn net.Conn, method string, params any) error {
	var payload []byte
	if params != nil {
		var err error
		payload, err = marshal(params)
		if err != nil {
			return err
		}
	}
	req := requestEnvelope{
		ID:      c.nextID.Add(1),
		Method:  method,
		Payload: payload,
	}
	body, err := marshal(req)
	if err != nil {
		return err
	}
	return writeFrame(conn, frame{Type: frameTypeRequest, Payload: body})
}

func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func decodeError(payload []byte) error {
	var env errorEnvelope
	if err := unmarshal(payload, &env); err != nil {
		return unavailable("error frame", err)
	}
	return &RPCError{Code: env.Code, Message: env.Message}
}

// Subscription is a live telemetry stream from one endpoint. Next blocks
// until the next sample arrives, the stream ends, or the stream's context
// is canceled.
type Subscription struct {
	conn   net.Conn
	cancel context.CancelFunc
}

// Subscribe opens a telemetry stream. deviceID may be empty to receive
// samples for every device on the endpoint. The subscription stays open
// until Close, the context is canceled, or the transport fails.
func (c *Client) Subscribe(ctx context.Context, deviceID string) (*Subscription, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, unavailable(MethodSubscribeTelemetry, err)
	}

	if err := c.send(conn, MethodSubscribeTelemetry, subscribeParams{DeviceID: deviceID}); err != nil {
		conn.Close()
		return nil, unavailable(MethodSubscribeTelemetry, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{conn: conn, cancel: cancel}
	go func() {
		<-streamCtx.Done()
		conn.Close()
	}()
	return sub, nil
}

// Next returns the next telemetry sample. It returns an error when the
// stream ends cleanly, the device reports an error, or the transport
// fails; in every case the subscription is no longer usable.
func (s *Subscription) Next() (*TelemetrySample, error) {
	for {
		f, err := readFrame(s.conn)
		if err != nil {
			return nil, unavailable("telemetry stream", err)
		}
		switch f.Type {
		case frameTypeSample:
			var sample TelemetrySample
			if err := unmarshal(f.Payload, &sample); err != nil {
				return nil, unavailable("telemetry stream", err)
			}
			return &sample, nil
		case frameTypeStreamEnd:
			return nil, unavailable("telemetry stream", &RPCError{Code: CodeInternal, Message: "stream closed by device"})
		case frameTypeError:
			return nil, decodeError(f.Payload)
		default:
			// Skip unknown frame types for forward compatibility.
		}
	}
}

// Close tears the subscription down.
func (s *Subscription) Close() error {
	s.cancel()
	return s.conn.Close()
}
