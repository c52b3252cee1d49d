package sila

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler implements the device side of the protocol. The simulator is
// the in-repo implementation; a hardware gateway would provide another.
type Handler interface {
	GetDeviceInfo(ctx context.Context, deviceID string) (*DeviceInfo, error)
	ExecuteCommand(ctx context.Context, req *CommandRequest) (*CommandResult, error)
	ListDevices(ctx context.Context) (*DeviceList, error)

	// SubscribeTelemetry pushes samples through send until the context is
	// canceled or send fails. deviceID may be empty for all devices.
	SubscribeTelemetry(ctx context.Context, deviceID string, send func(*TelemetrySample) error) error
}

// Server accepts protocol connections and dispatches to a Handler. Each
// connection serves exactly one request: unary calls get one response
// frame, subscriptions stream sample frames until either side closes.
type Server struct {
	handler  Handler
	logger   *logrus.Logger
	listener net.Listener

	mu     sync.Mutex
	closed bool
}

// NewServer creates a server around handler.
func NewServer(handler Handler, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{handler: handler, logger: logger}
}

// Listen binds addr and returns the bound address (useful with ":0").
func (s *Server) Listen(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return listener.Addr().String(), nil
}

// Serve runs the accept loop until ctx is canceled or Close is called.
// Listen must have been called first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("sila: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.serveConn(ctx, conn)
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	f, err := readFrame(conn)
	if err != nil {
		s.logger.Debugf("sila: dropping connection from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if f.Type != frameTypeRequest {
		s.logger.Warnf("sila: unexpected frame type 0x%02x from %s", f.Type, conn.RemoteAddr())
		return
	}

	var req requestEnvelope
	if err := unmarshal(f.Payload, &req); err != nil {
		s.logger.Warnf("sila: malformed request from %s: %v", conn.RemoteAddr(), err)
		return
	}

	switch req.Method {
	case MethodGetDeviceInfo:
		var params getInfoParams
		if err := unmarshal(req.Payload, &params); err != nil {
			s.writeError(conn, req.ID, CodeInvalidArguments, err.Error())
			return
		}
		info, err := s.handler.GetDeviceInfo(connCtx, params.DeviceID)
		s.writeResult(conn, req.ID, info, err)

	case MethodExecuteCommand:
		var cmd CommandRequest
		if err := unmarshal(req.Payload, &cmd); err != nil {
			s.writeError(conn, req.ID, CodeInvalidArguments, err.Error())
			return
		}
		result, err := s.handler.ExecuteCommand(connCtx, &cmd)
		s.writeResult(conn, req.ID, result, err)

	case MethodListDevices:
		list, err := s.handler.ListDevices(connCtx)
		s.writeResult(conn, req.ID, list, err)

	case MethodSubscribeTelemetry:
		var params subscribeParams
		if req.Payload != nil {
			if err := unmarshal(req.Payload, &params); err != nil {
				s.writeError(conn, req.ID, CodeInvalidArguments, err.Error())
				return
			}
		}
		s.serveStream(connCtx, conn, req.ID, params.DeviceID)

	default:
		s.writeError(conn, req.ID, CodeNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) serveStream(ctx context.Context, conn net.Conn, id uint64, deviceID string) {
	send := func(sample *TelemetrySample) error {
		payload, err := marshal(sample)
		if err != nil {
			return err
		}
		return writeFrame(conn, frame{Type: frameTypeSample, Payload: payload})
	}

	err := s.handler.SubscribeTelemetry(ctx, deviceID, send)
	if err != nil && ctx.Err() == nil {
		s.writeError(conn, id, CodeInternal, err.Error())
		return
	}
	writeFrame(conn, frame{Type: frameTypeStreamEnd})
}

func (s *Server) writeResult(conn net.Conn, id uint64, result any, err error) {
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			s.writeError(conn, id, rpcErr.Code, rpcErr.Message)
		} else {
			s.writeError(conn, id, CodeInternal, err.Error())
		}
		return
	}
	payload, err := marshal(result)
	if err != nil {
		s.writeError(conn, id, CodeInternal, err.Error())
		return
	}
	body, err := marshal(responseEnvelope{ID: id, Payload: payload})
	if err != nil {
		s.writeError(conn, id, CodeInternal, err.Error())
		return
	}
	if err := writeFrame(conn, frame{Type: frameTypeResponse, Payload: body}); err != nil {
		s.logger.Debugf("sila: write response to %s: %v", conn.RemoteAddr(), err)
	}
}

func (s *Server) writeError(conn net.Conn, id uint64, code, message string) {
	body, err := marshal(errorEnvelope{ID: id, Code: code, Message: message})
	if err != nil {
		s.logger.Errorf("sila: encode error frame: %v", err)
		return
	}
	if err := writeFrame(conn, frame{Type: frameTypeError, Payload: body}); err != nil {
		s.logger.Debugf("sila: write error frame to %s: %v", conn.RemoteAddr(), err)
	}
}
