// Package sila implements the device-facing binary RPC protocol used by
// the bridge and the device simulators. A connection carries framed
// messages: a 5-byte header (1 byte type + 4 byte big-endian payload
// length) followed by a CBOR payload. Unary calls use one connection per
// call; telemetry subscriptions hold a dedicated connection on which the
// server pushes sample frames until the stream ends.
package sila

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

const (
	// frameTypeRequest carries a requestEnvelope, client to server.
	frameTypeRequest byte = 0x01

	// frameTypeResponse carries a responseEnvelope for a unary call.
	frameTypeResponse byte = 0x02

	// frameTypeError carries an errorEnvelope. Terminal for the request
	// it answers, including streaming subscriptions.
	frameTypeError byte = 0x03

	// frameTypeSample carries a TelemetrySample on a subscription.
	frameTypeSample byte = 0x04

	// frameTypeStreamEnd marks the clean end of a subscription.
	frameTypeStreamEnd byte = 0x05
)

// frameHeaderLength is the fixed size of a frame header: 1 byte type +
// 4 bytes payload length.
const frameHeaderLength = 5

// maxPayloadLength caps a single frame payload. Device payloads are tiny;
// 4 MB leaves generous headroom for large device listings.
const maxPayloadLength = 4 * 1024 * 1024

// Method names understood by the service.
const (
	MethodGetDeviceInfo      = "GetDeviceInfo"
	MethodExecuteCommand     = "ExecuteCommand"
	MethodListDevices        = "ListDevices"
	MethodSubscribeTelemetry = "SubscribeTelemetry"
)

// frame is a single protocol message.
type frame struct {
	Type    byte
	Payload []byte
}

// requestEnvelope is the CBOR payload of a request frame.
type requestEnvelope struct {
	ID      uint64          `cbor:"id"`
	Method  string          `cbor:"method"`
	Payload cbor.RawMessage `cbor:"payload,omitempty"`
}

// responseEnvelope is the CBOR payload of a unary response frame.
type responseEnvelope struct {
	ID      uint64          `cbor:"id"`
	Payload cbor.RawMessage `cbor:"payload,omitempty"`
}

// errorEnvelope is the CBOR payload of an error frame.
type errorEnvelope struct {
	ID      uint64 `cbor:"id"`
	Code    string `cbor:"code"`
	Message string `cbor:"message"`
}

// writeFrame writes a framed message to w.
func writeFrame(w io.Writer, f frame) error {
	var header [frameHeaderLength]byte
	header[0] = f.Type
	binary.BigEndian.PutUint32(header[1:5], uint32(len(f.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// readFrame reads a framed message from r. Returns an error if the stream
// is malformed or the payload exceeds maxPayloadLength.
func readFrame(r io.Reader) (frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return frame{}, fmt.Errorf("read frame header: %w", err)
	}
	frameType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return frame{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return frame{Type: frameType, Payload: payload}, nil
}
