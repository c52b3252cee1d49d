package sila

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		frame   frame
	}{
		{"request with payload", frame{Type: frameTypeRequest, Payload: []byte{0x01, 0x02, 0x03}}},
		{"empty payload", frame{Type: frameTypeStreamEnd, Payload: nil}},
		{"sample", frame{Type: frameTypeSample, Payload: bytes.Repeat([]byte{0xAB}, 1024)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := writeFrame(&buf, tt.frame)
			assert.NoError(t, err)

			got, err := readFrame(&buf)
			assert.NoError(t, err)
			assert.Equal(t, tt.frame.Type, got.Type)
			assert.Equal(t, len(tt.frame.Payload), len(got.Payload))
			assert.Equal(t, []byte(tt.frame.Payload), append([]byte{}, got.Payload...))
		})
	}
}

func TestReadFrame_RejectsOversizedPayload(t *testing.T) {
	var header [frameHeaderLength]byte
	header[0] = frameTypeRequest
	binary.BigEndian.PutUint32(header[1:5], maxPayloadLength+1)

	_, err := readFrame(bytes.NewReader(header[:]))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestReadFrame_TruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	err := writeFrame(&buf, frame{Type: frameTypeResponse, Payload: []byte("hello")})
	assert.NoError(t, err)

	// Cut the payload short.
	truncated := buf.Bytes()[:frameHeaderLength+2]
	_, err = readFrame(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestRequestEnvelopeRoundTrip(t *testing.T) {
	params, err := marshal(getInfoParams{DeviceID: "HPLC-01"})
	assert.NoError(t, err)

	body, err := marshal(requestEnvelope{ID: 7, Method: MethodGetDeviceInfo, Payload: params})
	assert.NoError(t, err)

	var env requestEnvelope
	assert.NoError(t, unmarshal(body, &env))
	assert.Equal(t, uint64(7), env.ID)
	assert.Equal(t, MethodGetDeviceInfo, env.Method)

	var got getInfoParams
	assert.NoError(t, unmarshal(env.Payload, &got))
	assert.Equal(t, "HPLC-01", got.DeviceID)
}

func TestDeterministicEncoding(t *testing.T) {
	sample := TelemetrySample{DeviceID: "CENTRIFUGE-01", Temperature: 21.5, Target: 40.0}

	first, err := marshal(sample)
	assert.NoError(t, err)
	second, err := marshal(sample)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}
