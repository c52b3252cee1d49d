package sila

import (
	"errors"
	"fmt"
)

// Wire error codes carried by error frames.
const (
	CodeNotFound         = "not_found"
	CodeInvalidArguments = "invalid_arguments"
	CodeInternal         = "internal_error"
)

// ErrUnavailable wraps transport failures: the device endpoint could not
// be reached or the connection died mid-call. The client never retries on
// its own; stream restart is the ingestor's job.
var ErrUnavailable = errors.New("device unavailable")

// RPCError is an error returned by the device itself, as opposed to a
// transport failure.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("device rpc error %s: %s", e.Code, e.Message)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
