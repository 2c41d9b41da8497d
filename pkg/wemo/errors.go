package wemo

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable indicates the device produced no usable response
	// within the query timeout.
	ErrUnreachable = errors.New("device unreachable")

	// ErrTimeout is the steady-state failure while a device is briefly
	// offline. It matches ErrUnreachable under errors.Is.
	ErrTimeout = fmt.Errorf("%w: query timed out", ErrUnreachable)

	// ErrProtocol indicates the device answered, but the response was
	// not a well-formed Insight reply.
	ErrProtocol = errors.New("protocol error")
)
