package gateway

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	ErrProtocolViolation = errors.New(f("protocol violation: request of this kind already pending"))
	ErrOrphanDelivery    = errors.New(f("orphan delivery"))
	ErrTimeout           = errors.New(f("request timed out"))
	ErrKindInvalid       = errors.New(f("request kind invalid"))
	ErrPolicyInvalid     = errors.New(f("policy invalid"))
)

// RemoteError is a transport failure reported for a parked request.
type RemoteError struct {
	Message string
}

func (err *RemoteError) Error() string {
	return f("remote: %v", err.Message)
}
