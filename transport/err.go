package transport

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	// Owner errors
	ErrDeviceUnavailable = errors.New(f("device unavailable"))
	ErrNotOpen           = errors.New(f("transport not open"))
	ErrBusy              = errors.New(f("transport operation already outstanding"))

	// Configuration errors
	ErrPortMissing   = errors.New(f("no serial port provided"))
	ErrBaudInvalid   = errors.New(f("non-positive baud rate"))
	ErrAutoDetect    = errors.New(f("serial port autodetect failed"))
	ErrOpenerMissing = errors.New(f("no opener"))
)

// TransportError is a channel-level failure during a read or write.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (err *TransportError) Error() string {
	return f("transport %v: %v", err.Op, err.Err)
}

func (err *TransportError) Unwrap() error {
	return err.Err
}
