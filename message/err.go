package message

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	// Port errors
	ErrPortClosed = errors.New(f("port closed"))
)

// ErrClone reports a value that could not be cloned across a port.
type ErrClone struct {
	Err error
}

func (err *ErrClone) Error() string {
	return f("clone: %v", err.Err)
}

func (err *ErrClone) Unwrap() error {
	return err.Err
}
