package script

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	ErrCallerMissing = errors.New(f("script runtime has no caller"))
	ErrPairing       = errors.New(f("address and data lists differ in length"))
)

// ErrRange is a register address or value outside 16 bits.
type ErrRange struct {
	What  string
	Value int64
}

func (err *ErrRange) Error() string {
	return f("%v out of range: %d", err.What, err.Value)
}

// ErrType is an argument of the wrong Starlark type.
type ErrType struct {
	Builtin string
	Got     string
}

func (err *ErrType) Error() string {
	return f("%v: got %v, want str or bytes", err.Builtin, err.Got)
}
