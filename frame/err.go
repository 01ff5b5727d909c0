package frame

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	// Response decode errors
	ErrResponseLength   = errors.New(f("response length"))
	ErrResponsePreamble = errors.New(f("response preamble"))
	ErrResponseData     = errors.New(f("response data"))
	ErrResponseEOL      = errors.New(f("response eol"))

	// Request decode errors
	ErrRequestEmpty   = errors.New(f("request empty"))
	ErrRequestOpcode  = errors.New(f("request opcode"))
	ErrRequestLength  = errors.New(f("request length"))
	ErrRequestHex     = errors.New(f("request hex"))
	ErrRequestPairing = errors.New(f("address and data count differ"))
)

// ErrDecode locates a decode failure within a stream of responses.
type ErrDecode struct {
	Index    int
	Response string
	Err      error
}

func (err *ErrDecode) Error() string {
	return f("response %d %q %v", err.Index, err.Response, err.Err)
}

func (err *ErrDecode) Unwrap() error {
	return err.Err
}
