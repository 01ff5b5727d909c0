package client

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	ErrBaseURL       = errors.New(f("base url invalid"))
	ErrResponseCount = errors.New(f("response count differs from request count"))
)

// StatusError is an HTTP status the client has no mapping for.
type StatusError struct {
	Code int
	Body string
}

func (err *StatusError) Error() string {
	return f("status %d: %v", err.Code, err.Body)
}
