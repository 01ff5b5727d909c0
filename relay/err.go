package relay

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	ErrKindInvalid = errors.New(f("intent kind invalid"))
	ErrStopped     = errors.New(f("relay agent stopped"))
)
