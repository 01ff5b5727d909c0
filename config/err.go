package config

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	ErrLogLevel = errors.New(f("log level invalid"))
	ErrPolicy   = errors.New(f("gateway policy invalid"))
	ErrInterval = errors.New(f("interval must be positive"))
	ErrCapacity = errors.New(f("device capacity must be positive"))
)
