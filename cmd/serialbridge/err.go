package main

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	errListenMissing = errors.New(f("no listen address; set --listen or gateway.listen"))
)
