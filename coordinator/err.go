package coordinator

import (
	"errors"

	"github.com/ezrec/serialbridge/translate"
)

var f = translate.From

var (
	ErrTransportMissing = errors.New(f("coordinator has no transport"))
	ErrRelayMissing     = errors.New(f("coordinator has no relay"))
	ErrGatewayMissing   = errors.New(f("coordinator has no gateway"))
)
