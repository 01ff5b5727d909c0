// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package message

import (
	"github.com/rs/xid"
)

// ID correlates every message belonging to one synthetic request.
type ID string

// NewID returns a fresh, globally unique request ID.
func NewID() ID {
	return ID(xid.New().String())
}

// Intent tells the relay agent that a request is about to park at the gateway.
type Intent struct {
	ID      ID     `cbor:"1,keyasint"`
	Kind    Kind   `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint,omitempty"` // Write payload.
}

// Cancel withdraws an Intent whose request gave up waiting.
type Cancel struct {
	ID ID `cbor:"1,keyasint"`
}

// State is the relay agent's published transfer flags.
type State struct {
	Seq           uint64 `cbor:"1,keyasint"`
	AwaitingRead  bool   `cbor:"2,keyasint"`
	ReadID        ID     `cbor:"3,keyasint,omitempty"`
	AwaitingWrite bool   `cbor:"4,keyasint"`
	WriteID       ID     `cbor:"5,keyasint,omitempty"`
	WritePayload  []byte `cbor:"6,keyasint,omitempty"`
}

// Awaiting reports whether the flag for kind is set.
func (st State) Awaiting(kind Kind) bool {
	switch kind {
	case KindRead:
		return st.AwaitingRead
	case KindWrite:
		return st.AwaitingWrite
	}
	return false
}

// Idle reports whether no flag is set.
func (st State) Idle() bool {
	return !st.AwaitingRead && !st.AwaitingWrite
}

// Completion reports a dispatched and finished transport operation.
type Completion struct {
	ID   ID   `cbor:"1,keyasint"`
	Kind Kind `cbor:"2,keyasint"`
}

// Envelope resolves the pending request with the same ID.
type Envelope struct {
	ID      ID     `cbor:"1,keyasint"`
	Kind    Kind   `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint,omitempty"`
	Error   string `cbor:"4,keyasint,omitempty"` // Transport failure text, if any.
}

// Failed reports whether the envelope carries a transport failure.
func (env Envelope) Failed() bool {
	return env.Error != ""
}
