// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package message

import (
	"context"
	"sync"

	cbor "github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal encodes v in canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Clone returns a deep copy of v made by a CBOR round trip.
func Clone[T any](v T) (out T, err error) {
	data, err := Marshal(v)
	if err != nil {
		err = &ErrClone{Err: err}
		return
	}
	err = Unmarshal(data, &out)
	if err != nil {
		err = &ErrClone{Err: err}
	}
	return
}

// Port is a one-way FIFO channel between two execution contexts.
type Port[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewPort creates a port that buffers up to depth messages.
func NewPort[T any](depth int) *Port[T] {
	return &Port[T]{
		ch:   make(chan T, depth),
		done: make(chan struct{}),
	}
}

// Post clones v and queues the clone for the receiver. It blocks while the
// port is full.
func (p *Port[T]) Post(ctx context.Context, v T) (err error) {
	clone, err := Clone(v)
	if err != nil {
		return
	}

	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}

	select {
	case p.ch <- clone:
	case <-p.done:
		err = ErrPortClosed
	case <-ctx.Done():
		err = ctx.Err()
	}

	return
}

// Offer clones v and queues it without blocking. When the port is full the
// oldest queued message is discarded, so a receiver that falls behind only
// sees the latest value. Offer assumes a single sender.
func (p *Port[T]) Offer(v T) (err error) {
	clone, err := Clone(v)
	if err != nil {
		return
	}

	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}

	for {
		select {
		case p.ch <- clone:
			return
		default:
		}
		select {
		case <-p.ch:
		default:
		}
	}
}

// C is the receive side of the port.
func (p *Port[T]) C() <-chan T {
	return p.ch
}

// Done is closed when the port is closed.
func (p *Port[T]) Done() <-chan struct{} {
	return p.done
}

// Receive waits for the next message.
func (p *Port[T]) Receive(ctx context.Context) (v T, err error) {
	select {
	case v = <-p.ch:
	case <-p.done:
		err = ErrPortClosed
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

// Close stops further posts. Messages already queued stay readable on C.
func (p *Port[T]) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
