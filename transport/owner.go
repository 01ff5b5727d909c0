// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

const DEFAULT_READ_SIZE = 4096

// Port is an open connection to the device.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens the device. It is called on the explicit user action that
// selects the device.
type Opener func(ctx context.Context) (Port, error)

// readOp is one read dispatched to the port.
type readOp struct {
	port   Port
	done   chan struct{}
	waited bool // A caller is waiting for the result.
	data   []byte
	err    error
}

// Owner is the Transport Owner.
type Owner struct {
	Opener   Opener
	ReadSize int         // Largest chunk returned by one Read.
	Logger   *zap.Logger // If nil, zap.L() is used.

	mu       sync.Mutex
	port     Port
	inflight *readOp // Read dispatched to the port.
	carry    *readOp // Completed read nobody collected.
	writing  bool
}

// NewOwner creates an owner that opens the device with opener.
func NewOwner(opener Opener) *Owner {
	return &Owner{Opener: opener}
}

func (o *Owner) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.L()
}

// Open opens the device. It is a no-op if already open.
func (o *Owner) Open(ctx context.Context) (err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.port != nil {
		return
	}

	if o.Opener == nil {
		err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, ErrOpenerMissing)
		return
	}

	port, err := o.Opener(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		o.logger().Error("open failed", zap.Error(err))
		return
	}

	o.port = port
	o.logger().Info("connected to serial device")

	return
}

// IsOpen reports whether the device is open.
func (o *Owner) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port != nil
}

// Close releases the device. Outstanding operations fail.
func (o *Owner) Close() (err error) {
	o.mu.Lock()
	port := o.port
	o.port = nil
	o.inflight = nil
	o.carry = nil
	o.mu.Unlock()

	if port != nil {
		err = port.Close()
	}

	return
}

// Write suspends until the device has accepted all of p. A cancelled Write
// returns early, but bytes already handed to the port still leave. Writes
// are never retried.
func (o *Owner) Write(ctx context.Context, p []byte) (err error) {
	o.mu.Lock()
	port := o.port
	switch {
	case port == nil:
		err = ErrNotOpen
	case o.writing:
		err = ErrBusy
	default:
		o.writing = true
	}
	o.mu.Unlock()
	if err != nil {
		return
	}

	data := append([]byte(nil), p...)
	result := make(chan error, 1)
	go func() {
		var werr error
		for len(data) > 0 && werr == nil {
			var n int
			n, werr = port.Write(data)
			data = data[n:]
		}
		o.mu.Lock()
		o.writing = false
		o.mu.Unlock()
		result <- werr
	}()

	select {
	case err = <-result:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err != nil {
		err = &TransportError{Op: "write", Err: err}
		o.logger().Warn("write failed", zap.Error(err))
		return
	}

	o.logger().Debug("sent", zap.ByteString("data", p))

	return
}

// Read suspends until the device produces at least one byte and returns the
// chunk, which may be a partial message. At end of stream it returns io.EOF.
// A read abandoned by ctx keeps running, and its chunk is returned by the
// next Read.
func (o *Owner) Read(ctx context.Context) (data []byte, err error) {
	o.mu.Lock()
	if op := o.carry; op != nil {
		o.carry = nil
		o.mu.Unlock()
		return o.result(op)
	}

	if o.port == nil {
		o.mu.Unlock()
		return nil, ErrNotOpen
	}

	op := o.inflight
	if op != nil && op.waited {
		o.mu.Unlock()
		return nil, ErrBusy
	}

	if op == nil {
		op = &readOp{port: o.port, done: make(chan struct{})}
		o.inflight = op
		go o.dispatch(op)
	}
	op.waited = true
	o.mu.Unlock()

	select {
	case <-op.done:
		return o.result(op)
	case <-ctx.Done():
		o.mu.Lock()
		select {
		case <-op.done:
			if o.port == op.port {
				o.carry = op
			}
		default:
			op.waited = false
		}
		o.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (o *Owner) dispatch(op *readOp) {
	size := o.ReadSize
	if size <= 0 {
		size = DEFAULT_READ_SIZE
	}

	buf := make([]byte, size)
	var n int
	var err error
	for n == 0 && err == nil {
		n, err = op.port.Read(buf)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	op.data = buf[:n]
	op.err = err
	if o.inflight == op {
		o.inflight = nil
	}
	if !op.waited && o.port == op.port {
		o.carry = op
	}
	close(op.done)
}

// result converts a finished read into the Read return values. A chunk that
// arrived together with an error is returned first, and the error is kept
// for the next Read.
func (o *Owner) result(op *readOp) (data []byte, err error) {
	if len(op.data) > 0 {
		if op.err != nil {
			o.mu.Lock()
			if o.carry == nil && o.port == op.port {
				o.carry = &readOp{port: op.port, done: op.done, err: op.err}
			}
			o.mu.Unlock()
		}
		data = op.data
		o.logger().Debug("received", zap.ByteString("data", data))
		return
	}

	switch {
	case op.err == io.EOF:
		err = io.EOF
	case op.err != nil:
		err = &TransportError{Op: "read", Err: op.err}
		o.logger().Warn("read failed", zap.Error(err))
	}

	return
}
