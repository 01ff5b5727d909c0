// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package device simulates the register core on the far side of the serial
// link. It answers the frame protocol, so the bridge can run without
// hardware.
package device

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/ezrec/serialbridge/frame"
	"github.com/ezrec/serialbridge/transport"
)

const (
	DEFAULT_CAPACITY   = 4096
	DEFAULT_CHUNK_SIZE = 64
)

// Device is a simulated register memory speaking the frame protocol.
// Malformed requests and out of range addresses are dropped silently, as the
// hardware's receive bridge does.
type Device struct {
	Capacity  int // Number of 16-bit registers.
	ChunkSize int // Largest chunk returned by one Read.

	mu      sync.Mutex
	cond    *sync.Cond
	mem     []uint16
	pending []byte   // Partial request line.
	output  []byte   // Responses not yet read.
	writes  [][]byte // Every Write call, verbatim.
	closed  bool
}

var _ transport.Port = (*Device)(nil)

// New creates a device with capacity registers.
func New(capacity int) (dev *Device) {
	dev = &Device{Capacity: capacity}
	dev.Reset()
	return
}

func (dev *Device) init() {
	if dev.cond == nil {
		dev.cond = sync.NewCond(&dev.mu)
	}
	if dev.mem == nil {
		if dev.Capacity <= 0 {
			dev.Capacity = DEFAULT_CAPACITY
		}
		dev.mem = make([]uint16, dev.Capacity)
	}
}

// Reset clears memory, buffers, and the write log, and reopens the device.
func (dev *Device) Reset() {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.mem = nil
	dev.init()
	dev.pending = nil
	dev.output = nil
	dev.writes = nil
	dev.closed = false
}

// Opener returns a transport.Opener handing out this device.
func (dev *Device) Opener() transport.Opener {
	return func(ctx context.Context) (port transport.Port, err error) {
		dev.mu.Lock()
		dev.init()
		dev.closed = false
		dev.mu.Unlock()
		port = dev
		return
	}
}

// Write accepts request bytes from the host.
func (dev *Device) Write(p []byte) (n int, err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.init()
	if dev.closed {
		err = io.ErrClosedPipe
		return
	}

	dev.writes = append(dev.writes, bytes.Clone(p))
	dev.pending = append(dev.pending, p...)

	for {
		eol := bytes.IndexByte(dev.pending, '\n')
		if eol < 0 {
			break
		}
		line := dev.pending[:eol+1]
		dev.pending = dev.pending[eol+1:]
		dev.handle(line)
	}

	dev.cond.Broadcast()
	n = len(p)

	return
}

func (dev *Device) handle(line []byte) {
	req, err := frame.ParseRequest(line)
	if err != nil {
		return
	}

	if int(req.Addr) >= len(dev.mem) {
		return
	}

	switch req.Op {
	case frame.OP_WRITE:
		dev.mem[req.Addr] = req.Data
	case frame.OP_READ:
		dev.output = append(dev.output, frame.EncodeResponse(dev.mem[req.Addr])...)
	}
}

// Read blocks until response bytes are available, and returns at most
// ChunkSize of them.
func (dev *Device) Read(p []byte) (n int, err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.init()
	for len(dev.output) == 0 && !dev.closed {
		dev.cond.Wait()
	}

	if len(dev.output) == 0 {
		err = io.EOF
		return
	}

	size := dev.ChunkSize
	if size <= 0 {
		size = DEFAULT_CHUNK_SIZE
	}
	n = copy(p[:min(len(p), size)], dev.output)
	dev.output = dev.output[n:]

	return
}

// Close ends the stream. Blocked reads return io.EOF.
func (dev *Device) Close() (err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.init()
	dev.closed = true
	dev.cond.Broadcast()

	return
}

// Peek returns a register's value.
func (dev *Device) Peek(addr uint16) (data uint16) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.init()
	if int(addr) < len(dev.mem) {
		data = dev.mem[addr]
	}
	return
}

// Poke sets a register's value.
func (dev *Device) Poke(addr uint16, data uint16) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.init()
	if int(addr) < len(dev.mem) {
		dev.mem[addr] = data
	}
}

// Inject queues raw bytes for the host to read, as if the device sent them.
func (dev *Device) Inject(data []byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.init()
	dev.output = append(dev.output, data...)
	dev.cond.Broadcast()
}

// Writes returns a copy of every Write call's bytes.
func (dev *Device) Writes() (writes [][]byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	for _, w := range dev.writes {
		writes = append(writes, bytes.Clone(w))
	}
	return
}
