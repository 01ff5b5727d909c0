// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package coordinator

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ezrec/serialbridge/gateway"
	"github.com/ezrec/serialbridge/message"
	"github.com/ezrec/serialbridge/transport"
)

const DEFAULT_INTERVAL = 250 * time.Millisecond

// Transport performs device operations. *transport.Owner implements it.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
}

// Relay publishes transfer flags and accepts completions. *relay.Agent
// implements it.
type Relay interface {
	States() <-chan message.State
	Flags() message.State
	Complete(ctx context.Context, c message.Completion) error
}

// Deliverer resolves parked requests. *gateway.Gateway implements it.
type Deliverer interface {
	Deliver(env message.Envelope) error
}

// Loop is the coordinating loop.
type Loop struct {
	Transport Transport
	Relay     Relay
	Gateway   Deliverer
	Interval  time.Duration // Fallback period for sampling the flags.
	Metrics   *Metrics      // Optional.
	Logger    *zap.Logger   // If nil, zap.L() is used.
}

// outcome is the result of one worker.
type outcome struct {
	kind      message.Kind
	id        message.ID
	serviced  bool // The flag was cleared.
	transient bool // Retry on a later state.
}

// worker is a transfer in flight for one kind.
type worker struct {
	id     message.ID
	cancel context.CancelFunc
}

// cycle is the loop-owned state. Only Run touches it.
type cycle struct {
	*Loop
	ctx      context.Context
	seq      uint64
	state    message.State
	active   [2]*worker
	serviced [2]message.ID
	deferred [2]message.ID // Transient failure; wait for the next sample.
	finished chan outcome
}

func (l *Loop) logger() *zap.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return zap.L()
}

// Run services transfer flags until ctx is done. Workers still in flight
// are cancelled and awaited before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	switch {
	case l.Transport == nil:
		return ErrTransportMissing
	case l.Relay == nil:
		return ErrRelayMissing
	case l.Gateway == nil:
		return ErrGatewayMissing
	}

	interval := l.Interval
	if interval <= 0 {
		interval = DEFAULT_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c := &cycle{
		Loop:     l,
		ctx:      ctx,
		finished: make(chan outcome, len(message.Kinds)),
	}
	defer c.drain()

	states := l.Relay.States()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-states:
			if !ok {
				l.logger().Debug("relay stopped")
				<-ctx.Done()
				return ctx.Err()
			}
			c.observe(st)
		case <-ticker.C:
			c.observe(l.Relay.Flags())
		case out := <-c.finished:
			c.finish(out)
		}
		c.dispatch()
	}
}

// observe records st unless an equal or newer state was already seen.
func (c *cycle) observe(st message.State) {
	if st.Seq < c.seq {
		return
	}
	c.seq = st.Seq
	c.state = st
	c.deferred = [2]message.ID{}
}

func (c *cycle) current(kind message.Kind) (id message.ID, ok bool) {
	if !c.state.Awaiting(kind) {
		return
	}
	if kind == message.KindWrite {
		return c.state.WriteID, true
	}
	return c.state.ReadID, true
}

// dispatch starts a worker for each raised flag not yet serviced, and
// cancels workers whose flag was withdrawn.
func (c *cycle) dispatch() {
	for _, kind := range message.Kinds {
		id, ok := c.current(kind)

		if w := c.active[kind]; w != nil {
			if !ok || w.id != id {
				w.cancel()
			}
			continue
		}

		if !ok || id == c.serviced[kind] || id == c.deferred[kind] {
			continue
		}

		ctx, cancel := context.WithCancel(c.ctx)
		c.active[kind] = &worker{id: id, cancel: cancel}

		var payload []byte
		if kind == message.KindWrite {
			payload = c.state.WritePayload
		}
		go func() {
			defer cancel()
			c.finished <- c.transfer(ctx, kind, id, payload)
		}()
	}
}

func (c *cycle) finish(out outcome) {
	c.active[out.kind] = nil
	switch {
	case out.serviced:
		c.serviced[out.kind] = out.id
	case out.transient:
		c.deferred[out.kind] = out.id
	}
}

// drain waits for in-flight workers after the loop ends.
func (c *cycle) drain() {
	for _, w := range c.active {
		if w != nil {
			w.cancel()
		}
	}
	for _, w := range c.active {
		if w != nil {
			<-c.finished
		}
	}
}

// transfer runs one transport operation and reports it.
func (c *cycle) transfer(ctx context.Context, kind message.Kind, id message.ID, payload []byte) (out outcome) {
	out = outcome{kind: kind, id: id}
	log := c.logger().With(zap.Stringer("kind", kind), zap.String("id", string(id)))
	start := time.Now()

	var data []byte
	var err error
	switch kind {
	case message.KindRead:
		data, err = c.Transport.Read(ctx)
	case message.KindWrite:
		err = c.Transport.Write(ctx, payload)
	}

	env := message.Envelope{ID: id, Kind: kind, Payload: data}

	var terr *transport.TransportError
	switch {
	case err == nil:
		c.count(kind, "ok")
		if kind == message.KindWrite {
			c.bytes(kind, len(payload))
		} else {
			c.bytes(kind, len(data))
		}
	case errors.Is(err, transport.ErrNotOpen), errors.Is(err, transport.ErrBusy):
		log.Debug("transport not ready", zap.Error(err))
		c.count(kind, "backpressure")
		out.transient = true
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debug("transfer withdrawn", zap.Error(err))
		c.count(kind, "cancelled")
		out.transient = true
		return
	case errors.As(err, &terr), errors.Is(err, io.EOF):
		log.Warn("transfer failed", zap.Error(err))
		c.count(kind, "failed")
		env.Payload = nil
		env.Error = err.Error()
	default:
		log.Error("transfer failed", zap.Error(err))
		c.count(kind, "failed")
		env.Payload = nil
		env.Error = err.Error()
	}

	// The flag clears before the caller is resumed. The completion uses the
	// loop context so a withdrawn worker still reports a finished transfer.
	err = c.Relay.Complete(c.ctx, message.Completion{ID: id, Kind: kind})
	if err != nil {
		log.Warn("completion failed", zap.Error(err))
		out.transient = true
		return
	}
	out.serviced = true

	err = c.Gateway.Deliver(env)
	switch {
	case errors.Is(err, gateway.ErrOrphanDelivery):
		log.Info("orphan delivery", zap.Int("bytes", len(env.Payload)))
	case err != nil:
		log.Warn("delivery failed", zap.Error(err))
	}

	if c.Metrics != nil {
		c.Metrics.Duration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}

	return
}

func (c *cycle) count(kind message.Kind, result string) {
	if c.Metrics != nil {
		c.Metrics.Transfers.WithLabelValues(kind.String(), result).Inc()
	}
}

func (c *cycle) bytes(kind message.Kind, n int) {
	if c.Metrics != nil {
		c.Metrics.Bytes.WithLabelValues(kind.String()).Add(float64(n))
	}
}
