// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package gateway

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/ezrec/serialbridge/message"
)

// Notifier is told when a request becomes pending, and when a pending request
// gives up. The relay agent is the production Notifier.
type Notifier interface {
	Request(ctx context.Context, intent message.Intent) error
	Cancel(ctx context.Context, id message.ID) error
}

// Ticket is a parked request.
type Ticket struct {
	ID   message.ID
	Kind message.Kind

	intent message.Intent
	gw     *Gateway
	done   chan struct{}
	data   []byte
	err    error
}

// Gateway holds the parked requests of both kinds.
type Gateway struct {
	Policy   Policy
	Notifier Notifier    // May be nil.
	Metrics  *Metrics    // May be nil.
	Logger   *zap.Logger // If nil, zap.L() is used.

	mu    sync.Mutex
	slots [2][]*Ticket // Per kind. The head is the pending request.
}

// New creates a gateway.
func New(policy Policy, notifier Notifier) *Gateway {
	return &Gateway{Policy: policy, Notifier: notifier}
}

func (gw *Gateway) logger() *zap.Logger {
	if gw.Logger != nil {
		return gw.Logger
	}
	return zap.L()
}

func (gw *Gateway) gauge() {
	if gw.Metrics == nil {
		return
	}
	for _, kind := range message.Kinds {
		slot := gw.slots[kind]
		pending := min(len(slot), 1)
		gw.Metrics.Pending.WithLabelValues(kind.String()).Set(float64(pending))
		gw.Metrics.Queued.WithLabelValues(kind.String()).Set(float64(len(slot) - pending))
	}
}

// Park registers a request. Once the request is pending (immediately, or
// when the requests queued ahead of it resolve), its intent is passed to the
// Notifier. ctx bounds only the notification.
func (gw *Gateway) Park(ctx context.Context, intent message.Intent) (ticket *Ticket, err error) {
	if !intent.Kind.Valid() {
		err = ErrKindInvalid
		return
	}
	if intent.ID == "" {
		intent.ID = message.NewID()
	}

	intent, err = message.Clone(intent)
	if err != nil {
		return
	}

	ticket = &Ticket{
		ID:     intent.ID,
		Kind:   intent.Kind,
		intent: intent,
		gw:     gw,
		done:   make(chan struct{}),
	}

	gw.mu.Lock()
	slot := gw.slots[intent.Kind]
	switch {
	case slices.ContainsFunc(slot, func(t *Ticket) bool { return t.ID == intent.ID }):
		err = fmt.Errorf("%w: %v", ErrProtocolViolation, f("duplicate request id %v", intent.ID))
	case len(slot) > 0 && gw.Policy != PolicyQueue:
		err = ErrProtocolViolation
	}
	if err != nil {
		gw.mu.Unlock()
		if gw.Metrics != nil {
			gw.Metrics.Violations.WithLabelValues(intent.Kind.String()).Inc()
		}
		gw.logger().Warn("protocol violation",
			zap.Stringer("kind", intent.Kind),
			zap.String("id", string(intent.ID)),
			zap.Error(err))
		ticket = nil
		return
	}

	gw.slots[intent.Kind] = append(slot, ticket)
	head := len(slot) == 0
	gw.gauge()
	gw.mu.Unlock()

	gw.logger().Debug("parked",
		zap.Stringer("kind", intent.Kind),
		zap.String("id", string(intent.ID)),
		zap.Bool("pending", head))

	if head {
		gw.announce(ctx, ticket)
	}

	return
}

// announce hands a newly pending request's intent to the Notifier. A failed
// notification resolves the request with the error.
func (gw *Gateway) announce(ctx context.Context, ticket *Ticket) {
	if gw.Notifier == nil {
		return
	}

	err := gw.Notifier.Request(ctx, ticket.intent)
	if err != nil {
		gw.logger().Warn("notify failed", zap.String("id", string(ticket.ID)), zap.Error(err))
		gw.resolve(ticket.Kind, ticket.ID, nil, err)
	}
}

// Pending reports the ID of the pending request of kind, if any.
func (gw *Gateway) Pending(kind message.Kind) (id message.ID, ok bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if !kind.Valid() || len(gw.slots[kind]) == 0 {
		return
	}
	return gw.slots[kind][0].ID, true
}

// Parked returns the number of parked requests of kind, pending or queued.
func (gw *Gateway) Parked(kind message.Kind) int {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if !kind.Valid() {
		return 0
	}
	return len(gw.slots[kind])
}

// Deliver resolves the pending request whose ID matches env. Envelopes that
// match no pending request are dropped with ErrOrphanDelivery.
func (gw *Gateway) Deliver(env message.Envelope) (err error) {
	if !env.Kind.Valid() {
		err = ErrKindInvalid
		return
	}

	env, err = message.Clone(env)
	if err != nil {
		return
	}

	var rerr error
	if env.Failed() {
		rerr = &RemoteError{Message: env.Error}
	}

	if gw.resolve(env.Kind, env.ID, env.Payload, rerr) {
		if gw.Metrics != nil {
			outcome := "ok"
			if rerr != nil {
				outcome = "error"
			}
			gw.Metrics.Resolved.WithLabelValues(env.Kind.String(), outcome).Inc()
		}
		return
	}

	if gw.Metrics != nil {
		gw.Metrics.Orphans.WithLabelValues(env.Kind.String()).Inc()
	}
	gw.logger().Warn("orphan delivery",
		zap.Stringer("kind", env.Kind),
		zap.String("id", string(env.ID)),
		zap.Int("bytes", len(env.Payload)))

	err = ErrOrphanDelivery
	return
}

// resolve completes the pending request of kind if its ID is id, then
// promotes the next queued request.
func (gw *Gateway) resolve(kind message.Kind, id message.ID, data []byte, err error) (ok bool) {
	gw.mu.Lock()
	slot := gw.slots[kind]
	if len(slot) == 0 || slot[0].ID != id {
		gw.mu.Unlock()
		return
	}

	ticket := slot[0]
	slot = slot[1:]
	gw.slots[kind] = slot
	ticket.data = data
	ticket.err = err
	close(ticket.done)

	var next *Ticket
	if len(slot) > 0 {
		next = slot[0]
	}
	gw.gauge()
	gw.mu.Unlock()

	ok = true

	if next != nil {
		gw.announce(context.Background(), next)
	}

	return
}

// release withdraws an abandoned request. It reports false if the request
// had already resolved.
func (gw *Gateway) release(ticket *Ticket) (released bool) {
	gw.mu.Lock()
	select {
	case <-ticket.done:
		gw.mu.Unlock()
		return
	default:
	}

	slot := gw.slots[ticket.Kind]
	index := slices.Index(slot, ticket)
	if index < 0 {
		gw.mu.Unlock()
		return
	}

	gw.slots[ticket.Kind] = slices.Delete(slot, index, index+1)
	slot = gw.slots[ticket.Kind]

	var next *Ticket
	if index == 0 && len(slot) > 0 {
		next = slot[0]
	}
	gw.gauge()
	gw.mu.Unlock()

	released = true

	if gw.Metrics != nil {
		gw.Metrics.Timeouts.WithLabelValues(ticket.Kind.String()).Inc()
	}

	if index == 0 && gw.Notifier != nil {
		cerr := gw.Notifier.Cancel(context.Background(), ticket.ID)
		if cerr != nil {
			gw.logger().Warn("cancel notify failed", zap.String("id", string(ticket.ID)), zap.Error(cerr))
		}
	}

	if next != nil {
		gw.announce(context.Background(), next)
	}

	return
}

// Wait blocks until the request resolves or ctx is done. An abandoned request
// is released; bytes delivered for it later become an orphan delivery.
func (t *Ticket) Wait(ctx context.Context) (data []byte, err error) {
	select {
	case <-t.done:
		return t.data, t.err
	case <-ctx.Done():
	}

	if !t.gw.release(t) {
		// Resolved while we were giving up.
		return t.data, t.err
	}

	t.gw.logger().Warn("request abandoned",
		zap.Stringer("kind", t.Kind),
		zap.String("id", string(t.ID)),
		zap.Error(ctx.Err()))

	err = ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return
}

// Done is closed when the request resolves.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}
