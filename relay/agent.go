// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package relay

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ezrec/serialbridge/message"
)

const (
	DEFAULT_INTERVAL = 100 * time.Millisecond
	PORT_DEPTH       = 16

	// Cancels remembered for intents that have not arrived yet.
	TOMBSTONE_DEPTH = 64
)

type completion struct {
	msg  message.Completion
	done chan struct{}
}

// Agent is the relay agent.
type Agent struct {
	Interval time.Duration // Cadence tick period.
	Logger   *zap.Logger   // If nil, zap.L() is used.

	intents     *message.Port[message.Intent]
	cancels     *message.Port[message.Cancel]
	states      *message.Port[message.State]
	completions chan completion
	stopped     chan struct{}

	mu   sync.Mutex
	last message.State
}

// NewAgent creates an agent ticking every interval.
func NewAgent(interval time.Duration) *Agent {
	return &Agent{
		Interval:    interval,
		intents:     message.NewPort[message.Intent](PORT_DEPTH),
		cancels:     message.NewPort[message.Cancel](PORT_DEPTH),
		states:      message.NewPort[message.State](1),
		completions: make(chan completion),
		stopped:     make(chan struct{}),
	}
}

func (a *Agent) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.L()
}

// Request posts an intent. A write intent carries its payload.
func (a *Agent) Request(ctx context.Context, intent message.Intent) (err error) {
	if !intent.Kind.Valid() {
		err = ErrKindInvalid
		return
	}
	return stoppedOf(a.intents.Post(ctx, intent))
}

// Cancel withdraws the intent with id.
func (a *Agent) Cancel(ctx context.Context, id message.ID) (err error) {
	return stoppedOf(a.cancels.Post(ctx, message.Cancel{ID: id}))
}

// stoppedOf reports a closed inbound port as a stopped agent.
func stoppedOf(err error) error {
	if errors.Is(err, message.ErrPortClosed) {
		return ErrStopped
	}
	return err
}

// Complete reports that the transfer for c has finished. It returns once the
// agent has cleared the flag.
func (a *Agent) Complete(ctx context.Context, c message.Completion) (err error) {
	msg, err := message.Clone(c)
	if err != nil {
		return
	}

	done := make(chan struct{})
	select {
	case a.completions <- completion{msg: msg, done: done}:
	case <-a.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
	case <-a.stopped:
		err = ErrStopped
	case <-ctx.Done():
		err = ctx.Err()
	}

	return
}

// States delivers published states. Only the latest unread state is kept.
func (a *Agent) States() <-chan message.State {
	return a.states.C()
}

// Flags returns the last published state.
func (a *Agent) Flags() (st message.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, _ = message.Clone(a.last)
	return
}

// run is the agent-owned state. Only Run touches it.
type run struct {
	*Agent
	state  message.State
	reads  []message.Intent
	writes []message.Intent

	// A cancel can overtake its intent, since they travel on separate
	// ports from separate goroutines.
	tombstones []message.ID
}

// Run drives the agent until ctx is done. Once it returns, Request, Cancel
// and Complete fail with ErrStopped.
func (a *Agent) Run(ctx context.Context) (err error) {
	defer close(a.stopped)
	defer a.states.Close()
	defer a.cancels.Close()
	defer a.intents.Close()

	interval := a.Interval
	if interval <= 0 {
		interval = DEFAULT_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r := &run{Agent: a}
	r.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case intent := <-a.intents.C():
			r.intent(intent)
		case cancel := <-a.cancels.C():
			r.cancel(cancel.ID)
		case c := <-a.completions:
			r.complete(c.msg)
			close(c.done)
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *run) publish() {
	r.state.Seq++

	r.mu.Lock()
	r.last = r.state
	r.mu.Unlock()

	err := r.states.Offer(r.state)
	if err != nil {
		r.logger().Warn("publish state", zap.Error(err))
	}
}

func (r *run) intent(intent message.Intent) {
	if index := slices.Index(r.tombstones, intent.ID); index >= 0 {
		r.tombstones = slices.Delete(r.tombstones, index, index+1)
		r.logger().Debug("intent already cancelled", zap.String("id", string(intent.ID)))
		return
	}

	r.logger().Debug("intent",
		zap.String("id", string(intent.ID)),
		zap.Stringer("kind", intent.Kind),
		zap.Int("payload", len(intent.Payload)))

	switch intent.Kind {
	case message.KindRead:
		r.reads = append(r.reads, intent)
	case message.KindWrite:
		r.writes = append(r.writes, intent)
	}

	if r.arm() {
		r.publish()
	}
}

// arm raises each idle flag that has a queued intent.
func (r *run) arm() (changed bool) {
	if !r.state.AwaitingRead && len(r.reads) > 0 {
		next := r.reads[0]
		r.reads = r.reads[1:]
		r.state.AwaitingRead = true
		r.state.ReadID = next.ID
		changed = true
	}

	if !r.state.AwaitingWrite && len(r.writes) > 0 {
		next := r.writes[0]
		r.writes = r.writes[1:]
		r.state.AwaitingWrite = true
		r.state.WriteID = next.ID
		r.state.WritePayload = next.Payload
		changed = true
	}

	return
}

func (r *run) clear(kind message.Kind) {
	switch kind {
	case message.KindRead:
		r.state.AwaitingRead = false
		r.state.ReadID = ""
	case message.KindWrite:
		r.state.AwaitingWrite = false
		r.state.WriteID = ""
		r.state.WritePayload = nil
	}
}

func (r *run) current(kind message.Kind) message.ID {
	if kind == message.KindWrite {
		return r.state.WriteID
	}
	return r.state.ReadID
}

func (r *run) complete(c message.Completion) {
	if !r.state.Awaiting(c.Kind) || r.current(c.Kind) != c.ID {
		r.logger().Warn("stale completion",
			zap.String("id", string(c.ID)),
			zap.Stringer("kind", c.Kind))
		return
	}

	r.clear(c.Kind)
	r.arm()
	r.publish()
}

func (r *run) cancel(id message.ID) {
	drop := func(intent message.Intent) bool { return intent.ID == id }

	n := len(r.reads) + len(r.writes)
	r.reads = slices.DeleteFunc(r.reads, drop)
	r.writes = slices.DeleteFunc(r.writes, drop)
	changed := n != len(r.reads)+len(r.writes)

	for _, kind := range message.Kinds {
		if r.state.Awaiting(kind) && r.current(kind) == id {
			r.clear(kind)
			changed = true
		}
	}

	if !changed {
		r.tombstones = append(r.tombstones, id)
		if len(r.tombstones) > TOMBSTONE_DEPTH {
			r.tombstones = r.tombstones[1:]
		}
		return
	}

	r.logger().Debug("cancelled", zap.String("id", string(id)))
	r.arm()
	r.publish()
}

func (r *run) tick() {
	if r.arm() || !r.state.Idle() {
		r.publish()
	}
}
