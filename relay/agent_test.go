package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezrec/serialbridge/gateway"
	"github.com/ezrec/serialbridge/message"
)

func startAgent(t *testing.T, interval time.Duration) (*Agent, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	agent := NewAgent(interval)
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return agent, ctx
}

// waitState returns the first published state satisfying cond.
func waitState(t *testing.T, agent *Agent, cond func(message.State) bool) message.State {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case st := <-agent.States():
			if cond(st) {
				return st
			}
		case <-timeout:
			t.Fatalf("no matching state; last %+v", agent.Flags())
		}
	}
}

func TestAgentIdle(t *testing.T) {
	assert := assert.New(t)

	agent, _ := startAgent(t, time.Millisecond)
	st := waitState(t, agent, func(message.State) bool { return true })
	assert.True(st.Idle())

	// An idle agent publishes nothing further on its ticks.
	select {
	case st = <-agent.States():
		t.Fatalf("unexpected state %+v", st)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestAgentWrite(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, time.Hour)
	payload := []byte("W00010002\r\n")

	require.NoError(agent.Request(ctx, message.Intent{ID: "w1", Kind: message.KindWrite, Payload: payload}))
	st := waitState(t, agent, func(st message.State) bool { return st.AwaitingWrite })
	assert.Equal(message.ID("w1"), st.WriteID)
	assert.Equal(payload, st.WritePayload)
	assert.False(st.AwaitingRead)

	require.NoError(agent.Complete(ctx, message.Completion{ID: "w1", Kind: message.KindWrite}))
	flags := agent.Flags()
	assert.False(flags.AwaitingWrite)
	assert.Empty(flags.WritePayload)
}

func TestAgentWriteQueue(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, time.Hour)

	require.NoError(agent.Request(ctx, message.Intent{ID: "w1", Kind: message.KindWrite, Payload: []byte("a")}))
	require.NoError(agent.Request(ctx, message.Intent{ID: "w2", Kind: message.KindWrite, Payload: []byte("b")}))

	// The second intent never overwrites the first.
	assert.Eventually(func() bool { return agent.Flags().WriteID == "w1" }, time.Second, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.Equal([]byte("a"), agent.Flags().WritePayload)

	require.NoError(agent.Complete(ctx, message.Completion{ID: "w1", Kind: message.KindWrite}))
	flags := agent.Flags()
	assert.True(flags.AwaitingWrite)
	assert.Equal(message.ID("w2"), flags.WriteID)
	assert.Equal([]byte("b"), flags.WritePayload)
}

func TestAgentReadAndWrite(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, time.Hour)

	require.NoError(agent.Request(ctx, message.Intent{ID: "r1", Kind: message.KindRead}))
	require.NoError(agent.Request(ctx, message.Intent{ID: "w1", Kind: message.KindWrite, Payload: []byte("x")}))

	st := waitState(t, agent, func(st message.State) bool { return st.AwaitingRead && st.AwaitingWrite })
	assert.Equal(message.ID("r1"), st.ReadID)
	assert.Equal(message.ID("w1"), st.WriteID)

	require.NoError(agent.Complete(ctx, message.Completion{ID: "r1", Kind: message.KindRead}))
	flags := agent.Flags()
	assert.False(flags.AwaitingRead)
	assert.True(flags.AwaitingWrite)
}

func TestAgentStaleCompletion(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, time.Hour)

	require.NoError(agent.Request(ctx, message.Intent{ID: "r1", Kind: message.KindRead}))
	waitState(t, agent, func(st message.State) bool { return st.AwaitingRead })

	require.NoError(agent.Complete(ctx, message.Completion{ID: "r0", Kind: message.KindRead}))
	require.NoError(agent.Complete(ctx, message.Completion{ID: "r1", Kind: message.KindWrite}))
	assert.True(agent.Flags().AwaitingRead)
}

func TestAgentRepublish(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, 2*time.Millisecond)

	require.NoError(agent.Request(ctx, message.Intent{ID: "w1", Kind: message.KindWrite, Payload: []byte("x")}))

	// Nobody completes the write; every tick re-asserts the flag.
	first := waitState(t, agent, func(st message.State) bool { return st.AwaitingWrite })
	for range 3 {
		st := waitState(t, agent, func(st message.State) bool { return st.Seq > first.Seq })
		assert.True(st.AwaitingWrite)
		assert.Equal(message.ID("w1"), st.WriteID)
		first = st
	}
}

func TestAgentCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, time.Hour)

	require.NoError(agent.Request(ctx, message.Intent{ID: "r1", Kind: message.KindRead}))
	require.NoError(agent.Request(ctx, message.Intent{ID: "r2", Kind: message.KindRead}))
	waitState(t, agent, func(st message.State) bool { return st.ReadID == "r1" })

	// Cancelling the queued intent leaves the current one.
	require.NoError(agent.Cancel(ctx, "r2"))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(message.ID("r1"), agent.Flags().ReadID)

	require.NoError(agent.Cancel(ctx, "r1"))
	assert.Eventually(func() bool { return agent.Flags().Idle() }, time.Second, time.Millisecond)
}

func TestAgentCancelOvertakesIntent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	agent, ctx := startAgent(t, time.Hour)

	require.NoError(agent.Cancel(ctx, "r9"))
	time.Sleep(5 * time.Millisecond)

	require.NoError(agent.Request(ctx, message.Intent{ID: "r9", Kind: message.KindRead}))
	require.NoError(agent.Request(ctx, message.Intent{ID: "r10", Kind: message.KindRead}))
	st := waitState(t, agent, func(st message.State) bool { return st.AwaitingRead })
	assert.Equal(message.ID("r10"), st.ReadID)
}

func TestAgentRequestInvalid(t *testing.T) {
	assert := assert.New(t)

	agent := NewAgent(0)
	assert.ErrorIs(agent.Request(context.Background(), message.Intent{Kind: message.Kind(5)}), ErrKindInvalid)
}

func TestAgentStopped(t *testing.T) {
	assert := assert.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	agent := NewAgent(time.Hour)
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()
	cancel()
	assert.ErrorIs(<-done, context.Canceled)

	err := agent.Complete(context.Background(), message.Completion{ID: "x"})
	assert.ErrorIs(err, ErrStopped)

	err = agent.Request(context.Background(), message.Intent{ID: "x", Kind: message.KindRead})
	assert.ErrorIs(err, ErrStopped)

	err = agent.Cancel(context.Background(), "x")
	assert.ErrorIs(err, ErrStopped)
}

func TestAgentStoppedFailsParked(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	agent := NewAgent(time.Hour)
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()
	cancel()
	<-done

	// A request parked after the agent stopped fails instead of hanging.
	gw := gateway.New(gateway.PolicyReject, agent)
	ticket, err := gw.Park(context.Background(), message.Intent{ID: "r1", Kind: message.KindRead})
	require.NoError(err)

	select {
	case <-ticket.Done():
	case <-time.After(time.Second):
		t.Fatal("parked request not resolved")
	}
	_, err = ticket.Wait(context.Background())
	assert.ErrorIs(err, ErrStopped)
	assert.Equal(0, gw.Parked(message.KindRead))
}
