package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishOrderAndStamping(t *testing.T) {
	bus := NewBus("sess-1")
	ch, cancel := bus.Subscribe(0)
	defer cancel()

	bus.Publish(Event{Type: EventTypeStepStart, StepIndex: 0, StepTitle: "Parsing business plan"})
	bus.Publish(Event{Type: EventTypeStepComplete, StepIndex: 0, Status: "success"})

	first := <-ch
	second := <-ch
	assert.Equal(t, 1, first.Sequence)
	assert.Equal(t, 2, second.Sequence)
	assert.Equal(t, "sess-1", first.SessionID)
	assert.Equal(t, EventTypeStepStart, first.Type)
	assert.NotEmpty(t, first.Timestamp)
}

func TestBus_LateSubscriberCatchesUp(t *testing.T) {
	bus := NewBus("sess-1")
	bus.Publish(Event{Type: EventTypeStepStart, StepIndex: 0})
	bus.Publish(Event{Type: EventTypeStepComplete, StepIndex: 0})
	bus.Publish(Event{Type: EventTypeStepStart, StepIndex: 1})

	ch, cancel := bus.Subscribe(0)
	defer cancel()

	for want := 1; want <= 3; want++ {
		ev := <-ch
		assert.Equal(t, want, ev.Sequence)
	}
}

func TestBus_SubscribeSinceSkipsSeenEvents(t *testing.T) {
	bus := NewBus("sess-1")
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventTypeStepProgress, StepIndex: i})
	}

	ch, cancel := bus.Subscribe(3)
	defer cancel()

	ev := <-ch
	assert.Equal(t, 4, ev.Sequence)
	ev = <-ch
	assert.Equal(t, 5, ev.Sequence)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event: %+v", extra)
	default:
	}
}

func TestBus_SlowSubscriberDroppedWithOverflow(t *testing.T) {
	bus := NewBus("sess-1")
	ch, cancel := bus.Subscribe(0)
	defer cancel()

	// Never read: fill the buffer past capacity.
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: EventTypeStepProgress, StepIndex: i})
	}

	assert.Equal(t, 0, bus.subscriberCount(), "slow subscriber is detached")

	var last Event
	for ev := range ch {
		last = ev
	}
	assert.Equal(t, EventTypeBufferOverflow, last.Type)
	assert.NotEmpty(t, last.Reason)
}

func TestBus_FastSubscriberUnaffectedBySlowOne(t *testing.T) {
	bus := NewBus("sess-1")
	slow, cancelSlow := bus.Subscribe(0)
	defer cancelSlow()
	_ = slow

	fast, cancelFast := bus.Subscribe(0)
	defer cancelFast()

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range fast {
			received++
			if received == subscriberBuffer+10 {
				return
			}
		}
	}()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: EventTypeStepProgress, StepIndex: i})
	}

	<-done
	assert.Equal(t, subscriberBuffer+10, received)
}

func TestBus_CloseEndsStreams(t *testing.T) {
	bus := NewBus("sess-1")
	ch, cancel := bus.Subscribe(0)
	defer cancel()

	bus.Publish(Event{Type: EventTypeWorkflowComplete, State: "COMPLETED"})
	bus.Close()

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, EventTypeWorkflowComplete, ev.Type)
	_, ok = <-ch
	assert.False(t, ok, "channel closed after bus close")

	// Publishing after close is a no-op.
	bus.Publish(Event{Type: EventTypeStepStart})
	assert.Equal(t, 1, bus.LastSequence())
}

func TestBus_SubscribeAfterCloseReplaysThenCloses(t *testing.T) {
	bus := NewBus("sess-1")
	bus.Publish(Event{Type: EventTypeStepStart, StepIndex: 0})
	bus.Publish(Event{Type: EventTypeWorkflowComplete})
	bus.Close()

	ch, cancel := bus.Subscribe(0)
	defer cancel()

	var seqs []int
	for ev := range ch {
		seqs = append(seqs, ev.Sequence)
	}
	assert.Equal(t, []int{1, 2}, seqs)
}

func TestBus_CancelIsIdempotent(t *testing.T) {
	bus := NewBus("sess-1")
	_, cancel := bus.Subscribe(0)
	cancel()
	cancel()
	assert.Equal(t, 0, bus.subscriberCount())
}

func TestBus_HistoryIsACopy(t *testing.T) {
	bus := NewBus("sess-1")
	bus.Publish(Event{Type: EventTypeStepStart})

	history := bus.History()
	require.Len(t, history, 1)
	history[0].Type = "mutated"

	again := bus.History()
	assert.Equal(t, EventTypeStepStart, again[0].Type)
}
