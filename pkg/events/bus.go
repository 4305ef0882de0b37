package events

import (
	"log/slog"
	"sync"
	"time"
)

// subscriberBuffer is the per-subscriber queue depth. A subscriber that
// lets this many events pile up is dropped with a buffer_overflow event
// rather than allowed to stall the publisher.
const subscriberBuffer = 256

// Bus is the ordered event stream for one session. Publishing never
// blocks: slow subscribers are disconnected, and the full history is
// retained so late subscribers can catch up.
type Bus struct {
	sessionID string

	mu      sync.Mutex
	history []Event
	nextSeq int
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// NewBus creates the event bus for a session.
func NewBus(sessionID string) *Bus {
	return &Bus{
		sessionID: sessionID,
		subs:      make(map[int]chan Event),
		nextSeq:   1,
	}
}

// Publish stamps the event with the session ID, the next sequence
// number, and a timestamp, then fans it out. Events published after
// Close are dropped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		slog.Warn("Event published after bus close, dropping",
			"session_id", b.sessionID, "type", ev.Type)
		return
	}

	ev.SessionID = b.sessionID
	ev.Sequence = b.nextSeq
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	b.nextSeq++
	b.history = append(b.history, ev)

	for id, ch := range b.subs {
		// The last slot of every subscriber channel is reserved for the
		// overflow notice, so the sends below can never block.
		if len(ch) >= cap(ch)-1 {
			delete(b.subs, id)
			ch <- b.overflowEvent()
			close(ch)
			slog.Warn("Subscriber dropped: event buffer overflow",
				"session_id", b.sessionID, "subscriber_id", id)
			continue
		}
		ch <- ev
	}
}

// Subscribe returns a channel that first replays every event with a
// sequence greater than sinceSeq, then delivers live events in order.
// The returned cancel function detaches the subscriber and closes the
// channel; it is safe to call more than once. Subscribing to a closed
// bus yields the replay followed immediately by channel close.
func (b *Bus) Subscribe(sinceSeq int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var replay []Event
	for _, ev := range b.history {
		if ev.Sequence > sinceSeq {
			replay = append(replay, ev)
		}
	}

	// Replay always fits: the channel is sized for it plus the live
	// buffer plus the reserved overflow slot.
	ch := make(chan Event, len(replay)+subscriberBuffer+1)
	for _, ev := range replay {
		ch <- ev
	}

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close ends the stream: all subscriber channels are closed and future
// publishes are dropped. Called once the session reaches a terminal
// state and its retention window expires.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// History returns a copy of every event published so far, in order.
// Backs the session snapshot endpoint.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// LastSequence returns the sequence of the most recent event, or 0 if
// nothing has been published.
func (b *Bus) LastSequence() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq - 1
}

// subscriberCount is used by tests to poll instead of sleeping.
func (b *Bus) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) overflowEvent() Event {
	return Event{
		Type:      EventTypeBufferOverflow,
		SessionID: b.sessionID,
		Sequence:  b.nextSeq - 1,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Reason:    "subscriber too slow; reconnect and catch up from the session snapshot",
	}
}
