package roundtable

import (
	"sync"
	"time"
)

// listenerBuffer bounds each live listener's queue; slow listeners lose
// messages rather than stalling the meeting.
const listenerBuffer = 100

// MessageBus keeps the ordered meeting history, routes messages to
// per-agent FIFO mailboxes, and feeds live listener channels. Safe for
// concurrent use; the meeting goroutine posts while WebSocket handlers
// listen.
type MessageBus struct {
	mu        sync.Mutex
	history   []Message
	nextID    int
	mailboxes map[string][]Message
	listeners []chan Message
}

// NewMessageBus creates a bus with a mailbox per participant.
func NewMessageBus(participants []string) *MessageBus {
	mailboxes := make(map[string][]Message, len(participants))
	for _, name := range participants {
		mailboxes[name] = nil
	}
	return &MessageBus{nextID: 1, mailboxes: mailboxes}
}

// Post assigns the message its ID and timestamp, appends it to the
// history, routes it to the recipient's mailbox (all mailboxes except
// the sender's for RecipientAll), and notifies listeners. It returns
// the stored message.
func (b *MessageBus) Post(msg Message) Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	msg.ID = b.nextID
	b.nextID++
	msg.Timestamp = time.Now().UTC()
	b.history = append(b.history, msg)

	if msg.Recipient == RecipientAll {
		for name := range b.mailboxes {
			if name != msg.Sender {
				b.mailboxes[name] = append(b.mailboxes[name], msg)
			}
		}
	} else if _, ok := b.mailboxes[msg.Recipient]; ok {
		b.mailboxes[msg.Recipient] = append(b.mailboxes[msg.Recipient], msg)
	}

	for _, ch := range b.listeners {
		select {
		case ch <- msg:
		default: // slow listener, drop
		}
	}
	return msg
}

// Notify fans a transient message out to live listeners without
// recording it. Thinking indicators use this; they carry no ID, never
// enter the history, and never land in a mailbox.
func (b *MessageBus) Notify(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg.Timestamp = time.Now().UTC()
	for _, ch := range b.listeners {
		select {
		case ch <- msg:
		default: // slow listener, drop
		}
	}
}

// DrainMailbox returns and clears an agent's pending messages in FIFO
// order.
func (b *MessageBus) DrainMailbox(agent string) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := b.mailboxes[agent]
	b.mailboxes[agent] = nil
	return pending
}

// History returns a copy of all messages posted so far.
func (b *MessageBus) History() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.history))
	copy(out, b.history)
	return out
}

// Len returns the number of messages posted.
func (b *MessageBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history)
}

// Listen registers a live listener. The returned cancel detaches it
// and closes the channel.
func (b *MessageBus) Listen() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Message, listenerBuffer)
	b.listeners = append(b.listeners, ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, l := range b.listeners {
				if l == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}
