package roundtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBus_PostAssignsMonotonicIDs(t *testing.T) {
	bus := NewMessageBus([]string{"Leader", "Skeptic"})

	first := bus.Post(Message{Type: MsgBroadcast, Sender: "Leader", Recipient: RecipientAll, Content: "a"})
	second := bus.Post(Message{Type: MsgBroadcast, Sender: "Skeptic", Recipient: RecipientAll, Content: "b"})

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
	assert.False(t, first.Timestamp.IsZero())

	history := bus.History()
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].Content)
}

func TestMessageBus_BroadcastSkipsSenderMailbox(t *testing.T) {
	bus := NewMessageBus([]string{"Leader", "Skeptic", "Optimist"})
	bus.Post(Message{Type: MsgBroadcast, Sender: "Leader", Recipient: RecipientAll, Content: "hello"})

	assert.Empty(t, bus.DrainMailbox("Leader"))
	assert.Len(t, bus.DrainMailbox("Skeptic"), 1)
	assert.Len(t, bus.DrainMailbox("Optimist"), 1)
}

func TestMessageBus_DirectRouting(t *testing.T) {
	bus := NewMessageBus([]string{"Leader", "Skeptic"})
	bus.Post(Message{Type: MsgQuestion, Sender: "Leader", Recipient: "Skeptic", Content: "why?"})

	assert.Empty(t, bus.DrainMailbox("Leader"))
	pending := bus.DrainMailbox("Skeptic")
	require.Len(t, pending, 1)
	assert.Equal(t, "why?", pending[0].Content)

	// FIFO drains clear the mailbox.
	assert.Empty(t, bus.DrainMailbox("Skeptic"))
}

func TestMessageBus_MailboxFIFOOrder(t *testing.T) {
	bus := NewMessageBus([]string{"Leader", "Skeptic"})
	bus.Post(Message{Type: MsgDirect, Sender: "Leader", Recipient: "Skeptic", Content: "first"})
	bus.Post(Message{Type: MsgDirect, Sender: "Leader", Recipient: "Skeptic", Content: "second"})

	pending := bus.DrainMailbox("Skeptic")
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Content)
	assert.Equal(t, "second", pending[1].Content)
}

func TestMessageBus_UnknownRecipientStillRecorded(t *testing.T) {
	bus := NewMessageBus([]string{"Leader"})
	bus.Post(Message{Type: MsgDirect, Sender: "Leader", Recipient: "Ghost", Content: "anyone?"})
	assert.Equal(t, 1, bus.Len())
}

func TestMessageBus_NotifySkipsHistoryAndMailboxes(t *testing.T) {
	bus := NewMessageBus([]string{"Leader", "Skeptic"})
	ch, cancel := bus.Listen()
	defer cancel()

	bus.Notify(Message{Type: MsgThinking, Sender: "Leader", Recipient: RecipientAll, Content: "Leader is thinking..."})

	msg := <-ch
	assert.Equal(t, MsgThinking, msg.Type)
	assert.Zero(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	// Transient messages never enter the record or any mailbox.
	assert.Zero(t, bus.Len())
	assert.Empty(t, bus.DrainMailbox("Skeptic"))
}

func TestMessageBus_ListenersReceiveLiveMessages(t *testing.T) {
	bus := NewMessageBus([]string{"Leader"})
	ch, cancel := bus.Listen()
	defer cancel()

	bus.Post(Message{Type: MsgBroadcast, Sender: "Leader", Recipient: RecipientAll, Content: "live"})

	msg := <-ch
	assert.Equal(t, "live", msg.Content)

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "cancel closes the listener channel")
}
