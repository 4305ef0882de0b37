package roundtable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// mockAgent emits scripted drafts; emit may inspect the turn input.
type mockAgent struct {
	profile AgentProfile
	emit    func(in *TurnInput) []Draft

	mu    sync.Mutex
	turns []*TurnInput
}

func (a *mockAgent) Profile() AgentProfile { return a.profile }

func (a *mockAgent) TakeTurn(_ context.Context, in *TurnInput) ([]Draft, error) {
	a.mu.Lock()
	a.turns = append(a.turns, in)
	a.mu.Unlock()
	if a.emit == nil {
		return nil, nil
	}
	return a.emit(in), nil
}

func (a *mockAgent) turnCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.turns)
}

func say(content string) func(*TurnInput) []Draft {
	return func(*TurnInput) []Draft {
		return []Draft{{Type: MsgBroadcast, Recipient: RecipientAll, Content: content}}
	}
}

func newTestMeeting(t *testing.T, cfg Config, agents ...Agent) *Meeting {
	t.Helper()
	m, err := NewMeeting(cfg, agents)
	require.NoError(t, err)
	return m
}

func TestMeeting_RoundRobinUntilRoundsLimit(t *testing.T) {
	leader := &mockAgent{profile: AgentProfile{Name: "Leader", Leader: true}, emit: say("lead")}
	skeptic := &mockAgent{profile: AgentProfile{Name: "Skeptic"}, emit: say("doubt")}

	m := newTestMeeting(t, Config{Topic: "Acme AI deal", MaxRounds: 3}, leader, skeptic)
	summary := m.Run(context.Background())

	assert.Equal(t, EndRoundsLimit, summary.Reason)
	assert.Equal(t, 3, summary.Rounds)
	assert.Equal(t, 3, leader.turnCount())
	assert.Equal(t, 3, skeptic.turnCount())
	// Opening system message + 6 turns + closing system message.
	assert.Equal(t, 8, summary.MessageCount)
	assert.Equal(t, 3, summary.PerAgentCount["Leader"])
	assert.Equal(t, 2, summary.PerAgentCount["moderator"])
}

func TestMeeting_LeaderConclusionEndsEarly(t *testing.T) {
	round := 0
	leader := &mockAgent{profile: AgentProfile{Name: "Leader", Leader: true}, emit: func(in *TurnInput) []Draft {
		round = in.Round
		if in.Round == 2 {
			return []Draft{{Type: MsgConclusion, Recipient: RecipientAll, Content: "we pass on this deal"}}
		}
		return []Draft{{Type: MsgBroadcast, Recipient: RecipientAll, Content: "discuss"}}
	}}
	skeptic := &mockAgent{profile: AgentProfile{Name: "Skeptic"}, emit: say("doubt")}

	m := newTestMeeting(t, Config{Topic: "Acme AI deal"}, leader, skeptic)
	summary := m.Run(context.Background())

	assert.Equal(t, EndConclusion, summary.Reason)
	assert.Equal(t, 2, round)
	assert.Equal(t, "we pass on this deal", summary.Conclusion)
	assert.Equal(t, 1, skeptic.turnCount(), "skeptic never speaks after the conclusion round starts")
}

func TestMeeting_NonLeaderConclusionDoesNotEnd(t *testing.T) {
	leader := &mockAgent{profile: AgentProfile{Name: "Leader", Leader: true}, emit: say("lead")}
	// Bypasses sanitizeDrafts (that is the LLM agent's job), so the
	// meeting itself must ignore a non-leader conclusion.
	rogue := &mockAgent{profile: AgentProfile{Name: "Rogue"}, emit: func(*TurnInput) []Draft {
		return []Draft{{Type: MsgConclusion, Recipient: RecipientAll, Content: "I conclude"}}
	}}

	m := newTestMeeting(t, Config{Topic: "t", MaxRounds: 2}, leader, rogue)
	summary := m.Run(context.Background())

	assert.Equal(t, EndRoundsLimit, summary.Reason)
	assert.Empty(t, summary.Conclusion)
}

func TestMeeting_PerTurnCap(t *testing.T) {
	chatty := &mockAgent{profile: AgentProfile{Name: "Chatty", Leader: true}, emit: func(*TurnInput) []Draft {
		var out []Draft
		for i := 0; i < 10; i++ {
			out = append(out, Draft{Type: MsgBroadcast, Recipient: RecipientAll, Content: "more"})
		}
		return out
	}}

	m := newTestMeeting(t, Config{Topic: "t", MaxRounds: 1}, chatty)
	summary := m.Run(context.Background())

	assert.Equal(t, DefaultMaxPerTurn, summary.PerAgentCount["Chatty"])
}

func TestMeeting_MessageLimit(t *testing.T) {
	spam := func(*TurnInput) []Draft {
		return []Draft{
			{Type: MsgBroadcast, Recipient: RecipientAll, Content: "x"},
			{Type: MsgBroadcast, Recipient: RecipientAll, Content: "y"},
			{Type: MsgBroadcast, Recipient: RecipientAll, Content: "z"},
		}
	}
	a := &mockAgent{profile: AgentProfile{Name: "A", Leader: true}, emit: spam}
	b := &mockAgent{profile: AgentProfile{Name: "B"}, emit: spam}

	m := newTestMeeting(t, Config{Topic: "t", MaxRounds: 200}, a, b)
	summary := m.Run(context.Background())

	assert.Equal(t, EndMsgLimit, summary.Reason)
	assert.LessOrEqual(t, summary.MessageCount, maxTotalMessages+1, "only the closing system message may exceed the cap")
}

func TestMeeting_InterventionTriggersLeaderReplan(t *testing.T) {
	var sawIntervention bool
	leader := &mockAgent{profile: AgentProfile{Name: "Leader", Leader: true}, emit: func(in *TurnInput) []Draft {
		for _, msg := range in.Mailbox {
			if msg.Type == MsgIntervention {
				sawIntervention = true
			}
		}
		return []Draft{{Type: MsgBroadcast, Recipient: RecipientAll, Content: "plan"}}
	}}

	intervened := false
	var m *Meeting
	skeptic := &mockAgent{profile: AgentProfile{Name: "Skeptic"}, emit: func(*TurnInput) []Draft {
		if !intervened {
			intervened = true
			require.NoError(t, m.Intervene("focus on the churn numbers"))
		}
		return []Draft{{Type: MsgBroadcast, Recipient: RecipientAll, Content: "doubt"}}
	}}
	optimist := &mockAgent{profile: AgentProfile{Name: "Optimist"}, emit: say("upside")}

	m = newTestMeeting(t, Config{Topic: "t", MaxRounds: 2}, leader, skeptic, optimist)
	summary := m.Run(context.Background())

	assert.True(t, sawIntervention, "leader re-plans with the intervention in its mailbox")

	// The intervention is on the record, addressed to ALL.
	var found *Message
	for i := range summary.History {
		if summary.History[i].Type == MsgIntervention {
			found = &summary.History[i]
			break
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, RecipientAll, found.Recipient)
	assert.Equal(t, "focus on the churn numbers", found.Content)

	// The leader got an extra out-of-rotation turn before the optimist.
	assert.Greater(t, leader.turnCount(), optimist.turnCount())
}

func TestMeeting_Abort(t *testing.T) {
	var m *Meeting
	leader := &mockAgent{profile: AgentProfile{Name: "Leader", Leader: true}, emit: func(*TurnInput) []Draft {
		m.Abort()
		return []Draft{{Type: MsgBroadcast, Recipient: RecipientAll, Content: "never mind"}}
	}}

	m = newTestMeeting(t, Config{Topic: "t", MaxRounds: 5}, leader)
	summary := m.Run(context.Background())

	assert.Equal(t, EndAborted, summary.Reason)
	assert.Equal(t, 1, leader.turnCount())
}

func TestMeeting_NoAgents(t *testing.T) {
	_, err := NewMeeting(Config{Topic: "t"}, nil)
	assert.Error(t, err)
}

func TestMeeting_ListenersSeeLiveDiscussion(t *testing.T) {
	leader := &mockAgent{profile: AgentProfile{Name: "Leader", Leader: true}, emit: func(*TurnInput) []Draft {
		return []Draft{{Type: MsgConclusion, Recipient: RecipientAll, Content: "done"}}
	}}
	m := newTestMeeting(t, Config{Topic: "t"}, leader)

	ch, cancel := m.Bus().Listen()
	defer cancel()

	done := make(chan *Summary, 1)
	go func() { done <- m.Run(context.Background()) }()

	var types []MessageType
	for msg := range ch {
		types = append(types, msg.Type)
		if msg.Type == MsgSystem && msg.Content == "meeting ended: conclusion" {
			break
		}
	}
	assert.Equal(t, MsgSystem, types[0], "opening system message first")
	assert.Contains(t, types, MsgThinking, "listeners see thinking indicators")
	assert.Contains(t, types, MsgConclusion)

	select {
	case summary := <-done:
		assert.Equal(t, EndConclusion, summary.Reason)
		// Thinking indicators are listener-only, never recorded.
		for _, msg := range summary.History {
			assert.NotEqual(t, MsgThinking, msg.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("meeting did not finish")
	}
}

// --- LLM agent ---

type scriptLLM struct {
	response string
	err      error
	prompts  []string
}

func (f *scriptLLM) Generate(_ context.Context, p string, _ clients.GenConfig) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.response, f.err
}

func (f *scriptLLM) GenerateWithFile(_ context.Context, _ string, _ []byte, _ string, _ clients.GenConfig) (string, error) {
	return f.response, f.err
}

func TestLLMAgent_ParsesTypedMessages(t *testing.T) {
	llm := &scriptLLM{response: `{"messages": [
		{"type": "question", "recipient": "Skeptic", "content": "what about churn?"},
		{"type": "private_chat", "recipient": "Optimist", "content": "push back on the TAM"},
		{"type": "broadcast", "content": "overall I like the team"}
	]}`}
	a := NewLLMAgent(AgentProfile{Name: "Leader", Role: "the deal lead", Leader: true},
		llm, prompt.NewRegistry(), clients.GenConfig{})

	drafts, err := a.TakeTurn(context.Background(), &TurnInput{
		Topic: "Acme AI deal", CompanyName: "Acme AI", Round: 1, MaxMessages: 3,
	})
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, MsgQuestion, drafts[0].Type)
	assert.Equal(t, "Skeptic", drafts[0].Recipient)
	assert.Equal(t, MsgPrivateChat, drafts[1].Type)
	assert.Equal(t, "Optimist", drafts[1].Recipient)
	assert.Equal(t, RecipientAll, drafts[2].Recipient, "empty recipient defaults to ALL")

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Leader")
	assert.Contains(t, llm.prompts[0], "Acme AI")
}

func TestLLMAgent_NonLeaderConclusionDemoted(t *testing.T) {
	llm := &scriptLLM{response: `{"messages": [{"type": "conclusion", "content": "we are done"}]}`}
	a := NewLLMAgent(AgentProfile{Name: "Skeptic", Role: "the skeptic"},
		llm, prompt.NewRegistry(), clients.GenConfig{})

	drafts, err := a.TakeTurn(context.Background(), &TurnInput{Topic: "t", MaxMessages: 3})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, MsgBroadcast, drafts[0].Type)
}

func TestLLMAgent_ErrorSilencesTurn(t *testing.T) {
	llm := &scriptLLM{err: assert.AnError}
	a := NewLLMAgent(AgentProfile{Name: "Skeptic", Role: "r"}, llm, prompt.NewRegistry(), clients.GenConfig{})

	_, err := a.TakeTurn(context.Background(), &TurnInput{Topic: "t", MaxMessages: 3})
	assert.Error(t, err)
}

func TestLLMAgent_EmptyMessagesIsValid(t *testing.T) {
	llm := &scriptLLM{response: `{"messages": []}`}
	a := NewLLMAgent(AgentProfile{Name: "Quiet", Role: "r"}, llm, prompt.NewRegistry(), clients.GenConfig{})

	drafts, err := a.TakeTurn(context.Background(), &TurnInput{Topic: "t", MaxMessages: 3})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}
