package roundtable

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Meeting bounds. Rounds and per-turn verbosity are configurable;
// total messages and wall-clock time are hard limits.
const (
	DefaultMaxRounds  = 5
	DefaultMaxPerTurn = 3
	maxTotalMessages  = 200
	maxMeetingTime    = 30 * time.Minute
)

// interventionQueue bounds pending external interventions.
const interventionQueue = 16

// ErrInterventionQueueFull is returned when interventions arrive faster
// than turns consume them.
var ErrInterventionQueueFull = errors.New("intervention queue full")

// Config sets up a meeting.
type Config struct {
	Topic       string
	CompanyName string
	Background  string // opening context, posted as a system message
	MaxRounds   int    // 0 → DefaultMaxRounds
	MaxPerTurn  int    // 0 → DefaultMaxPerTurn
}

// Meeting runs one roundtable discussion. Create with NewMeeting, then
// call Run exactly once; Intervene and Abort are safe from other
// goroutines while Run executes.
type Meeting struct {
	cfg    Config
	agents []Agent
	leader Agent
	bus    *MessageBus

	interventions chan string
	abortCh       chan struct{}
	abortOnce     sync.Once

	concluded  bool
	conclusion string
}

// NewMeeting assembles a meeting. The leader is the first profile with
// Leader set, defaulting to the first agent.
func NewMeeting(cfg Config, agents []Agent) (*Meeting, error) {
	if len(agents) == 0 {
		return nil, errors.New("meeting needs at least one agent")
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.MaxPerTurn <= 0 {
		cfg.MaxPerTurn = DefaultMaxPerTurn
	}

	names := make([]string, 0, len(agents))
	leader := agents[0]
	for _, a := range agents {
		names = append(names, a.Profile().Name)
		if a.Profile().Leader {
			leader = a
		}
	}

	return &Meeting{
		cfg:           cfg,
		agents:        agents,
		leader:        leader,
		bus:           NewMessageBus(names),
		interventions: make(chan string, interventionQueue),
		abortCh:       make(chan struct{}),
	}, nil
}

// Bus exposes the message bus for live listeners.
func (m *Meeting) Bus() *MessageBus { return m.bus }

// Intervene queues an external message; it is posted to ALL before the
// next turn, and the leader re-plans in response.
func (m *Meeting) Intervene(content string) error {
	select {
	case m.interventions <- content:
		return nil
	default:
		return ErrInterventionQueueFull
	}
}

// Abort ends the meeting before its next turn.
func (m *Meeting) Abort() {
	m.abortOnce.Do(func() { close(m.abortCh) })
}

// Run executes the meeting to termination and returns its summary.
func (m *Meeting) Run(ctx context.Context) *Summary {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, maxMeetingTime)
	defer cancel()

	slog.Info("Roundtable started",
		"topic", m.cfg.Topic, "company", m.cfg.CompanyName, "agents", len(m.agents))

	m.bus.Post(Message{
		Round:     0,
		Type:      MsgSystem,
		Sender:    "moderator",
		Recipient: RecipientAll,
		Content:   m.openingContent(),
	})

	reason := EndRoundsLimit
	rounds := 0

loop:
	for round := 1; round <= m.cfg.MaxRounds; round++ {
		rounds = round
		for _, a := range m.agents {
			if r, done := m.checkLimits(ctx); done {
				reason = r
				break loop
			}

			// Interventions jump the rotation: the leader re-plans
			// before the scheduled agent speaks.
			if m.drainInterventions(round) && a != m.leader {
				m.takeTurn(ctx, m.leader, round)
				if m.concluded {
					reason = EndConclusion
					break loop
				}
				if r, done := m.checkLimits(ctx); done {
					reason = r
					break loop
				}
			}

			m.takeTurn(ctx, a, round)
			if m.concluded {
				reason = EndConclusion
				break loop
			}
		}
	}

	summary := m.summarize(start, rounds, reason)
	m.bus.Post(Message{
		Round:     rounds,
		Type:      MsgSystem,
		Sender:    "moderator",
		Recipient: RecipientAll,
		Content:   "meeting ended: " + string(reason),
	})
	slog.Info("Roundtable ended",
		"topic", m.cfg.Topic, "reason", reason, "rounds", rounds, "messages", summary.MessageCount)
	return summary
}

// takeTurn gives one agent its think-and-act opportunity, posting up to
// MaxPerTurn of its drafts. Agent errors silence the turn only.
func (m *Meeting) takeTurn(ctx context.Context, a Agent, round int) {
	name := a.Profile().Name
	in := &TurnInput{
		Topic:       m.cfg.Topic,
		CompanyName: m.cfg.CompanyName,
		Round:       round,
		HistoryTail: tail(m.bus.History(), historyTailLen),
		Mailbox:     m.bus.DrainMailbox(name),
		MaxMessages: m.cfg.MaxPerTurn,
	}

	// Transient, so live viewers see who is deliberating; never recorded.
	m.bus.Notify(Message{
		Round:     round,
		Type:      MsgThinking,
		Sender:    name,
		Recipient: RecipientAll,
		Content:   name + " is thinking...",
	})

	drafts, err := a.TakeTurn(ctx, in)
	if err != nil {
		slog.Warn("Agent turn failed", "agent", name, "round", round, "error", err)
		return
	}
	if len(drafts) > m.cfg.MaxPerTurn {
		drafts = drafts[:m.cfg.MaxPerTurn]
	}

	for _, d := range drafts {
		if m.bus.Len() >= maxTotalMessages {
			return
		}
		m.bus.Post(Message{
			Round:     round,
			Type:      d.Type,
			Sender:    name,
			Recipient: d.Recipient,
			Content:   d.Content,
			ParentID:  d.ParentID,
		})
		if d.Type == MsgConclusion && a == m.leader {
			m.concluded = true
			m.conclusion = d.Content
			return
		}
	}
}

// drainInterventions posts queued external messages; reports whether
// any arrived.
func (m *Meeting) drainInterventions(round int) bool {
	any := false
	for {
		select {
		case content := <-m.interventions:
			any = true
			m.bus.Post(Message{
				Round:     round,
				Type:      MsgIntervention,
				Sender:    "external",
				Recipient: RecipientAll,
				Content:   content,
			})
		default:
			return any
		}
	}
}

func (m *Meeting) checkLimits(ctx context.Context) (EndReason, bool) {
	select {
	case <-m.abortCh:
		return EndAborted, true
	default:
	}
	if ctx.Err() != nil {
		return EndTimeLimit, true
	}
	if m.bus.Len() >= maxTotalMessages {
		return EndMsgLimit, true
	}
	return "", false
}

func (m *Meeting) summarize(start time.Time, rounds int, reason EndReason) *Summary {
	history := m.bus.History()
	perAgent := make(map[string]int)
	for _, msg := range history {
		perAgent[msg.Sender]++
	}
	return &Summary{
		Topic:         m.cfg.Topic,
		Rounds:        rounds,
		MessageCount:  len(history),
		Duration:      time.Since(start),
		PerAgentCount: perAgent,
		Reason:        reason,
		Conclusion:    m.conclusion,
		History:       history,
	}
}

func (m *Meeting) openingContent() string {
	if m.cfg.Background == "" {
		return "Discussion topic: " + m.cfg.Topic
	}
	return "Discussion topic: " + m.cfg.Topic + "\n\n" + m.cfg.Background
}

func tail(msgs []Message, n int) []Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
