package roundtable

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dengjianbo3/magellan/pkg/agent"
	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// llmCallTimeout bounds each agent's LLM call within a turn.
const llmCallTimeout = 60 * time.Second

// historyTailLen is how many trailing messages an agent sees.
const historyTailLen = 12

// TurnInput is what an agent sees when it takes a turn.
type TurnInput struct {
	Topic       string
	CompanyName string
	Round       int
	HistoryTail []Message
	Mailbox     []Message
	MaxMessages int
}

// Agent is one meeting participant. TakeTurn may return zero drafts; a
// returned error silences the agent for that turn only.
type Agent interface {
	Profile() AgentProfile
	TakeTurn(ctx context.Context, in *TurnInput) ([]Draft, error)
}

// LLMAgent decides its messages via the LLM gateway. The agent does
// not interpret content; it only parses the typed fields.
type LLMAgent struct {
	profile AgentProfile
	llm     agent.LLM
	prompts *prompt.Registry
	cfg     clients.GenConfig
}

// NewLLMAgent builds an LLM-backed participant.
func NewLLMAgent(profile AgentProfile, llm agent.LLM, prompts *prompt.Registry, cfg clients.GenConfig) *LLMAgent {
	return &LLMAgent{profile: profile, llm: llm, prompts: prompts, cfg: cfg}
}

func (a *LLMAgent) Profile() AgentProfile { return a.profile }

type turnLLMOutput struct {
	Messages []Draft `json:"messages"`
}

func (a *LLMAgent) TakeTurn(ctx context.Context, in *TurnInput) ([]Draft, error) {
	promptText, err := a.prompts.Render(prompt.RoundtableAgent, map[string]any{
		"AgentName":       a.profile.Name,
		"RoleDescription": a.profile.Role,
		"Persona":         a.profile.Persona,
		"Topic":           in.Topic,
		"CompanyName":     in.CompanyName,
		"HistoryTail":     formatMessages(in.HistoryTail),
		"Mailbox":         formatMessages(in.Mailbox),
		"MaxMessages":     in.MaxMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering turn prompt: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()
	cfg := a.cfg
	cfg.ResponseFormat = "json"
	raw, err := a.llm.Generate(callCtx, promptText, cfg)
	if err != nil {
		return nil, fmt.Errorf("turn LLM call: %w", err)
	}

	var out turnLLMOutput
	if err := agent.DecodeJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing turn output: %w", err)
	}
	return sanitizeDrafts(out.Messages, a.profile), nil
}

// sanitizeDrafts drops empty drafts, defaults the recipient, and
// demotes a conclusion from anyone but the leader to a broadcast.
func sanitizeDrafts(drafts []Draft, profile AgentProfile) []Draft {
	out := make([]Draft, 0, len(drafts))
	for _, d := range drafts {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		switch d.Type {
		case MsgBroadcast, MsgDirect, MsgPrivateChat, MsgQuestion, MsgReply, MsgAgree, MsgDisagree:
		case MsgConclusion:
			if !profile.Leader {
				slog.Warn("Non-leader conclusion demoted to broadcast", "agent", profile.Name)
				d.Type = MsgBroadcast
			}
		default:
			d.Type = MsgBroadcast
		}
		if d.Recipient == "" {
			d.Recipient = RecipientAll
		}
		out = append(out, d)
	}
	return out
}

func formatMessages(msgs []Message) string {
	if len(msgs) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&sb, "[%d] %s -> %s (%s): %s\n", m.ID, m.Sender, m.Recipient, m.Type, m.Content)
	}
	return sb.String()
}
