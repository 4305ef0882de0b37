package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dengjianbo3/magellan/pkg/roundtable"
)

// Client actions on /ws/roundtable.
const (
	actionStart     = "start_discussion"
	actionIntervene = "intervene"
	actionAbort     = "abort"
)

// wsRoundtableFrame covers every client frame; fields beyond Action are
// action-specific.
type wsRoundtableFrame struct {
	Action      string                    `json:"action"`
	Topic       string                    `json:"topic,omitempty"`
	CompanyName string                    `json:"company_name,omitempty"`
	Background  string                    `json:"context,omitempty"`
	MaxRounds   int                       `json:"max_rounds,omitempty"`
	Agents      []roundtable.AgentProfile `json:"agents,omitempty"`
	Content     string                    `json:"content,omitempty"` // intervene
}

// agentEventFrame renders a bus message as the agent_event wire frame.
// Thinking indicators keep their own event_type so clients can render
// them as transient state rather than transcript.
func agentEventFrame(msg roundtable.Message) map[string]any {
	eventType := "message"
	if msg.Type == roundtable.MsgThinking {
		eventType = "thinking"
	}
	return map[string]any{
		"type":         "agent_event",
		"agent_name":   msg.Sender,
		"event_type":   eventType,
		"message":      msg.Content,
		"recipient":    msg.Recipient,
		"message_type": msg.Type,
		"timestamp":    msg.Timestamp,
	}
}

// wsRoundtable drives one meeting per connection: the client starts the
// discussion, receives every bus message live, may intervene or abort,
// and gets the summary as the final frame.
func (s *Server) wsRoundtable(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server error")
	ctx := r.Context()

	var start wsRoundtableFrame
	if err := wsjson.Read(ctx, conn, &start); err != nil {
		return
	}
	if start.Action != actionStart || start.Topic == "" || len(start.Agents) == 0 {
		s.wsError(ctx, conn, "first frame must be start_discussion with a topic and agents")
		conn.Close(websocket.StatusPolicyViolation, "invalid start frame")
		return
	}

	agents := make([]roundtable.Agent, 0, len(start.Agents))
	for _, profile := range start.Agents {
		agents = append(agents, roundtable.NewLLMAgent(profile, s.llm, s.prompts, s.genCfg))
	}

	meeting, err := roundtable.NewMeeting(roundtable.Config{
		Topic:       start.Topic,
		CompanyName: start.CompanyName,
		Background:  start.Background,
		MaxRounds:   start.MaxRounds,
	}, agents)
	if err != nil {
		s.wsError(ctx, conn, err.Error())
		conn.Close(websocket.StatusPolicyViolation, "invalid meeting")
		return
	}

	names := make([]string, 0, len(start.Agents))
	for _, profile := range start.Agents {
		names = append(names, profile.Name)
	}
	if err := s.wsSend(ctx, conn, map[string]any{"type": "agents_ready", "agents": names}); err != nil {
		return
	}

	msgs, stopListening := meeting.Bus().Listen()
	defer stopListening()

	summaryCh := make(chan *roundtable.Summary, 1)
	go func() { summaryCh <- meeting.Run(ctx) }()

	// Reader for intervene/abort frames. Closing the connection aborts
	// the meeting rather than leaving it talking to nobody.
	go func() {
		for {
			var frame wsRoundtableFrame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				meeting.Abort()
				return
			}
			switch frame.Action {
			case actionIntervene:
				if err := meeting.Intervene(frame.Content); err != nil {
					s.wsError(ctx, conn, err.Error())
				}
			case actionAbort:
				meeting.Abort()
			}
		}
	}()

	for {
		select {
		case msg := <-msgs:
			if err := s.wsSend(ctx, conn, agentEventFrame(msg)); err != nil {
				meeting.Abort()
				<-summaryCh
				return
			}
		case summary := <-summaryCh:
			// Flush anything still queued before the completion frame.
			for {
				select {
				case msg := <-msgs:
					if err := s.wsSend(ctx, conn, agentEventFrame(msg)); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = s.wsSend(ctx, conn, map[string]any{"type": "discussion_complete", "summary": summary})
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ctx.Done():
			meeting.Abort()
			<-summaryCh
			return
		}
	}
}
