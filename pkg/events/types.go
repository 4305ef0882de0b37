// Package events provides ordered, per-session event streams with
// snapshot catch-up for late subscribers. Workflow progress, HITL
// prompts, and terminal outcomes are all delivered through a session's
// Bus; the WebSocket layer forwards events verbatim.
package events

// Event types published on a session bus.
const (
	// Step lifecycle — one start, zero or more progress, one complete
	// per workflow step.
	EventTypeStepStart    = "step_start"
	EventTypeStepProgress = "step_progress"
	EventTypeStepComplete = "step_complete"

	// Human-in-the-loop: the workflow is suspended awaiting review.
	EventTypeHITLRequired = "hitl_required"

	// Terminal events — exactly one of these ends every stream.
	EventTypeWorkflowComplete = "workflow_complete"
	EventTypeWorkflowError    = "workflow_error"

	// BufferOverflow is delivered to a subscriber that fell too far
	// behind; its channel is closed immediately after. The client
	// should reconnect and catch up from the session snapshot.
	EventTypeBufferOverflow = "buffer_overflow"
)

// Event is a single entry on a session's stream. Sequence is assigned
// by the bus and is strictly increasing per session; Result is only
// populated on step_complete and workflow terminal events.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Sequence  int    `json:"sequence"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
	State     string `json:"state,omitempty"`
	StepIndex int    `json:"step_index,omitempty"`
	StepTitle string `json:"step_title,omitempty"`
	Status    string `json:"status,omitempty"`
	Percent   int    `json:"percent,omitempty"`
	SubStep   string `json:"sub_step,omitempty"`
	Result    any    `json:"result,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
