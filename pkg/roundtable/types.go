// Package roundtable runs multi-agent investment committee meetings: a
// peer-to-peer message bus with round-robin turn scheduling, external
// intervention, and bounded rounds, messages, and wall-clock time. It
// is orthogonal to the due-diligence workflow and shares only the
// service clients and prompt registry with it.
package roundtable

import "time"

// MessageType classifies a roundtable message. Agents emit the
// conversational types; thinking, external_intervention, and system
// originate outside an agent's reply.
type MessageType string

const (
	MsgBroadcast    MessageType = "broadcast"
	MsgDirect       MessageType = "direct"
	MsgPrivateChat  MessageType = "private_chat"
	MsgQuestion     MessageType = "question"
	MsgReply        MessageType = "reply"
	MsgAgree        MessageType = "agree"
	MsgDisagree     MessageType = "disagree"
	MsgConclusion   MessageType = "conclusion"
	MsgThinking     MessageType = "thinking"
	MsgIntervention MessageType = "external_intervention"
	MsgSystem       MessageType = "system"
)

// RecipientAll addresses a message to every participant.
const RecipientAll = "ALL"

// Message is one entry in a meeting's history. ID is assigned by the
// bus and is strictly increasing within a meeting.
type Message struct {
	ID        int         `json:"id"`
	Round     int         `json:"round"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	Recipient string      `json:"recipient"`
	Content   string      `json:"content"`
	ParentID  int         `json:"parent_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Draft is a message as emitted by an agent, before the bus assigns
// identity and ordering.
type Draft struct {
	Type      MessageType `json:"type"`
	Recipient string      `json:"recipient"`
	Content   string      `json:"content"`
	ParentID  int         `json:"parent_id,omitempty"`
}

// AgentProfile describes one participant. Exactly one profile per
// meeting should be the leader; only the leader's conclusion message
// ends the meeting early.
type AgentProfile struct {
	Name    string `json:"name"`
	Role    string `json:"role"` // short role description, e.g. "the skeptical partner"
	Persona string `json:"persona,omitempty"`
	Leader  bool   `json:"leader,omitempty"`
}

// EndReason says why a meeting terminated.
type EndReason string

const (
	EndConclusion  EndReason = "conclusion"
	EndRoundsLimit EndReason = "rounds_limit"
	EndMsgLimit    EndReason = "message_limit"
	EndTimeLimit   EndReason = "time_limit"
	EndAborted     EndReason = "aborted"
)

// Summary is the meeting's terminal artifact.
type Summary struct {
	Topic         string         `json:"topic"`
	Rounds        int            `json:"rounds"`
	MessageCount  int            `json:"message_count"`
	Duration      time.Duration  `json:"duration"`
	PerAgentCount map[string]int `json:"per_agent_count"`
	Reason        EndReason      `json:"reason"`
	Conclusion    string         `json:"conclusion,omitempty"`
	History       []Message      `json:"history"`
}
