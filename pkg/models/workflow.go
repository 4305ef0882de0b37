// Package models defines the data types shared across the due-diligence
// orchestrator: workflow states, steps, parsed business plans, analysis
// outputs, and the preliminary investment memorandum.
package models

import "time"

// WorkflowState enumerates the states of the due-diligence state machine.
type WorkflowState string

const (
	StateInit            WorkflowState = "INIT"
	StateDocParse        WorkflowState = "DOC_PARSE"
	StatePreferenceCheck WorkflowState = "PREFERENCE_CHECK"
	StateTeamDD          WorkflowState = "TDD"
	StateMarketDD        WorkflowState = "MDD"
	StateCrossCheck      WorkflowState = "CROSS_CHECK"
	StateDDQuestions     WorkflowState = "DD_QUESTIONS"
	StateHITLReview      WorkflowState = "HITL_REVIEW"
	StateCompleted       WorkflowState = "COMPLETED"
	StateError           WorkflowState = "ERROR"
)

// IsTerminal reports whether the state ends the workflow.
func (s WorkflowState) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// StepStatus enumerates the lifecycle states of a workflow step.
type StepStatus string

const (
	StepStatusPending StepStatus = "pending"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
	StepStatusPaused  StepStatus = "paused"
)

// IsTerminal reports whether the step status is final. Paused steps are
// terminal for snapshot purposes: a suspended workflow never rewrites them.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSuccess || s == StepStatusError || s == StepStatusPaused
}

// Step records one unit of workflow progress. Steps are appended in
// index order and become immutable once their status is terminal.
type Step struct {
	Index     int        `json:"index"`
	Title     string     `json:"title"`
	Status    StepStatus `json:"status"`
	Result    any        `json:"result,omitempty"`
	Progress  int        `json:"progress,omitempty"` // 0–100
	SubSteps  []string   `json:"sub_steps,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StepResult is the generic payload stored on a completed step. Degraded
// marks a step that succeeded via an agent's fallback path.
type StepResult struct {
	Degraded bool `json:"degraded,omitempty"`
	Output   any  `json:"output,omitempty"`
}
