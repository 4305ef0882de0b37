package models

import "time"

// CreateDiligenceRequest contains the fields for starting a workflow.
type CreateDiligenceRequest struct {
	CompanyName string                  `json:"company_name"`
	UserID      string                  `json:"user_id"`
	BPFile      []byte                  `json:"-"`
	BPFilename  string                  `json:"bp_filename,omitempty"`
	BPMimeType  string                  `json:"bp_mime_type,omitempty"`
	Preferences *InstitutionPreferences `json:"preferences,omitempty"`
}

// SessionContext accumulates the artifacts produced by workflow phases.
// Fields are nil until the corresponding phase has run.
type SessionContext struct {
	BP              *BPStructuredData      `json:"bp,omitempty"`
	PreferenceCheck *PreferenceMatchResult `json:"preference_check,omitempty"`
	TeamSection     *TeamAnalysisOutput    `json:"team_section,omitempty"`
	MarketSection   *MarketAnalysisOutput  `json:"market_section,omitempty"`
	CrossCheck      *CrossCheckOutput      `json:"cross_check,omitempty"`
	DDQuestions     []DDQuestion           `json:"dd_questions,omitempty"`
	Valuation       *ValuationOutput       `json:"valuation,omitempty"`
	ExitAnalysis    *ExitOutput            `json:"exit_analysis,omitempty"`
	HumanReview     string                 `json:"human_review,omitempty"`
	IM              *PreliminaryIM         `json:"im,omitempty"`
}

// SessionRecord is the persisted form of a session: everything a late
// subscriber or a resumed workflow needs, minus live event channels.
type SessionRecord struct {
	ID          string          `json:"id"`
	CompanyName string          `json:"company_name"`
	UserID      string          `json:"user_id"`
	State       WorkflowState   `json:"state"`
	Steps       []Step          `json:"steps"`
	Context     *SessionContext `json:"context"`
	ErrorReason string          `json:"error_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SessionSnapshot is the API view of a session.
type SessionSnapshot struct {
	ID          string          `json:"id"`
	CompanyName string          `json:"company_name"`
	State       WorkflowState   `json:"state"`
	Steps       []Step          `json:"steps"`
	Context     *SessionContext `json:"context,omitempty"`
	ErrorReason string          `json:"error_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
