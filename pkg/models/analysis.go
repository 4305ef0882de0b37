package models

import "time"

// TeamAnalysisOutput is the artifact of the team due-diligence phase.
type TeamAnalysisOutput struct {
	Summary              string   `json:"summary"`
	Strengths            []string `json:"strengths,omitempty"`
	Concerns             []string `json:"concerns,omitempty"`
	ExperienceMatchScore float64  `json:"experience_match_score"` // [0,10]
	KeyFindings          []string `json:"key_findings,omitempty"`
	DataSources          []string `json:"data_sources,omitempty"`
}

// MarketAnalysisOutput is the artifact of the market due-diligence phase.
type MarketAnalysisOutput struct {
	Summary              string   `json:"summary"`
	MarketValidation     string   `json:"market_validation,omitempty"`
	CompetitiveLandscape string   `json:"competitive_landscape,omitempty"`
	RedFlags             []string `json:"red_flags,omitempty"`
	DataSources          []string `json:"data_sources,omitempty"`
}

// DDCategory classifies a due-diligence question.
type DDCategory string

const (
	CategoryTeam      DDCategory = "Team"
	CategoryMarket    DDCategory = "Market"
	CategoryProduct   DDCategory = "Product"
	CategoryFinancial DDCategory = "Financial"
	CategoryRisk      DDCategory = "Risk"
)

// DDCategories lists every valid question category in display order.
var DDCategories = []DDCategory{CategoryTeam, CategoryMarket, CategoryProduct, CategoryFinancial, CategoryRisk}

// Valid reports whether the category is one of the five known values.
func (c DDCategory) Valid() bool {
	for _, k := range DDCategories {
		if c == k {
			return true
		}
	}
	return false
}

// DDPriority labels how urgently a question should be pursued.
type DDPriority string

const (
	PriorityHigh   DDPriority = "high"
	PriorityMedium DDPriority = "medium"
	PriorityLow    DDPriority = "low"
)

// DDQuestion is one follow-up due-diligence question.
type DDQuestion struct {
	Category    DDCategory `json:"category"`
	Question    string     `json:"question"`
	Reasoning   string     `json:"reasoning,omitempty"`
	Priority    DDPriority `json:"priority,omitempty"`
	BPReference string     `json:"bp_reference,omitempty"`
}

// CrossCheckOutput holds consistency findings between the team and
// market analyses, produced by the CROSS_CHECK phase.
type CrossCheckOutput struct {
	Consistent     bool     `json:"consistent"`
	Findings       []string `json:"findings,omitempty"`
	Contradictions []string `json:"contradictions,omitempty"`
	Summary        string   `json:"summary,omitempty"`
}

// ValuationOutput is the valuation agent's artifact.
type ValuationOutput struct {
	Low         string   `json:"low"`
	High        string   `json:"high"`
	Currency    string   `json:"currency"`
	Methodology string   `json:"methodology,omitempty"`
	Comparables []string `json:"comparables,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Risks       []string `json:"risks,omitempty"`
}

// ExitOutput is the exit agent's artifact.
type ExitOutput struct {
	PrimaryPath     string   `json:"primary_path"`
	IPOAnalysis     string   `json:"ipo_analysis,omitempty"`
	MAOpportunities []string `json:"ma_opportunities,omitempty"`
	ExitRisks       []string `json:"exit_risks,omitempty"`
}

// PreliminaryIM is the final artifact of a completed workflow.
type PreliminaryIM struct {
	CompanyName     string                 `json:"company_name"`
	TeamSection     *TeamAnalysisOutput    `json:"team_section,omitempty"`
	MarketSection   *MarketAnalysisOutput  `json:"market_section,omitempty"`
	CrossCheck      *CrossCheckOutput      `json:"cross_check,omitempty"`
	DDQuestions     []DDQuestion           `json:"dd_questions,omitempty"`
	Valuation       *ValuationOutput       `json:"valuation,omitempty"`
	ExitAnalysis    *ExitOutput            `json:"exit_analysis,omitempty"`
	PreferenceCheck *PreferenceMatchResult `json:"preference_check,omitempty"`
	HumanReview     string                 `json:"human_review,omitempty"`
	GeneratedAt     time.Time              `json:"generated_at"`
}
