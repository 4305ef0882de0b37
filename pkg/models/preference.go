package models

// Recommendation is the preference matcher's verdict.
type Recommendation string

const (
	RecommendProceed Recommendation = "proceed"
	RecommendAbort   Recommendation = "abort"
)

// InstitutionPreferences are an institution's stored investment
// preferences. Zero values mean "no requirement" for that dimension.
type InstitutionPreferences struct {
	FocusIndustries   []string `json:"focus_industries,omitempty"`
	ExcludeIndustries []string `json:"exclude_industries,omitempty"`
	PreferredStages   []string `json:"preferred_stages,omitempty"`
	Geographies       []string `json:"geographies,omitempty"`
	MinInvestment     float64  `json:"min_investment,omitempty"`
	MaxInvestment     float64  `json:"max_investment,omitempty"`
	MinTeamSize       int      `json:"min_team_size,omitempty"`
	RequireRevenue    bool     `json:"require_revenue,omitempty"`
	RequireProduct    bool     `json:"require_product,omitempty"`
}

// DimensionScore is the per-dimension breakdown of a preference match.
type DimensionScore struct {
	Dimension string  `json:"dimension"`
	Weight    float64 `json:"weight"`
	Score     float64 `json:"score"` // [0,100]
	Reason    string  `json:"reason,omitempty"`
}

// PreferenceMatchResult is the preference matcher's artifact.
// Match holds iff Score >= 60 and no exclusion was hit.
type PreferenceMatchResult struct {
	Match              bool             `json:"match"`
	Score              float64          `json:"score"` // [0,100]
	Dimensions         []DimensionScore `json:"dimensions,omitempty"`
	MatchedCriteria    []string         `json:"matched_criteria,omitempty"`
	MismatchedCriteria []string         `json:"mismatched_criteria,omitempty"`
	Recommendation     Recommendation   `json:"recommendation"`
	MismatchReasons    []string         `json:"mismatch_reasons,omitempty"`
}
