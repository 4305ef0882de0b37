package models

// TeamMember is one entry in a business plan's team roster.
type TeamMember struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Background string `json:"background,omitempty"`
}

// BPStructuredData is the structured extraction of a business plan
// produced by the DOC_PARSE phase. CompanyName is the only required
// field; downstream agents must tolerate everything else being absent.
type BPStructuredData struct {
	CompanyName         string            `json:"company_name"`
	FoundingDate        string            `json:"founding_date,omitempty"`
	Team                []TeamMember      `json:"team,omitempty"`
	ProductDescription  string            `json:"product_description,omitempty"`
	TargetMarket        string            `json:"target_market,omitempty"`
	TAMEstimate         string            `json:"tam_estimate,omitempty"`
	Competitors         []string          `json:"competitors,omitempty"`
	Industry            string            `json:"industry,omitempty"`
	Stage               string            `json:"stage,omitempty"`
	Geography           string            `json:"geography,omitempty"`
	HasRevenue          bool              `json:"has_revenue,omitempty"`
	HasProduct          bool              `json:"has_product,omitempty"`
	FundingRequest      string            `json:"funding_request,omitempty"`
	CurrentValuation    string            `json:"current_valuation,omitempty"`
	ProjectedFinancials map[string]string `json:"projected_financials,omitempty"`
}

// MinimalBP returns the degenerate extraction used when parsing fails or
// no document was supplied: only the caller-provided name is populated.
func MinimalBP(companyName string) *BPStructuredData {
	return &BPStructuredData{CompanyName: companyName}
}
