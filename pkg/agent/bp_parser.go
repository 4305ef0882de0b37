package agent

import (
	"context"
	"log/slog"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// BPParser extracts structured data from a raw business-plan document
// through the gateway's file-understanding endpoint.
type BPParser struct {
	deps *Deps
}

// NewBPParser creates the business-plan parsing agent.
func NewBPParser(deps *Deps) *BPParser {
	return &BPParser{deps: deps}
}

func (a *BPParser) Name() string { return "bp_parser" }

// bpExtraction mirrors the extraction schema; numeric fields use
// FlexString so unquoted numbers from the model still decode.
type bpExtraction struct {
	CompanyName         string                `json:"company_name"`
	FoundingDate        FlexString            `json:"founding_date"`
	Team                []models.TeamMember   `json:"team"`
	ProductDescription  string                `json:"product_description"`
	TargetMarket        string                `json:"target_market"`
	TAMEstimate         FlexString            `json:"tam_estimate"`
	Competitors         []string              `json:"competitors"`
	Industry            string                `json:"industry"`
	Stage               string                `json:"stage"`
	Geography           string                `json:"geography"`
	HasRevenue          bool                  `json:"has_revenue"`
	HasProduct          bool                  `json:"has_product"`
	FundingRequest      FlexString            `json:"funding_request"`
	CurrentValuation    FlexString            `json:"current_valuation"`
	ProjectedFinancials map[string]FlexString `json:"projected_financials"`
}

// Analyze parses the attached document. Without a document, or when the
// LLM fails, it falls back to a minimal BP carrying only the caller's
// company name.
func (a *BPParser) Analyze(ctx context.Context, in *Context) *Result {
	fallback := func(reason string) *Result {
		return &Result{
			Output:         models.MinimalBP(in.CompanyName),
			Degraded:       true,
			DegradedReason: reason,
		}
	}

	if len(in.BPFile) == 0 {
		return fallback("no business plan document supplied")
	}

	promptText, err := a.deps.Prompts.Render(prompt.BPParser, map[string]string{"CompanyName": in.CompanyName})
	if err != nil {
		return fallback("prompt render failed: " + err.Error())
	}

	cfg := a.deps.GenCfg
	cfg.ResponseFormat = "json"
	raw, err := a.deps.LLM.GenerateWithFile(ctx, promptText, in.BPFile, in.BPMime, cfg)
	if err != nil {
		slog.Warn("BP parse LLM call failed", "company", in.CompanyName, "error", err)
		return fallback("llm: " + err.Error())
	}

	var ext bpExtraction
	if err := DecodeJSON(raw, &ext); err != nil {
		// Keep the raw response around for diagnostics — schema drift in
		// the extraction prompt shows up here first.
		slog.Warn("BP parse schema-invalid response",
			"company", in.CompanyName, "error", err, "raw_response", truncate(raw, 500))
		return fallback("invalid extraction: " + err.Error())
	}

	bp := &models.BPStructuredData{
		CompanyName:        ext.CompanyName,
		FoundingDate:       string(ext.FoundingDate),
		Team:               ext.Team,
		ProductDescription: ext.ProductDescription,
		TargetMarket:       ext.TargetMarket,
		TAMEstimate:        string(ext.TAMEstimate),
		Competitors:        ext.Competitors,
		Industry:           ext.Industry,
		Stage:              ext.Stage,
		Geography:          ext.Geography,
		HasRevenue:         ext.HasRevenue,
		HasProduct:         ext.HasProduct,
		FundingRequest:     string(ext.FundingRequest),
		CurrentValuation:   string(ext.CurrentValuation),
	}
	if len(ext.ProjectedFinancials) > 0 {
		bp.ProjectedFinancials = make(map[string]string, len(ext.ProjectedFinancials))
		for k, v := range ext.ProjectedFinancials {
			bp.ProjectedFinancials[k] = string(v)
		}
	}
	// company_name is the one invariant the schema guarantees.
	if bp.CompanyName == "" {
		bp.CompanyName = in.CompanyName
	}

	return &Result{Output: bp}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
