package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// ValuationAgent researches industry multiples and reasons a valuation
// band with comparables.
type ValuationAgent struct {
	deps *Deps
}

// NewValuationAgent creates the valuation agent.
func NewValuationAgent(deps *Deps) *ValuationAgent {
	return &ValuationAgent{deps: deps}
}

func (a *ValuationAgent) Name() string { return "valuation" }

// Analyze produces a ValuationOutput, falling back to an unknown band
// anchored on the BP's own claimed valuation.
func (a *ValuationAgent) Analyze(ctx context.Context, in *Context) *Result {
	industry := in.BP.Industry
	if industry == "" {
		industry = in.BP.TargetMarket
	}

	tasks := []gatherTask{
		{
			key: "multiples",
			run: func(ctx context.Context) (string, error) {
				hits, err := a.deps.Web.Search(ctx, industry+" valuation multiples", 5)
				if err != nil {
					return "", err
				}
				return joinHits(hits), nil
			},
		},
		{
			key: "company",
			run: func(ctx context.Context) (string, error) {
				rec, err := a.deps.Data.LookupCompany(ctx, in.BP.CompanyName)
				if err != nil {
					return "", err
				}
				if rec == nil {
					return "no external record", nil
				}
				return fmt.Sprintf("registered: %s, jurisdiction: %s", rec.Registered, rec.Jurisdiction), nil
			},
		},
	}
	gathered := a.deps.gather(ctx, in.Fanout, a.Name(), tasks)
	gatherDegraded := degradedCount(gathered) > 0

	fallback := func(reason string) *Result {
		return &Result{
			Output:         a.fallbackOutput(in),
			Degraded:       true,
			DegradedReason: reason,
		}
	}

	promptText, err := a.deps.Prompts.Render(prompt.Valuation, map[string]string{
		"CompanyName":      in.BP.CompanyName,
		"Industry":         industry,
		"Stage":            in.BP.Stage,
		"FundingRequest":   in.BP.FundingRequest,
		"CurrentValuation": in.BP.CurrentValuation,
		"MultiplesContext": gathered["multiples"] + "\nCompany record: " + gathered["company"],
	})
	if err != nil {
		return fallback("prompt render failed: " + err.Error())
	}

	cfg := a.deps.GenCfg
	cfg.ResponseFormat = "json"
	raw, err := a.deps.LLM.Generate(ctx, promptText, cfg)
	if err != nil {
		slog.Warn("Valuation LLM call failed", "company", in.BP.CompanyName, "error", err)
		return fallback("llm: " + err.Error())
	}

	var out models.ValuationOutput
	if err := DecodeJSON(raw, &out); err != nil {
		return fallback("invalid response: " + err.Error())
	}
	if out.Currency == "" {
		out.Currency = "USD"
	}

	return &Result{Output: &out, Degraded: gatherDegraded}
}

func (a *ValuationAgent) fallbackOutput(in *Context) *models.ValuationOutput {
	out := &models.ValuationOutput{
		Low:         "unknown",
		High:        "unknown",
		Currency:    "USD",
		Methodology: "valuation data unavailable; no independent band derived",
	}
	if in.BP.CurrentValuation != "" {
		out.Assumptions = append(out.Assumptions,
			fmt.Sprintf("company claims a valuation of %s (unverified)", in.BP.CurrentValuation))
	}
	return out
}
