package agent

import (
	"context"
	"log/slog"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// CrossCheckAgent compares the team and market analyses for
// consistency before questions are generated.
type CrossCheckAgent struct {
	deps *Deps
}

// NewCrossCheckAgent creates the cross-check agent.
func NewCrossCheckAgent(deps *Deps) *CrossCheckAgent {
	return &CrossCheckAgent{deps: deps}
}

func (a *CrossCheckAgent) Name() string { return "cross_check" }

// Analyze produces a CrossCheckOutput; on failure the fallback assumes
// consistency and notes the check was skipped.
func (a *CrossCheckAgent) Analyze(ctx context.Context, in *Context) *Result {
	fallback := func(reason string) *Result {
		return &Result{
			Output: &models.CrossCheckOutput{
				Consistent: true,
				Summary:    "cross-check unavailable; findings used as-is",
			},
			Degraded:       true,
			DegradedReason: reason,
		}
	}

	promptText, err := a.deps.Prompts.Render(prompt.CrossCheck, map[string]string{
		"CompanyName":    in.BP.CompanyName,
		"TeamFindings":   teamDigest(in.Team),
		"MarketFindings": marketDigest(in.Market),
	})
	if err != nil {
		return fallback("prompt render failed: " + err.Error())
	}

	cfg := a.deps.GenCfg
	cfg.ResponseFormat = "json"
	raw, err := a.deps.LLM.Generate(ctx, promptText, cfg)
	if err != nil {
		slog.Warn("Cross-check LLM call failed", "company", in.BP.CompanyName, "error", err)
		return fallback("llm: " + err.Error())
	}

	var out models.CrossCheckOutput
	if err := DecodeJSON(raw, &out); err != nil {
		return fallback("invalid response: " + err.Error())
	}
	return &Result{Output: &out}
}
