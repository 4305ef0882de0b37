package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// ExitAgent derives exit-path analysis from the BP, the market
// analysis, and the valuation band. Pure LLM reasoning, no gather step.
type ExitAgent struct {
	deps *Deps
}

// NewExitAgent creates the exit-path agent.
func NewExitAgent(deps *Deps) *ExitAgent {
	return &ExitAgent{deps: deps}
}

func (a *ExitAgent) Name() string { return "exit" }

// Analyze produces an ExitOutput or a deterministic unknown fallback.
func (a *ExitAgent) Analyze(ctx context.Context, in *Context) *Result {
	fallback := func(reason string) *Result {
		return &Result{
			Output: &models.ExitOutput{
				PrimaryPath: "unknown",
				ExitRisks:   []string{"exit analysis unavailable: " + reason},
			},
			Degraded:       true,
			DegradedReason: reason,
		}
	}

	band := "unknown"
	if in.Valuation != nil {
		band = fmt.Sprintf("%s – %s %s", in.Valuation.Low, in.Valuation.High, in.Valuation.Currency)
	}

	promptText, err := a.deps.Prompts.Render(prompt.Exit, map[string]string{
		"CompanyName":    in.BP.CompanyName,
		"MarketFindings": marketDigest(in.Market),
		"ValuationBand":  band,
	})
	if err != nil {
		return fallback("prompt render failed: " + err.Error())
	}

	cfg := a.deps.GenCfg
	cfg.ResponseFormat = "json"
	raw, err := a.deps.LLM.Generate(ctx, promptText, cfg)
	if err != nil {
		slog.Warn("Exit analysis LLM call failed", "company", in.BP.CompanyName, "error", err)
		return fallback("llm: " + err.Error())
	}

	var out models.ExitOutput
	if err := DecodeJSON(raw, &out); err != nil {
		return fallback("invalid response: " + err.Error())
	}
	if out.PrimaryPath == "" {
		out.PrimaryPath = "unknown"
	}
	return &Result{Output: &out}
}
