package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// MarketAnalyst performs market due diligence with a three-way parallel
// gather: market-size search, competitor search, and internal knowledge
// on similar projects. Claimed-vs-sourced TAM discrepancies surface as
// red flags.
type MarketAnalyst struct {
	deps *Deps
}

// NewMarketAnalyst creates the market due-diligence agent.
func NewMarketAnalyst(deps *Deps) *MarketAnalyst {
	return &MarketAnalyst{deps: deps}
}

func (a *MarketAnalyst) Name() string { return "market_analyst" }

type marketLLMOutput struct {
	Summary              string   `json:"summary"`
	MarketValidation     string   `json:"market_validation"`
	CompetitiveLandscape string   `json:"competitive_landscape"`
	RedFlags             []string `json:"red_flags"`
	DataSources          []string `json:"data_sources"`
}

// Analyze gathers market context and asks the LLM for a
// MarketAnalysisOutput with explicit TAM cross-checking.
func (a *MarketAnalyst) Analyze(ctx context.Context, in *Context) *Result {
	market := in.BP.TargetMarket
	if market == "" {
		market = in.BP.Industry
	}
	if market == "" {
		market = in.BP.CompanyName
	}

	tasks := []gatherTask{
		{
			key: "market_size",
			run: func(ctx context.Context) (string, error) {
				hits, err := a.deps.Web.Search(ctx, market+" market size", 5)
				if err != nil {
					return "", err
				}
				return joinHits(hits), nil
			},
		},
		{
			key: "competitors",
			run: func(ctx context.Context) (string, error) {
				hits, err := a.deps.Web.Search(ctx, market+" competitors", 5)
				if err != nil {
					return "", err
				}
				return joinHits(hits), nil
			},
		},
		{
			key: "knowledge",
			run: func(ctx context.Context) (string, error) {
				hits, err := a.deps.Knowledge.Search(ctx, "similar projects in "+market, 5)
				if err != nil {
					return "", err
				}
				return joinKnowledge(hits), nil
			},
		},
	}
	gathered := a.deps.gather(ctx, in.Fanout, a.Name(), tasks)
	gatherDegraded := degradedCount(gathered) > 0

	fallback := func(reason string) *Result {
		return &Result{
			Output:         a.fallbackOutput(in, market),
			Degraded:       true,
			DegradedReason: reason,
		}
	}

	tamClaim := in.BP.TAMEstimate
	if tamClaim == "" {
		tamClaim = "(not stated)"
	}
	promptText, err := a.deps.Prompts.Render(prompt.MarketAnalyst, map[string]string{
		"CompanyName":       in.BP.CompanyName,
		"TargetMarket":      market,
		"TAMClaim":          tamClaim,
		"Competitors":       strings.Join(in.BP.Competitors, ", "),
		"MarketSizeContext": gathered["market_size"],
		"CompetitorContext": gathered["competitors"],
		"KnowledgeContext":  gathered["knowledge"],
	})
	if err != nil {
		return fallback("prompt render failed: " + err.Error())
	}

	cfg := a.deps.GenCfg
	cfg.ResponseFormat = "json"
	raw, err := a.deps.LLM.Generate(ctx, promptText, cfg)
	if err != nil {
		slog.Warn("Market analysis LLM call failed", "company", in.BP.CompanyName, "error", err)
		return fallback("llm: " + err.Error())
	}

	var out marketLLMOutput
	if err := DecodeJSON(raw, &out); err != nil {
		return fallback("invalid response: " + err.Error())
	}

	result := &models.MarketAnalysisOutput{
		Summary:              out.Summary,
		MarketValidation:     out.MarketValidation,
		CompetitiveLandscape: out.CompetitiveLandscape,
		RedFlags:             out.RedFlags,
		DataSources:          out.DataSources,
	}
	return &Result{
		Output:      result,
		Degraded:    gatherDegraded,
		DataSources: out.DataSources,
	}
}

func (a *MarketAnalyst) fallbackOutput(in *Context, market string) *models.MarketAnalysisOutput {
	out := &models.MarketAnalysisOutput{
		Summary: fmt.Sprintf("Market analysis for %s in %q could not be completed: external market data unavailable.",
			in.BP.CompanyName, market),
		MarketValidation: "unknown — market data unavailable",
	}
	if in.BP.TAMEstimate != "" {
		out.RedFlags = append(out.RedFlags,
			fmt.Sprintf("claimed TAM %q could not be independently verified", in.BP.TAMEstimate))
	}
	return out
}
