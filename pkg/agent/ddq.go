package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// Question-count bounds for the DDQ phase.
const (
	minDDQuestions = 10
	maxDDQuestions = 20
)

// DDQGenerator produces the prioritized follow-up question list from
// the team analysis, market analysis, and the business plan.
type DDQGenerator struct {
	deps *Deps
}

// NewDDQGenerator creates the risk/DDQ agent.
func NewDDQGenerator(deps *Deps) *DDQGenerator {
	return &DDQGenerator{deps: deps}
}

func (a *DDQGenerator) Name() string { return "ddq_generator" }

type ddqLLMOutput struct {
	Questions []models.DDQuestion `json:"questions"`
}

// Analyze asks the LLM for 10–20 questions; a deterministic template
// pool tops up short or invalid output so every category is covered.
func (a *DDQGenerator) Analyze(ctx context.Context, in *Context) *Result {
	promptText, err := a.deps.Prompts.Render(prompt.DDQGenerator, map[string]string{
		"CompanyName":    in.BP.CompanyName,
		"TeamFindings":   teamDigest(in.Team),
		"MarketFindings": marketDigest(in.Market),
		"BPSummary":      bpDigest(in.BP),
	})

	var questions []models.DDQuestion
	degraded := false
	reason := ""

	if err != nil {
		degraded, reason = true, "prompt render failed: "+err.Error()
	} else {
		cfg := a.deps.GenCfg
		cfg.ResponseFormat = "json"
		raw, llmErr := a.deps.LLM.Generate(ctx, promptText, cfg)
		if llmErr != nil {
			slog.Warn("DDQ LLM call failed", "company", in.BP.CompanyName, "error", llmErr)
			degraded, reason = true, "llm: "+llmErr.Error()
		} else {
			var out ddqLLMOutput
			if decErr := DecodeJSON(raw, &out); decErr != nil {
				degraded, reason = true, "invalid response: "+decErr.Error()
			} else {
				questions = sanitizeQuestions(out.Questions)
			}
		}
	}

	questions = topUpQuestions(questions, in)
	if len(questions) > maxDDQuestions {
		questions = questions[:maxDDQuestions]
	}

	return &Result{Output: questions, Degraded: degraded, DegradedReason: reason}
}

// sanitizeQuestions drops entries with unknown categories or empty text
// and defaults missing priorities to medium.
func sanitizeQuestions(in []models.DDQuestion) []models.DDQuestion {
	out := make([]models.DDQuestion, 0, len(in))
	for _, q := range in {
		if q.Question == "" || !q.Category.Valid() {
			continue
		}
		switch q.Priority {
		case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		default:
			q.Priority = models.PriorityMedium
		}
		out = append(out, q)
	}
	return out
}

// topUpQuestions fills the list to minDDQuestions from the template
// pool, guaranteeing at least one question per category.
func topUpQuestions(questions []models.DDQuestion, in *Context) []models.DDQuestion {
	covered := make(map[models.DDCategory]bool)
	for _, q := range questions {
		covered[q.Category] = true
	}

	pool := templatePool(in)
	// First pass: cover missing categories.
	for _, cat := range models.DDCategories {
		if covered[cat] {
			continue
		}
		for _, q := range pool {
			if q.Category == cat {
				questions = append(questions, q)
				covered[cat] = true
				break
			}
		}
	}
	// Second pass: pad to the minimum, skipping duplicates.
	for _, q := range pool {
		if len(questions) >= minDDQuestions {
			break
		}
		if !containsQuestion(questions, q.Question) {
			questions = append(questions, q)
		}
	}
	return questions
}

func containsQuestion(list []models.DDQuestion, text string) bool {
	for _, q := range list {
		if q.Question == text {
			return true
		}
	}
	return false
}

// templatePool is the deterministic fallback question set. Two per
// category so a fully-degraded run still reaches the minimum.
func templatePool(in *Context) []models.DDQuestion {
	name := in.BP.CompanyName
	return []models.DDQuestion{
		{Category: models.CategoryTeam, Priority: models.PriorityHigh,
			Question:  fmt.Sprintf("What relevant operating experience does each founder of %s bring, and where are the gaps?", name),
			Reasoning: "team background could not be fully verified"},
		{Category: models.CategoryTeam, Priority: models.PriorityMedium,
			Question:  "What is the equity split among founders and how is key-person risk mitigated?",
			Reasoning: "standard team diligence"},
		{Category: models.CategoryMarket, Priority: models.PriorityHigh,
			Question:  "What independent sources support the claimed market size, and what is the serviceable share?",
			Reasoning: "TAM claims require third-party validation"},
		{Category: models.CategoryMarket, Priority: models.PriorityMedium,
			Question:  "Which competitors are closest in product and go-to-market, and what is the durable differentiation?",
			Reasoning: "competitive positioning"},
		{Category: models.CategoryProduct, Priority: models.PriorityHigh,
			Question:  "What is the current product maturity and what evidence of user adoption exists?",
			Reasoning: "product claims need verification"},
		{Category: models.CategoryProduct, Priority: models.PriorityLow,
			Question:  "What is the technical roadmap for the next 12 months and its dependency risks?",
			Reasoning: "execution planning"},
		{Category: models.CategoryFinancial, Priority: models.PriorityHigh,
			Question:  fmt.Sprintf("What are the assumptions behind the projected financials of %s, and the monthly burn rate?", name),
			Reasoning: "projections were not independently checkable"},
		{Category: models.CategoryFinancial, Priority: models.PriorityMedium,
			Question:  "How was the requested round size derived and what milestones does it fund?",
			Reasoning: "use-of-funds diligence"},
		{Category: models.CategoryRisk, Priority: models.PriorityHigh,
			Question:  "What regulatory or legal exposures apply to the business model, and how are they managed?",
			Reasoning: "baseline risk assessment"},
		{Category: models.CategoryRisk, Priority: models.PriorityMedium,
			Question:  "What are the top three failure scenarios management plans against?",
			Reasoning: "downside planning"},
	}
}

// --- prompt digests ---

func teamDigest(t *models.TeamAnalysisOutput) string {
	if t == nil {
		return "(team analysis unavailable)"
	}
	return fmt.Sprintf("%s\nStrengths: %s\nConcerns: %s",
		t.Summary, strings.Join(t.Strengths, "; "), strings.Join(t.Concerns, "; "))
}

func marketDigest(m *models.MarketAnalysisOutput) string {
	if m == nil {
		return "(market analysis unavailable)"
	}
	return fmt.Sprintf("%s\nRed flags: %s", m.Summary, strings.Join(m.RedFlags, "; "))
}

func bpDigest(bp *models.BPStructuredData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", bp.CompanyName)
	if bp.Industry != "" {
		fmt.Fprintf(&sb, " (%s)", bp.Industry)
	}
	if bp.ProductDescription != "" {
		fmt.Fprintf(&sb, ": %s", bp.ProductDescription)
	}
	if bp.FundingRequest != "" {
		fmt.Fprintf(&sb, ". Raising %s", bp.FundingRequest)
	}
	if bp.CurrentValuation != "" {
		fmt.Fprintf(&sb, " at %s", bp.CurrentValuation)
	}
	return sb.String()
}
