package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// maxTeamSearches bounds how many team members are researched.
const maxTeamSearches = 5

// TeamAnalyst performs team due diligence: per-member web and
// external-data research combined into an LLM assessment.
type TeamAnalyst struct {
	deps *Deps
}

// NewTeamAnalyst creates the team due-diligence agent.
func NewTeamAnalyst(deps *Deps) *TeamAnalyst {
	return &TeamAnalyst{deps: deps}
}

func (a *TeamAnalyst) Name() string { return "team_analyst" }

type teamLLMOutput struct {
	Summary              string   `json:"summary"`
	Strengths            []string `json:"strengths"`
	Concerns             []string `json:"concerns"`
	ExperienceMatchScore float64  `json:"experience_match_score"`
	KeyFindings          []string `json:"key_findings"`
	DataSources          []string `json:"data_sources"`
}

// Analyze researches up to maxTeamSearches members and asks the LLM for
// a TeamAnalysisOutput. Gather failures degrade, never abort.
func (a *TeamAnalyst) Analyze(ctx context.Context, in *Context) *Result {
	members := in.BP.Team
	if len(members) > maxTeamSearches {
		members = members[:maxTeamSearches]
	}

	var tasks []gatherTask
	for _, m := range members {
		member := m
		tasks = append(tasks, gatherTask{
			key: "web:" + member.Name,
			run: func(ctx context.Context) (string, error) {
				hits, err := a.deps.Web.Search(ctx, fmt.Sprintf("%s %s background", member.Name, member.Title), 3)
				if err != nil {
					return "", err
				}
				return joinHits(hits), nil
			},
		})
		tasks = append(tasks, gatherTask{
			key: "data:" + member.Name,
			run: func(ctx context.Context) (string, error) {
				rec, err := a.deps.Data.LookupPerson(ctx, member.Name)
				if err != nil {
					return "", err
				}
				if rec == nil {
					return "no external record", nil
				}
				return fmt.Sprintf("roles: %s; companies: %s",
					strings.Join(rec.Roles, ", "), strings.Join(rec.Companies, ", ")), nil
			},
		})
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

	var webContext strings.Builder
	for _, m := range members {
		fmt.Fprintf(&webContext, "%s (%s):\n  web: %s\n  records: %s\n",
			m.Name, m.Title, gathered["web:"+m.Name], gathered["data:"+m.Name])
	}

	promptText, err := a.deps.Prompts.Render(prompt.TeamAnalyst, map[string]string{
		"CompanyName": in.BP.CompanyName,
		"TeamRoster":  formatRoster(in.BP.Team),
		"WebContext":  webContext.String(),
	})
	if err != nil {
		return fallback("prompt render failed: " + err.Error())
	}

	cfg := a.deps.GenCfg
	cfg.ResponseFormat = "json"
	raw, err := a.deps.LLM.Generate(ctx, promptText, cfg)
	if err != nil {
		slog.Warn("Team analysis LLM call failed", "company", in.BP.CompanyName, "error", err)
		return fallback("llm: " + err.Error())
	}

	var out teamLLMOutput
	if err := DecodeJSON(raw, &out); err != nil {
		return fallback("invalid response: " + err.Error())
	}

	result := &models.TeamAnalysisOutput{
		Summary:              out.Summary,
		Strengths:            out.Strengths,
		Concerns:             out.Concerns,
		ExperienceMatchScore: Clamp(out.ExperienceMatchScore, 0, 10),
		KeyFindings:          out.KeyFindings,
		DataSources:          out.DataSources,
	}
	return &Result{
		Output:      result,
		Degraded:    gatherDegraded,
		DataSources: out.DataSources,
	}
}

// fallbackOutput preserves BP-derived facts and marks derived fields
// unknown; the neutral score sits mid-range.
func (a *TeamAnalyst) fallbackOutput(in *Context) *models.TeamAnalysisOutput {
	summary := fmt.Sprintf("Team analysis for %s could not be completed: background data unavailable. The plan lists %d team members.",
		in.BP.CompanyName, len(in.BP.Team))
	findings := make([]string, 0, len(in.BP.Team))
	for _, m := range in.BP.Team {
		findings = append(findings, fmt.Sprintf("%s — %s (from business plan, unverified)", m.Name, m.Title))
	}
	return &models.TeamAnalysisOutput{
		Summary:              summary,
		Concerns:             []string{"external background verification unavailable"},
		ExperienceMatchScore: 5,
		KeyFindings:          findings,
	}
}

func formatRoster(team []models.TeamMember) string {
	if len(team) == 0 {
		return "(no team listed)"
	}
	var sb strings.Builder
	for _, m := range team {
		fmt.Fprintf(&sb, "- %s, %s", m.Name, m.Title)
		if m.Background != "" {
			fmt.Fprintf(&sb, " (%s)", m.Background)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
