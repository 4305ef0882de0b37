// Package agent implements the analysis-agent family. Every agent
// follows the same shape: gather data from service clients in parallel,
// build a context, call the LLM with an explicit JSON schema, parse the
// response tolerantly, and fall back to a deterministic minimal output
// on any failure. Agents never return errors to the workflow.
package agent

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// LLM is the subset of the gateway client agents depend on.
type LLM interface {
	Generate(ctx context.Context, prompt string, cfg clients.GenConfig) (string, error)
	GenerateWithFile(ctx context.Context, prompt string, file []byte, mime string, cfg clients.GenConfig) (string, error)
}

// WebSearcher is the subset of the web search client agents depend on.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]clients.SearchHit, error)
}

// DataLookup is the subset of the external-data client agents depend on.
type DataLookup interface {
	LookupCompany(ctx context.Context, name string) (*clients.CompanyRecord, error)
	LookupPerson(ctx context.Context, name string) (*clients.PersonRecord, error)
}

// KnowledgeSearcher is the subset of the internal-knowledge client
// agents depend on.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]clients.KnowledgeHit, error)
}

// Deps bundles the shared dependencies injected into every agent.
type Deps struct {
	LLM       LLM
	Web       WebSearcher
	Data      DataLookup
	Knowledge KnowledgeSearcher
	Prompts   *prompt.Registry

	// FanoutLimit bounds outstanding external calls per session. The
	// workflow allocates a fresh semaphore of this weight for each run
	// and passes it on the Context, so one session cannot starve the
	// others.
	FanoutLimit int64

	// GenCfg carries the process-wide LLM defaults.
	GenCfg clients.GenConfig
}

// Context is the input record passed to Analyze. Fields beyond BP are
// populated progressively as earlier phases complete.
type Context struct {
	CompanyName string
	BPFile      []byte
	BPMime      string

	// Fanout is the owning session's concurrency budget for gather
	// calls. Nil means unbounded.
	Fanout *semaphore.Weighted

	BP        *models.BPStructuredData
	Team      *models.TeamAnalysisOutput
	Market    *models.MarketAnalysisOutput
	Valuation *models.ValuationOutput
}

// Result is the tagged outcome of an agent run. Output always holds a
// usable artifact: on failure it is the agent's deterministic fallback
// and Degraded is set.
type Result struct {
	Output         any
	Degraded       bool
	DegradedReason string
	DataSources    []string
}

// AnalysisAgent is the capability every analysis agent implements.
// Analyze must not return nil and must not panic across its boundary.
type AnalysisAgent interface {
	Name() string
	Analyze(ctx context.Context, in *Context) *Result
}
