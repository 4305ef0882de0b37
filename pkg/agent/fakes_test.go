package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/models"
	"github.com/dengjianbo3/magellan/pkg/prompt"
)

// fakeLLM replays scripted responses; the default errors so tests must
// declare what they expect the agent to ask.
type fakeLLM struct {
	mu        sync.Mutex
	response  string
	err       error
	prompts   []string
	fileCalls int
}

func (f *fakeLLM) Generate(_ context.Context, p string, _ clients.GenConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.response, f.err
}

func (f *fakeLLM) GenerateWithFile(_ context.Context, p string, _ []byte, _ string, _ clients.GenConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fileCalls++
	f.prompts = append(f.prompts, p)
	return f.response, f.err
}

type fakeWeb struct {
	mu      sync.Mutex
	hits    []clients.SearchHit
	err     error
	queries []string
}

func (f *fakeWeb) Search(_ context.Context, q string, _ int) ([]clients.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.hits, f.err
}

type fakeData struct {
	company *clients.CompanyRecord
	person  *clients.PersonRecord
	err     error
}

func (f *fakeData) LookupCompany(context.Context, string) (*clients.CompanyRecord, error) {
	return f.company, f.err
}

func (f *fakeData) LookupPerson(context.Context, string) (*clients.PersonRecord, error) {
	return f.person, f.err
}

type fakeKnowledge struct {
	hits []clients.KnowledgeHit
	err  error
}

func (f *fakeKnowledge) Search(context.Context, string, int) ([]clients.KnowledgeHit, error) {
	return f.hits, f.err
}

var errServiceDown = errors.New("service down")

func testDeps(llm *fakeLLM, web *fakeWeb, data *fakeData, knowledge *fakeKnowledge) *Deps {
	return &Deps{
		LLM:         llm,
		Web:         web,
		Data:        data,
		Knowledge:   knowledge,
		Prompts:     prompt.NewRegistry(),
		FanoutLimit: 16,
	}
}

func testContext() *Context {
	return &Context{
		CompanyName: "Acme AI",
		BP: &models.BPStructuredData{
			CompanyName:    "Acme AI",
			Industry:       "SaaS",
			TargetMarket:   "AI devtools",
			TAMEstimate:    "1200B",
			FundingRequest: "$5M",
			Team: []models.TeamMember{
				{Name: "Ada", Title: "CEO"},
				{Name: "Grace", Title: "CTO"},
			},
		},
	}
}
