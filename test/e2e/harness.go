// Package e2e boots a complete Magellan instance against scripted
// mock external services and drives it through the public HTTP and
// WebSocket API.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dengjianbo3/magellan/pkg/agent"
	"github.com/dengjianbo3/magellan/pkg/api"
	"github.com/dengjianbo3/magellan/pkg/clients"
	"github.com/dengjianbo3/magellan/pkg/config"
	"github.com/dengjianbo3/magellan/pkg/prompt"
	"github.com/dengjianbo3/magellan/pkg/session"
	"github.com/dengjianbo3/magellan/pkg/store"
	"github.com/dengjianbo3/magellan/pkg/workflow"
)

// Prompt markers route scripted gateway responses to the agent that
// asked. Each analysis prompt embeds its response schema, so a schema
// field uniquely identifies the caller.
const (
	markTeam       = "experience_match_score"
	markMarket     = "market_validation"
	markDDQ        = "due-diligence questions"
	markValuer     = "methodology"
	markExit       = "primary_path"
	markCross      = "contradictions"
	markRoundtable = "investment committee roundtable"
)

// gatewayScript maps a prompt marker to the text the mock LLM gateway
// returns. The special fileResponse answers /v1/generate_file.
type gatewayScript struct {
	mu           sync.Mutex
	responses    map[string]string
	fileResponse string
}

func (g *gatewayScript) set(marker, response string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[marker] = response
}

// lookup returns the response for the longest marker found in the
// prompt, so a more specific marker overrides a general one.
func (g *gatewayScript) lookup(prompt string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var best, bestResp string
	found := false
	for marker, resp := range g.responses {
		if strings.Contains(prompt, marker) && (!found || len(marker) > len(best)) {
			best, bestResp = marker, resp
			found = true
		}
	}
	return bestResp, found
}

// TestApp is a full Magellan instance: real clients, agents, engine,
// manager, and HTTP server, with every external service mocked.
type TestApp struct {
	Script  *gatewayScript
	Manager *session.Manager
	BaseURL string
	WSURL   string

	t *testing.T
}

// startTestApp boots the stack. All mock services and the app server
// are torn down via t.Cleanup.
func startTestApp(t *testing.T) *TestApp {
	t.Helper()

	script := &gatewayScript{responses: map[string]string{}}
	for marker, resp := range happyResponses {
		script.responses[marker] = resp
	}
	script.fileResponse = happyBPResponse

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var text string
		if strings.HasSuffix(r.URL.Path, "/generate_file") {
			script.mu.Lock()
			text = script.fileResponse
			script.mu.Unlock()
		} else {
			resp, ok := script.lookup(req.Prompt)
			if !ok {
				http.Error(w, "no scripted response for prompt", http.StatusInternalServerError)
				return
			}
			text = resp
		}
		writeJSON(w, map[string]any{"text": text})
	}))
	t.Cleanup(gateway.Close)

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"results": []map[string]string{
			{"title": "Industry report", "url": "https://example.com/report", "snippet": "market size estimate ~120B"},
		}})
	}))
	t.Cleanup(search.Close)

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"found": false})
	}))
	t.Cleanup(data.Close)

	knowledge := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"results": []map[string]any{}})
	}))
	t.Cleanup(knowledge.Close)

	cfg := &config.Config{
		LLMGatewayURL:         gateway.URL,
		WebSearchURL:          search.URL,
		ExternalDataURL:       data.URL,
		InternalKnowledgeURL:  knowledge.URL,
		LLMModelID:            "test-model",
		LLMTemperature:        0.0,
		LLMTimeout:            5 * time.Second,
		StoreBackend:          config.StoreMemory,
		SessionTTL:            time.Hour,
		MaxConcurrentSessions: 4,
		PerSessionFanoutLimit: 8,
	}

	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	llm := clients.NewLLMClient(cfg.LLMGatewayURL, cfg.LLMModelID, cfg.LLMTemperature, cfg.LLMTimeout)
	prompts := prompt.NewRegistry()
	genCfg := clients.GenConfig{ModelID: cfg.LLMModelID, Timeout: cfg.LLMTimeout}
	deps := &agent.Deps{
		LLM:         llm,
		Web:         clients.NewWebSearchClient(cfg.WebSearchURL, cfg.LLMTimeout),
		Data:        clients.NewExternalDataClient(cfg.ExternalDataURL, cfg.LLMTimeout, time.Minute),
		Knowledge:   clients.NewKnowledgeClient(cfg.InternalKnowledgeURL, cfg.LLMTimeout),
		Prompts:     prompts,
		FanoutLimit: int64(cfg.PerSessionFanoutLimit),
		GenCfg:      genCfg,
	}

	manager := session.NewManager(cfg, st, workflow.NewEngine(deps))
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	server := httptest.NewServer(api.NewServer(cfg, manager, llm, prompts, genCfg).Router())
	t.Cleanup(server.Close)

	return &TestApp{
		Script:  script,
		Manager: manager,
		BaseURL: server.URL,
		WSURL:   "ws" + server.URL[len("http"):],
		t:       t,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// getJSON fetches a URL and decodes the body into out.
func (app *TestApp) getJSON(path string, out any) {
	app.t.Helper()
	resp, err := http.Get(app.BaseURL + path)
	require.NoError(app.t, err)
	defer resp.Body.Close()
	require.Equal(app.t, http.StatusOK, resp.StatusCode)
	require.NoError(app.t, json.NewDecoder(resp.Body).Decode(out))
}

// happyResponses is the baseline script: a consistent, investable
// company. Scenario tests override individual markers.
var happyResponses = map[string]string{
	markTeam:   `{"summary": "experienced founders", "experience_match_score": 8, "strengths": ["domain depth"]}`,
	markMarket: `{"summary": "credible market", "market_validation": "external sources agree", "competitive_landscape": "crowded"}`,
	markCross:  `{"consistent": true, "findings": ["no conflicts"], "summary": "aligned"}`,
	markDDQ: `{"questions": [
		{"category": "Team", "question": "t1", "priority": "high"},
		{"category": "Team", "question": "t2"},
		{"category": "Market", "question": "m1", "priority": "high"},
		{"category": "Market", "question": "m2"},
		{"category": "Product", "question": "p1"},
		{"category": "Product", "question": "p2"},
		{"category": "Financial", "question": "f1", "priority": "high"},
		{"category": "Financial", "question": "f2"},
		{"category": "Risk", "question": "r1", "priority": "high"},
		{"category": "Risk", "question": "r2"}
	]}`,
	markValuer: `{"low": "15M", "high": "25M", "currency": "USD", "methodology": "comparables"}`,
	markExit:   `{"primary_path": "M&A", "ma_opportunities": ["strategic buyers"]}`,
}

const happyBPResponse = `{
	"company_name": "Acme AI",
	"industry": "SaaS",
	"stage": "seed",
	"geography": "US",
	"target_market": "AI devtools",
	"tam_estimate": "120B",
	"funding_request": "5000000",
	"has_revenue": true,
	"has_product": true,
	"team": [{"name": "Ada", "title": "CEO"}, {"name": "Grace", "title": "CTO"}]
}`
