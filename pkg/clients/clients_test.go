package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "world"})
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "test-model", 0.3, 5*time.Second)
	text, err := c.Generate(context.Background(), "hello", GenConfig{})
	require.NoError(t, err)
	assert.Equal(t, "world", text)
}

func TestLLMClient_Generate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "m", 0.3, 5*time.Second)
	_, err := c.Generate(context.Background(), "hello", GenConfig{})
	require.Error(t, err)
	assert.Equal(t, KindUpstreamError, KindOf(err))
}

func TestLLMClient_Generate_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "m", 0.3, 5*time.Second)
	_, err := c.Generate(context.Background(), "hello", GenConfig{})
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestLLMClient_Generate_TimeoutRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "ok"})
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "m", 0.3, 100*time.Millisecond)
	text, err := c.Generate(context.Background(), "retry me", GenConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLLMClient_GenerateWithFile_RejectsEmpty(t *testing.T) {
	c := NewLLMClient("http://unused", "m", 0.3, time.Second)
	_, err := c.GenerateWithFile(context.Background(), "p", nil, "application/pdf", GenConfig{})
	require.Error(t, err)
	assert.Equal(t, KindInvalidResponse, KindOf(err))
}

func TestLLMClient_Generate_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewLLMClient(srv.URL, "m", 0.3, 5*time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Generate(ctx, "hello", GenConfig{})
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Generate did not return after cancellation")
	}
}

func TestLLMClient_GenerateWithTools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/generate_tools", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "web_search", req.Tools[0].Name)
		assert.Equal(t, 3, req.MaxIterations)
		_ = json.NewEncoder(w).Encode(generateResponse{
			Text: "competitors researched",
			ToolCalls: []ToolInvocation{
				{Tool: "web_search", Args: map[string]any{"query": "Acme AI competitors"}, Output: "3 hits"},
			},
			Iterations: 2,
		})
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "test-model", 0.3, 5*time.Second)
	res, err := c.GenerateWithTools(context.Background(), "research competitors",
		[]ToolSpec{{Name: "web_search", Description: "search the web"}}, 3, GenConfig{})
	require.NoError(t, err)
	assert.Equal(t, "competitors researched", res.Text)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "web_search", res.ToolCalls[0].Tool)
	assert.Equal(t, "3 hits", res.ToolCalls[0].Output)
}

func TestLLMClient_GenerateWithTools_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tools unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "m", 0.3, 5*time.Second)
	_, err := c.GenerateWithTools(context.Background(), "p", nil, 1, GenConfig{})
	require.Error(t, err)
	assert.Equal(t, KindUpstreamError, KindOf(err))
}

func TestWebSearchClient_EmptyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []SearchHit{}})
	}))
	defer srv.Close()

	c := NewWebSearchClient(srv.URL, 5*time.Second)
	hits, err := c.Search(context.Background(), "nothing here", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestWebSearchClient_Results(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Limit)
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []SearchHit{
			{Title: "t1", URL: "u1", Snippet: "s1"},
			{Title: "t2", URL: "u2", Snippet: "s2"},
		}})
	}))
	defer srv.Close()

	c := NewWebSearchClient(srv.URL, 5*time.Second)
	hits, err := c.Search(context.Background(), "acme", 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "t1", hits[0].Title)
}

func TestExternalDataClient_CachesLookups(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"found":  true,
			"record": map[string]any{"name": "Acme AI"},
		})
	}))
	defer srv.Close()

	c := NewExternalDataClient(srv.URL, 5*time.Second, time.Minute)

	rec, err := c.LookupCompany(context.Background(), "Acme AI")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Acme AI", rec.Name)

	_, err = c.LookupCompany(context.Background(), "Acme AI")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup should hit the cache")
}

func TestExternalDataClient_NotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"found": false})
	}))
	defer srv.Close()

	c := NewExternalDataClient(srv.URL, 5*time.Second, time.Minute)
	rec, err := c.LookupPerson(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestKnowledgeClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(knowledgeResponse{Results: []KnowledgeHit{
			{Content: "similar project", Metadata: map[string]string{"id": "kb-1"}},
		}})
	}))
	defer srv.Close()

	c := NewKnowledgeClient(srv.URL, 5*time.Second)
	hits, err := c.Search(context.Background(), "fintech saas", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "kb-1", hits[0].Metadata["id"])
}
