package clients

import (
	"context"
	"time"
)

// SearchHit is one web search result.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchClient talks to the web search service. An empty result set
// is a successful response, not an error.
type WebSearchClient struct {
	baseURL string
	token   string
	doer    httpDoer
	timeout time.Duration
}

// NewWebSearchClient creates a web search client. Auth token is read
// from WEB_SEARCH_TOKEN.
func NewWebSearchClient(baseURL string, timeout time.Duration) *WebSearchClient {
	return &WebSearchClient{
		baseURL: baseURL,
		token:   authToken("WEB_SEARCH_TOKEN"),
		doer:    newHTTPClient(),
		timeout: timeout,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type searchResponse struct {
	Results []SearchHit `json:"results"`
}

// Search returns up to limit hits for the query.
func (c *WebSearchClient) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	var resp searchResponse
	err := postJSON(ctx, c.doer, "web_search", c.baseURL+"/v1/search", c.token, c.timeout,
		searchRequest{Query: query, Limit: limit}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}
