package clients

import (
	"context"
	"time"
)

// KnowledgeHit is one semantic search result from the internal
// knowledge base.
type KnowledgeHit struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// KnowledgeClient talks to the internal vector knowledge base.
type KnowledgeClient struct {
	baseURL string
	token   string
	doer    httpDoer
	timeout time.Duration
}

// NewKnowledgeClient creates an internal-knowledge client. Auth token
// is read from INTERNAL_KNOWLEDGE_TOKEN.
func NewKnowledgeClient(baseURL string, timeout time.Duration) *KnowledgeClient {
	return &KnowledgeClient{
		baseURL: baseURL,
		token:   authToken("INTERNAL_KNOWLEDGE_TOKEN"),
		doer:    newHTTPClient(),
		timeout: timeout,
	}
}

type knowledgeResponse struct {
	Results []KnowledgeHit `json:"results"`
}

// Search returns up to limit semantically similar documents.
func (c *KnowledgeClient) Search(ctx context.Context, query string, limit int) ([]KnowledgeHit, error) {
	var resp knowledgeResponse
	err := postJSON(ctx, c.doer, "internal_knowledge", c.baseURL+"/v1/search", c.token, c.timeout,
		searchRequest{Query: query, Limit: limit}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}
