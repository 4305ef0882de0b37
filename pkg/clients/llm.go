package clients

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// GenConfig tunes a single LLM generation call. Zero fields fall back
// to the client defaults.
type GenConfig struct {
	ModelID         string
	Temperature     *float64
	MaxOutputTokens int
	Timeout         time.Duration
	ResponseFormat  string // "json" hints structured output
}

// ToolSpec describes one tool offered to GenerateWithTools.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolResult is the structured outcome of a tool-assisted generation.
type ToolResult struct {
	Text       string           `json:"text"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	Iterations int              `json:"iterations"`
}

// ToolInvocation records one tool call the gateway made on our behalf.
type ToolInvocation struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
	Output string         `json:"output,omitempty"`
}

// LLMClient talks to the LLM gateway service.
type LLMClient struct {
	baseURL        string
	token          string
	doer           httpDoer
	defaultModel   string
	defaultTemp    float64
	defaultTimeout time.Duration
}

// NewLLMClient creates a client for the LLM gateway. Auth token is read
// from LLM_GATEWAY_TOKEN.
func NewLLMClient(baseURL, defaultModel string, defaultTemp float64, defaultTimeout time.Duration) *LLMClient {
	return &LLMClient{
		baseURL:        baseURL,
		token:          authToken("LLM_GATEWAY_TOKEN"),
		doer:           newHTTPClient(),
		defaultModel:   defaultModel,
		defaultTemp:    defaultTemp,
		defaultTimeout: defaultTimeout,
	}
}

type generateRequest struct {
	Model          string     `json:"model"`
	Prompt         string     `json:"prompt"`
	Temperature    float64    `json:"temperature"`
	MaxTokens      int        `json:"max_tokens,omitempty"`
	ResponseFormat string     `json:"response_format,omitempty"`
	FileData       string     `json:"file_data,omitempty"` // base64
	FileMime       string     `json:"file_mime,omitempty"`
	Tools          []ToolSpec `json:"tools,omitempty"`
	MaxIterations  int        `json:"max_iterations,omitempty"`
}

type generateResponse struct {
	Text       string           `json:"text"`
	ToolCalls  []ToolInvocation `json:"tool_calls,omitempty"`
	Iterations int              `json:"iterations,omitempty"`
}

// Generate produces text from a prompt.
func (c *LLMClient) Generate(ctx context.Context, prompt string, cfg GenConfig) (string, error) {
	req := c.buildRequest(prompt, cfg)
	var resp generateResponse
	if err := postJSON(ctx, c.doer, "llm_gateway", c.baseURL+"/v1/generate", c.token, c.timeout(cfg), req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateWithFile produces text from a prompt plus an attached document
// via the gateway's file-understanding endpoint.
func (c *LLMClient) GenerateWithFile(ctx context.Context, prompt string, file []byte, mime string, cfg GenConfig) (string, error) {
	if len(file) == 0 {
		return "", &ServiceError{Service: "llm_gateway", Kind: KindInvalidResponse, Err: fmt.Errorf("empty file")}
	}
	req := c.buildRequest(prompt, cfg)
	req.FileData = base64.StdEncoding.EncodeToString(file)
	req.FileMime = mime

	var resp generateResponse
	if err := postJSON(ctx, c.doer, "llm_gateway", c.baseURL+"/v1/generate_file", c.token, c.timeout(cfg), req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateWithTools runs a bounded tool-calling loop on the gateway side
// and returns the structured result.
func (c *LLMClient) GenerateWithTools(ctx context.Context, prompt string, tools []ToolSpec, maxIterations int, cfg GenConfig) (*ToolResult, error) {
	req := c.buildRequest(prompt, cfg)
	req.Tools = tools
	req.MaxIterations = maxIterations

	var resp generateResponse
	if err := postJSON(ctx, c.doer, "llm_gateway", c.baseURL+"/v1/generate_tools", c.token, c.timeout(cfg), req, &resp); err != nil {
		return nil, err
	}
	return &ToolResult{Text: resp.Text, ToolCalls: resp.ToolCalls, Iterations: resp.Iterations}, nil
}

func (c *LLMClient) buildRequest(prompt string, cfg GenConfig) generateRequest {
	req := generateRequest{
		Model:          c.defaultModel,
		Prompt:         prompt,
		Temperature:    c.defaultTemp,
		MaxTokens:      cfg.MaxOutputTokens,
		ResponseFormat: cfg.ResponseFormat,
	}
	if cfg.ModelID != "" {
		req.Model = cfg.ModelID
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	return req
}

func (c *LLMClient) timeout(cfg GenConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return c.defaultTimeout
}
