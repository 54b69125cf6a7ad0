package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIURL    = "https://api.anthropic.com/v1/messages"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
	anthropicVersion = "2023-06-01"
)

// ErrInsufficientCredits is returned when the Anthropic account has no credit left.
var ErrInsufficientCredits = errors.New("anthropic credit balance is too low")

// ErrNotConfigured is returned when a call is attempted without an API key.
var ErrNotConfigured = errors.New("anthropic api key not configured")

// APIClient handles communication with the Anthropic API
type APIClient struct {
	apiKey      string
	model       string
	apiURL      string
	httpClient  *http.Client
	temperature float64
}

// APIOption customizes an APIClient.
type APIOption func(*APIClient)

// WithAPIURL points the client at a different messages endpoint.
func WithAPIURL(url string) APIOption {
	return func(c *APIClient) { c.apiURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) { c.httpClient = hc }
}

// NewAPIClient creates a new Anthropic API client
func NewAPIClient(apiKey, model string, temperature float64, opts ...APIOption) *APIClient {
	if model == "" {
		model = defaultModel
	}
	if temperature < 0 {
		temperature = 0.1
	}

	c := &APIClient{
		apiKey:      apiKey,
		model:       model,
		apiURL:      defaultAPIURL,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *APIClient) Model() string {
	return c.model
}

// apiRequest represents the Anthropic API request with tools
type apiRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	System      string           `json:"system,omitempty"`
	Tools       []map[string]any `json:"tools,omitempty"`
	ToolChoice  *toolChoice      `json:"tool_choice,omitempty"`
	Messages    []apiMessage     `json:"messages"`
}

type toolChoice struct {
	Type string `json:"type"`           // "auto", "any", or "tool"
	Name string `json:"name,omitempty"` // Only for type="tool"
}

type apiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentBlock
}

// apiResponse represents the Anthropic API response
type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	StopReason string            `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *apiErrorDetail `json:"error,omitempty"`
}

type apiErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type apiErrorEnvelope struct {
	Type      string          `json:"type"`
	Error     *apiErrorDetail `json:"error"`
	RequestID string          `json:"request_id"`
}

type apiContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

// APIResponse wraps the parsed response from the API
type APIResponse struct {
	Content    []ContentBlock
	StopReason string
	Usage      UsageStats
}

// CallOptions configures an API call
type CallOptions struct {
	System     string
	Tools      []Tool
	ToolChoice string // "auto", "any", or specific tool name
	MaxTokens  int
}

// Call makes a request to the Anthropic API
func (c *APIClient) Call(ctx context.Context, messages []Message, opts CallOptions) (*APIResponse, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	apiMessages := make([]apiMessage, len(messages))
	for i, msg := range messages {
		apiMessages[i] = apiMessage{
			Role:    msg.Role,
			Content: convertContentToAPI(msg.Content),
		}
	}

	var apiTools []map[string]any
	if len(opts.Tools) > 0 {
		apiTools = make([]map[string]any, len(opts.Tools))
		for i, tool := range opts.Tools {
			apiTools[i] = map[string]any{
				"name":         tool.Name,
				"description":  tool.Description,
				"input_schema": tool.InputSchema,
			}
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := apiRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: c.temperature,
		System:      opts.System,
		Tools:       apiTools,
		Messages:    apiMessages,
	}

	if opts.ToolChoice != "" && len(opts.Tools) > 0 {
		switch opts.ToolChoice {
		case "auto", "any":
			req.ToolChoice = &toolChoice{Type: opts.ToolChoice}
		default:
			req.ToolChoice = &toolChoice{Type: "tool", Name: opts.ToolChoice}
		}
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, formatAPIError(resp.StatusCode, body)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	content := make([]ContentBlock, 0, len(apiResp.Content))
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			content = append(content, TextBlock{Type: "text", Text: block.Text})
		case "tool_use":
			content = append(content, ToolUseBlock{
				Type:  "tool_use",
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}

	return &APIResponse{
		Content:    content,
		StopReason: apiResp.StopReason,
		Usage: UsageStats{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
			TotalTokens:  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		},
	}, nil
}

// formatAPIError turns a non-200 response into an error, keeping the
// request id when the body is a structured error envelope.
func formatAPIError(status int, body []byte) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return fmt.Errorf("API error (status %d): %s", status, strings.TrimSpace(string(body)))
	}

	detail := envelope.Error
	if strings.Contains(strings.ToLower(detail.Message), "credit balance is too low") {
		return fmt.Errorf("%w (request_id=%s): add credits at https://console.anthropic.com/settings/plans",
			ErrInsufficientCredits, envelope.RequestID)
	}

	return fmt.Errorf("API error (status %d, request_id=%s): %s: %s",
		status, envelope.RequestID, detail.Type, detail.Message)
}

// convertContentToAPI converts ContentBlock slice to API format
func convertContentToAPI(content []ContentBlock) any {
	if len(content) == 1 {
		if text, ok := content[0].(TextBlock); ok {
			return text.Text
		}
	}

	result := make([]map[string]any, len(content))
	for i, block := range content {
		switch b := block.(type) {
		case TextBlock:
			result[i] = map[string]any{
				"type": "text",
				"text": b.Text,
			}
		case ToolUseBlock:
			result[i] = map[string]any{
				"type":  "tool_use",
				"id":    b.ID,
				"name":  b.Name,
				"input": b.Input,
			}
		case ToolResultBlock:
			block := map[string]any{
				"type":        "tool_result",
				"tool_use_id": b.ToolUseID,
				"content":     b.Content,
			}
			if b.IsError {
				block["is_error"] = true
			}
			result[i] = block
		}
	}
	return result
}

// IsConfigured returns true if the client has an API key
func (c *APIClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}
