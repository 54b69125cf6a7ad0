package agent

import (
	"context"
	"fmt"
)

// Agent represents an LLM-powered agent with tools
type Agent struct {
	name         string
	apiClient    *APIClient
	registry     *ToolRegistry
	systemPrompt string
	toolChoice   string
	maxTokens    int
}

// AgentConfig configures an agent
type AgentConfig struct {
	Name         string
	APIKey       string
	Model        string
	Temperature  float64
	SystemPrompt string
	// ToolChoice is "auto", "any" or the name of a tool the model must call.
	ToolChoice string
	MaxTokens  int
	APIOptions []APIOption
}

// NewAgent creates a new agent with the given configuration
func NewAgent(cfg AgentConfig) *Agent {
	return &Agent{
		name:         cfg.Name,
		apiClient:    NewAPIClient(cfg.APIKey, cfg.Model, cfg.Temperature, cfg.APIOptions...),
		registry:     NewToolRegistry(),
		systemPrompt: cfg.SystemPrompt,
		toolChoice:   cfg.ToolChoice,
		maxTokens:    cfg.MaxTokens,
	}
}

// Name returns the agent's name
func (a *Agent) Name() string {
	return a.name
}

// RegisterTool adds a tool to the agent
func (a *Agent) RegisterTool(tool Tool, handler ToolHandler) error {
	return a.registry.Register(tool, handler)
}

// MustRegisterTool adds a tool and panics on error
func (a *Agent) MustRegisterTool(tool Tool, handler ToolHandler) {
	a.registry.MustRegister(tool, handler)
}

// Tools returns all registered tools
func (a *Agent) Tools() []Tool {
	return a.registry.Tools()
}

// Execute runs the agent with the given input
func (a *Agent) Execute(ctx context.Context, input AgentInput) (*AgentOutput, error) {
	return a.ExecuteWithPrompt(ctx, input, a.systemPrompt)
}

// ExecuteWithPrompt runs the agent with a per-call system prompt.
func (a *Agent) ExecuteWithPrompt(ctx context.Context, input AgentInput, systemPrompt string) (*AgentOutput, error) {
	maxTurns := input.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1 // Default to single-shot
	}

	messages := make([]Message, len(input.Messages))
	copy(messages, input.Messages)

	var totalUsage UsageStats
	var allToolCalls []ToolCall

	for turn := 0; turn < maxTurns; turn++ {
		response, err := a.apiClient.Call(ctx, messages, CallOptions{
			System:     systemPrompt,
			Tools:      a.registry.Tools(),
			ToolChoice: a.toolChoice,
			MaxTokens:  a.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("API call failed on turn %d: %w", turn+1, err)
		}
		totalUsage.Add(response.Usage)

		switch response.StopReason {
		case "end_turn", "stop_sequence":
			return &AgentOutput{
				ToolCalls:    allToolCalls,
				Conversation: messages,
				Usage:        totalUsage,
				FinalText:    extractFinalText(response.Content),
			}, nil

		case "tool_use":
			messages = append(messages, Message{Role: "assistant", Content: response.Content})

			toolResults, toolCalls := a.executeTools(ctx, response.Content)
			allToolCalls = append(allToolCalls, toolCalls...)

			// A forced tool call is the answer; there is nothing to continue.
			if turn == maxTurns-1 {
				return &AgentOutput{
					ToolCalls:    allToolCalls,
					Conversation: messages,
					Usage:        totalUsage,
					FinalText:    extractFinalText(response.Content),
				}, nil
			}

			messages = append(messages, Message{Role: "user", Content: toolResults})
			continue

		default:
			return nil, fmt.Errorf("unexpected stop reason: %s", response.StopReason)
		}
	}

	return &AgentOutput{
		ToolCalls:    allToolCalls,
		Conversation: messages,
		Usage:        totalUsage,
	}, fmt.Errorf("max turns (%d) exceeded", maxTurns)
}

// executeTools runs all tool_use blocks and returns results
func (a *Agent) executeTools(ctx context.Context, content []ContentBlock) ([]ContentBlock, []ToolCall) {
	var results []ContentBlock
	var calls []ToolCall

	for _, block := range content {
		toolUse, ok := block.(ToolUseBlock)
		if !ok {
			continue
		}

		output, err := a.registry.Execute(ctx, toolUse.Name, toolUse.Input)

		calls = append(calls, ToolCall{
			Name:   toolUse.Name,
			Input:  toolUse.Input,
			Output: output,
			Error:  err,
		})

		resultBlock := ToolResultBlock{
			Type:      "tool_result",
			ToolUseID: toolUse.ID,
			Content:   output,
			IsError:   err != nil,
		}
		if err != nil {
			resultBlock.Content = err.Error()
		}
		results = append(results, resultBlock)
	}

	return results, calls
}

// extractFinalText concatenates the text blocks of a response
func extractFinalText(content []ContentBlock) string {
	var text string
	for _, block := range content {
		if tb, ok := block.(TextBlock); ok {
			text += tb.Text
		}
	}
	return text
}

// ExecuteSingleTool runs the agent expecting exactly one tool call. The
// returned output also carries any text the model produced alongside it.
func (a *Agent) ExecuteSingleTool(ctx context.Context, userMessage string) (*ToolCall, *AgentOutput, error) {
	output, err := a.Execute(ctx, AgentInput{
		Messages: []Message{UserText(userMessage)},
		MaxTurns: 1,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(output.ToolCalls) == 0 {
		return nil, output, fmt.Errorf("no tool was called")
	}

	return &output.ToolCalls[0], output, nil
}

// ExecuteText runs a single tool-free turn and returns the model's text.
func (a *Agent) ExecuteText(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	output, err := a.ExecuteWithPrompt(ctx, AgentInput{
		Messages: []Message{UserText(userMessage)},
		MaxTurns: 1,
	}, systemPrompt)
	if err != nil {
		return "", err
	}
	return output.FinalText, nil
}

// IsConfigured returns true if the agent's API client is configured
func (a *Agent) IsConfigured() bool {
	return a != nil && a.apiClient.IsConfigured()
}
