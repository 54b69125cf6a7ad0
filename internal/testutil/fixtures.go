package testutil

import "fmt"

// AnthropicResponse is one canned Messages API reply served by AnthropicStub.
type AnthropicResponse struct {
	StopReason string
	Content    []map[string]any
}

// TextResponse builds an end_turn reply carrying text.
func TextResponse(text string) AnthropicResponse {
	return AnthropicResponse{
		StopReason: "end_turn",
		Content:    []map[string]any{{"type": "text", "text": text}},
	}
}

// ToolUseResponse builds a tool_use reply invoking name with input.
func ToolUseResponse(name string, input map[string]any) AnthropicResponse {
	return NewResponseBuilder().ToolUse(name, input).Build()
}

// ResponseBuilder builds multi-block replies.
type ResponseBuilder struct {
	stopReason string
	content    []map[string]any
	toolUses   int
}

// NewResponseBuilder creates a builder defaulting to end_turn.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{stopReason: "end_turn"}
}

// Text appends a text block.
func (b *ResponseBuilder) Text(text string) *ResponseBuilder {
	b.content = append(b.content, map[string]any{"type": "text", "text": text})
	return b
}

// ToolUse appends a tool_use block and switches the stop reason to tool_use.
func (b *ResponseBuilder) ToolUse(name string, input map[string]any) *ResponseBuilder {
	b.toolUses++
	b.content = append(b.content, map[string]any{
		"type":  "tool_use",
		"id":    fmt.Sprintf("toolu_%02d", b.toolUses),
		"name":  name,
		"input": input,
	})
	b.stopReason = "tool_use"
	return b
}

// StopReason overrides the stop reason.
func (b *ResponseBuilder) StopReason(reason string) *ResponseBuilder {
	b.stopReason = reason
	return b
}

// Build returns the reply.
func (b *ResponseBuilder) Build() AnthropicResponse {
	return AnthropicResponse{StopReason: b.stopReason, Content: b.content}
}
