package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omriShneor/alfred_scheduler/internal/testutil"
)

var echoTool = Tool{
	Name:        "record",
	Description: "Record structured output.",
	InputSchema: BuildJSONSchema("object", map[string]any{
		"value": PropertyString("any value"),
	}, []string{"value"}),
}

func newStubAgent(t *testing.T, stub *testutil.AnthropicStub, toolChoice string) *Agent {
	t.Helper()
	a := NewAgent(AgentConfig{
		Name:         "test",
		APIKey:       "test-key",
		SystemPrompt: "system",
		ToolChoice:   toolChoice,
		APIOptions:   []APIOption{WithAPIURL(stub.URL())},
	})
	return a
}

func TestExecuteSingleTool_ForcedToolEndsTurn(t *testing.T) {
	stub := testutil.NewAnthropicStub(t, testutil.ToolUseResponse("record", map[string]any{"value": "x"}))
	a := newStubAgent(t, stub, "record")
	a.MustRegisterTool(echoTool, RecordInput)

	call, output, err := a.ExecuteSingleTool(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "record", call.Name)
	assert.Equal(t, "x", call.Input["value"])
	assert.JSONEq(t, `{"value":"x"}`, call.Output)
	assert.NoError(t, call.Error)
	assert.Len(t, output.ToolCalls, 1)
	assert.Equal(t, 1, stub.RequestCount())
}

func TestExecuteSingleTool_NoToolCalled(t *testing.T) {
	stub := testutil.NewAnthropicStub(t, testutil.TextResponse(`{"value":"x"}`))
	a := newStubAgent(t, stub, "")
	a.MustRegisterTool(echoTool, RecordInput)

	call, output, err := a.ExecuteSingleTool(context.Background(), "hello")
	require.Error(t, err)
	assert.Nil(t, call)
	require.NotNil(t, output)
	assert.Equal(t, `{"value":"x"}`, output.FinalText)
}

func TestExecute_MultiTurnFeedsToolResults(t *testing.T) {
	stub := testutil.NewAnthropicStub(t,
		testutil.ToolUseResponse("record", map[string]any{"value": "first"}),
		testutil.TextResponse("done"),
	)
	a := newStubAgent(t, stub, "auto")
	a.MustRegisterTool(echoTool, RecordInput)

	output, err := a.Execute(context.Background(), AgentInput{
		Messages: []Message{UserText("go")},
		MaxTurns: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "done", output.FinalText)
	require.Len(t, output.ToolCalls, 1)
	assert.Equal(t, 2, stub.RequestCount())

	// The second request carries the assistant tool_use and the user tool_result.
	msgs, ok := stub.Requests()[1]["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
}

func TestExecute_UnknownToolIsReportedAsError(t *testing.T) {
	stub := testutil.NewAnthropicStub(t, testutil.ToolUseResponse("missing", map[string]any{}))
	a := newStubAgent(t, stub, "")

	output, err := a.Execute(context.Background(), AgentInput{Messages: []Message{UserText("go")}})
	require.NoError(t, err)
	require.Len(t, output.ToolCalls, 1)
	assert.Error(t, output.ToolCalls[0].Error)
}

func TestExecute_UnexpectedStopReason(t *testing.T) {
	stub := testutil.NewAnthropicStub(t, testutil.NewResponseBuilder().Text("cut").StopReason("max_tokens").Build())
	a := newStubAgent(t, stub, "")

	_, err := a.Execute(context.Background(), AgentInput{Messages: []Message{UserText("go")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestExecuteText(t *testing.T) {
	stub := testutil.NewAnthropicStub(t, testutil.NewResponseBuilder().Text("Hello, ").Text("world").Build())
	a := newStubAgent(t, stub, "")

	text, err := a.ExecuteText(context.Background(), "custom system", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", text)
	assert.Equal(t, "custom system", stub.Requests()[0]["system"])
}

func TestToolRegistry_DuplicateRegistration(t *testing.T) {
	r := NewToolRegistry()
	require.NoError(t, r.Register(echoTool, RecordInput))
	assert.True(t, r.HasTool("record"))
	assert.Error(t, r.Register(echoTool, RecordInput))
	assert.Panics(t, func() { r.MustRegister(echoTool, RecordInput) })
}
