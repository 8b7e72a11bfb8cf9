package agent

import (
	"context"
	"errors"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

type fakeChat struct {
	replies  []goopenai.ChatCompletionMessage
	err      error
	requests []goopenai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return goopenai.ChatCompletionResponse{}, f.err
	}
	if len(f.replies) == 0 {
		return goopenai.ChatCompletionResponse{}, nil
	}
	msg := f.replies[0]
	f.replies = f.replies[1:]
	return goopenai.ChatCompletionResponse{Choices: []goopenai.ChatCompletionChoice{{Message: msg}}}, nil
}

type echoTool struct {
	calls []map[string]any
	err   error
}

func (e *echoTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        "echo",
		Description: "Echo the query.",
		InputSchema: map[string]any{"type": "object"},
	}
}

func (e *echoTool) Invoke(_ context.Context, req ToolRequest) (ToolResponse, error) {
	e.calls = append(e.calls, req.Arguments)
	if e.err != nil {
		return ToolResponse{}, e.err
	}
	return ToolResponse{Content: "echo: " + req.Arguments["query"].(string)}, nil
}

func toolCall(id, name, args string) goopenai.ToolCall {
	return goopenai.ToolCall{
		ID:       id,
		Type:     goopenai.ToolTypeFunction,
		Function: goopenai.FunctionCall{Name: name, Arguments: args},
	}
}

func drain(t *testing.T, ch <-chan domain.AgentEvent) []domain.AgentEvent {
	t.Helper()
	var events []domain.AgentEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func userTurn(s string) []domain.Turn {
	return []domain.Turn{{Role: domain.RoleUser, Content: s}}
}

func TestStream_DirectAnswer(t *testing.T) {
	api := &fakeChat{replies: []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleAssistant, Content: "hi there"},
	}}
	a := New(api, Config{Model: "m", SystemPrompt: "be brief"}, nil)

	ch, err := a.Stream(context.Background(), userTurn("hello"))
	require.NoError(t, err)
	events := drain(t, ch)

	require.Len(t, events, 1)
	require.NoError(t, events[0].Err)
	msgs := events[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.Turn{Role: domain.RoleAssistant, Content: "hi there"}, msgs[1])

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "m", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, goopenai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "be brief", req.Messages[0].Content)
	assert.Empty(t, req.Tools)
}

func TestStream_ToolRoundTrip(t *testing.T) {
	api := &fakeChat{replies: []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleAssistant, ToolCalls: []goopenai.ToolCall{toolCall("c1", "echo", `{"query":"gophers"}`)}},
		{Role: goopenai.ChatMessageRoleAssistant, Content: "Gophers dig."},
	}}
	tool := &echoTool{}
	a := New(api, Config{Model: "m"}, nil, tool)

	ch, err := a.Stream(context.Background(), userTurn("tell me"))
	require.NoError(t, err)
	events := drain(t, ch)

	require.Len(t, events, 2)
	require.Len(t, tool.calls, 1)
	assert.Equal(t, "gophers", tool.calls[0]["query"])

	first := events[0].Messages
	assert.Equal(t, domain.RoleTool, first[len(first)-1].Role)
	assert.Equal(t, "echo: gophers", first[len(first)-1].Content)

	last := events[1].Messages
	assert.Equal(t, "Gophers dig.", last[len(last)-1].Content)

	require.Len(t, api.requests, 2)
	require.Len(t, api.requests[0].Tools, 1)
	assert.Equal(t, "echo", api.requests[0].Tools[0].Function.Name)
	second := api.requests[1].Messages
	toolMsg := second[len(second)-1]
	assert.Equal(t, goopenai.ChatMessageRoleTool, toolMsg.Role)
	assert.Equal(t, "c1", toolMsg.ToolCallID)
}

func TestStream_ToolFailuresAreReportedToModel(t *testing.T) {
	api := &fakeChat{replies: []goopenai.ChatCompletionMessage{
		{Role: goopenai.ChatMessageRoleAssistant, ToolCalls: []goopenai.ToolCall{
			toolCall("a", "missing", `{}`),
			toolCall("b", "echo", `not json`),
			toolCall("c", "echo", `{"query":"x"}`),
		}},
		{Role: goopenai.ChatMessageRoleAssistant, Content: "done"},
	}}
	tool := &echoTool{err: errors.New("boom")}
	a := New(api, Config{Model: "m"}, nil, tool)

	ch, err := a.Stream(context.Background(), userTurn("q"))
	require.NoError(t, err)
	events := drain(t, ch)
	require.Len(t, events, 2)

	msgs := events[0].Messages
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[2].Content, "Unknown tool")
	assert.Contains(t, msgs[3].Content, "Invalid arguments")
	assert.Contains(t, msgs[4].Content, "boom")
}

func TestStream_StepLimit(t *testing.T) {
	loop := goopenai.ChatCompletionMessage{
		Role:      goopenai.ChatMessageRoleAssistant,
		ToolCalls: []goopenai.ToolCall{toolCall("c", "echo", `{"query":"again"}`)},
	}
	api := &fakeChat{replies: []goopenai.ChatCompletionMessage{loop, loop, loop, loop}}
	a := New(api, Config{Model: "m", MaxSteps: 2}, nil, &echoTool{})

	ch, err := a.Stream(context.Background(), userTurn("q"))
	require.NoError(t, err)
	events := drain(t, ch)

	assert.Len(t, events, 2)
	assert.Len(t, api.requests, 2)
}

func TestStream_APIError(t *testing.T) {
	api := &fakeChat{err: errors.New("unavailable")}
	a := New(api, Config{Model: "m"}, nil)

	ch, err := a.Stream(context.Background(), userTurn("q"))
	require.NoError(t, err)
	events := drain(t, ch)

	require.Len(t, events, 1)
	require.Error(t, events[0].Err)
	assert.Contains(t, events[0].Err.Error(), "unavailable")
}

func TestStream_NoChoices(t *testing.T) {
	a := New(&fakeChat{}, Config{Model: "m"}, nil)

	ch, err := a.Stream(context.Background(), userTurn("q"))
	require.NoError(t, err)
	events := drain(t, ch)

	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, ErrNoChoices)
}

func TestStream_RejectsEmptyInput(t *testing.T) {
	_, err := New(&fakeChat{}, Config{}, nil).Stream(context.Background(), nil)
	assert.Error(t, err)
}

func TestStream_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeChat{replies: []goopenai.ChatCompletionMessage{{Role: goopenai.ChatMessageRoleAssistant, Content: "x"}}}
	ch, err := New(api, Config{Model: "m"}, nil).Stream(ctx, userTurn("q"))
	require.NoError(t, err)
	cancel()
	// The channel must close whether or not the event was delivered.
	for range ch {
	}
}
