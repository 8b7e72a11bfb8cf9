// Package agent runs a tool-calling chat loop against an OpenAI-compatible
// chat completions API.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

// ErrNoChoices is reported when the model answers without any choice.
var ErrNoChoices = errors.New("model returned no choices")

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

// Config configures the agent loop.
type Config struct {
	Model        string
	SystemPrompt string
	// MaxSteps bounds the number of model calls per run.
	MaxSteps int
}

// ClientConfig configures the underlying chat completions client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a go-openai client. BaseURL targets compatible servers.
func NewClient(cfg ClientConfig) *goopenai.Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return goopenai.NewClientWithConfig(oc)
}

// Agent answers a conversation, calling tools when the model asks for them.
type Agent struct {
	api   chatAPI
	cfg   Config
	tools map[string]Tool
	specs []goopenai.Tool
	log   *zap.Logger
}

// New creates an agent over api with the given tools.
func New(api chatAPI, cfg Config, log *zap.Logger, tools ...Tool) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 8
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &Agent{
		api:   api,
		cfg:   cfg,
		tools: make(map[string]Tool, len(tools)),
		log:   log.Named("agent"),
	}
	for _, t := range tools {
		spec := t.Spec()
		a.tools[spec.Name] = t
		a.specs = append(a.specs, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.InputSchema,
			},
		})
	}
	return a
}

// Stream runs the loop in the background. Each event carries the full
// conversation after one step: the input messages followed by everything the
// model and the tools produced so far. The channel is closed when the model
// stops calling tools, MaxSteps is reached, ctx is done or a call fails.
func (a *Agent) Stream(ctx context.Context, messages []domain.Turn) (<-chan domain.AgentEvent, error) {
	if len(messages) == 0 {
		return nil, errors.New("no messages")
	}
	out := make(chan domain.AgentEvent)
	go func() {
		defer close(out)
		a.run(ctx, messages, out)
	}()
	return out, nil
}

func (a *Agent) run(ctx context.Context, messages []domain.Turn, out chan<- domain.AgentEvent) {
	transcript := append([]domain.Turn(nil), messages...)
	conv := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if a.cfg.SystemPrompt != "" {
		conv = append(conv, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: a.cfg.SystemPrompt})
	}
	for _, m := range messages {
		conv = append(conv, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	emit := func(err error) bool {
		ev := domain.AgentEvent{Messages: append([]domain.Turn(nil), transcript...), Err: err}
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for step := 0; step < a.cfg.MaxSteps; step++ {
		req := goopenai.ChatCompletionRequest{Model: a.cfg.Model, Messages: conv}
		if len(a.specs) > 0 {
			req.Tools = a.specs
		}
		resp, err := a.api.CreateChatCompletion(ctx, req)
		if err == nil && len(resp.Choices) == 0 {
			err = ErrNoChoices
		}
		if err != nil {
			emit(fmt.Errorf("chat completion: %w", err))
			return
		}

		msg := resp.Choices[0].Message
		conv = append(conv, msg)
		transcript = append(transcript, domain.Turn{Role: domain.RoleAssistant, Content: msg.Content})
		if len(msg.ToolCalls) == 0 {
			emit(nil)
			return
		}

		for _, call := range msg.ToolCalls {
			content := a.invoke(ctx, call)
			conv = append(conv, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    content,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
			transcript = append(transcript, domain.Turn{Role: domain.RoleTool, Content: content})
		}
		if !emit(nil) {
			return
		}
	}
	a.log.Warn("step limit reached", zap.Int("max_steps", a.cfg.MaxSteps))
}

// invoke runs one tool call. Failures become text for the model to read.
func (a *Agent) invoke(ctx context.Context, call goopenai.ToolCall) string {
	tool, ok := a.tools[call.Function.Name]
	if !ok {
		a.log.Warn("unknown tool", zap.String("tool", call.Function.Name))
		return fmt.Sprintf("Unknown tool %q.", call.Function.Name)
	}
	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			a.log.Warn("bad tool arguments", zap.String("tool", call.Function.Name), zap.Error(err))
			return fmt.Sprintf("Invalid arguments for %s: %v", call.Function.Name, err)
		}
	}
	resp, err := tool.Invoke(ctx, ToolRequest{CallID: call.ID, Arguments: args})
	if err != nil {
		a.log.Warn("tool failed", zap.String("tool", call.Function.Name), zap.Error(err))
		return fmt.Sprintf("Tool %s failed: %v", call.Function.Name, err)
	}
	a.log.Debug("tool call", zap.String("tool", call.Function.Name), zap.Int("bytes", len(resp.Content)))
	return resp.Content
}
