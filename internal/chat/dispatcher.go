// Package chat turns a new message plus prior history into one agent run and
// reduces the run to a single reply string.
package chat

import (
	"context"

	"go.uber.org/zap"

	"docchat/internal/domain"
)

// NoResponse is returned whenever the agent produced no assistant text.
const NoResponse = "No response generated."

// Dispatcher holds no conversation state; history is supplied on every call.
type Dispatcher struct {
	agent      domain.Agent
	maxHistory int
	log        *zap.Logger
}

// NewDispatcher creates a dispatcher keeping at most maxHistory prior turns.
func NewDispatcher(agent domain.Agent, maxHistory int, log *zap.Logger) *Dispatcher {
	if maxHistory < 0 {
		maxHistory = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{agent: agent, maxHistory: maxHistory, log: log.Named("chat")}
}

// TruncateHistory returns the last m entries of history in order.
func TruncateHistory(history []domain.Turn, m int) []domain.Turn {
	if m <= 0 {
		return nil
	}
	if len(history) > m {
		history = history[len(history)-m:]
	}
	return history
}

// BuildMessages returns the retained history followed by msg. History entries
// without a role are dropped and a new message without one becomes a user turn.
func BuildMessages(msg domain.Turn, history []domain.Turn, m int) []domain.Turn {
	kept := TruncateHistory(history, m)
	out := make([]domain.Turn, 0, len(kept)+1)
	for _, t := range kept {
		if t.Role == "" {
			continue
		}
		out = append(out, t)
	}
	if msg.Role == "" {
		msg.Role = domain.RoleUser
	}
	return append(out, msg)
}

// Respond runs the agent to completion and returns the text of the last
// assistant message it emitted, or NoResponse.
func (d *Dispatcher) Respond(ctx context.Context, msg domain.Turn, history []domain.Turn) string {
	messages := BuildMessages(msg, history, d.maxHistory)
	events, err := d.agent.Stream(ctx, messages)
	if err != nil {
		d.log.Error("agent start failed", zap.Error(err))
		return NoResponse
	}

	reply := ""
	var runErr error
	for ev := range events {
		if ev.Err != nil {
			runErr = ev.Err
		}
		if n := len(ev.Messages); n > 0 {
			last := ev.Messages[n-1]
			if last.Role == domain.RoleAssistant && last.Content != "" {
				reply = last.Content
			}
		}
	}
	if runErr != nil {
		d.log.Error("agent run failed", zap.Error(runErr), zap.Int("messages", len(messages)))
		return NoResponse
	}
	if reply == "" {
		d.log.Warn("agent produced no reply", zap.Int("messages", len(messages)))
		return NoResponse
	}
	return reply
}
