package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

type fakeAgent struct {
	events   []domain.AgentEvent
	startErr error
	received []domain.Turn
}

func (f *fakeAgent) Stream(_ context.Context, messages []domain.Turn) (<-chan domain.AgentEvent, error) {
	f.received = messages
	if f.startErr != nil {
		return nil, f.startErr
	}
	ch := make(chan domain.AgentEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func turns(n int) []domain.Turn {
	out := make([]domain.Turn, n)
	for i := range out {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		out[i] = domain.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)}
	}
	return out
}

func assistant(s string) domain.Turn { return domain.Turn{Role: domain.RoleAssistant, Content: s} }

func TestTruncateHistory(t *testing.T) {
	h := turns(7)
	tests := []struct {
		name string
		m    int
		want []domain.Turn
	}{
		{"zero keeps nothing", 0, nil},
		{"negative keeps nothing", -3, nil},
		{"last three", 3, h[4:]},
		{"limit above length", 10, h},
		{"exact length", 7, h},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateHistory(h, tt.m))
		})
	}
}

func TestRespond_DelegatesLastMTurnsPlusMessage(t *testing.T) {
	agent := &fakeAgent{events: []domain.AgentEvent{{Messages: []domain.Turn{assistant("ok")}}}}
	d := NewDispatcher(agent, 5, nil)
	history := turns(9)

	got := d.Respond(context.Background(), domain.Turn{Content: "new question"}, history)

	assert.Equal(t, "ok", got)
	require.Len(t, agent.received, 6)
	assert.Equal(t, history[4:], agent.received[:5])
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Content: "new question"}, agent.received[5])
}

func TestRespond_NilHistory(t *testing.T) {
	agent := &fakeAgent{events: []domain.AgentEvent{{Messages: []domain.Turn{assistant("ok")}}}}
	d := NewDispatcher(agent, 5, nil)

	d.Respond(context.Background(), domain.Turn{Role: domain.RoleUser, Content: "hi"}, nil)
	assert.Equal(t, []domain.Turn{{Role: domain.RoleUser, Content: "hi"}}, agent.received)
}

func TestBuildMessages_DropsRolelessHistory(t *testing.T) {
	history := []domain.Turn{
		{Role: domain.RoleUser, Content: "a"},
		{Content: "stray"},
		{Role: domain.RoleAssistant, Content: "b"},
	}
	got := BuildMessages(domain.Turn{Role: domain.RoleAssistant, Content: "c"}, history, 3)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "a"},
		{Role: domain.RoleAssistant, Content: "b"},
		{Role: domain.RoleAssistant, Content: "c"},
	}, got)
}

func TestRespond_EmptyStream(t *testing.T) {
	d := NewDispatcher(&fakeAgent{}, 5, nil)
	assert.Equal(t, "No response generated.", d.Respond(context.Background(), domain.Turn{Content: "q"}, nil))
}

func TestRespond_ReturnsLastAssistantText(t *testing.T) {
	agent := &fakeAgent{events: []domain.AgentEvent{
		{Messages: []domain.Turn{{Role: domain.RoleUser, Content: "q"}, {Role: domain.RoleAssistant}}},
		{Messages: []domain.Turn{{Role: domain.RoleTool, Content: "Source: {}\nContent: x"}}},
		{Messages: []domain.Turn{assistant("first")}},
		{Messages: []domain.Turn{assistant("final")}},
	}}
	d := NewDispatcher(agent, 5, nil)
	assert.Equal(t, "final", d.Respond(context.Background(), domain.Turn{Content: "q"}, nil))
}

func TestRespond_OnlyToolMessages(t *testing.T) {
	agent := &fakeAgent{events: []domain.AgentEvent{
		{Messages: []domain.Turn{{Role: domain.RoleTool, Content: "data"}}},
	}}
	d := NewDispatcher(agent, 5, nil)
	assert.Equal(t, NoResponse, d.Respond(context.Background(), domain.Turn{Content: "q"}, nil))
}

func TestRespond_AgentErrors(t *testing.T) {
	start := NewDispatcher(&fakeAgent{startErr: errors.New("down")}, 5, nil)
	assert.Equal(t, NoResponse, start.Respond(context.Background(), domain.Turn{Content: "q"}, nil))

	run := NewDispatcher(&fakeAgent{events: []domain.AgentEvent{
		{Messages: []domain.Turn{assistant("partial")}},
		{Err: errors.New("rate limited")},
	}}, 5, nil)
	assert.Equal(t, NoResponse, run.Respond(context.Background(), domain.Turn{Content: "q"}, nil))
}
