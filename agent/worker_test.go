package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/gateway"
)

func TestWorkerInvoke(t *testing.T) {
	ctx := context.Background()
	mock := gateway.NewMock(8)
	mock.AddResponse("What's on my calendar?", "You have two meetings today.")

	w := NewWorker("calendar", mock, func(o *WorkerOptions) {
		o.DisplayName = "Calendar Agent"
		o.Capabilities = []core.Capability{{Tag: "scheduling", Keywords: []string{"meeting", "calendar"}}}
	})
	assert.Equal(t, "calendar", w.Name())
	assert.Equal(t, "Calendar Agent", w.DisplayName())
	assert.Equal(t, core.AgentKindWorker, w.Kind())
	assert.True(t, w.Active())

	out, err := w.Invoke(ctx, &core.Invocation{Task: "What's on my calendar?"})
	require.NoError(t, err)
	assert.Equal(t, "calendar", out.AgentName)
	assert.Equal(t, "You have two meetings today.", out.Message)
	assert.Greater(t, out.TokensUsed, 0)
}

func TestWorkerContextAssembly(t *testing.T) {
	ctx := context.Background()
	mock := gateway.NewMock(8)

	w := NewWorker("research", mock, func(o *WorkerOptions) {
		o.SystemPrompt = "You research topics thoroughly."
	})

	inv := &core.Invocation{
		Task: "Summarize the findings",
		History: []*core.Message{
			{Role: core.RoleUser, Content: "Tell me about the market"},
			{Role: core.RoleAssistant, Content: "The market is growing."},
		},
		Memories: []core.MemoryHit{
			{Memory: &core.AgentMemory{Content: "User prefers short answers"}, Similarity: 0.9},
		},
		DocumentText: "Revenue grew 12% year over year.",
		Sources:      []core.Source{{DocumentID: "doc-1", Filename: "report.txt", Similarity: 0.8}},
		PriorOutputs: []*core.AgentOutput{
			{AgentName: "analytics", Message: "Growth is accelerating."},
		},
	}

	out, err := w.Invoke(ctx, inv)
	require.NoError(t, err)
	assert.Len(t, out.Thoughts, 3)
	assert.Equal(t, inv.Sources, out.Sources)
}

func TestWorkerMemoryProposal(t *testing.T) {
	ctx := context.Background()
	mock := gateway.NewMock(8)

	w := NewWorker("email", mock, func(o *WorkerOptions) {
		o.ProposeMemories = true
		o.MemoryImportance = 0.6
	})

	out, err := w.Invoke(ctx, &core.Invocation{Task: "Draft a follow-up email"})
	require.NoError(t, err)
	require.Len(t, out.Memories, 1)
	assert.Equal(t, core.MemoryKindEpisodic, out.Memories[0].Kind)
	assert.Equal(t, 0.6, out.Memories[0].Importance)
	assert.Contains(t, out.Memories[0].Content, "Draft a follow-up email")
}

func TestWorkerPropagatesCompleterError(t *testing.T) {
	ctx := context.Background()
	mock := gateway.NewMock(8)
	mock.SetCompleteErr(errors.New("model overloaded"))

	w := NewWorker("task", mock)
	out, err := w.Invoke(ctx, &core.Invocation{Task: "anything"})
	assert.Nil(t, out)
	assert.Error(t, err)
}

func TestFuncAgent(t *testing.T) {
	ctx := context.Background()
	f := NewFunc("echo", func(_ context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{Message: inv.Task}, nil
	})

	out, err := f.Invoke(ctx, &core.Invocation{Task: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo", out.AgentName)
	assert.Equal(t, "hello", out.Message)
}
