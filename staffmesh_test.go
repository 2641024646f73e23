package staffmesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staffmesh/agent"
	"github.com/hupe1980/staffmesh/core"
)

func TestFacadeChat(t *testing.T) {
	ctx := context.Background()
	mesh := New()

	err := mesh.RegisterAgent(agent.NewFunc("calendar", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{Message: "Scheduled."}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "scheduling", Keywords: []string{"schedule", "meeting"}}}
	}))
	require.NoError(t, err)

	resp, err := mesh.Chat(ctx, "Schedule a meeting tomorrow", func(o *ChatOptions) {
		o.UserID = "user-1"
	})
	require.NoError(t, err)
	assert.Equal(t, "calendar", resp.Agent)
	assert.Equal(t, "Scheduled.", resp.Response)
	assert.True(t, resp.IsFinal)

	agents := mesh.Orchestrator().Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, "calendar", agents[0].Name)
}

func TestFacadeRAGFlow(t *testing.T) {
	ctx := context.Background()
	mesh := New()

	var sawDocumentText string
	err := mesh.RegisterAgent(agent.NewFunc("research", func(_ context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
		sawDocumentText = inv.DocumentText
		return &core.AgentOutput{Message: "Summarized.", Sources: inv.Sources}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "research", Keywords: []string{"summarize"}}}
	}))
	require.NoError(t, err)

	passage := "summarize the launch plan for the northern region"
	doc, err := mesh.IngestDocument(ctx, "user-1", "plan.txt", "txt", []byte(passage))
	require.NoError(t, err)
	assert.Equal(t, core.ProcessingCompleted, doc.Status)

	resp, err := mesh.Chat(ctx, passage, func(o *ChatOptions) {
		o.UserID = "user-1"
		o.UseRAG = true
	})
	require.NoError(t, err)
	assert.Contains(t, sawDocumentText, "northern region")
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, doc.ID, resp.Sources[0].DocumentID)
}
