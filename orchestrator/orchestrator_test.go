package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staffmesh/agent"
	"github.com/hupe1980/staffmesh/conversation"
	"github.com/hupe1980/staffmesh/core"
	"github.com/hupe1980/staffmesh/gateway"
	"github.com/hupe1980/staffmesh/memory"
	"github.com/hupe1980/staffmesh/tracker"
)

const testDimension = 32

type fixture struct {
	orch  *Orchestrator
	convs *conversation.InMemoryStore
	mems  *memory.InMemoryStore
	tr    *tracker.Tracker
	mock  *gateway.Mock
}

func newFixture(t *testing.T, agents []core.Agent, optFns ...func(o *Options)) *fixture {
	t.Helper()
	registry := NewRegistry()
	for _, a := range agents {
		require.NoError(t, registry.Register(a))
	}
	convs := conversation.NewInMemoryStore()
	mems := memory.NewInMemoryStore(testDimension)
	tr := tracker.New(tracker.NewInMemoryStore())
	mock := gateway.NewMock(testDimension)
	orch := New(registry, convs, mems, tr, nil, mock, optFns...)
	return &fixture{orch: orch, convs: convs, mems: mems, tr: tr, mock: mock}
}

func calendarAgent() core.Agent {
	return agent.NewFunc("calendar", func(_ context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{
			Message:  "Meeting scheduled.",
			Thoughts: []string{"Checked availability"},
		}, nil
	}, func(o *agent.FuncOptions) {
		o.DisplayName = "Calendar Agent"
		o.Capabilities = []core.Capability{
			{Tag: "scheduling", Keywords: []string{"schedule", "meeting", "calendar"}},
		}
	})
}

func TestCalendarDelegationScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})

	resp, err := f.orch.Handle(ctx, &Request{
		Message: "Schedule a meeting with marketing team next week",
		UserID:  "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "calendar", resp.Agent)
	assert.False(t, resp.NeedsClarification)
	assert.True(t, resp.IsFinal)
	assert.Equal(t, "Meeting scheduled.", resp.Response)
	assert.NotEmpty(t, resp.ConversationID)
	assert.NotEmpty(t, resp.MessageID)

	conv, err := f.convs.Get(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Schedule a meeting with marketing team next week", conv.Title)

	execs, err := f.tr.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, core.ExecutionCompleted, execs[0].Status)
	assert.Equal(t, "calendar", execs[0].AgentName)
}

func TestClarificationScenarioNoExecutions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})

	resp, err := f.orch.Handle(ctx, &Request{Message: "do the thing", UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, resp.NeedsClarification)
	assert.NotEmpty(t, resp.ClarificationQuestion)
	assert.False(t, resp.IsFinal)

	execs, err := f.tr.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestCalendarMissingTimeSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})

	resp, err := f.orch.Handle(ctx, &Request{
		Message: "Schedule a meeting with the marketing team",
		UserID:  "user-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.NeedsClarification)
	assert.Contains(t, resp.ClarificationQuestion, "date or time")

	execs, err := f.tr.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestPartialFailureUsesSuccessfulOutput(t *testing.T) {
	ctx := context.Background()
	ok := agent.NewFunc("analytics", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{Message: "Revenue grew 12%."}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "analytics", Keywords: []string{"report"}}}
	})
	failing := agent.NewFunc("research", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return nil, errors.New("gateway timeout")
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "research", Keywords: []string{"report"}}}
	})
	f := newFixture(t, []core.Agent{ok, failing})

	resp, err := f.orch.Handle(ctx, &Request{Message: "Prepare the quarterly report", UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, resp.IsFinal)
	assert.Equal(t, "analytics", resp.Agent)
	assert.Equal(t, "Revenue grew 12%.", resp.Response)

	execs, err := f.tr.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	byAgent := map[string]*core.TaskExecution{}
	for _, e := range execs {
		byAgent[e.AgentName] = e
	}
	assert.Equal(t, core.ExecutionCompleted, byAgent["analytics"].Status)
	assert.Equal(t, core.ExecutionFailed, byAgent["research"].Status)
	assert.NotEmpty(t, byAgent["research"].ErrorMessage)
}

func TestAllFailedProducesDegradedResponse(t *testing.T) {
	ctx := context.Background()
	failing := agent.NewFunc("research", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return nil, errors.New("model unavailable")
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "research", Keywords: []string{"research"}}}
	})
	f := newFixture(t, []core.Agent{failing})

	resp, err := f.orch.Handle(ctx, &Request{Message: "research the competition", UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, resp.IsFinal)
	assert.False(t, resp.NeedsClarification)
	assert.NotEmpty(t, resp.Response)
	assert.Empty(t, resp.Agent)
}

func TestDependentAgentSeesPriorOutputs(t *testing.T) {
	ctx := context.Background()
	research := agent.NewFunc("research", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{Message: "Found three sources."}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "research", Keywords: []string{"analyze"}}}
	})

	var seen []*core.AgentOutput
	analysis := agent.NewFunc("analysis", func(_ context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
		seen = inv.PriorOutputs
		return &core.AgentOutput{Message: "Analysis done."}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "analysis", Keywords: []string{"analyze"}}}
		o.DependsOn = []string{"research"}
	})
	f := newFixture(t, []core.Agent{research, analysis})

	_, err := f.orch.Handle(ctx, &Request{Message: "analyze the findings", UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, "research", seen[0].AgentName)
}

func TestExactlyOneAssistantMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})

	resp, err := f.orch.Handle(ctx, &Request{
		Message: "Schedule a meeting tomorrow",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	msgs, err := f.convs.Messages(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.Equal(t, core.RoleAssistant, msgs[1].Role)
}

func TestPerConversationSerialization(t *testing.T) {
	ctx := context.Background()
	slow := agent.NewFunc("task", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		time.Sleep(20 * time.Millisecond)
		return &core.AgentOutput{Message: "done"}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "tasks", Keywords: []string{"task"}}}
	})
	f := newFixture(t, []core.Agent{slow})

	first, err := f.orch.Handle(ctx, &Request{Message: "task one", UserID: "user-1"})
	require.NoError(t, err)
	convID := first.ConversationID

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Handle(ctx, &Request{Message: "task again", ConversationID: convID})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	msgs, err := f.convs.Messages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	// Strict alternation: a user message is always answered before the
	// next request's messages appear.
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, core.RoleUser, m.Role)
		} else {
			assert.Equal(t, core.RoleAssistant, m.Role)
		}
	}
}

func TestCrossConversationParallelism(t *testing.T) {
	ctx := context.Background()
	slow := agent.NewFunc("task", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		time.Sleep(10 * time.Millisecond)
		return &core.AgentOutput{Message: "done"}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "tasks", Keywords: []string{"task"}}}
	})
	f := newFixture(t, []core.Agent{slow})

	var wg sync.WaitGroup
	results := make([]*Response, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.orch.Handle(ctx, &Request{Message: "task", UserID: "user-1"})
			assert.NoError(t, err)
			results[i] = resp
		}()
	}
	wg.Wait()

	ids := map[string]struct{}{}
	for _, r := range results {
		require.NotNil(t, r)
		msgs, err := f.convs.Messages(ctx, r.ConversationID)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
		ids[r.ConversationID] = struct{}{}
	}
	assert.Len(t, ids, 4)
}

func TestMemoryProposalPersisted(t *testing.T) {
	ctx := context.Background()
	proposer := agent.NewFunc("email", func(_ context.Context, inv *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{
			Message: "Email drafted.",
			Memories: []core.MemoryProposal{{
				Kind:       core.MemoryKindPreference,
				Content:    "User prefers concise emails",
				Importance: 0.8,
			}},
		}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "email", Keywords: []string{"email"}}}
	})
	f := newFixture(t, []core.Agent{proposer})

	resp, err := f.orch.Handle(ctx, &Request{Message: "draft an email to the board", UserID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, 1, f.mems.Count("email"))

	emb, err := f.mock.Embed(ctx, "User prefers concise emails")
	require.NoError(t, err)
	hits, err := f.mems.Retrieve(ctx, "email", emb, 1, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, resp.ConversationID, hits[0].Memory.ConversationID)
	assert.Equal(t, core.MemoryKindPreference, hits[0].Memory.Kind)
}

func TestValidationAndNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})

	_, err := f.orch.Handle(ctx, &Request{Message: "   "})
	assert.True(t, core.IsValidation(err))

	_, err = f.orch.Handle(ctx, &Request{Message: "hello", ConversationID: "missing"})
	assert.True(t, core.IsNotFound(err))
}

func TestRefreshSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})
	f.mock.AddResponse("Summarize the following conversation in at most two sentences.",
		"The user scheduled a meeting.")

	resp, err := f.orch.Handle(ctx, &Request{
		Message: "Schedule a meeting tomorrow",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.orch.RefreshSummary(ctx, resp.ConversationID))
	conv, err := f.convs.Get(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "The user scheduled a meeting.", conv.Summary)
}

func TestDeleteConversationCascades(t *testing.T) {
	ctx := context.Background()
	proposer := agent.NewFunc("email", func(_ context.Context, _ *core.Invocation) (*core.AgentOutput, error) {
		return &core.AgentOutput{
			Message: "Sent.",
			Memories: []core.MemoryProposal{{
				Kind: core.MemoryKindEpisodic, Content: "Sent board update", Importance: 0.5,
			}},
		}, nil
	}, func(o *agent.FuncOptions) {
		o.Capabilities = []core.Capability{{Tag: "email", Keywords: []string{"email"}}}
	})
	f := newFixture(t, []core.Agent{proposer})

	resp, err := f.orch.Handle(ctx, &Request{Message: "send the board email", UserID: "user-1"})
	require.NoError(t, err)

	require.NoError(t, f.orch.DeleteConversation(ctx, resp.ConversationID))

	_, err = f.convs.Get(ctx, resp.ConversationID)
	assert.True(t, core.IsNotFound(err))

	execs, err := f.tr.History(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Empty(t, execs)

	// The memory survives with its conversation reference nulled.
	require.Equal(t, 1, f.mems.Count("email"))
	emb, err := f.mock.Embed(ctx, "Sent board update")
	require.NoError(t, err)
	hits, err := f.mems.Retrieve(ctx, "email", emb, 1, 0.9)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Empty(t, hits[0].Memory.ConversationID)
}

func TestObserverEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, []core.Agent{calendarAgent()})

	var mu sync.Mutex
	var events []Event
	_, err := f.orch.Handle(ctx, &Request{
		Message: "Schedule a meeting tomorrow",
		UserID:  "user-1",
	}, func(ho *HandleOptions) {
		ho.Observer = func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}
	})
	require.NoError(t, err)

	var states []State
	finished := 0
	for _, e := range events {
		if e.Type == EventState {
			states = append(states, e.State)
		}
		if e.Type == EventAgentFinished {
			finished++
			assert.Equal(t, "calendar", e.AgentName)
			assert.NoError(t, e.Err)
		}
	}
	assert.Equal(t, 1, finished)
	assert.Equal(t, StateReceiving, states[0])
	assert.Equal(t, StateResponded, states[len(states)-1])
}
