package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staffmesh/core"
)

func TestTrackerLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := New(NewInMemoryStore(), func(o *Options) { o.Clock = clock })

	id, err := tr.Begin(ctx, "conv-1", "calendar", "delegation", map[string]any{"task": "schedule meeting"})
	require.NoError(t, err)

	rec, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionRunning, rec.Status)
	assert.Equal(t, "calendar", rec.AgentName)
	assert.False(t, rec.StartedAt.IsZero())

	now = now.Add(250 * time.Millisecond)
	err = tr.Complete(ctx, id, map[string]any{"response": "done"})
	require.NoError(t, err)

	rec, err = tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionCompleted, rec.Status)
	assert.Equal(t, 250*time.Millisecond, rec.Duration)
	assert.Equal(t, "done", rec.Output["response"])
}

func TestTrackerFail(t *testing.T) {
	ctx := context.Background()
	tr := New(NewInMemoryStore())

	id, err := tr.Begin(ctx, "conv-1", "research", "delegation", nil)
	require.NoError(t, err)

	err = tr.Fail(ctx, id, "upstream timeout")
	require.NoError(t, err)

	rec, err := tr.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionFailed, rec.Status)
	assert.Equal(t, "upstream timeout", rec.ErrorMessage)
	assert.False(t, rec.CompletedAt.IsZero())
}

func TestTrackerDoubleTerminalRejected(t *testing.T) {
	ctx := context.Background()
	tr := New(NewInMemoryStore())

	id, err := tr.Begin(ctx, "conv-1", "email", "delegation", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Complete(ctx, id, nil))

	err = tr.Fail(ctx, id, "late failure")
	assert.True(t, core.IsValidation(err))

	err = tr.Complete(ctx, id, nil)
	assert.True(t, core.IsValidation(err))
}

func TestTrackerUnknownID(t *testing.T) {
	ctx := context.Background()
	tr := New(NewInMemoryStore())

	err := tr.Complete(ctx, "no-such-id", nil)
	assert.True(t, core.IsNotFound(err))

	_, err = tr.Get(ctx, "no-such-id")
	assert.True(t, core.IsNotFound(err))
}

func TestTrackerHistoryAndPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := New(NewInMemoryStore(), func(o *Options) { o.Clock = clock })

	first, err := tr.Begin(ctx, "conv-1", "calendar", "delegation", nil)
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := tr.Begin(ctx, "conv-1", "email", "delegation", nil)
	require.NoError(t, err)
	_, err = tr.Begin(ctx, "conv-2", "research", "delegation", nil)
	require.NoError(t, err)

	history, err := tr.History(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first, history[0].ID)
	assert.Equal(t, second, history[1].ID)

	require.NoError(t, tr.Purge(ctx, "conv-1"))
	history, err = tr.History(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	other, err := tr.History(ctx, "conv-2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
