package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsim/internal/audit"
)

func TestStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	runA, err := New(db, "run-a")
	require.NoError(t, err)
	runB, err := New(db, "run-b")
	require.NoError(t, err)

	recorded := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, runA.Append(ctx, audit.Action{
		ID:          "act-1",
		AgentID:     "shopper",
		Type:        audit.ActionEvaluate,
		Description: "Evaluating product: Kaya Spread at $6.8",
		Data:        map[string]any{"price": 6.8, "product": "prod-3"},
		Timestamp:   15000,
		RecordedAt:  recorded,
	}))
	require.NoError(t, runA.Append(ctx, audit.Action{
		ID:          "act-2",
		AgentID:     "other",
		Type:        audit.ActionExecute,
		Description: "Completed purchase",
		Timestamp:   15000,
		RecordedAt:  recorded,
	}))
	require.NoError(t, runB.Append(ctx, audit.Action{ID: "act-3", AgentID: "shopper", Type: audit.ActionWait, RecordedAt: recorded}))

	all, err := runA.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2, "runs are isolated from each other")
	assert.Equal(t, "act-1", all[0].ID)
	assert.Equal(t, audit.ActionEvaluate, all[0].Type)
	assert.Equal(t, int64(15000), all[0].Timestamp)
	assert.Equal(t, recorded, all[0].RecordedAt)
	assert.Equal(t, 6.8, all[0].Data["price"])
	assert.Nil(t, all[1].Data)

	byAgent, err := runA.ListByAgent(ctx, "shopper")
	require.NoError(t, err)
	require.Len(t, byAgent, 1)

	require.NoError(t, runA.Clear(ctx))
	all, err = runA.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	other, err := runB.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, other, 1, "clearing one run keeps the others")
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(nil, "run")
	assert.ErrorContains(t, err, "db is required")

	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = New(db, "")
	assert.ErrorContains(t, err, "run id is required")
}
