package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsim/internal/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Action{ID: "1", AgentID: "shopper"}))
	require.NoError(t, s.Append(ctx, audit.Action{ID: "2", AgentID: "payer"}))
	require.NoError(t, s.Append(ctx, audit.Action{ID: "3", AgentID: "shopper"}))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "3", all[2].ID)

	all[0].ID = "mutated"
	again, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", again[0].ID)

	shopper, err := s.ListByAgent(ctx, "shopper")
	require.NoError(t, err)
	assert.Len(t, shopper, 2)

	require.NoError(t, s.Clear(ctx))
	all, err = s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
