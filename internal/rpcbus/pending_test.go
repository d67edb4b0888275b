package rpcbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTableRegisterAndTryRemove(t *testing.T) {
	table := &PendingTable{}

	var got any
	table.Register("corr-1", ResponseAction{
		OnSuccess: func(value any, _ map[string]any) { got = value },
	})

	action, ok := table.TryRemove("corr-1")
	require.True(t, ok)
	action.OnSuccess("hello", nil)
	assert.Equal(t, "hello", got)
}

func TestPendingTableTryRemoveIsIdempotent(t *testing.T) {
	table := &PendingTable{}
	table.Register("corr-1", ResponseAction{OnSuccess: func(any, map[string]any) {}})

	_, ok := table.TryRemove("corr-1")
	require.True(t, ok)

	_, ok = table.TryRemove("corr-1")
	assert.False(t, ok, "a second TryRemove for the same correlation id must miss")
}

func TestPendingTableTryRemoveUnknownIDMisses(t *testing.T) {
	table := &PendingTable{}
	_, ok := table.TryRemove("never-registered")
	assert.False(t, ok)
}

func TestPendingTableSnapshotAndClearDrains(t *testing.T) {
	table := &PendingTable{}
	table.Register("a", ResponseAction{OnFailure: func(error) {}})
	table.Register("b", ResponseAction{OnFailure: func(error) {}})

	actions := table.SnapshotAndClear()
	assert.Len(t, actions, 2)
	assert.Equal(t, 0, table.Len())

	_, ok := table.TryRemove("a")
	assert.False(t, ok)
}
