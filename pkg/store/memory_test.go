package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_VersionCountsWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	assert.Zero(t, m.Version("r1"))

	require.NoError(t, m.PutActions(ctx, "r1", action("1", "", "t")))
	require.NoError(t, m.PutActions(ctx, "r1"))
	require.NoError(t, m.RemoveAction(ctx, "r1", "1"))
	assert.Equal(t, uint64(2), m.Version("r1"))
}

func TestMemory_SubscriberCanReadStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var seen int
	unsub := m.Subscribe("r1", func(snap Snapshot) {
		// callbacks run outside the store lock
		got, err := m.GetActions(ctx, "r1")
		require.NoError(t, err)
		seen = len(got)
	})
	defer unsub()

	require.NoError(t, m.PutActions(ctx, "r1", action("1", "", "t"), action("2", "1", "t")))
	assert.Equal(t, 2, seen)
}
