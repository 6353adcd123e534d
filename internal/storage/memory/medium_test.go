package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prairie_track/internal/domain"
)

func TestMedium(t *testing.T) {
	ctx := context.Background()
	m := New()

	require.NoError(t, m.Set(ctx, "p-b", "2"))
	require.NoError(t, m.Set(ctx, "p-a", "1"))
	require.NoError(t, m.Set(ctx, "other", "x"))

	keys, err := m.Keys(ctx, "p-")
	require.NoError(t, err)
	assert.Equal(t, []string{"p-a", "p-b"}, keys)

	v, err := m.Get(ctx, "p-a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, m.DeleteBatch(ctx, keys))
	assert.Equal(t, 1, m.Len())
}
