package memory

import (
	"context"
	"testing"

	"assist/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceCountsConnections(t *testing.T) {
	ctx := context.Background()
	p := NewPresenceStore()

	n, err := p.MarkOnline(ctx, "K1", domain.RoleVisitor, "v1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, _ = p.MarkOnline(ctx, "K1", domain.RoleVisitor, "v1")
	assert.EqualValues(t, 2, n)
	_, _ = p.MarkOnline(ctx, "K2", domain.RoleVisitor, "v9")

	ids, err := p.Online(ctx, "K1", domain.RoleVisitor)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, ids)

	n, _ = p.MarkOffline(ctx, "K1", domain.RoleVisitor, "v1")
	assert.EqualValues(t, 1, n)
	n, _ = p.MarkOffline(ctx, "K1", domain.RoleVisitor, "v1")
	assert.EqualValues(t, 0, n)

	ids, _ = p.Online(ctx, "K1", domain.RoleVisitor)
	assert.Empty(t, ids)
	ids, _ = p.Online(ctx, "K1", domain.RoleUser)
	assert.Empty(t, ids)
}

func TestPresenceOfflineWithoutOnline(t *testing.T) {
	n, err := NewPresenceStore().MarkOffline(context.Background(), "K1", domain.RoleUser, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}
