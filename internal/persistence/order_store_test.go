package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-scheduler/internal/types"
)

func TestOrderStore(t *testing.T) {
	ctx := context.Background()
	s := NewOrderStore()

	a, err := s.Create(ctx, types.Order{TenantID: "t1", ProductID: 1, Quantity: 10, Status: types.OrderDraft})
	require.NoError(t, err)
	b, err := s.Create(ctx, types.Order{TenantID: "t1", ProductID: 1, Quantity: 5, Status: types.OrderDraft})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := s.Get(ctx, "t1", a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10, got.Quantity)

	got, err = s.Get(ctx, "t2", a.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "其他租户不可见")

	require.NoError(t, s.UpdateStatus(ctx, "t1", a.ID, types.OrderConfirmed, true))
	got, _ = s.Get(ctx, "t1", a.ID)
	assert.Equal(t, types.OrderConfirmed, got.Status)
	assert.True(t, got.IsScheduled)

	assert.Error(t, s.UpdateStatus(ctx, "t2", a.ID, types.OrderDraft, false))
}

func TestOrderStore_JournalSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.log")

	s, err := OpenOrderStore(path)
	require.NoError(t, err)
	a, err := s.Create(ctx, types.Order{TenantID: "t1", ProductID: 1, Quantity: 10, Status: types.OrderDraft})
	require.NoError(t, err)
	_, err = s.Create(ctx, types.Order{TenantID: "t1", ProductID: 2, Quantity: 3, Status: types.OrderDraft})
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, "t1", a.ID, types.OrderConfirmed, true))
	require.NoError(t, s.Close())

	reopened, err := OpenOrderStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "t1", a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.OrderConfirmed, got.Status, "以最后一次写入为准")

	c, err := reopened.Create(ctx, types.Order{TenantID: "t1", ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.ID, "ID 在重启后继续递增")
}
