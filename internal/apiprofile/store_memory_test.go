package apiprofile

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrlink/internal/linker/models"
	"qrlink/pkg/platform/sentinel"
)

func TestCreateAndGet(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	p := &models.APIProfile{Name: "Desktop", AppID: 2040, AppHash: "hash"}
	require.NoError(t, store.Create(ctx, p))
	assert.NotZero(t, p.ID)
	assert.True(t, p.Active)
	assert.False(t, p.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, *p, got)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCreateDuplicateNameConflicts(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &models.APIProfile{Name: "Desktop", AppID: 1, AppHash: "a"}))
	err := store.Create(ctx, &models.APIProfile{Name: "Desktop", AppID: 2, AppHash: "b"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestListActiveSkipsDeactivated(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	a := &models.APIProfile{Name: "A", AppID: 1, AppHash: "a"}
	b := &models.APIProfile{Name: "B", AppID: 2, AppHash: "b"}
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))
	require.NoError(t, store.Deactivate(ctx, a.ID))

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "B", active[0].Name)
}

func TestDeactivateMissingReturnsNotFound(t *testing.T) {
	store := NewInMemoryStore()
	err := store.Deactivate(context.Background(), 123)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	logger := slog.Default()

	require.NoError(t, Seed(ctx, store, logger))
	first, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, first, len(defaults))

	require.NoError(t, Seed(ctx, store, logger))
	second, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
