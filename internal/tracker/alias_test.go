package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsualexotake/inseam-sub000/internal/store"
)

func TestRegisterAliasNormalizes(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1"})
	require.NoError(t, err)

	a, err := svc.RegisterAlias(ctx, owner, tr.ID, "  Unit ONE  ", "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "unit one", a.Alias)

	// Lookup is case-insensitive through the same normalization.
	rowID, err := svc.ResolveAlias(ctx, owner, tr.ID, "UNIT one")
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", rowID)
}

func TestRegisterAliasRejectsOwnKey(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1"})
	require.NoError(t, err)

	var malErr *MalformedInputError
	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "sku-1", "SKU-1")
	require.ErrorAs(t, err, &malErr)

	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "   ", "SKU-1")
	require.ErrorAs(t, err, &malErr)
}

func TestRegisterAliasDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1"})
	require.NoError(t, err)
	_, err = svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-2"})
	require.NoError(t, err)

	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "unit one", "SKU-1")
	require.NoError(t, err)

	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "Unit One", "SKU-2")
	require.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestRegisterAliasMissingRow(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	_, err := svc.RegisterAlias(context.Background(), owner, tr.ID, "ghost", "SKU-404")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolveAliasRequiresOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1"})
	require.NoError(t, err)
	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "unit one", "SKU-1")
	require.NoError(t, err)

	var authErr *AuthorizationError
	_, err = svc.ResolveAlias(ctx, stranger, tr.ID, "unit one")
	require.ErrorAs(t, err, &authErr)
}

func TestResolveAliasNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	_, err := svc.ResolveAlias(context.Background(), owner, tr.ID, "nothing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRemoveAlias(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1"})
	require.NoError(t, err)
	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "unit one", "SKU-1")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveAlias(ctx, owner, tr.ID, "Unit One"))

	_, err = svc.ResolveAlias(ctx, owner, tr.ID, "unit one")
	require.ErrorIs(t, err, store.ErrNotFound)
}
