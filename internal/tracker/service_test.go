package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsualexotake/inseam-sub000/internal/config"
	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
	"github.com/hsualexotake/inseam-sub000/internal/store/memory"
)

const (
	owner    = "user-1"
	stranger = "user-2"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	cfg := &config.Config{
		Engine: config.EngineConfig{
			MaxBatchRows:    100,
			MaxCellLength:   100,
			MaxCSVBytes:     4096,
			DefaultPageSize: 10,
			MaxPageSize:     50,
		},
		Sweeper: config.SweeperConfig{
			Enabled:       true,
			Retention:     time.Hour,
			CheckInterval: time.Minute,
		},
	}
	st := memory.New()
	return NewService(st, cfg), st
}

func seedTracker(t *testing.T, svc *Service) *schema.Tracker {
	t.Helper()
	tr, err := svc.CreateTracker(context.Background(), owner, TrackerInput{
		Name: "Shipments",
		Slug: "shipments",
		Columns: []schema.ColumnDefinition{
			{Key: "sku", Name: "SKU", Type: schema.KindText, Required: true, Order: 0},
			{Key: "qty", Name: "Quantity", Type: schema.KindNumber, Order: 1},
			{Key: "status", Name: "Status", Type: schema.KindSelect, Options: []string{"pending", "shipped"}, Order: 2},
			{Key: "urgent", Name: "Urgent", Type: schema.KindBoolean, Order: 3},
		},
		PrimaryKeyColumn: "sku",
	})
	require.NoError(t, err)
	return tr
}

func TestCreateTracker(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, owner, tr.UserID)
	assert.True(t, tr.IsActive)
	for _, col := range tr.Columns {
		assert.NotEmpty(t, col.ID)
	}

	got, err := svc.GetTracker(context.Background(), owner, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Slug, got.Slug)
}

func TestCreateTrackerDuplicateSlug(t *testing.T) {
	svc, _ := newTestService(t)
	seedTracker(t, svc)

	_, err := svc.CreateTracker(context.Background(), owner, TrackerInput{
		Name: "Other",
		Slug: "shipments",
		Columns: []schema.ColumnDefinition{
			{Key: "id", Name: "ID", Type: schema.KindText, Required: true},
		},
		PrimaryKeyColumn: "id",
	})
	require.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestCreateTrackerInvalidDefinition(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTracker(context.Background(), owner, TrackerInput{
		Name:             "Broken",
		Slug:             "broken",
		Columns:          nil,
		PrimaryKeyColumn: "missing",
	})
	require.Error(t, err)
}

func TestGetTrackerOwnershipEnforced(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	_, err := svc.GetTracker(context.Background(), stranger, tr.ID)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestListTrackers(t *testing.T) {
	svc, _ := newTestService(t)
	seedTracker(t, svc)

	mine, err := svc.ListTrackers(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := svc.ListTrackers(context.Background(), stranger)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestUpdateTrackerColumns(t *testing.T) {
	svc, _ := newTestService(t)
	tr := seedTracker(t, svc)

	cols := append([]schema.ColumnDefinition{}, tr.Columns...)
	cols = append(cols, schema.ColumnDefinition{Key: "carrier", Name: "Carrier", Type: schema.KindText, Order: 4})

	updated, err := svc.UpdateTrackerColumns(context.Background(), owner, tr.ID, cols, "sku")
	require.NoError(t, err)
	assert.Len(t, updated.Columns, 5)
	assert.Equal(t, tr.Slug, updated.Slug, "identity fields stay immutable")
}

func TestDeleteTrackerCascades(t *testing.T) {
	svc, st := newTestService(t)
	tr := seedTracker(t, svc)
	ctx := context.Background()

	_, err := svc.AddRow(ctx, owner, tr.ID, map[string]any{"sku": "SKU-1"})
	require.NoError(t, err)
	_, err = svc.RegisterAlias(ctx, owner, tr.ID, "Unit One", "SKU-1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTracker(ctx, owner, tr.ID))

	_, err = st.GetRow(ctx, tr.ID, "SKU-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetAlias(ctx, tr.ID, "unit one")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
