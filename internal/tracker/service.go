// Package tracker implements the data engine's business logic: schema-backed
// tracker lifecycle, primary-key row operations, bulk import, cursor
// pagination, alias resolution and proposal reconciliation. All persistence
// goes through the store.Store interface.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hsualexotake/inseam-sub000/internal/config"
	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// Service provides the tracker engine's operations over a store backend.
type Service struct {
	store   store.Store
	engine  config.EngineConfig
	sweeper config.SweeperConfig
	now     func() time.Time
}

// NewService creates a Service using the engine and sweeper settings from cfg.
func NewService(st store.Store, cfg *config.Config) *Service {
	return &Service{
		store:   st,
		engine:  cfg.Engine,
		sweeper: cfg.Sweeper,
		now:     time.Now,
	}
}

// TrackerInput holds the caller-supplied fields for creating a tracker.
type TrackerInput struct {
	Name             string                    `json:"name"`
	Slug             string                    `json:"slug"`
	Columns          []schema.ColumnDefinition `json:"columns"`
	PrimaryKeyColumn string                    `json:"primaryKeyColumn"`
}

// CreateTracker validates the definition and persists a new tracker owned by
// actor. The slug must be unique; a collision returns store.ErrDuplicateKey.
func (s *Service) CreateTracker(ctx context.Context, actor string, input TrackerInput) (*schema.Tracker, error) {
	now := s.now().UTC()
	t := &schema.Tracker{
		ID:               uuid.NewString(),
		UserID:           actor,
		Name:             input.Name,
		Slug:             input.Slug,
		Columns:          input.Columns,
		PrimaryKeyColumn: input.PrimaryKeyColumn,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i := range t.Columns {
		if t.Columns[i].ID == "" {
			t.Columns[i].ID = uuid.NewString()
		}
	}

	if err := t.ValidateDefinition(); err != nil {
		return nil, err
	}
	if err := s.store.CreateTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}
	return t, nil
}

// GetTracker returns the tracker if actor owns it.
func (s *Service) GetTracker(ctx context.Context, actor, trackerID string) (*schema.Tracker, error) {
	return s.ownedTracker(ctx, actor, trackerID)
}

// ListTrackers returns all trackers owned by actor.
func (s *Service) ListTrackers(ctx context.Context, actor string) ([]schema.Tracker, error) {
	return s.store.ListTrackers(ctx, actor)
}

// UpdateTrackerColumns replaces the tracker's column definitions and primary
// key designation. Identity fields (ID, slug, owner) are immutable.
func (s *Service) UpdateTrackerColumns(ctx context.Context, actor, trackerID string, columns []schema.ColumnDefinition, primaryKeyColumn string) (*schema.Tracker, error) {
	t, err := s.ownedTracker(ctx, actor, trackerID)
	if err != nil {
		return nil, err
	}

	t.Columns = columns
	t.PrimaryKeyColumn = primaryKeyColumn
	t.UpdatedAt = s.now().UTC()
	for i := range t.Columns {
		if t.Columns[i].ID == "" {
			t.Columns[i].ID = uuid.NewString()
		}
	}

	if err := t.ValidateDefinition(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateTracker(ctx, t); err != nil {
		return nil, fmt.Errorf("update tracker: %w", err)
	}
	return t, nil
}

// DeleteTracker removes the tracker along with its rows and aliases.
func (s *Service) DeleteTracker(ctx context.Context, actor, trackerID string) error {
	if _, err := s.ownedTracker(ctx, actor, trackerID); err != nil {
		return err
	}
	if err := s.store.DeleteTracker(ctx, trackerID); err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	return nil
}

// ownedTracker loads a tracker and verifies actor is its owner.
func (s *Service) ownedTracker(ctx context.Context, actor, trackerID string) (*schema.Tracker, error) {
	t, err := s.store.GetTracker(ctx, trackerID)
	if err != nil {
		return nil, fmt.Errorf("get tracker %s: %w", trackerID, err)
	}
	if t.UserID != actor {
		return nil, &AuthorizationError{Subject: actor, Resource: "tracker " + trackerID}
	}
	return t, nil
}
