package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// RegisterAlias maps an alternate identifier to an existing row. Aliases are
// trimmed and lowercased before storage, unique per tracker, and may never
// equal the primary key they point at. A duplicate alias returns
// store.ErrDuplicateKey.
func (s *Service) RegisterAlias(ctx context.Context, actor, trackerID, alias, rowID string) (*store.Alias, error) {
	if _, err := s.ownedTracker(ctx, actor, trackerID); err != nil {
		return nil, err
	}

	normalized := normalizeAlias(alias)
	if normalized == "" {
		return nil, &MalformedInputError{Reason: "alias must not be empty"}
	}
	if normalized == strings.ToLower(strings.TrimSpace(rowID)) {
		return nil, &MalformedInputError{Reason: "alias must differ from the row's primary key"}
	}
	if _, err := s.store.GetRow(ctx, trackerID, rowID); err != nil {
		return nil, fmt.Errorf("get row %s: %w", rowID, err)
	}

	a := &store.Alias{
		TrackerID: trackerID,
		Alias:     normalized,
		RowID:     rowID,
		CreatedBy: actor,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAlias(ctx, a); err != nil {
		return nil, fmt.Errorf("create alias %q: %w", normalized, err)
	}
	return a, nil
}

// ResolveAlias returns the row identifier an alias points at, or
// store.ErrNotFound when the alias is not registered. Like the other read
// paths, resolution is scoped to the tracker's owner.
func (s *Service) ResolveAlias(ctx context.Context, actor, trackerID, alias string) (string, error) {
	if _, err := s.ownedTracker(ctx, actor, trackerID); err != nil {
		return "", err
	}
	a, err := s.store.GetAlias(ctx, trackerID, normalizeAlias(alias))
	if err != nil {
		return "", fmt.Errorf("resolve alias %q: %w", alias, err)
	}
	return a.RowID, nil
}

// ListAliases returns all aliases registered on a tracker.
func (s *Service) ListAliases(ctx context.Context, actor, trackerID string) ([]store.Alias, error) {
	if _, err := s.ownedTracker(ctx, actor, trackerID); err != nil {
		return nil, err
	}
	return s.store.ListAliases(ctx, trackerID)
}

// RemoveAlias deletes an alias mapping.
func (s *Service) RemoveAlias(ctx context.Context, actor, trackerID, alias string) error {
	if _, err := s.ownedTracker(ctx, actor, trackerID); err != nil {
		return err
	}
	if err := s.store.DeleteAlias(ctx, trackerID, normalizeAlias(alias)); err != nil {
		return fmt.Errorf("delete alias %q: %w", alias, err)
	}
	return nil
}

// normalizeAlias canonicalizes an alias for storage and lookup.
func normalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}
