package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// AddRow validates raw against the tracker's schema, derives the primary-key
// string and inserts the row with audit stamps. A missing primary-key value
// yields a ValidationError; an existing key yields store.ErrDuplicateKey.
func (s *Service) AddRow(ctx context.Context, actor, trackerID string, raw map[string]any) (*store.Row, error) {
	t, err := s.ownedTracker(ctx, actor, trackerID)
	if err != nil {
		return nil, err
	}

	res := schema.Validate(t.Columns, raw, s.engine.MaxCellLength)
	if !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	rowID, err := s.primaryKey(t, res.Data)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	row := &store.Row{
		TrackerID: trackerID,
		RowID:     rowID,
		Data:      res.Data,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedBy: actor,
		UpdatedAt: now,
	}
	if err := s.store.InsertRow(ctx, row); err != nil {
		return nil, fmt.Errorf("insert row %s: %w", rowID, err)
	}
	return row, nil
}

// UpdateRow merges partial onto the stored row and re-validates the result.
// A key present in partial with a nil value overwrites to nil; an absent key
// leaves the stored value untouched. Changing the primary-key value renames
// the row; a rename colliding with an existing key returns
// store.ErrDuplicateKey and leaves both rows unchanged.
func (s *Service) UpdateRow(ctx context.Context, actor, trackerID, rowID string, partial map[string]any) (*store.Row, error) {
	t, err := s.ownedTracker(ctx, actor, trackerID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.GetRow(ctx, trackerID, rowID)
	if err != nil {
		return nil, fmt.Errorf("get row %s: %w", rowID, err)
	}

	merged := mergeRecord(existing.Data, partial)
	res := schema.Validate(t.Columns, merged, s.engine.MaxCellLength)
	if !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	newID, err := s.primaryKey(t, res.Data)
	if err != nil {
		return nil, err
	}

	updated := &store.Row{
		TrackerID: trackerID,
		RowID:     newID,
		Data:      res.Data,
		Seq:       existing.Seq,
		CreatedBy: existing.CreatedBy,
		CreatedAt: existing.CreatedAt,
		UpdatedBy: actor,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.UpdateRow(ctx, trackerID, rowID, updated); err != nil {
		return nil, fmt.Errorf("update row %s: %w", rowID, err)
	}
	return updated, nil
}

// DeleteRow removes a single row by its primary key.
func (s *Service) DeleteRow(ctx context.Context, actor, trackerID, rowID string) error {
	if _, err := s.ownedTracker(ctx, actor, trackerID); err != nil {
		return err
	}
	if err := s.store.DeleteRow(ctx, trackerID, rowID); err != nil {
		return fmt.Errorf("delete row %s: %w", rowID, err)
	}
	return nil
}

// mergeRecord overlays partial onto base. Keys present in partial win, even
// when their value is nil; keys absent from partial keep the base value.
func mergeRecord(base, partial map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	return merged
}

// primaryKey derives the row identifier string from a validated record.
func (s *Service) primaryKey(t *schema.Tracker, data map[string]any) (string, error) {
	col, ok := t.PrimaryColumn()
	if !ok {
		return "", fmt.Errorf("tracker %s has no primary key column", t.ID)
	}
	v, ok := data[col.Key]
	if !ok || v == nil {
		return "", &ValidationError{Errors: []schema.FieldError{{
			Key:     col.Key,
			Message: "primary key value is required",
		}}}
	}
	key := keyString(v)
	if key == "" {
		return "", &ValidationError{Errors: []schema.FieldError{{
			Key:     col.Key,
			Value:   v,
			Message: "primary key value is required",
		}}}
	}
	return key, nil
}

// keyString renders a canonical cell value as a primary-key string.
func keyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
