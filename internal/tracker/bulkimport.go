package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hsualexotake/inseam-sub000/internal/csv"
	"github.com/hsualexotake/inseam-sub000/internal/logging"
	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// ImportMode selects how a bulk import treats existing rows.
type ImportMode string

const (
	// ModeAppend inserts every row; an existing key is a per-row failure.
	ModeAppend ImportMode = "append"
	// ModeUpdate patches rows whose key exists and inserts the rest.
	ModeUpdate ImportMode = "update"
	// ModeReplace deletes all existing rows first, then appends.
	ModeReplace ImportMode = "replace"
)

// Valid reports whether m is a recognized import mode.
func (m ImportMode) Valid() bool {
	switch m {
	case ModeAppend, ModeUpdate, ModeReplace:
		return true
	}
	return false
}

// RowFailure records why one row of a batch was not imported. Index is the
// row's zero-based position in the input.
type RowFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Summary reports the outcome of a bulk import.
type Summary struct {
	Imported int          `json:"imported"`
	Updated  int          `json:"updated"`
	Failed   []RowFailure `json:"failed,omitempty"`
}

// BulkImport validates and imports rows in their input order. Per-row
// failures (validation, duplicate key) are captured in the Summary and never
// abort the batch. Batch size and per-cell text length ceilings are checked
// up front; exceeding either rejects the whole batch before any row is
// touched. A later row reusing an earlier row's key in append mode fails;
// the batch does not self-deduplicate.
func (s *Service) BulkImport(ctx context.Context, actor, trackerID string, rows []map[string]any, mode ImportMode) (*Summary, error) {
	t, err := s.ownedTracker(ctx, actor, trackerID)
	if err != nil {
		return nil, err
	}
	return s.runBatch(ctx, actor, t, rows, mode)
}

// ImportCSV parses delimited text, maps its headers onto the tracker's
// columns and imports the result as a bulk batch.
func (s *Service) ImportCSV(ctx context.Context, actor, trackerID, text string, mode ImportMode) (*Summary, error) {
	if int64(len(text)) > s.engine.MaxCSVBytes {
		return nil, &SizeLimitError{What: "csv bytes", Limit: s.engine.MaxCSVBytes, Actual: int64(len(text))}
	}
	t, err := s.ownedTracker(ctx, actor, trackerID)
	if err != nil {
		return nil, err
	}

	doc, err := csv.Parse(text)
	if err != nil {
		return nil, &MalformedInputError{Reason: "csv: " + err.Error()}
	}
	records := csv.MapToRecords(doc.Headers, doc.Rows, t.Columns)
	return s.runBatch(ctx, actor, t, records, mode)
}

// runBatch applies the batch preflights and processes rows sequentially.
func (s *Service) runBatch(ctx context.Context, actor string, t *schema.Tracker, rows []map[string]any, mode ImportMode) (*Summary, error) {
	if !mode.Valid() {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("unknown import mode %q", mode)}
	}
	if len(rows) > s.engine.MaxBatchRows {
		return nil, &SizeLimitError{What: "batch rows", Limit: int64(s.engine.MaxBatchRows), Actual: int64(len(rows))}
	}
	for _, row := range rows {
		for _, v := range row {
			if str, ok := v.(string); ok && len(str) > s.engine.MaxCellLength {
				return nil, &SizeLimitError{What: "cell text", Limit: int64(s.engine.MaxCellLength), Actual: int64(len(str))}
			}
		}
	}

	if mode == ModeReplace {
		if _, err := s.store.DeleteAllRows(ctx, t.ID); err != nil {
			return nil, fmt.Errorf("clear rows: %w", err)
		}
	}

	summary := &Summary{}
	for i, raw := range rows {
		if err := s.importOne(ctx, actor, t, raw, mode, summary); err != nil {
			summary.Failed = append(summary.Failed, RowFailure{Index: i, Error: err.Error()})
		}
	}

	logging.ForTracker(ctx, t.ID).Info("bulk import completed",
		"mode", string(mode),
		"imported", summary.Imported,
		"updated", summary.Updated,
		"failed", len(summary.Failed),
	)
	return summary, nil
}

// importOne processes a single batch row, updating the summary counters on
// success and returning the per-row failure otherwise.
func (s *Service) importOne(ctx context.Context, actor string, t *schema.Tracker, raw map[string]any, mode ImportMode, summary *Summary) error {
	res := schema.Validate(t.Columns, raw, s.engine.MaxCellLength)
	if !res.Valid {
		return &ValidationError{Errors: res.Errors}
	}
	rowID, err := s.primaryKey(t, res.Data)
	if err != nil {
		return err
	}

	now := s.now().UTC()

	if mode == ModeUpdate {
		existing, err := s.store.GetRow(ctx, t.ID, rowID)
		switch {
		case err == nil:
			patched := &store.Row{
				TrackerID: t.ID,
				RowID:     rowID,
				Data:      mergeRecord(existing.Data, res.Data),
				Seq:       existing.Seq,
				CreatedBy: existing.CreatedBy,
				CreatedAt: existing.CreatedAt,
				UpdatedBy: actor,
				UpdatedAt: now,
			}
			if err := s.store.UpdateRow(ctx, t.ID, rowID, patched); err != nil {
				return err
			}
			summary.Updated++
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		// Not found falls through to insert (upsert semantics).
	}

	row := &store.Row{
		TrackerID: t.ID,
		RowID:     rowID,
		Data:      res.Data,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedBy: actor,
		UpdatedAt: now,
	}
	if err := s.store.InsertRow(ctx, row); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return fmt.Errorf("row %q: %w", rowID, store.ErrDuplicateKey)
		}
		return err
	}
	summary.Imported++
	return nil
}
