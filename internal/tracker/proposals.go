package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hsualexotake/inseam-sub000/internal/logging"
	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// ErrAlreadyProcessed indicates an update's approve/reject decision was
// already recorded; decisions are terminal and set at most once.
var ErrAlreadyProcessed = errors.New("update already processed")

// EditedProposal carries the caller's adjustments to one proposal before it
// is applied. ProposalIndex addresses the proposal within its update.
// ColumnRemap redirects a proposed column key to another column; remapping a
// key to the empty string drops that column edit. Values overrides proposed
// values, keyed by the final (post-remap) column key.
type EditedProposal struct {
	ProposalIndex int               `json:"proposalIndex"`
	ColumnRemap   map[string]string `json:"columnRemap,omitempty"`
	Values        map[string]any    `json:"values,omitempty"`
}

// ProposalResult is the independent outcome of applying one proposal.
type ProposalResult struct {
	Index   int    `json:"index"`
	RowID   string `json:"rowId,omitempty"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// ApplyProposals applies every proposal of an update to the row store, then
// marks the update approved. The ownership check runs first; a mismatch
// aborts with no side effects. Each proposal's outcome is captured
// independently and one proposal's failure never blocks the others. The
// update is marked processed=true, approved=true regardless of per-proposal
// failures: approval records the caller's intent, the results record what
// actually happened.
func (s *Service) ApplyProposals(ctx context.Context, actor, updateID string, edits []EditedProposal) ([]ProposalResult, error) {
	u, err := s.ownedUpdate(ctx, actor, updateID)
	if err != nil {
		return nil, err
	}
	if u.Processed {
		return nil, ErrAlreadyProcessed
	}

	editByIndex := make(map[int]EditedProposal, len(edits))
	for _, e := range edits {
		editByIndex[e.ProposalIndex] = e
	}

	results := make([]ProposalResult, len(u.Proposals))
	for i, p := range u.Proposals {
		edit, hasEdit := editByIndex[i]
		results[i] = ProposalResult{Index: i}
		rowID, err := s.applyOne(ctx, actor, p, edit, hasEdit)
		results[i].RowID = rowID
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Applied = true
	}

	ok, err := s.store.MarkProcessed(ctx, updateID, true, s.now().UTC())
	if err != nil {
		return results, fmt.Errorf("mark update %s processed: %w", updateID, err)
	}
	if !ok {
		// A concurrent decision won; row mutations above stand (last write
		// wins at the row layer).
		logging.WithFields(ctx, "update_id", updateID).Warn("update decision lost race")
	}
	return results, nil
}

// applyOne resolves one proposal's target row, applies edits and upserts.
func (s *Service) applyOne(ctx context.Context, actor string, p store.Proposal, edit EditedProposal, hasEdit bool) (string, error) {
	t, err := s.store.GetTracker(ctx, p.TrackerID)
	if err != nil {
		return "", fmt.Errorf("get tracker %s: %w", p.TrackerID, err)
	}
	if t.UserID != actor {
		return "", &AuthorizationError{Subject: actor, Resource: "tracker " + p.TrackerID}
	}

	record := proposalRecord(p, edit, hasEdit)

	if p.IsNewRow {
		res := schema.Validate(t.Columns, record, s.engine.MaxCellLength)
		if !res.Valid {
			return "", &ValidationError{Errors: res.Errors}
		}
		rowID, err := s.primaryKey(t, res.Data)
		if err != nil {
			return "", err
		}
		now := s.now().UTC()
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
			return rowID, err
		}
		return rowID, nil
	}

	rowID := p.RowID
	if rowID == "" && p.Alias != "" {
		rowID, err = s.ResolveAlias(ctx, actor, p.TrackerID, p.Alias)
		if err != nil {
			return "", err
		}
	}
	if rowID == "" {
		return "", &MalformedInputError{Reason: "proposal targets no row"}
	}

	existing, err := s.store.GetRow(ctx, t.ID, rowID)
	if err != nil {
		return rowID, fmt.Errorf("get row %s: %w", rowID, err)
	}
	merged := mergeRecord(existing.Data, record)
	res := schema.Validate(t.Columns, merged, s.engine.MaxCellLength)
	if !res.Valid {
		return rowID, &ValidationError{Errors: res.Errors}
	}
	newID, err := s.primaryKey(t, res.Data)
	if err != nil {
		return rowID, err
	}
	updated := &store.Row{
		TrackerID: t.ID,
		RowID:     newID,
		Data:      res.Data,
		Seq:       existing.Seq,
		CreatedBy: existing.CreatedBy,
		CreatedAt: existing.CreatedAt,
		UpdatedBy: actor,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.store.UpdateRow(ctx, t.ID, rowID, updated); err != nil {
		return rowID, err
	}
	return newID, nil
}

// proposalRecord builds the record a proposal writes, after remapping and
// value overrides.
func proposalRecord(p store.Proposal, edit EditedProposal, hasEdit bool) map[string]any {
	record := make(map[string]any, len(p.ColumnUpdates))
	for _, cu := range p.ColumnUpdates {
		key := cu.ColumnKey
		if hasEdit {
			if remapped, ok := edit.ColumnRemap[key]; ok {
				if remapped == "" {
					continue
				}
				key = remapped
			}
		}
		record[key] = cu.ProposedValue
	}
	if hasEdit {
		for key, v := range edit.Values {
			if _, ok := record[key]; ok {
				record[key] = v
			}
		}
	}
	return record
}

// RejectProposals marks an update rejected without touching any rows. It is
// an idempotent no-op when the update was already processed.
func (s *Service) RejectProposals(ctx context.Context, actor, updateID string) error {
	u, err := s.ownedUpdate(ctx, actor, updateID)
	if err != nil {
		return err
	}
	if u.Processed {
		return nil
	}
	if _, err := s.store.MarkProcessed(ctx, updateID, false, s.now().UTC()); err != nil {
		return fmt.Errorf("mark update %s rejected: %w", updateID, err)
	}
	return nil
}

// ArchiveUpdate stamps ArchivedAt on an update, dismissing it without a
// decision. The approve/reject state is untouched.
func (s *Service) ArchiveUpdate(ctx context.Context, actor, updateID string) error {
	if _, err := s.ownedUpdate(ctx, actor, updateID); err != nil {
		return err
	}
	if err := s.store.ArchiveUpdate(ctx, updateID, s.now().UTC()); err != nil {
		return fmt.Errorf("archive update %s: %w", updateID, err)
	}
	return nil
}

// GetUpdate returns an update if actor owns it.
func (s *Service) GetUpdate(ctx context.Context, actor, updateID string) (*store.Update, error) {
	return s.ownedUpdate(ctx, actor, updateID)
}

// ownedUpdate loads an update and verifies actor is its owner.
func (s *Service) ownedUpdate(ctx context.Context, actor, updateID string) (*store.Update, error) {
	u, err := s.store.GetUpdate(ctx, updateID)
	if err != nil {
		return nil, fmt.Errorf("get update %s: %w", updateID, err)
	}
	if u.UserID != actor {
		return nil, &AuthorizationError{Subject: actor, Resource: "update " + updateID}
	}
	return u, nil
}
