// Package memory provides an in-memory Store implementation. It backs the
// engine's unit tests and local runs without Postgres. All operations are
// safe for concurrent use; the mutex is held across every check-then-write
// pair, which is what makes InsertRow's uniqueness check atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
)

type rowKey struct {
	trackerID string
	rowID     string
}

type aliasKey struct {
	trackerID string
	alias     string
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	trackers map[string]*schema.Tracker
	slugs    map[string]string // slug -> tracker ID
	rows     map[rowKey]*store.Row
	updates  map[string]*store.Update
	aliases  map[aliasKey]*store.Alias
	nextSeq  int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		trackers: make(map[string]*schema.Tracker),
		slugs:    make(map[string]string),
		rows:     make(map[rowKey]*store.Row),
		updates:  make(map[string]*store.Update),
		aliases:  make(map[aliasKey]*store.Alias),
	}
}

var _ store.Store = (*Store)(nil)

// ----------------------------------------------------------------------------
// Trackers
// ----------------------------------------------------------------------------

func (s *Store) CreateTracker(_ context.Context, t *schema.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trackers[t.ID]; exists {
		return store.ErrDuplicateKey
	}
	if _, exists := s.slugs[t.Slug]; exists {
		return store.ErrDuplicateKey
	}
	cp := cloneTracker(t)
	s.trackers[t.ID] = cp
	s.slugs[t.Slug] = t.ID
	return nil
}

func (s *Store) GetTracker(_ context.Context, id string) (*schema.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trackers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTracker(t), nil
}

func (s *Store) GetTrackerBySlug(_ context.Context, slug string) (*schema.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.slugs[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTracker(s.trackers[id]), nil
}

func (s *Store) ListTrackers(_ context.Context, userID string) ([]schema.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []schema.Tracker
	for _, t := range s.trackers {
		if userID == "" || t.UserID == userID {
			out = append(out, *cloneTracker(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) UpdateTracker(_ context.Context, t *schema.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.trackers[t.ID]
	if !ok {
		return store.ErrNotFound
	}
	if t.Slug != old.Slug {
		if _, taken := s.slugs[t.Slug]; taken {
			return store.ErrDuplicateKey
		}
		delete(s.slugs, old.Slug)
		s.slugs[t.Slug] = t.ID
	}
	s.trackers[t.ID] = cloneTracker(t)
	return nil
}

func (s *Store) DeleteTracker(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trackers[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.trackers, id)
	delete(s.slugs, t.Slug)
	for k := range s.rows {
		if k.trackerID == id {
			delete(s.rows, k)
		}
	}
	for k := range s.aliases {
		if k.trackerID == id {
			delete(s.aliases, k)
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Rows
// ----------------------------------------------------------------------------

func (s *Store) InsertRow(_ context.Context, row *store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{row.TrackerID, row.RowID}
	if _, exists := s.rows[key]; exists {
		return store.ErrDuplicateKey
	}
	s.nextSeq++
	cp := cloneRow(row)
	cp.Seq = s.nextSeq
	s.rows[key] = cp
	row.Seq = cp.Seq
	return nil
}

func (s *Store) GetRow(_ context.Context, trackerID, rowID string) (*store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rows[rowKey{trackerID, rowID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRow(r), nil
}

func (s *Store) UpdateRow(_ context.Context, trackerID, rowID string, row *store.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{trackerID, rowID}
	old, ok := s.rows[key]
	if !ok {
		return store.ErrNotFound
	}

	if row.RowID != rowID {
		// Primary-key rename: the new key must be free.
		if _, taken := s.rows[rowKey{trackerID, row.RowID}]; taken {
			return store.ErrDuplicateKey
		}
		delete(s.rows, key)
	}
	cp := cloneRow(row)
	cp.Seq = old.Seq // renames keep their insertion-order position
	s.rows[rowKey{trackerID, row.RowID}] = cp
	return nil
}

func (s *Store) DeleteRow(_ context.Context, trackerID, rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{trackerID, rowID}
	if _, ok := s.rows[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.rows, key)
	return nil
}

func (s *Store) DeleteAllRows(_ context.Context, trackerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k := range s.rows {
		if k.trackerID == trackerID {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) CountRows(_ context.Context, trackerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.rows {
		if k.trackerID == trackerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRows(_ context.Context, trackerID string, afterSeq int64, limit int) ([]store.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Row
	for k, r := range s.rows {
		if k.trackerID == trackerID && r.Seq > afterSeq {
			out = append(out, *cloneRow(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// Updates
// ----------------------------------------------------------------------------

func (s *Store) CreateUpdate(_ context.Context, u *store.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.updates[u.ID]; exists {
		return store.ErrDuplicateKey
	}
	s.updates[u.ID] = cloneUpdate(u)
	return nil
}

func (s *Store) GetUpdate(_ context.Context, id string) (*store.Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.updates[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneUpdate(u), nil
}

func (s *Store) MarkProcessed(_ context.Context, id string, approved bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.updates[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if u.Processed {
		return false, nil
	}
	u.Processed = true
	u.Approved = approved
	u.Rejected = !approved
	t := at
	u.ProcessedAt = &t
	return true, nil
}

func (s *Store) ArchiveUpdate(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.updates[id]
	if !ok {
		return store.ErrNotFound
	}
	t := at
	u.ArchivedAt = &t
	return nil
}

func (s *Store) ArchiveProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for _, u := range s.updates {
		if u.Processed && u.ArchivedAt == nil && u.ProcessedAt != nil && u.ProcessedAt.Before(cutoff) {
			t := now
			u.ArchivedAt = &t
			n++
		}
	}
	return n, nil
}

// ----------------------------------------------------------------------------
// Aliases
// ----------------------------------------------------------------------------

func (s *Store) CreateAlias(_ context.Context, a *store.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aliasKey{a.TrackerID, a.Alias}
	if _, exists := s.aliases[key]; exists {
		return store.ErrDuplicateKey
	}
	cp := *a
	s.aliases[key] = &cp
	return nil
}

func (s *Store) GetAlias(_ context.Context, trackerID, alias string) (*store.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.aliases[aliasKey{trackerID, alias}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAliases(_ context.Context, trackerID string) ([]store.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Alias
	for k, a := range s.aliases {
		if k.trackerID == trackerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (s *Store) DeleteAlias(_ context.Context, trackerID, alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aliasKey{trackerID, alias}
	if _, ok := s.aliases[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.aliases, key)
	return nil
}

// ----------------------------------------------------------------------------
// Deep copies: callers must never share map memory with the store.
// ----------------------------------------------------------------------------

func cloneTracker(t *schema.Tracker) *schema.Tracker {
	cp := *t
	cp.Columns = make([]schema.ColumnDefinition, len(t.Columns))
	copy(cp.Columns, t.Columns)
	for i, col := range cp.Columns {
		if col.Options != nil {
			opts := make([]string, len(col.Options))
			copy(opts, col.Options)
			cp.Columns[i].Options = opts
		}
	}
	return &cp
}

func cloneRow(r *store.Row) *store.Row {
	cp := *r
	cp.Data = make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		cp.Data[k] = v
	}
	return &cp
}

func cloneUpdate(u *store.Update) *store.Update {
	cp := *u
	cp.Proposals = make([]store.Proposal, len(u.Proposals))
	copy(cp.Proposals, u.Proposals)
	for i, p := range cp.Proposals {
		updates := make([]store.ColumnUpdate, len(p.ColumnUpdates))
		copy(updates, p.ColumnUpdates)
		cp.Proposals[i].ColumnUpdates = updates
	}
	if u.ArchivedAt != nil {
		t := *u.ArchivedAt
		cp.ArchivedAt = &t
	}
	if u.ProcessedAt != nil {
		t := *u.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}
