// Package postgres implements the tracker store on PostgreSQL via pgx.
//
// Row data lives in a JSONB column keyed by a composite primary key
// (tracker_id, row_id), so primary-key uniqueness is enforced by the
// database rather than by a read-then-write check in application code. A
// bigserial seq column fixes insertion order for cursor pagination.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// Store is a PostgreSQL-backed implementation of store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on the given connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

// Migrate creates the engine's tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trackers (
			id                 text PRIMARY KEY,
			user_id            text NOT NULL,
			name               text NOT NULL,
			slug               text NOT NULL UNIQUE,
			columns            jsonb NOT NULL,
			primary_key_column text NOT NULL,
			is_active          boolean NOT NULL DEFAULT true,
			created_at         timestamptz NOT NULL,
			updated_at         timestamptz NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tracker_rows (
			tracker_id text NOT NULL,
			row_id     text NOT NULL,
			data       jsonb NOT NULL,
			seq        bigserial,
			created_by text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL,
			updated_by text NOT NULL DEFAULT '',
			updated_at timestamptz NOT NULL,
			PRIMARY KEY (tracker_id, row_id)
		)`,
		`CREATE INDEX IF NOT EXISTS tracker_rows_seq_idx ON tracker_rows (tracker_id, seq)`,
		`CREATE TABLE IF NOT EXISTS tracker_updates (
			id           text PRIMARY KEY,
			user_id      text NOT NULL,
			tracker_id   text NOT NULL,
			source_id    text NOT NULL DEFAULT '',
			proposals    jsonb NOT NULL,
			processed    boolean NOT NULL DEFAULT false,
			approved     boolean NOT NULL DEFAULT false,
			rejected     boolean NOT NULL DEFAULT false,
			archived_at  timestamptz,
			created_at   timestamptz NOT NULL,
			processed_at timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS tracker_updates_sweep_idx
			ON tracker_updates (processed_at) WHERE processed AND archived_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS tracker_aliases (
			tracker_id text NOT NULL,
			alias      text NOT NULL,
			row_id     text NOT NULL,
			created_by text NOT NULL DEFAULT '',
			created_at timestamptz NOT NULL,
			PRIMARY KEY (tracker_id, alias)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// mapErr converts pgx errors into the store taxonomy.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrDuplicateKey
	}
	return err
}

// ----------------------------------------------------------------------------
// Trackers
// ----------------------------------------------------------------------------

func (s *Store) CreateTracker(ctx context.Context, t *schema.Tracker) error {
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO trackers (id, user_id, name, slug, columns, primary_key_column, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.Name, t.Slug, cols, t.PrimaryKeyColumn, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tracker: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetTracker(ctx context.Context, id string) (*schema.Tracker, error) {
	return s.scanTracker(s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, slug, columns, primary_key_column, is_active, created_at, updated_at
		 FROM trackers WHERE id = $1`, id))
}

func (s *Store) GetTrackerBySlug(ctx context.Context, slug string) (*schema.Tracker, error) {
	return s.scanTracker(s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, slug, columns, primary_key_column, is_active, created_at, updated_at
		 FROM trackers WHERE slug = $1`, slug))
}

func (s *Store) scanTracker(row pgx.Row) (*schema.Tracker, error) {
	var t schema.Tracker
	var cols []byte
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Slug, &cols, &t.PrimaryKeyColumn, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(cols, &t.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	return &t, nil
}

func (s *Store) ListTrackers(ctx context.Context, userID string) ([]schema.Tracker, error) {
	query := `SELECT id, user_id, name, slug, columns, primary_key_column, is_active, created_at, updated_at
		 FROM trackers`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY slug`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	defer rows.Close()

	var out []schema.Tracker
	for rows.Next() {
		var t schema.Tracker
		var cols []byte
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Slug, &cols, &t.PrimaryKeyColumn, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		if err := json.Unmarshal(cols, &t.Columns); err != nil {
			return nil, fmt.Errorf("unmarshal columns: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTracker(ctx context.Context, t *schema.Tracker) error {
	cols, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE trackers SET name = $2, slug = $3, columns = $4, primary_key_column = $5, is_active = $6, updated_at = $7
		 WHERE id = $1`,
		t.ID, t.Name, t.Slug, cols, t.PrimaryKeyColumn, t.IsActive, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update tracker: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTracker(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM trackers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tracker_rows WHERE tracker_id = $1`, id); err != nil {
		return fmt.Errorf("cascade rows: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tracker_aliases WHERE tracker_id = $1`, id); err != nil {
		return fmt.Errorf("cascade aliases: %w", err)
	}
	return tx.Commit(ctx)
}

// ----------------------------------------------------------------------------
// Rows
// ----------------------------------------------------------------------------

func (s *Store) InsertRow(ctx context.Context, row *store.Row) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("marshal row data: %w", err)
	}
	// The composite primary key makes the existence check and insert one
	// atomic unit; concurrent inserts of the same key race at the database
	// and exactly one wins.
	err = s.pool.QueryRow(ctx,
		`INSERT INTO tracker_rows (tracker_id, row_id, data, created_by, created_at, updated_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING seq`,
		row.TrackerID, row.RowID, data, row.CreatedBy, row.CreatedAt, row.UpdatedBy, row.UpdatedAt,
	).Scan(&row.Seq)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *Store) GetRow(ctx context.Context, trackerID, rowID string) (*store.Row, error) {
	var r store.Row
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT tracker_id, row_id, data, seq, created_by, created_at, updated_by, updated_at
		 FROM tracker_rows WHERE tracker_id = $1 AND row_id = $2`,
		trackerID, rowID,
	).Scan(&r.TrackerID, &r.RowID, &data, &r.Seq, &r.CreatedBy, &r.CreatedAt, &r.UpdatedBy, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(data, &r.Data); err != nil {
		return nil, fmt.Errorf("unmarshal row data: %w", err)
	}
	return &r, nil
}

func (s *Store) UpdateRow(ctx context.Context, trackerID, rowID string, row *store.Row) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("marshal row data: %w", err)
	}
	// Renames ride the same UPDATE; the primary key rejects collisions.
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracker_rows SET row_id = $3, data = $4, updated_by = $5, updated_at = $6
		 WHERE tracker_id = $1 AND row_id = $2`,
		trackerID, rowID, row.RowID, data, row.UpdatedBy, row.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, trackerID, rowID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tracker_rows WHERE tracker_id = $1 AND row_id = $2`, trackerID, rowID)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAllRows(ctx context.Context, trackerID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracker_rows WHERE tracker_id = $1`, trackerID)
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountRows(ctx context.Context, trackerID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tracker_rows WHERE tracker_id = $1`, trackerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

func (s *Store) ListRows(ctx context.Context, trackerID string, afterSeq int64, limit int) ([]store.Row, error) {
	query := `SELECT tracker_id, row_id, data, seq, created_by, created_at, updated_by, updated_at
		 FROM tracker_rows WHERE tracker_id = $1 AND seq > $2 ORDER BY seq`
	args := []any{trackerID, afterSeq}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		var r store.Row
		var data []byte
		if err := rows.Scan(&r.TrackerID, &r.RowID, &data, &r.Seq, &r.CreatedBy, &r.CreatedAt, &r.UpdatedBy, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal(data, &r.Data); err != nil {
			return nil, fmt.Errorf("unmarshal row data: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ----------------------------------------------------------------------------
// Updates
// ----------------------------------------------------------------------------

func (s *Store) CreateUpdate(ctx context.Context, u *store.Update) error {
	proposals, err := json.Marshal(u.Proposals)
	if err != nil {
		return fmt.Errorf("marshal proposals: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracker_updates (id, user_id, tracker_id, source_id, proposals, processed, approved, rejected, archived_at, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.UserID, u.TrackerID, u.SourceID, proposals,
		u.Processed, u.Approved, u.Rejected, u.ArchivedAt, u.CreatedAt, u.ProcessedAt)
	if err != nil {
		return fmt.Errorf("insert update: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetUpdate(ctx context.Context, id string) (*store.Update, error) {
	var u store.Update
	var proposals []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, tracker_id, source_id, proposals, processed, approved, rejected, archived_at, created_at, processed_at
		 FROM tracker_updates WHERE id = $1`, id,
	).Scan(&u.ID, &u.UserID, &u.TrackerID, &u.SourceID, &proposals,
		&u.Processed, &u.Approved, &u.Rejected, &u.ArchivedAt, &u.CreatedAt, &u.ProcessedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(proposals, &u.Proposals); err != nil {
		return nil, fmt.Errorf("unmarshal proposals: %w", err)
	}
	return &u, nil
}

func (s *Store) MarkProcessed(ctx context.Context, id string, approved bool, at time.Time) (bool, error) {
	// The processed = false guard makes the terminal transition first-wins.
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracker_updates SET processed = true, approved = $2, rejected = $3, processed_at = $4
		 WHERE id = $1 AND processed = false`,
		id, approved, !approved, at)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already-processed.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tracker_updates WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, fmt.Errorf("check update: %w", err)
		}
		if !exists {
			return false, store.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) ArchiveUpdate(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracker_updates SET archived_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("archive update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ArchiveProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracker_updates SET archived_at = now()
		 WHERE processed AND archived_at IS NULL AND processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive processed updates: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ----------------------------------------------------------------------------
// Aliases
// ----------------------------------------------------------------------------

func (s *Store) CreateAlias(ctx context.Context, a *store.Alias) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tracker_aliases (tracker_id, alias, row_id, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.TrackerID, a.Alias, a.RowID, a.CreatedBy, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alias: %w", mapErr(err))
	}
	return nil
}

func (s *Store) GetAlias(ctx context.Context, trackerID, alias string) (*store.Alias, error) {
	var a store.Alias
	err := s.pool.QueryRow(ctx,
		`SELECT tracker_id, alias, row_id, created_by, created_at
		 FROM tracker_aliases WHERE tracker_id = $1 AND alias = $2`,
		trackerID, alias,
	).Scan(&a.TrackerID, &a.Alias, &a.RowID, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (s *Store) ListAliases(ctx context.Context, trackerID string) ([]store.Alias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tracker_id, alias, row_id, created_by, created_at
		 FROM tracker_aliases WHERE tracker_id = $1 ORDER BY alias`, trackerID)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var out []store.Alias
	for rows.Next() {
		var a store.Alias
		if err := rows.Scan(&a.TrackerID, &a.Alias, &a.RowID, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAlias(ctx context.Context, trackerID, alias string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM tracker_aliases WHERE tracker_id = $1 AND alias = $2`, trackerID, alias)
	if err != nil {
		return fmt.Errorf("delete alias: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
