// Package store defines the persistent-store collaborator the tracker engine
// writes through, plus the record types and error taxonomy shared by its
// backends. The engine never talks to a database directly; it sees this
// interface only.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
)

// Sentinel errors returned by store backends. Callers match with errors.Is.
var (
	// ErrNotFound indicates the requested tracker, row, update or alias does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates an insert or key rename collided with an
	// existing primary key, slug or alias.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Row is one primary-key-addressed record within a tracker. RowID is the
// string form of the primary-key column's value. Seq is assigned by the store
// at insert time and fixes the row's position in insertion order, which is
// what cursors paginate over.
type Row struct {
	TrackerID string         `json:"trackerId"`
	RowID     string         `json:"rowId"`
	Data      map[string]any `json:"data"`
	Seq       int64          `json:"-"`
	CreatedBy string         `json:"createdBy"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedBy string         `json:"updatedBy"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ColumnUpdate is one suggested field edit inside a proposal.
type ColumnUpdate struct {
	ColumnKey     string      `json:"columnKey"`
	ColumnType    schema.Kind `json:"columnType"`
	CurrentValue  any         `json:"currentValue,omitempty"`
	ProposedValue any         `json:"proposedValue"`
	Confidence    float64     `json:"confidence"`
}

// Proposal is a suggested set of field edits targeting one row (or a new row)
// of one tracker. RowID may be empty when the extraction subsystem only knew
// an alias for the target.
type Proposal struct {
	TrackerID     string         `json:"trackerId"`
	RowID         string         `json:"rowId,omitempty"`
	Alias         string         `json:"alias,omitempty"`
	IsNewRow      bool           `json:"isNewRow"`
	ColumnUpdates []ColumnUpdate `json:"columnUpdates"`
}

// Update groups proposals produced from a single source event. Approved and
// Rejected are mutually exclusive and set at most once; ArchivedAt may be set
// independently to dismiss the update without a decision.
type Update struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	TrackerID   string     `json:"trackerId"`
	SourceID    string     `json:"sourceId,omitempty"`
	Proposals   []Proposal `json:"proposals"`
	Processed   bool       `json:"processed"`
	Approved    bool       `json:"approved"`
	Rejected    bool       `json:"rejected"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// Alias maps an alternate string to a row's primary key, scoped to one
// tracker. The stored Alias value is normalized (trimmed, lowercased).
type Alias struct {
	TrackerID string    `json:"trackerId"`
	Alias     string    `json:"alias"`
	RowID     string    `json:"rowId"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence contract for the tracker engine.
//
// InsertRow must perform its existence check and insert as one atomic unit
// (unique constraint, transaction, or a lock held across both) so two
// concurrent inserts of the same key cannot both succeed. The engine relies
// on that guarantee and never pre-checks key existence itself.
type Store interface {
	// Trackers
	CreateTracker(ctx context.Context, t *schema.Tracker) error
	GetTracker(ctx context.Context, id string) (*schema.Tracker, error)
	GetTrackerBySlug(ctx context.Context, slug string) (*schema.Tracker, error)
	ListTrackers(ctx context.Context, userID string) ([]schema.Tracker, error)
	UpdateTracker(ctx context.Context, t *schema.Tracker) error
	// DeleteTracker cascades to the tracker's rows and aliases.
	DeleteTracker(ctx context.Context, id string) error

	// Rows
	InsertRow(ctx context.Context, row *Row) error
	GetRow(ctx context.Context, trackerID, rowID string) (*Row, error)
	// UpdateRow replaces the stored row addressed by rowID. row.RowID may
	// differ from rowID (primary-key rename); the rename must respect the
	// uniqueness guarantee and return ErrDuplicateKey on collision.
	UpdateRow(ctx context.Context, trackerID, rowID string, row *Row) error
	DeleteRow(ctx context.Context, trackerID, rowID string) error
	DeleteAllRows(ctx context.Context, trackerID string) (int64, error)
	CountRows(ctx context.Context, trackerID string) (int64, error)
	// ListRows returns rows with Seq > afterSeq in insertion order, at most
	// limit of them. limit <= 0 means no limit.
	ListRows(ctx context.Context, trackerID string, afterSeq int64, limit int) ([]Row, error)

	// Updates (written out-of-band by the extraction subsystem)
	CreateUpdate(ctx context.Context, u *Update) error
	GetUpdate(ctx context.Context, id string) (*Update, error)
	// MarkProcessed transitions a pending update to its terminal decision.
	// Returns false without mutating when the update was already processed.
	MarkProcessed(ctx context.Context, id string, approved bool, at time.Time) (bool, error)
	ArchiveUpdate(ctx context.Context, id string, at time.Time) error
	// ArchiveProcessedBefore stamps ArchivedAt on processed, unarchived
	// updates whose decision predates cutoff. Returns how many were archived.
	ArchiveProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Aliases
	CreateAlias(ctx context.Context, a *Alias) error
	GetAlias(ctx context.Context, trackerID, alias string) (*Alias, error)
	ListAliases(ctx context.Context, trackerID string) ([]Alias, error)
	DeleteAlias(ctx context.Context, trackerID, alias string) error
}
