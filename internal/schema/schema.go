// Package schema defines typed tracker schemas and the validation/coercion
// layer that turns raw field values into schema-conformant typed values.
// This package has no storage or HTTP dependencies and can be used by any
// frontend.
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Kind is the declared data type of a tracker column.
type Kind string

const (
	KindText    Kind = "text"
	KindNumber  Kind = "number"
	KindDate    Kind = "date"
	KindSelect  Kind = "select"
	KindBoolean Kind = "boolean"
)

// Valid reports whether k is one of the supported column kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindDate, KindSelect, KindBoolean:
		return true
	}
	return false
}

// ColumnDefinition describes one column of a tracker.
//
// ID is the column's immutable identity; Key is the stable name that row data
// and proposals reference. Options is only meaningful for KindSelect columns.
type ColumnDefinition struct {
	ID       string   `json:"id"`
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Type     Kind     `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Order    int      `json:"order"`
}

// Tracker is a user-defined typed table with one primary-key column.
type Tracker struct {
	ID               string             `json:"id"`
	UserID           string             `json:"userId"`
	Name             string             `json:"name"`
	Slug             string             `json:"slug"`
	Columns          []ColumnDefinition `json:"columns"`
	PrimaryKeyColumn string             `json:"primaryKeyColumn"`
	IsActive         bool               `json:"isActive"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// slugRegex matches lowercase URL-safe tracker slugs.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Column returns the column definition for the given key.
// Returns false if no column with that key exists.
func (t *Tracker) Column(key string) (ColumnDefinition, bool) {
	for _, col := range t.Columns {
		if col.Key == key {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}

// PrimaryColumn returns the column definition backing the primary key.
// Returns false if PrimaryKeyColumn does not resolve, which indicates a
// schema that should never have been persisted.
func (t *Tracker) PrimaryColumn() (ColumnDefinition, bool) {
	return t.Column(t.PrimaryKeyColumn)
}

// SortedColumns returns the tracker's columns ordered by their Order field,
// breaking ties by key for deterministic output.
func (t *Tracker) SortedColumns() []ColumnDefinition {
	cols := make([]ColumnDefinition, len(t.Columns))
	copy(cols, t.Columns)
	sort.SliceStable(cols, func(i, j int) bool {
		if cols[i].Order != cols[j].Order {
			return cols[i].Order < cols[j].Order
		}
		return cols[i].Key < cols[j].Key
	})
	return cols
}

// ValidateDefinition checks a tracker's schema for structural problems:
// duplicate or empty column keys, unknown kinds, select columns without
// options, options on non-select columns, an unresolvable primary key, and a
// malformed slug. All problems are reported in one pass.
func (t *Tracker) ValidateDefinition() error {
	var errs []string

	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, "tracker name is empty")
	}
	if !slugRegex.MatchString(t.Slug) {
		errs = append(errs, fmt.Sprintf("slug %q must be lowercase letters, digits and hyphens", t.Slug))
	}
	if len(t.Columns) == 0 {
		errs = append(errs, "tracker has no columns")
	}

	seen := make(map[string]bool, len(t.Columns))
	for _, col := range t.Columns {
		if strings.TrimSpace(col.Key) == "" {
			errs = append(errs, "column with empty key")
			continue
		}
		if seen[col.Key] {
			errs = append(errs, fmt.Sprintf("duplicate column key %q", col.Key))
		}
		seen[col.Key] = true

		if !col.Type.Valid() {
			errs = append(errs, fmt.Sprintf("column %q has unknown type %q", col.Key, col.Type))
		}
		if col.Type == KindSelect && len(col.Options) == 0 {
			errs = append(errs, fmt.Sprintf("select column %q has no options", col.Key))
		}
		if col.Type != KindSelect && len(col.Options) > 0 {
			errs = append(errs, fmt.Sprintf("column %q has options but is not a select column", col.Key))
		}
	}

	pk, ok := t.Column(t.PrimaryKeyColumn)
	if !ok {
		errs = append(errs, fmt.Sprintf("primary key column %q does not match any column key", t.PrimaryKeyColumn))
	} else if !pk.Required {
		errs = append(errs, fmt.Sprintf("primary key column %q must be required", pk.Key))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid tracker definition:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
