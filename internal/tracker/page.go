package tracker

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hsualexotake/inseam-sub000/internal/store"
)

// Page is one cursor-bounded slice of a tracker's rows. NextCursor is empty
// when the page reaches the end of the tracker.
type Page struct {
	Rows       []store.Row `json:"rows"`
	NextCursor string      `json:"nextCursor,omitempty"`
	HasMore    bool        `json:"hasMore"`
}

// GetPage returns rows in insertion order starting after cursor. When sortBy
// names a column, only the returned page is re-ordered; ordering across
// cursor boundaries still follows insertion order. Callers wanting a fully
// sorted view must request a single page covering all rows. Row data is only
// visible to the tracker's owner.
func (s *Service) GetPage(ctx context.Context, actor, trackerID, cursor string, pageSize int, sortBy, sortOrder string) (*Page, error) {
	t, err := s.ownedTracker(ctx, actor, trackerID)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = s.engine.DefaultPageSize
	}
	if pageSize > s.engine.MaxPageSize {
		pageSize = s.engine.MaxPageSize
	}

	afterSeq, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	if sortBy != "" {
		if _, ok := t.Column(sortBy); !ok {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("unknown sort column %q", sortBy)}
		}
	}
	order := strings.ToLower(sortOrder)
	if order != "" && order != "asc" && order != "desc" {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("sort order must be asc or desc, got %q", sortOrder)}
	}

	// Fetch one extra row to detect whether more pages follow.
	rows, err := s.store.ListRows(ctx, trackerID, afterSeq, pageSize+1)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}

	page := &Page{}
	if len(rows) > pageSize {
		page.HasMore = true
		rows = rows[:pageSize]
	}
	if page.HasMore && len(rows) > 0 {
		page.NextCursor = encodeCursor(rows[len(rows)-1].Seq)
	}

	if sortBy != "" {
		desc := order == "desc"
		sort.SliceStable(rows, func(i, j int) bool {
			c := compareCells(rows[i].Data[sortBy], rows[j].Data[sortBy])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	page.Rows = rows
	return page, nil
}

// encodeCursor renders a row sequence number as an opaque cursor token.
func encodeCursor(seq int64) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

// decodeCursor parses a cursor token. An empty token means "from the start".
func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, &MalformedInputError{Reason: "undecodable cursor"}
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, &MalformedInputError{Reason: "undecodable cursor"}
	}
	return seq, nil
}

// compareCells orders two canonical cell values. Nil sorts first, then
// booleans, then numbers, then strings; mismatched types compare by that
// type ranking.
func compareCells(a, b any) int {
	ra, rb := cellRank(a), cellRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	default:
		return 0
	}
}

func cellRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
