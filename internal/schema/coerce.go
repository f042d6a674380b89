package schema

// coerce.go provides per-kind coercion of raw field values into their
// canonical stored form.
//
// Raw values arrive as whatever JSON or CSV decoding produced: string, number,
// boolean or nil. Each kind has one coercion strategy, registered in a
// dispatch table so the strategies stay independently testable. After
// coercion, a cell holds exactly one canonical Go type per kind:
//
//	text, date, select -> string
//	number             -> float64
//	boolean            -> bool
//
// Coercion is idempotent: feeding a canonical value back through its strategy
// yields the same value.

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical storage form for date cells.
const DateLayout = "2006-01-02"

// dateLayouts are the accepted input formats, tried in order. Unambiguous
// four-digit-year layouts come first.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
	"Jan 2, 2006", "2 Jan 2006",
	"20060102",
	time.RFC3339,
}

// coerceFunc converts a raw value to its canonical form for one kind.
// The column definition supplies per-column constraints (select options,
// text length ceiling via maxLen).
type coerceFunc func(col ColumnDefinition, value any, maxLen int) (any, error)

// coercers dispatches from column kind to its coercion strategy.
var coercers = map[Kind]coerceFunc{
	KindText:    coerceText,
	KindNumber:  coerceNumber,
	KindDate:    coerceDate,
	KindSelect:  coerceSelect,
	KindBoolean: coerceBoolean,
}

// Coerce converts a raw value to the canonical form for the column's kind.
// A nil value passes through unchanged; required-ness is the validator's
// concern, not the coercer's.
func Coerce(col ColumnDefinition, value any, maxLen int) (any, error) {
	if value == nil {
		return nil, nil
	}
	fn, ok := coercers[col.Type]
	if !ok {
		return nil, fmt.Errorf("unknown column type %q", col.Type)
	}
	return fn(col, value, maxLen)
}

func coerceText(_ ColumnDefinition, value any, maxLen int) (any, error) {
	s := stringify(value)
	if maxLen > 0 && len(s) > maxLen {
		return nil, fmt.Errorf("text exceeds maximum length of %d characters", maxLen)
	}
	return s, nil
}

func coerceNumber(_ ColumnDefinition, value any, _ int) (any, error) {
	switch v := value.(type) {
	case float64:
		return finiteNumber(v)
	case float32:
		return finiteNumber(float64(v))
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v.String())
		}
		return finiteNumber(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", v)
		}
		return finiteNumber(f)
	case bool:
		return nil, fmt.Errorf("invalid number: boolean value")
	default:
		return nil, fmt.Errorf("invalid number: unsupported value %v", value)
	}
}

// finiteNumber rejects NaN and infinities, which cannot survive JSON encoding.
func finiteNumber(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid number: value must be finite")
	}
	return f, nil
}

func coerceDate(_ ColumnDefinition, value any, _ int) (any, error) {
	s := strings.TrimSpace(stringify(value))
	if s == "" {
		return nil, fmt.Errorf("invalid date: empty string")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (use YYYY-MM-DD or similar)", s)
}

func coerceSelect(col ColumnDefinition, value any, _ int) (any, error) {
	s := stringify(value)
	for _, opt := range col.Options {
		if opt == s {
			return opt, nil
		}
	}
	return nil, fmt.Errorf("value %q must be one of: %s", s, strings.Join(col.Options, ", "))
}

// truthy is the explicit set of values that coerce to boolean true.
// Everything else coerces to false.
var truthy = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
}

func coerceBoolean(_ ColumnDefinition, value any, _ int) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v == 1, nil
	case int:
		return v == 1, nil
	case string:
		return truthy[v], nil
	case json.Number:
		return v.String() == "1", nil
	default:
		return false, nil
	}
}

// stringify renders a raw value as a string for the text-like coercers.
// Numbers keep their shortest representation so "12" round-trips as "12",
// not "12.000000".
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
