package schema

// validate.go provides row-level validation against a tracker's columns.
//
// Validation collects every problem in one pass rather than stopping at the
// first, so a caller can surface all violations to the user at once. The
// returned Data map holds only canonical typed values for keys that appear in
// the column set; unknown keys in the input are dropped.

import "fmt"

// FieldError describes a single validation failure for one column.
type FieldError struct {
	Key     string `json:"key"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s", e.Key, e.Message)
	}
	return e.Message
}

// Result is the outcome of validating one record.
type Result struct {
	Valid  bool           `json:"valid"`
	Errors []FieldError   `json:"errors,omitempty"`
	Data   map[string]any `json:"data"`
}

// Validate checks a raw record against the column definitions and returns the
// coerced data alongside any errors. Behavior per column:
//
//   - absent + required: error
//   - absent + optional: key omitted from Data
//   - explicit nil on optional column: preserved as nil (distinct from absent)
//   - explicit nil on required column: error
//   - present: coerced to the column kind's canonical form; coercion failures
//     become field errors
//
// maxTextLen bounds text cells; zero disables the check.
func Validate(columns []ColumnDefinition, record map[string]any, maxTextLen int) Result {
	result := Result{
		Valid: true,
		Data:  make(map[string]any, len(record)),
	}

	for _, col := range columns {
		raw, present := record[col.Key]

		if !present {
			if col.Required {
				result.Valid = false
				result.Errors = append(result.Errors, FieldError{
					Key:     col.Key,
					Message: "required field is missing",
				})
			}
			continue
		}

		if raw == nil {
			if col.Required {
				result.Valid = false
				result.Errors = append(result.Errors, FieldError{
					Key:     col.Key,
					Message: "required field is null",
				})
				continue
			}
			result.Data[col.Key] = nil
			continue
		}

		// Empty strings on required columns are treated as missing values.
		if s, ok := raw.(string); ok && s == "" && col.Required {
			result.Valid = false
			result.Errors = append(result.Errors, FieldError{
				Key:     col.Key,
				Message: "required field is empty",
			})
			continue
		}

		coerced, err := Coerce(col, raw, maxTextLen)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, FieldError{
				Key:     col.Key,
				Value:   raw,
				Message: err.Error(),
			})
			continue
		}
		result.Data[col.Key] = coerced
	}

	return result
}
