package tracker

import (
	"fmt"
	"strings"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
)

// AuthorizationError indicates the caller does not own the tracker or update
// it tried to mutate. The operation had no side effects.
type AuthorizationError struct {
	Subject  string
	Resource string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("subject %q is not authorized for %s", e.Subject, e.Resource)
}

// SizeLimitError indicates a request exceeded a configured ceiling and was
// rejected wholesale before any row was processed.
type SizeLimitError struct {
	What   string
	Limit  int64
	Actual int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("%s exceeds limit: %d > %d", e.What, e.Actual, e.Limit)
}

// ValidationError carries the field-level failures of a record that did not
// pass its tracker's schema.
type ValidationError struct {
	Errors []schema.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// MalformedInputError indicates input that could not be interpreted at all,
// such as an undecodable pagination cursor or unparseable delimited text.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return "malformed input: " + e.Reason
}
