package web

// errors.go maps engine errors onto HTTP responses.
//
// Status mapping:
//   - store.ErrNotFound            -> 404
//   - store.ErrDuplicateKey        -> 409
//   - tracker.ErrAlreadyProcessed  -> 409
//   - tracker.AuthorizationError   -> 403
//   - tracker.SizeLimitError       -> 413
//   - tracker.ValidationError      -> 422
//   - tracker.MalformedInputError  -> 400
//   - anything else                -> 500

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hsualexotake/inseam-sub000/internal/logging"
	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/store"
	"github.com/hsualexotake/inseam-sub000/internal/tracker"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []schema.FieldError `json:"fields,omitempty"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// respondError logs the technical error and writes the mapped JSON response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, fields := classify(err)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
			"error", err.Error(),
		)
	} else {
		logger.Debug("request rejected",
			"path", r.URL.Path,
			"method", r.Method,
			"status", status,
			"error", err.Error(),
		)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the log.
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code, Fields: fields})
}

// classify maps an engine error to status code, machine code and any
// field-level details.
func classify(err error) (int, string, []schema.FieldError) {
	var (
		authErr *tracker.AuthorizationError
		sizeErr *tracker.SizeLimitError
		valErr  *tracker.ValidationError
		malErr  *tracker.MalformedInputError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found", nil
	case errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict, "duplicate_key", nil
	case errors.Is(err, tracker.ErrAlreadyProcessed):
		return http.StatusConflict, "already_processed", nil
	case errors.As(err, &authErr):
		return http.StatusForbidden, "forbidden", nil
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge, "size_limit", nil
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, "validation_failed", valErr.Errors
	case errors.As(err, &malErr):
		return http.StatusBadRequest, "malformed_input", nil
	default:
		return http.StatusInternalServerError, "internal", nil
	}
}
