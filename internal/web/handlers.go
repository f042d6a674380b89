package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hsualexotake/inseam-sub000/internal/schema"
	"github.com/hsualexotake/inseam-sub000/internal/tracker"
)

// actorHeader carries the caller identity resolved by the upstream identity
// provider.
const actorHeader = "X-Actor"

// actor extracts the caller identity. An empty identity is rejected before
// any engine call.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject := r.Header.Get(actorHeader)
	if subject == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error: "missing " + actorHeader + " header",
			Code:  "unauthenticated",
		})
		return "", false
	}
	return subject, true
}

// decodeBody parses a JSON request body into dst.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, r, &tracker.MalformedInputError{Reason: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// ----------------------------------------------------------------------------
// Trackers
// ----------------------------------------------------------------------------

func (s *Server) handleCreateTracker(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var input tracker.TrackerInput
	if !s.decodeBody(w, r, &input) {
		return
	}

	t, err := s.service.CreateTracker(r.Context(), subject, input)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTrackers(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	trackers, err := s.service.ListTrackers(r.Context(), subject)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if trackers == nil {
		trackers = []schema.Tracker{}
	}
	writeJSON(w, http.StatusOK, trackers)
}

func (s *Server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	t, err := s.service.GetTracker(r.Context(), subject, chi.URLParam(r, "trackerID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateColumns(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Columns          []schema.ColumnDefinition `json:"columns"`
		PrimaryKeyColumn string                    `json:"primaryKeyColumn"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	t, err := s.service.UpdateTrackerColumns(r.Context(), subject, chi.URLParam(r, "trackerID"), body.Columns, body.PrimaryKeyColumn)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTracker(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteTracker(r.Context(), subject, chi.URLParam(r, "trackerID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------------------------------------------------------------
// Rows
// ----------------------------------------------------------------------------

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var raw map[string]any
	if !s.decodeBody(w, r, &raw) {
		return
	}

	row, err := s.service.AddRow(r.Context(), subject, chi.URLParam(r, "trackerID"), raw)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var partial map[string]any
	if !s.decodeBody(w, r, &partial) {
		return
	}

	row, err := s.service.UpdateRow(r.Context(), subject, chi.URLParam(r, "trackerID"), chi.URLParam(r, "rowID"), partial)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteRow(r.Context(), subject, chi.URLParam(r, "trackerID"), chi.URLParam(r, "rowID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, &tracker.MalformedInputError{Reason: "pageSize must be an integer"})
			return
		}
		pageSize = n
	}

	page, err := s.service.GetPage(r.Context(), subject, chi.URLParam(r, "trackerID"),
		q.Get("cursor"), pageSize, q.Get("sortBy"), q.Get("sortOrder"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ----------------------------------------------------------------------------
// Bulk import
// ----------------------------------------------------------------------------

func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Rows []map[string]any   `json:"rows"`
		Mode tracker.ImportMode `json:"mode"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	sum, err := s.service.BulkImport(r.Context(), subject, chi.URLParam(r, "trackerID"), body.Rows, body.Mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}

	mode := tracker.ImportMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = tracker.ModeAppend
	}

	// Read at most one byte past the ceiling; the engine rejects the rest.
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.Engine.MaxCSVBytes+1))
	if err != nil {
		s.respondError(w, r, &tracker.MalformedInputError{Reason: "unreadable request body"})
		return
	}

	sum, err := s.service.ImportCSV(r.Context(), subject, chi.URLParam(r, "trackerID"), string(body), mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ----------------------------------------------------------------------------
// Aliases
// ----------------------------------------------------------------------------

func (s *Server) handleRegisterAlias(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Alias string `json:"alias"`
		RowID string `json:"rowId"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	a, err := s.service.RegisterAlias(r.Context(), subject, chi.URLParam(r, "trackerID"), body.Alias, body.RowID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAliases(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	aliases, err := s.service.ListAliases(r.Context(), subject, chi.URLParam(r, "trackerID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, aliases)
}

func (s *Server) handleResolveAlias(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	rowID, err := s.service.ResolveAlias(r.Context(), subject, chi.URLParam(r, "trackerID"), chi.URLParam(r, "alias"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rowId": rowID})
}

func (s *Server) handleRemoveAlias(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.service.RemoveAlias(r.Context(), subject, chi.URLParam(r, "trackerID"), chi.URLParam(r, "alias")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ----------------------------------------------------------------------------
// Proposal reconciliation
// ----------------------------------------------------------------------------

func (s *Server) handleGetUpdate(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	u, err := s.service.GetUpdate(r.Context(), subject, chi.URLParam(r, "updateID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleApplyProposals(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Edits []tracker.EditedProposal `json:"edits"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}

	results, err := s.service.ApplyProposals(r.Context(), subject, chi.URLParam(r, "updateID"), body.Edits)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleRejectProposals(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.service.RejectProposals(r.Context(), subject, chi.URLParam(r, "updateID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveUpdate(w http.ResponseWriter, r *http.Request) {
	subject, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.service.ArchiveUpdate(r.Context(), subject, chi.URLParam(r, "updateID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
