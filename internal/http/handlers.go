package http

import (
	"log/slog"
	"net/http"
	"strings"

	"elaun/internal/core"
)

// mutateRequest is the shared body shape of the record mutation
// endpoints. Role, PersonID and Day are used only where the operation
// needs them; Confirm only guards participant removal.
type mutateRequest struct {
	ClassID     string `json:"classId"`
	Month       string `json:"month"`
	Role        string `json:"role,omitempty"`
	PersonID    string `json:"personId,omitempty"`
	Day         int    `json:"day,omitempty"`
	BaseVersion int64  `json:"baseVersion"`
	Confirm     bool   `json:"confirm,omitempty"`
}

func (req *mutateRequest) month() (core.Month, error) {
	return core.ParseMonth(req.Month)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	classID := strings.TrimSpace(r.URL.Query().Get("classId"))
	if classID == "" {
		writeError(w, r, errInvalidParam("classId", ""))
		return
	}
	m, err := core.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.deps.Editor.Load(r.Context(), classID, m)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (s *Server) handleToggleAttendance(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req mutateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m, err := req.month()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.deps.Editor.ToggleAttendance(r.Context(), req.ClassID, m, core.Role(req.Role), req.PersonID, req.Day, req.BaseVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req mutateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m, err := req.month()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.deps.Editor.AddParticipant(r.Context(), req.ClassID, m, core.Role(req.Role), req.PersonID, req.BaseVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (s *Server) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req mutateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m, err := req.month()
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Removal drops the participant's attendance for the month, so the
	// caller has to confirm it explicitly.
	if !req.Confirm {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confirmation required: set confirm to true"})
		return
	}

	rec, err := s.deps.Editor.RemoveParticipant(r.Context(), req.ClassID, m, core.Role(req.Role), req.PersonID, req.BaseVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, newRecordView(rec))
}

func (s *Server) handleCopyForward(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req mutateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m, err := req.month()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, result, err := s.deps.Editor.CopyFromPreviousMonth(r.Context(), req.ClassID, m, req.BaseVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Copied forward",
		"class_id", req.ClassID, "month", m.String(),
		"workers_added", result.WorkersAdded, "students_added", result.StudentsAdded)

	s.invalidateReports()
	writeJSON(w, http.StatusOK, struct {
		Record        recordView `json:"record"`
		WorkersAdded  int        `json:"workersAdded"`
		StudentsAdded int        `json:"studentsAdded"`
	}{newRecordView(rec), result.WorkersAdded, result.StudentsAdded})
}

func (s *Server) handleSyncCategories(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req mutateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m, err := req.month()
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, filled, err := s.deps.Editor.SyncCategoryFromMaster(r.Context(), req.ClassID, m, req.BaseVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, struct {
		Record recordView `json:"record"`
		Filled int        `json:"filled"`
	}{newRecordView(rec), filled})
}
