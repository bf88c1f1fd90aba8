package http

import (
	"log/slog"
	"net/http"
	"strings"

	"elaun/internal/tracker"
)

func (s *Server) handleSearchPeople(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	year, err := parseYearParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	people, err := s.deps.People.Search(r.Context(), year, query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	personID := strings.TrimSpace(r.URL.Query().Get("personId"))
	if personID == "" {
		writeError(w, r, errInvalidParam("personId", ""))
		return
	}
	year, err := parseYearParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	series, err := s.deps.People.MonthlySeries(r.Context(), personID, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		PersonID string                 `json:"personId"`
		Year     int                    `json:"year"`
		Months   [12]tracker.MonthPoint `json:"months"`
	}{personID, year, series})
}

// handleRefreshCaches drops the master-data caches and the derived
// response caches so the next read sees current rosters and rates.
func (s *Server) handleRefreshCaches(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	if s.deps.RefreshMasterData != nil {
		if err := s.deps.RefreshMasterData(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	s.invalidateReports()

	slog.InfoContext(r.Context(), "Caches refreshed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
