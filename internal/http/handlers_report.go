package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"elaun/internal/core"
	"elaun/internal/report"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := filterCacheKey(f)
	if cached, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "year", f.Year)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.deps.Reports.Summarize(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := filterCacheKey(f)
	if cached, found := s.optionsCache.Get(key); found {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	options, err := s.deps.Reports.FilterOptions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.optionsCache.Set(key, options)
	writeJSON(w, http.StatusOK, options)
}

// handleExport streams a spreadsheet of the filtered records. Rows are
// rebuilt from current master data at export time, one sheet per class.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.deps.Records.ListRecordsByYear(r.Context(), f.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var rows []report.Row
	for _, rec := range records {
		if f.Month != nil && rec.Month.Mon != *f.Month {
			continue
		}
		recRows, err := report.BuildRows(r.Context(), rec, s.deps.Classes, s.deps.Rates, s.deps.Roster)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rows = append(rows, filterRows(recRows, f.State, f.Location)...)
	}

	data, err := s.deps.Exporter.Export(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("elaun-%d", f.Year)
	if f.Month != nil {
		filename = fmt.Sprintf("elaun-%s", core.Month{Year: f.Year, Mon: *f.Month})
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(r.Context(), "Export write failed", "error", err)
	}
}

func filterRows(rows []report.Row, state, location string) []report.Row {
	if state == "" && location == "" {
		return rows
	}
	out := rows[:0]
	for _, row := range rows {
		if state != "" && row.State != state {
			continue
		}
		if location != "" && row.Location != location {
			continue
		}
		out = append(out, row)
	}
	return out
}
