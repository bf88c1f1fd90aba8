package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"elaun/internal/aggregate"
	"elaun/internal/core"
	"elaun/internal/editor"
	"elaun/internal/storage"
)

// recordView is the wire shape of an attendance record.
type recordView struct {
	ID        string             `json:"id"`
	ClassID   string             `json:"classId"`
	Month     string             `json:"month"`
	Workers   []core.Participant `json:"workers"`
	Students  []core.Participant `json:"students"`
	Meta      core.ClassMeta     `json:"meta"`
	Version   int64              `json:"version"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func newRecordView(rec *core.AttendanceRecord) recordView {
	workers := rec.Workers
	if workers == nil {
		workers = []core.Participant{}
	}
	students := rec.Students
	if students == nil {
		students = []core.Participant{}
	}
	return recordView{
		ID:        rec.ID,
		ClassID:   rec.ClassID,
		Month:     rec.Month.String(),
		Workers:   workers,
		Students:  students,
		Meta:      rec.Meta,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encoding failed", "error", err)
	}
}

// errorStatus maps service errors onto HTTP statuses. Unknown errors
// are treated as internal.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrNoPriorData),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrDuplicateParticipant),
		errors.Is(err, core.ErrEmptyPersonID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidRole),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidRecordID):
		return http.StatusBadRequest
	case errors.As(err, new(*paramError)):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requirePost rejects non-POST methods. Returns false when the request
// has already been answered.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// parseFilter reads the summary filter from query parameters. Year
// defaults to the current year; month and day stay unset unless given.
func parseFilter(r *http.Request) (aggregate.Filter, error) {
	q := r.URL.Query()

	f := aggregate.Filter{
		Year:     time.Now().Year(),
		State:    strings.TrimSpace(q.Get("state")),
		Location: strings.TrimSpace(q.Get("location")),
	}

	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return aggregate.Filter{}, errInvalidParam("year", v)
		}
		f.Year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return aggregate.Filter{}, errInvalidParam("month", v)
		}
		f.Month = &m
	}
	if v := strings.TrimSpace(q.Get("day")); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > 31 {
			return aggregate.Filter{}, errInvalidParam("day", v)
		}
		f.Day = &d
	}
	return f, nil
}

func parseYearParam(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return time.Now().Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 {
		return 0, errInvalidParam("year", v)
	}
	return y, nil
}

type paramError struct {
	name, value string
}

func errInvalidParam(name, value string) error {
	return &paramError{name: name, value: value}
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " parameter: " + strconv.Quote(e.value)
}

// filterCacheKey is the response-cache key for one filter combination.
func filterCacheKey(f aggregate.Filter) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(f.Year))
	b.WriteByte('|')
	if f.Month != nil {
		b.WriteString(strconv.Itoa(*f.Month))
	}
	b.WriteByte('|')
	if f.Day != nil {
		b.WriteString(strconv.Itoa(*f.Day))
	}
	b.WriteByte('|')
	b.WriteString(f.State)
	b.WriteByte('|')
	b.WriteString(f.Location)
	return b.String()
}
