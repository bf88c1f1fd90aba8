package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"elaun/internal/aggregate"
	"elaun/internal/core"
	"elaun/internal/editor"
	"elaun/internal/report"
	"elaun/internal/storage"
	"elaun/internal/tracker"
)

type fakeEditor struct {
	rec *core.AttendanceRecord
	err error
}

func (f *fakeEditor) Load(ctx context.Context, classID string, m core.Month) (*core.AttendanceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func (f *fakeEditor) ToggleAttendance(ctx context.Context, classID string, m core.Month, role core.Role, personID string, day int, baseVersion int64) (*core.AttendanceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func (f *fakeEditor) AddParticipant(ctx context.Context, classID string, m core.Month, role core.Role, personID string, baseVersion int64) (*core.AttendanceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func (f *fakeEditor) RemoveParticipant(ctx context.Context, classID string, m core.Month, role core.Role, personID string, baseVersion int64) (*core.AttendanceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func (f *fakeEditor) CopyFromPreviousMonth(ctx context.Context, classID string, m core.Month, baseVersion int64) (*core.AttendanceRecord, core.CopyForwardResult, error) {
	if f.err != nil {
		return nil, core.CopyForwardResult{}, f.err
	}
	return f.rec, core.CopyForwardResult{WorkersAdded: 1}, nil
}

func (f *fakeEditor) SyncCategoryFromMaster(ctx context.Context, classID string, m core.Month, baseVersion int64) (*core.AttendanceRecord, int, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.rec, 2, nil
}

type fakeReports struct {
	summarizeCalls int
	optionsCalls   int
}

func (f *fakeReports) Summarize(ctx context.Context, filter aggregate.Filter) (aggregate.Summary, error) {
	f.summarizeCalls++
	return aggregate.Summary{Sessions: 3}, nil
}

func (f *fakeReports) FilterOptions(ctx context.Context, filter aggregate.Filter) (aggregate.Options, error) {
	f.optionsCalls++
	return aggregate.Options{Months: []int{1, 2}}, nil
}

type fakePeople struct{}

func (fakePeople) Search(ctx context.Context, year int, query string) ([]tracker.Person, error) {
	return []tracker.Person{{ID: "w1", Name: "Ahmad", Role: core.RoleWorker}}, nil
}

func (fakePeople) MonthlySeries(ctx context.Context, personID string, year int) ([12]tracker.MonthPoint, error) {
	var series [12]tracker.MonthPoint
	for i := range series {
		series[i].Month = i + 1
	}
	series[4].Sessions = 2
	return series, nil
}

type fakeRecords struct{ recs []*core.AttendanceRecord }

func (f fakeRecords) ListRecordsByYear(ctx context.Context, year int) ([]*core.AttendanceRecord, error) {
	return f.recs, nil
}

type fakeClasses struct{ classes map[string]core.Class }

func (f fakeClasses) Get(ctx context.Context, id string) (core.Class, bool, error) {
	c, ok := f.classes[id]
	return c, ok, nil
}

type fakeRates struct{}

func (fakeRates) Lookup(ctx context.Context, kategori, jenis string) (*core.RateCategory, error) {
	return nil, nil
}

type fakeRoster struct{}

func (fakeRoster) Worker(ctx context.Context, id string) (core.Worker, error) {
	return core.Worker{}, storage.ErrNotFound
}

func (fakeRoster) Student(ctx context.Context, id string) (core.Student, error) {
	return core.Student{}, storage.ErrNotFound
}

type fakeExporter struct{ rows []report.Row }

func (f *fakeExporter) Export(ctx context.Context, rows []report.Row) ([]byte, error) {
	f.rows = rows
	return []byte("XLSX"), nil
}

func testRecord() *core.AttendanceRecord {
	m := core.Month{Year: 2025, Mon: 3}
	rec := core.NewRecord("C1", m)
	rec.Version = 4
	rec.Workers = []core.Participant{{ID: "w1", Name: "Ahmad", Attendance: []int{3, 10}}}
	return rec
}

func newTestServer(ed *fakeEditor, reports *fakeReports) *Server {
	return NewServer(":0", Deps{
		Editor:  ed,
		Reports: reports,
		People:  fakePeople{},
	})
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestGetRecord(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/record?classId=C1&month=2025-03", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var view recordView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != "C1_2025-03" || view.Version != 4 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if len(view.Workers) != 1 || view.Workers[0].ID != "w1" {
		t.Fatalf("unexpected workers: %+v", view.Workers)
	}
	if view.Students == nil {
		t.Fatalf("students should encode as empty list, not null")
	}
}

func TestGetRecordBadParams(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	cases := []string{
		"/api/record?month=2025-03",
		"/api/record?classId=C1&month=2025-3",
		"/api/record?classId=C1&month=2025-13",
	}
	for _, url := range cases {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", url, rr.Code)
		}
	}
}

func postJSON(srv *Server, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestToggleAttendance(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := postJSON(srv, "/api/record/toggle", mutateRequest{
		ClassID: "C1", Month: "2025-03", Role: "worker", PersonID: "w1", Day: 3, BaseVersion: 3,
	})
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Wrong method
	rr2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/record/toggle", nil)
	srv.Handler.ServeHTTP(rr2, req)
	if rr2.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr2.Code)
	}
}

func TestRemoveParticipantRequiresConfirmation(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	body := mutateRequest{
		ClassID: "C1", Month: "2025-03", Role: "worker", PersonID: "w1", BaseVersion: 4,
	}
	rr := postJSON(srv, "/api/record/participants/remove", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("without confirm: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "confirmation required") {
		t.Fatalf("body=%s", rr.Body.String())
	}

	body.Confirm = true
	rr = postJSON(srv, "/api/record/participants/remove", body)
	if rr.Code != 200 {
		t.Fatalf("with confirm: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{storage.ErrVersionConflict, http.StatusConflict},
		{storage.ErrNotFound, http.StatusNotFound},
		{editor.ErrNoPriorData, http.StatusUnprocessableEntity},
		{core.ErrInvalidDay, http.StatusUnprocessableEntity},
		{core.ErrDuplicateParticipant, http.StatusUnprocessableEntity},
		{core.ErrInvalidRole, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := errorStatus(tc.err); got != tc.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMutationErrorsSurfaceAsStatus(t *testing.T) {
	srv := newTestServer(&fakeEditor{err: storage.ErrVersionConflict}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := postJSON(srv, "/api/record/toggle", mutateRequest{
		ClassID: "C1", Month: "2025-03", Role: "worker", PersonID: "w1", Day: 3, BaseVersion: 1,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	srv2 := newTestServer(&fakeEditor{err: editor.ErrNoPriorData}, &fakeReports{})
	defer srv2.Shutdown(context.Background())

	rr = postJSON(srv2, "/api/record/copy-forward", mutateRequest{
		ClassID: "C1", Month: "2025-03", BaseVersion: 1,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestCopyForwardResponse(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := postJSON(srv, "/api/record/copy-forward", mutateRequest{
		ClassID: "C1", Month: "2025-03", BaseVersion: 1,
	})
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp struct {
		WorkersAdded  int `json:"workersAdded"`
		StudentsAdded int `json:"studentsAdded"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.WorkersAdded != 1 {
		t.Fatalf("workersAdded = %d, want 1", resp.WorkersAdded)
	}
}

func TestSummaryCachingAndInvalidation(t *testing.T) {
	reports := &fakeReports{}
	srv := newTestServer(&fakeEditor{rec: testRecord()}, reports)
	defer srv.Shutdown(context.Background())

	get := func() {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/summary?year=2025", nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("summary status=%d", rr.Code)
		}
	}

	get()
	get()
	if reports.summarizeCalls != 1 {
		t.Fatalf("summarizeCalls = %d, want 1 (second read cached)", reports.summarizeCalls)
	}

	// A mutation purges the cache.
	rr := postJSON(srv, "/api/record/toggle", mutateRequest{
		ClassID: "C1", Month: "2025-03", Role: "worker", PersonID: "w1", Day: 3, BaseVersion: 3,
	})
	if rr.Code != 200 {
		t.Fatalf("toggle status=%d", rr.Code)
	}

	get()
	if reports.summarizeCalls != 2 {
		t.Fatalf("summarizeCalls = %d, want 2 after invalidation", reports.summarizeCalls)
	}
}

func TestSummaryBadFilter(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	for _, url := range []string{"/api/summary?month=13", "/api/summary?day=0", "/api/summary?year=abc"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		srv.Handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", url, rr.Code)
		}
	}
}

func TestFilterOptions(t *testing.T) {
	reports := &fakeReports{}
	srv := newTestServer(&fakeEditor{rec: testRecord()}, reports)
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/summary/options?year=2025&month=3", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("options status=%d", rr.Code)
	}
	var opts aggregate.Options
	if err := json.Unmarshal(rr.Body.Bytes(), &opts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(opts.Months) != 2 {
		t.Fatalf("months = %v", opts.Months)
	}
}

func TestSearchPeople(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/people?year=2025&q=ahmad", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("people status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Ahmad") {
		t.Fatalf("body missing person: %s", rr.Body.String())
	}
}

func TestMonthlySeries(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/people/series?personId=w1&year=2025", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("series status=%d", rr.Code)
	}

	var resp struct {
		PersonID string               `json:"personId"`
		Months   []tracker.MonthPoint `json:"months"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PersonID != "w1" || len(resp.Months) != 12 {
		t.Fatalf("unexpected series response: %+v", resp)
	}
	if resp.Months[4].Sessions != 2 {
		t.Fatalf("month 5 sessions = %d, want 2", resp.Months[4].Sessions)
	}

	// personId is required.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/people/series?year=2025", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestRefreshCaches(t *testing.T) {
	reports := &fakeReports{}
	refreshed := false

	srv := NewServer(":0", Deps{
		Editor:  &fakeEditor{rec: testRecord()},
		Reports: reports,
		People:  fakePeople{},
		RefreshMasterData: func(ctx context.Context) error {
			refreshed = true
			return nil
		},
	})
	defer srv.Shutdown(context.Background())

	// Warm the summary cache, then refresh and expect a reload.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/summary?year=2025", nil)
	srv.Handler.ServeHTTP(rr, req)

	rr = postJSON(srv, "/api/caches/refresh", struct{}{})
	if rr.Code != 200 {
		t.Fatalf("refresh status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !refreshed {
		t.Fatalf("refresh hook not called")
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/summary?year=2025", nil)
	srv.Handler.ServeHTTP(rr, req)
	if reports.summarizeCalls != 2 {
		t.Fatalf("summarizeCalls = %d, want 2 after refresh", reports.summarizeCalls)
	}
}

func TestExport(t *testing.T) {
	exporter := &fakeExporter{}
	rec := testRecord()

	srv := NewServer(":0", Deps{
		Editor:   &fakeEditor{rec: rec},
		Reports:  &fakeReports{},
		People:   fakePeople{},
		Records:  fakeRecords{recs: []*core.AttendanceRecord{rec}},
		Classes:  fakeClasses{classes: map[string]core.Class{"C1": {ID: "C1", Name: "Kelas Dewasa"}}},
		Rates:    fakeRates{},
		Roster:   fakeRoster{},
		Exporter: exporter,
	})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/export.xlsx?year=2025&month=3", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("export status=%d body=%s", rr.Code, rr.Body.String())
	}

	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("Content-Type = %q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "elaun-2025-03.xlsx") {
		t.Fatalf("Content-Disposition = %q", got)
	}
	if rr.Body.String() != "XLSX" {
		t.Fatalf("body = %q", rr.Body.String())
	}
	if len(exporter.rows) != 1 || exporter.rows[0].ClassName != "Kelas Dewasa" {
		t.Fatalf("unexpected export rows: %+v", exporter.rows)
	}

	// A month filter outside the record's month exports nothing.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/export.xlsx?year=2025&month=4", nil)
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("export status=%d", rr.Code)
	}
	if len(exporter.rows) != 0 {
		t.Fatalf("expected no rows, got %+v", exporter.rows)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(&fakeEditor{rec: testRecord()}, &fakeReports{})
	defer srv.Shutdown(context.Background())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/summary?year=2025", nil)
	srv.Handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}
