// Package aggregate computes stipend summaries over a calendar year of
// attendance records. All arithmetic happens on an in-memory snapshot
// loaded from the store; nothing here mutates records.
package aggregate

import (
	"context"
	"log/slog"
	"sort"

	"elaun/internal/core"
)

// RecordSource loads the year window the engine operates on.
type RecordSource interface {
	ListRecordsByYear(ctx context.Context, year int) ([]*core.AttendanceRecord, error)
}

// ClassDirectory resolves class master metadata for grouping and
// display. A miss is not an error; the row falls back to the class id.
type ClassDirectory interface {
	Get(ctx context.Context, id string) (core.Class, bool, error)
}

// RateSource resolves (kategori, jenis) to a rate row, nil on miss.
type RateSource interface {
	Lookup(ctx context.Context, kategori, jenis string) (*core.RateCategory, error)
}

type Engine struct {
	records RecordSource
	classes ClassDirectory
	rates   RateSource
}

func NewEngine(records RecordSource, classes ClassDirectory, rates RateSource) *Engine {
	return &Engine{records: records, classes: classes, rates: rates}
}

// Filter narrows a year of records. Month and Day are optional; State
// and Location match the class master data exactly when non-empty.
type Filter struct {
	Year     int
	Month    *int
	Day      *int
	State    string
	Location string
}

// PersonRow is one participant's contribution to a summary row, used
// for drill-down and for the reporting sink.
type PersonRow struct {
	PersonID string     `json:"personId"`
	Name     string     `json:"name"`
	Role     core.Role  `json:"role"`
	Kategori string     `json:"kategoriElaun,omitempty"`
	Sessions int        `json:"sessions"`
	Stipend  core.Money `json:"stipend"`
	Present  bool       `json:"present"`
}

// ClassRow is one summary row: a class in one month, or a class's whole
// year when no month is selected.
type ClassRow struct {
	ClassID   string      `json:"classId"`
	ClassName string      `json:"className"`
	Location  string      `json:"location,omitempty"`
	State     string      `json:"state,omitempty"`
	Year      int         `json:"year"`
	Month     int         `json:"month,omitempty"` // 0 in the merged year view
	Workers   int         `json:"workers"`
	Students  int         `json:"students"`
	Sessions  int         `json:"sessions"`
	Stipend   core.Money  `json:"stipend"`
	People    []PersonRow `json:"people"`
}

// Summary is the filtered result set plus global totals.
type Summary struct {
	Rows     []ClassRow `json:"rows"`
	Workers  int        `json:"workers"`
	Students int        `json:"students"`
	Sessions int        `json:"sessions"`
	Stipend  core.Money `json:"stipend"`
}

// Options are the cascading filter choices derived from the loaded
// year: months from the year's records, days from the selected month's
// attendance values, states and locations from the class metadata of
// records surviving the upstream filters.
type Options struct {
	Months    []int    `json:"months"`
	Days      []int    `json:"days"`
	States    []string `json:"states"`
	Locations []string `json:"locations"`
}

// load fetches the year and drops records whose id does not reproduce
// from their (class, month) pair. Malformed rows are logged and
// skipped, never propagated.
func (e *Engine) load(ctx context.Context, year int) ([]*core.AttendanceRecord, error) {
	recs, err := e.records.ListRecordsByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	valid := recs[:0]
	for _, rec := range recs {
		classID, m, err := core.ParseRecordID(rec.ID)
		if err != nil || classID != rec.ClassID || m != rec.Month {
			slog.WarnContext(ctx, "Skipping malformed record id",
				"record_id", rec.ID, "error", err)
			continue
		}
		valid = append(valid, rec)
	}
	return valid, nil
}

// Summarize evaluates the stipend formula over the filtered records and
// groups the results. With a month selected the group key is the record
// id (one row per class per month); without one, all months of a class
// merge into a single year row, summing each person's sessions and
// stipend across the merged months.
func (e *Engine) Summarize(ctx context.Context, f Filter) (Summary, error) {
	recs, err := e.load(ctx, f.Year)
	if err != nil {
		return Summary{}, err
	}

	type group struct {
		row    ClassRow
		people map[string]int // "role/id" -> index into row.People
	}
	groups := make(map[string]*group)
	var order []string

	for _, rec := range recs {
		if f.Month != nil && rec.Month.Mon != *f.Month {
			continue
		}

		class, ok, err := e.classes.Get(ctx, rec.ClassID)
		if err != nil {
			return Summary{}, err
		}
		if !ok {
			class = core.Class{ID: rec.ClassID, Name: rec.ClassID}
		}
		if f.State != "" && class.State != f.State {
			continue
		}
		if f.Location != "" && class.Location != f.Location {
			continue
		}

		key := rec.ClassID // merged year view
		month := 0
		if f.Month != nil {
			key = rec.ID
			month = rec.Month.Mon
		}
		g, seen := groups[key]
		if !seen {
			g = &group{
				row: ClassRow{
					ClassID:   rec.ClassID,
					ClassName: class.Name,
					Location:  class.Location,
					State:     class.State,
					Year:      f.Year,
					Month:     month,
				},
				people: make(map[string]int),
			}
			groups[key] = g
			order = append(order, key)
		}

		for _, role := range []core.Role{core.RoleWorker, core.RoleStudent} {
			list := rec.Workers
			if role == core.RoleStudent {
				list = rec.Students
			}
			for _, p := range list {
				// The rate lookup uses the category stored in this
				// record, so historical rows keep their old pay class.
				rate, err := e.rates.Lookup(ctx, p.KategoriElaun, role.Jenis())
				if err != nil {
					return Summary{}, err
				}
				sessions := core.Sessions(p.Attendance, f.Day)
				stipend := core.Stipend(rate, p.Attendance, f.Day)
				present := core.Present(p.Attendance, f.Day)

				pk := string(role) + "/" + p.ID
				idx, merged := g.people[pk]
				if !merged {
					g.people[pk] = len(g.row.People)
					g.row.People = append(g.row.People, PersonRow{
						PersonID: p.ID,
						Name:     p.Name,
						Role:     role,
						Kategori: p.KategoriElaun,
					})
					idx = len(g.row.People) - 1
					if role == core.RoleWorker {
						g.row.Workers++
					} else {
						g.row.Students++
					}
				}
				pr := &g.row.People[idx]
				pr.Sessions += sessions
				pr.Stipend = pr.Stipend.Add(stipend)
				pr.Present = pr.Present || present
				if pr.Kategori == "" {
					pr.Kategori = p.KategoriElaun
				}

				g.row.Sessions += sessions
				g.row.Stipend = g.row.Stipend.Add(stipend)
			}
		}
	}

	var sum Summary
	for _, key := range order {
		sum.Rows = append(sum.Rows, groups[key].row)
	}
	sort.SliceStable(sum.Rows, func(i, j int) bool {
		a, b := sum.Rows[i], sum.Rows[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.State != b.State {
			return a.State < b.State
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.ClassName < b.ClassName
	})

	for _, row := range sum.Rows {
		sum.Workers += row.Workers
		sum.Students += row.Students
		sum.Sessions += row.Sessions
		sum.Stipend = sum.Stipend.Add(row.Stipend)
	}
	return sum, nil
}

// FilterOptions recomputes the cascading option sets for the current
// upstream selections. Each set is a derived view over the same loaded
// year, not a separate query.
func (e *Engine) FilterOptions(ctx context.Context, f Filter) (Options, error) {
	recs, err := e.load(ctx, f.Year)
	if err != nil {
		return Options{}, err
	}

	var opts Options
	months := make(map[int]bool)
	days := make(map[int]bool)
	states := make(map[string]bool)
	locations := make(map[string]bool)

	for _, rec := range recs {
		months[rec.Month.Mon] = true

		if f.Month != nil && rec.Month.Mon != *f.Month {
			continue
		}
		if f.Month != nil {
			for _, list := range [][]core.Participant{rec.Workers, rec.Students} {
				for _, p := range list {
					for _, d := range p.Attendance {
						days[d] = true
					}
				}
			}
		}
		if f.Day != nil && !recordHasDay(rec, *f.Day) {
			continue
		}

		class, ok, err := e.classes.Get(ctx, rec.ClassID)
		if err != nil {
			return Options{}, err
		}
		if !ok {
			continue
		}
		if class.State != "" {
			states[class.State] = true
		}
		if f.State != "" && class.State != f.State {
			continue
		}
		if class.Location != "" {
			locations[class.Location] = true
		}
	}

	opts.Months = sortedInts(months)
	opts.Days = sortedInts(days)
	opts.States = sortedStrings(states)
	opts.Locations = sortedStrings(locations)
	return opts, nil
}

func recordHasDay(rec *core.AttendanceRecord, day int) bool {
	for _, list := range [][]core.Participant{rec.Workers, rec.Students} {
		for _, p := range list {
			for _, d := range p.Attendance {
				if d == day {
					return true
				}
			}
		}
	}
	return false
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sortedStrings(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
