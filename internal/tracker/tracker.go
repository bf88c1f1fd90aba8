// Package tracker builds a person directory and per-person monthly
// stipend series from a loaded year of attendance records.
package tracker

import (
	"context"
	"strings"

	"elaun/internal/core"
)

// SearchLimit caps search results for responsiveness.
const SearchLimit = 50

// RecordSource loads the year window the tracker indexes.
type RecordSource interface {
	ListRecordsByYear(ctx context.Context, year int) ([]*core.AttendanceRecord, error)
}

// ClassDirectory resolves a class for the location shown next to a
// person's first sighting.
type ClassDirectory interface {
	Get(ctx context.Context, id string) (core.Class, bool, error)
}

// RateSource resolves (kategori, jenis) to a rate row, nil on miss.
type RateSource interface {
	Lookup(ctx context.Context, kategori, jenis string) (*core.RateCategory, error)
}

// Person is one directory entry. Identity fields are fixed at the first
// sighting of the id; later sightings never overwrite them.
type Person struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IdentityNo string    `json:"identityNo,omitempty"`
	Role       core.Role `json:"role"`
	Kategori   string    `json:"kategoriElaun,omitempty"`
	Location   string    `json:"location,omitempty"`
}

// MonthPoint is one slot of a person's 12-month series.
type MonthPoint struct {
	Month    int        `json:"month"`
	Sessions int        `json:"sessions"`
	Stipend  core.Money `json:"stipend"`
}

type Tracker struct {
	records RecordSource
	classes ClassDirectory
	rates   RateSource
}

func New(records RecordSource, classes ClassDirectory, rates RateSource) *Tracker {
	return &Tracker{records: records, classes: classes, rates: rates}
}

// IndexPeople walks every participant list of the year's records and
// returns one entry per unique person id, in first-sighting order.
func (t *Tracker) IndexPeople(ctx context.Context, year int) ([]Person, error) {
	recs, err := t.records.ListRecordsByYear(ctx, year)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var people []Person
	for _, rec := range recs {
		location := ""
		if class, ok, err := t.classes.Get(ctx, rec.ClassID); err != nil {
			return nil, err
		} else if ok {
			location = class.Location
		}

		for _, role := range []core.Role{core.RoleWorker, core.RoleStudent} {
			list := rec.Workers
			if role == core.RoleStudent {
				list = rec.Students
			}
			for _, p := range list {
				if seen[p.ID] {
					continue
				}
				seen[p.ID] = true
				people = append(people, Person{
					ID:         p.ID,
					Name:       p.Name,
					IdentityNo: p.IdentityNo,
					Role:       role,
					Kategori:   p.KategoriElaun,
					Location:   location,
				})
			}
		}
	}
	return people, nil
}

// Search filters the directory by case-insensitive substring over name,
// identity number and category. Results are capped at SearchLimit.
func (t *Tracker) Search(ctx context.Context, year int, query string) ([]Person, error) {
	people, err := t.IndexPeople(ctx, year)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(people) > SearchLimit {
			people = people[:SearchLimit]
		}
		return people, nil
	}

	var out []Person
	for _, p := range people {
		if matches(p, q) {
			out = append(out, p)
			if len(out) == SearchLimit {
				break
			}
		}
	}
	return out, nil
}

func matches(p Person, q string) bool {
	for _, field := range []string{p.Name, p.IdentityNo, p.Kategori, string(p.Role)} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// MonthlySeries produces the january..december sessions and stipend
// series for one person. Each contribution uses the pay category stored
// in that historical record, not the person's current roster category,
// so past months keep the stipend they were actually computed under.
func (t *Tracker) MonthlySeries(ctx context.Context, personID string, year int) ([12]MonthPoint, error) {
	var series [12]MonthPoint
	for i := range series {
		series[i].Month = i + 1
	}

	recs, err := t.records.ListRecordsByYear(ctx, year)
	if err != nil {
		return series, err
	}

	for _, rec := range recs {
		for _, role := range []core.Role{core.RoleWorker, core.RoleStudent} {
			p := rec.Find(role, personID)
			if p == nil {
				continue
			}
			rate, err := t.rates.Lookup(ctx, p.KategoriElaun, role.Jenis())
			if err != nil {
				return series, err
			}
			slot := &series[rec.Month.Mon-1]
			slot.Sessions += core.Sessions(p.Attendance, nil)
			slot.Stipend = slot.Stipend.Add(core.Stipend(rate, p.Attendance, nil))
		}
	}
	return series, nil
}
