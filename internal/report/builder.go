package report

import (
	"context"

	"elaun/internal/core"
)

// ClassDirectory resolves class metadata for row headers.
type ClassDirectory interface {
	Get(ctx context.Context, id string) (core.Class, bool, error)
}

// RateSource resolves (kategori, jenis) to a rate row, nil on miss.
type RateSource interface {
	Lookup(ctx context.Context, kategori, jenis string) (*core.RateCategory, error)
}

// Roster supplies the fallback identity and bank fields.
type Roster interface {
	Worker(ctx context.Context, id string) (core.Worker, error)
	Student(ctx context.Context, id string) (core.Student, error)
}

// BuildRows flattens one record into report rows. Field resolution is
// snapshot first, roster fallback second: the record's stored name and
// category win, the master roster fills what the snapshot lacks plus
// the bank fields records never carry. Roster misses are tolerated;
// those rows just ship without the fallback fields.
func BuildRows(ctx context.Context, rec *core.AttendanceRecord, classes ClassDirectory, rates RateSource, roster Roster) ([]Row, error) {
	class, ok, err := classes.Get(ctx, rec.ClassID)
	if err != nil {
		return nil, err
	}
	if !ok {
		class = core.Class{ID: rec.ClassID, Name: rec.ClassID}
	}

	var rows []Row
	for _, role := range []core.Role{core.RoleWorker, core.RoleStudent} {
		list := rec.Workers
		if role == core.RoleStudent {
			list = rec.Students
		}
		for _, p := range list {
			row := Row{
				RecordID:   rec.ID,
				ClassID:    rec.ClassID,
				ClassName:  class.Name,
				State:      class.State,
				Location:   class.Location,
				Month:      rec.Month.String(),
				PersonID:   p.ID,
				Name:       p.Name,
				IdentityNo: p.IdentityNo,
				Role:       role,
				Kategori:   p.KategoriElaun,
				Sessions:   core.Sessions(p.Attendance, nil),
			}
			fillFromRoster(ctx, &row, role, roster)

			rate, err := rates.Lookup(ctx, row.Kategori, role.Jenis())
			if err != nil {
				return nil, err
			}
			row.Stipend = core.Stipend(rate, p.Attendance, nil)
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func fillFromRoster(ctx context.Context, row *Row, role core.Role, roster Roster) {
	if roster == nil {
		return
	}
	switch role {
	case core.RoleWorker:
		w, err := roster.Worker(ctx, row.PersonID)
		if err != nil {
			return
		}
		if row.Name == "" {
			row.Name = w.Name
		}
		if row.Kategori == "" {
			row.Kategori = w.KategoriElaun
		}
		row.BankName = w.BankName
		row.BankAccount = w.BankAccount
	case core.RoleStudent:
		s, err := roster.Student(ctx, row.PersonID)
		if err != nil {
			return
		}
		if row.Name == "" {
			row.Name = s.Name
		}
		if row.IdentityNo == "" {
			row.IdentityNo = s.IdentityNo
		}
		if row.Kategori == "" {
			row.Kategori = s.KategoriElaun
		}
		row.BankName = s.BankName
		row.BankAccount = s.BankAccount
	}
}
