package report

import (
	"context"
	"testing"

	"elaun/internal/core"
	"elaun/internal/storage"
)

type fakeClasses struct{}

func (fakeClasses) Get(ctx context.Context, id string) (core.Class, bool, error) {
	if id == "C1" {
		return core.Class{ID: "C1", Name: "Kelas Fardu Ain", Location: "Alor Setar", State: "Kedah"}, true, nil
	}
	return core.Class{}, false, nil
}

type fakeRates struct{}

func (fakeRates) Lookup(ctx context.Context, kategori, jenis string) (*core.RateCategory, error) {
	if kategori == "B" {
		return &core.RateCategory{Kategori: "B", Jenis: jenis, Payment: core.PayPerSession, Amount: core.Money{Sen: 1000}}, nil
	}
	if kategori == "A" && jenis == core.JenisPetugas {
		return &core.RateCategory{Kategori: "A", Jenis: jenis, Payment: core.PayFlat, Amount: core.Money{Sen: 20000}}, nil
	}
	return nil, nil
}

type fakeRoster struct{}

func (fakeRoster) Worker(ctx context.Context, id string) (core.Worker, error) {
	if id == "w1" {
		return core.Worker{ID: "w1", Name: "Ali bin Abu", KategoriElaun: "A",
			BankName: "Bank Islam", BankAccount: "1201-4455"}, nil
	}
	return core.Worker{}, storage.ErrNotFound
}

func (fakeRoster) Student(ctx context.Context, id string) (core.Student, error) {
	if id == "s1" {
		return core.Student{ID: "s1", Name: "Siti", IdentityNo: "900101-01-1234",
			KategoriElaun: "B", BankName: "Maybank", BankAccount: "5566-7788"}, nil
	}
	return core.Student{}, storage.ErrNotFound
}

func TestBuildRowsResolutionOrder(t *testing.T) {
	rec := core.NewRecord("C1", core.Month{Year: 2026, Mon: 3})
	rec.Workers = []core.Participant{
		// Snapshot carries its own name and category; roster only
		// contributes the bank fields.
		{ID: "w1", Name: "Ali", KategoriElaun: "B", Attendance: []int{1, 2}},
	}
	rec.Students = []core.Participant{
		// Empty snapshot fields fall back to the roster.
		{ID: "s1", Name: "", Attendance: []int{5}},
		// Unknown to the roster; row ships with snapshot data only.
		{ID: "s9", Name: "Aminah", KategoriElaun: "B", Attendance: []int{5}},
	}

	rows, err := BuildRows(context.Background(), rec, fakeClasses{}, fakeRates{}, fakeRoster{})
	if err != nil {
		t.Fatalf("BuildRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}

	worker := rows[0]
	if worker.Name != "Ali" || worker.Kategori != "B" {
		t.Errorf("snapshot fields must win: %+v", worker)
	}
	if worker.BankName != "Bank Islam" || worker.BankAccount != "1201-4455" {
		t.Errorf("bank fields must come from the roster: %+v", worker)
	}
	// Category B per-session at 10, 2 sessions. Had the roster category
	// (A, flat 200) been used the stipend would differ.
	if worker.Sessions != 2 || worker.Stipend.Sen != 2000 {
		t.Errorf("worker stipend = %+v, want 2 sessions RM20.00", worker)
	}

	student := rows[1]
	if student.Name != "Siti" || student.IdentityNo != "900101-01-1234" || student.Kategori != "B" {
		t.Errorf("roster fallback missing: %+v", student)
	}
	if student.Stipend.Sen != 1000 {
		t.Errorf("student stipend = %d, want 1000", student.Stipend.Sen)
	}

	unknown := rows[2]
	if unknown.Name != "Aminah" || unknown.BankName != "" {
		t.Errorf("unknown person row = %+v", unknown)
	}
	if unknown.ClassName != "Kelas Fardu Ain" || unknown.State != "Kedah" {
		t.Errorf("class metadata missing: %+v", unknown)
	}
}

func TestBuildRowsUnknownClass(t *testing.T) {
	rec := core.NewRecord("C9", core.Month{Year: 2026, Mon: 1})
	rec.Workers = []core.Participant{{ID: "w1", Name: "Ali", Attendance: []int{1}}}

	rows, err := BuildRows(context.Background(), rec, fakeClasses{}, fakeRates{}, nil)
	if err != nil {
		t.Fatalf("BuildRows: %v", err)
	}
	if rows[0].ClassName != "C9" {
		t.Errorf("unknown class should fall back to the id, got %q", rows[0].ClassName)
	}
}
