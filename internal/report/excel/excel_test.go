package excel

import (
	"bytes"
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"elaun/internal/core"
	"elaun/internal/report"
)

func TestExport(t *testing.T) {
	rows := []report.Row{
		{
			RecordID: "C1_2026-03", ClassID: "C1", ClassName: "Kelas Fardu Ain",
			Month: "2026-03", PersonID: "w1", Name: "Ali", Role: core.RoleWorker,
			Kategori: "A", Sessions: 3, Stipend: core.Money{Sen: 20000},
			BankName: "Bank Islam", BankAccount: "1201-4455",
		},
		{
			RecordID: "C1_2026-03", ClassID: "C1", ClassName: "Kelas Fardu Ain",
			Month: "2026-03", PersonID: "s1", Name: "Siti", IdentityNo: "900101-01-1234",
			Role: core.RoleStudent, Kategori: "B", Sessions: 4, Stipend: core.Money{Sen: 4000},
		},
		{
			RecordID: "C2_2026-03", ClassID: "C2", ClassName: "Kelas Iqra",
			Month: "2026-03", PersonID: "w2", Name: "Abu", Role: core.RoleWorker,
			Kategori: "B", Sessions: 2, Stipend: core.Money{Sen: 2000},
		},
	}

	data, err := New().Export(context.Background(), rows)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("sheets = %v, want one per class", sheets)
	}

	got, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	// Header, two people, totals.
	if len(got) != 4 {
		t.Fatalf("first sheet rows = %d, want 4", len(got))
	}
	if got[0][0] != "Bulan" || got[0][6] != "Elaun (RM)" {
		t.Errorf("header = %v", got[0])
	}
	if got[1][1] != "Ali" || got[1][6] != "200" {
		t.Errorf("worker row = %v", got[1])
	}
	if got[2][2] != "900101-01-1234" {
		t.Errorf("student row = %v", got[2])
	}
	if got[3][0] != "Jumlah" || got[3][5] != "7" || got[3][6] != "240" {
		t.Errorf("totals row = %v", got[3])
	}
}

func TestSheetName(t *testing.T) {
	cases := []struct {
		className string
		idx       int
		want      string
	}{
		{"Kelas Iqra", 0, "Kelas Iqra (1)"},
		{"", 2, "Kelas 3 (3)"},
		// Characters the workbook format rejects are dropped.
		{`Kelas [Pagi]: Iqra/Tahfiz?*\`, 0, "Kelas Pagi IqraTahfiz (1)"},
		// Only removable characters leaves the fallback name.
		{`[]:*?/\`, 1, "Kelas 2 (2)"},
		// Truncation counts runes so multi-byte names stay intact.
		{"Kelas Pengajian Al-Qur’an Dewasa", 0, "Kelas Pengajian Al-Qur’an (1)"},
	}
	for _, tc := range cases {
		if got := sheetName(tc.className, tc.idx); got != tc.want {
			t.Errorf("sheetName(%q, %d) = %q, want %q", tc.className, tc.idx, got, tc.want)
		}
	}
}

func TestExportInvalidClassNames(t *testing.T) {
	rows := []report.Row{
		{
			RecordID: "C1_2026-03", ClassID: "C1", ClassName: "Kelas [Mengaji] Al-Qur’an: Sesi Petang/Isnin",
			Month: "2026-03", PersonID: "w1", Name: "Ali", Role: core.RoleWorker,
			Kategori: "A", Sessions: 1, Stipend: core.Money{Sen: 1000},
		},
	}

	data, err := New().Export(context.Background(), rows)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 1 {
		t.Fatalf("sheets = %v, want 1", sheets)
	}
}

func TestExportEmpty(t *testing.T) {
	data, err := New().Export(context.Background(), nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := excelize.OpenReader(bytes.NewReader(data)); err != nil {
		t.Fatalf("empty workbook should still open: %v", err)
	}
}
