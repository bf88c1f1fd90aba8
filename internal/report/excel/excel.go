// Package excel renders report rows into an XLSX workbook, one sheet
// per class with a totals row, for printable stipend forms.
package excel

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"elaun/internal/report"
)

type Exporter struct{}

var _ report.Exporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

var header = []string{
	"Bulan", "Nama", "No. Pengenalan", "Peranan", "Kategori Elaun",
	"Sesi", "Elaun (RM)", "Bank", "No. Akaun",
}

// Export builds the workbook. Rows keep their input order inside each
// class sheet; sheet order follows the first appearance of each class.
func (e *Exporter) Export(ctx context.Context, rows []report.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	byClass := make(map[string][]report.Row)
	var classOrder []string
	for _, r := range rows {
		if _, ok := byClass[r.ClassID]; !ok {
			classOrder = append(classOrder, r.ClassID)
		}
		byClass[r.ClassID] = append(byClass[r.ClassID], r)
	}

	for i, classID := range classOrder {
		classRows := byClass[classID]
		sheet := sheetName(classRows[0].ClassName, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
		}

		for col, title := range header {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, title); err != nil {
				return nil, err
			}
		}

		totalSessions := 0
		var totalSen int64
		for n, r := range classRows {
			values := []any{
				r.Month, r.Name, r.IdentityNo, string(r.Role), r.Kategori,
				r.Sessions, float64(r.Stipend.Sen) / 100.0,
				r.BankName, r.BankAccount,
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, n+2)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, err
				}
			}
			totalSessions += r.Sessions
			totalSen += r.Stipend.Sen
		}

		totalRow := len(classRows) + 2
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", totalRow), "Jumlah"); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("F%d", totalRow), totalSessions); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("G%d", totalRow), float64(totalSen)/100.0); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName keeps excelize's 31-char limit and uniqueness across
// classes with identical names. Characters excelize rejects in sheet
// names are dropped and the length cap counts runes, not bytes.
func sheetName(className string, idx int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return -1
		}
		return r
	}, className)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Kelas %d", idx+1)
	}
	if runes := []rune(name); len(runes) > 25 {
		name = string(runes[:25])
	}
	return fmt.Sprintf("%s (%d)", name, idx+1)
}
