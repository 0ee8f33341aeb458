package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"risparmi/internal/core"
)

// ParseXLSX reads the first worksheet of a workbook with the same rules as Parse.
func ParseXLSX(r io.Reader) (core.ExpenseMap, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return core.ExpenseMap{}, fmt.Errorf("%w: open workbook: %v", core.ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.ExpenseMap{}, fmt.Errorf("%w: workbook has no sheets", core.ErrParse)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return core.ExpenseMap{}, fmt.Errorf("%w: read sheet %q: %v", core.ErrParse, sheets[0], err)
	}

	// GetRows keeps empty rows in the middle of a sheet; drop them like the CSV reader does.
	kept := rows[:0]
	for _, row := range rows {
		if !blankRow(row) {
			kept = append(kept, row)
		}
	}
	return sumColumns(kept)
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
