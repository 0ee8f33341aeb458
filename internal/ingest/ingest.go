// Package ingest turns uploaded tabular files into expense maps.
//
// The first row of a file holds the category names, every following row
// holds amounts. Each column is summed, so a file of daily entries collapses
// into one monthly total per category.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"risparmi/internal/core"
)

const utf8BOM = "\uFEFF"

// ParseUpload parses an uploaded file, choosing the reader by extension:
// ".xlsx" files are read as workbooks, anything else as CSV.
func ParseUpload(filename string, r io.Reader) (core.ExpenseMap, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	default:
		return Parse(r)
	}
}

// Parse reads CSV data and returns the per-column sums.
func Parse(r io.Reader) (core.ExpenseMap, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	rows, err := cr.ReadAll()
	if err != nil {
		return core.ExpenseMap{}, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	return sumColumns(rows)
}

// sumColumns aggregates rows whose first element is the header.
// Blank cells count as zero; missing trailing cells are treated as blank.
func sumColumns(rows [][]string) (core.ExpenseMap, error) {
	if len(rows) == 0 {
		return core.ExpenseMap{}, fmt.Errorf("%w: no header row", core.ErrParse)
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	var out core.ExpenseMap
	for i, name := range header {
		name = strings.TrimSpace(name)
		if err := out.Set(name, decimal.Zero); err != nil {
			if errors.Is(err, core.ErrEmptyCategory) {
				return core.ExpenseMap{}, fmt.Errorf("%w: column %d has no header", core.ErrParse, i+1)
			}
			return core.ExpenseMap{}, fmt.Errorf("%w: %v", core.ErrParse, err)
		}
		header[i] = name
	}

	for r, row := range rows[1:] {
		if len(row) > len(header) {
			return core.ExpenseMap{}, fmt.Errorf("%w: row %d has %d fields, header has %d", core.ErrParse, r+2, len(row), len(header))
		}
		for c, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			amount, err := core.ParseAmount(cell)
			if err != nil {
				return core.ExpenseMap{}, fmt.Errorf("%w: column %q row %d: %q", core.ErrNonNumeric, header[c], r+2, cell)
			}
			if err := out.Add(header[c], amount); err != nil {
				return core.ExpenseMap{}, err
			}
		}
	}
	return out, nil
}
