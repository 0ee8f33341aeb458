// Package export serialises adjusted expense maps for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"risparmi/internal/core"
)

// Header is the first row of every emitted file.
var Header = []string{"Category", "Amount"}

// Filename is the attachment name used for downloads.
const Filename = "adjusted_expenses.csv"

// Emit writes m as a two-column CSV, one row per category in map order.
// The returned reader is positioned at the start of the data.
func Emit(m core.ExpenseMap) (*bytes.Reader, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, e := range m.Entries() {
		if err := w.Write([]string{e.Category, core.FormatAmount(e.Amount)}); err != nil {
			return nil, fmt.Errorf("write row %q: %w", e.Category, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}
