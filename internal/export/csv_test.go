package export

import (
	"encoding/csv"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"risparmi/internal/core"
)

func TestEmitLayout(t *testing.T) {
	m := core.MustExpenseMap(
		core.Entry{Category: "Rent", Amount: decimal.RequireFromString("860")},
		core.Entry{Category: "Food", Amount: decimal.RequireFromString("500")},
	)
	r, err := Emit(m)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	b, _ := io.ReadAll(r)
	want := "Category,Amount\nRent,860\nFood,500\n"
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}

func TestEmitSeekable(t *testing.T) {
	r, err := Emit(core.ExpenseMap{})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
		t.Fatalf("reader at %d, want 0", pos)
	}
	first, _ := io.ReadAll(r)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	second, _ := io.ReadAll(r)
	if string(first) != string(second) || string(first) != "Category,Amount\n" {
		t.Fatalf("unexpected content %q / %q", first, second)
	}
}

func TestEmitRoundTrip(t *testing.T) {
	maps := []core.ExpenseMap{
		core.MustExpenseMap(
			core.Entry{Category: "Rent", Amount: decimal.RequireFromString("860")},
			core.Entry{Category: "Food", Amount: decimal.RequireFromString("500")},
		),
		core.MustExpenseMap(
			core.Entry{Category: "Kid's stuff, misc", Amount: decimal.RequireFromString("12.345")},
			core.Entry{Category: `Quoted "gym"`, Amount: decimal.RequireFromString("-3")},
			core.Entry{Category: "Caffè", Amount: decimal.RequireFromString("0.1")},
		),
		core.MustExpenseMap(
			core.Entry{Category: "Tiny", Amount: decimal.RequireFromString("0.000001")},
			core.Entry{Category: "Huge", Amount: decimal.RequireFromString("123456789012.5")},
		),
	}

	for i, m := range maps {
		r, err := Emit(m)
		if err != nil {
			t.Fatalf("case %d: Emit: %v", i, err)
		}
		rows, err := csv.NewReader(r).ReadAll()
		if err != nil {
			t.Fatalf("case %d: read back: %v", i, err)
		}
		if rows[0][0] != "Category" || rows[0][1] != "Amount" {
			t.Fatalf("case %d: bad header %v", i, rows[0])
		}

		var back core.ExpenseMap
		for _, row := range rows[1:] {
			amt, err := decimal.NewFromString(row[1])
			if err != nil {
				t.Fatalf("case %d: amount %q: %v", i, row[1], err)
			}
			if err := back.Set(row[0], amt); err != nil {
				t.Fatalf("case %d: %v", i, err)
			}
		}
		if !back.Equal(m) {
			t.Fatalf("case %d: round trip %s != %s", i, back, m)
		}
	}
}
