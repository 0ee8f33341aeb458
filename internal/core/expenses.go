package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Entry is a single category and its amount.
type Entry struct {
	Category string
	Amount   decimal.Decimal
}

// ExpenseMap maps category names to amounts. Keys are unique and keep the
// order in which they were first inserted; the zero value is ready to use.
type ExpenseMap struct {
	order   []string
	amounts map[string]decimal.Decimal
}

// NewExpenseMap builds a map from entries, rejecting duplicates and empty names.
func NewExpenseMap(entries ...Entry) (ExpenseMap, error) {
	var m ExpenseMap
	for _, e := range entries {
		if err := m.Set(e.Category, e.Amount); err != nil {
			return ExpenseMap{}, err
		}
	}
	return m, nil
}

// MustExpenseMap is NewExpenseMap for literals in tests and examples.
func MustExpenseMap(entries ...Entry) ExpenseMap {
	m, err := NewExpenseMap(entries...)
	if err != nil {
		panic(err)
	}
	return m
}

// Set inserts a new category. It fails if the category already exists.
func (m *ExpenseMap) Set(category string, amount decimal.Decimal) error {
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	if m.amounts == nil {
		m.amounts = make(map[string]decimal.Decimal)
	}
	if _, ok := m.amounts[category]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateCategory, category)
	}
	m.order = append(m.order, category)
	m.amounts[category] = amount
	return nil
}

// Add accumulates amount into category, creating it when missing.
func (m *ExpenseMap) Add(category string, amount decimal.Decimal) error {
	if cur, ok := m.amounts[category]; ok {
		m.amounts[category] = cur.Add(amount)
		return nil
	}
	return m.Set(category, amount)
}

// Amount returns the amount for category.
func (m ExpenseMap) Amount(category string) (decimal.Decimal, bool) {
	a, ok := m.amounts[category]
	return a, ok
}

// Has reports whether category is present.
func (m ExpenseMap) Has(category string) bool {
	_, ok := m.amounts[category]
	return ok
}

// Categories returns category names in insertion order.
func (m ExpenseMap) Categories() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Entries returns the map content in insertion order.
func (m ExpenseMap) Entries() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, c := range m.order {
		out = append(out, Entry{Category: c, Amount: m.amounts[c]})
	}
	return out
}

func (m ExpenseMap) Len() int {
	return len(m.order)
}

// Total sums every amount.
func (m ExpenseMap) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range m.order {
		total = total.Add(m.amounts[c])
	}
	return total
}

// Equal compares categories and amounts numerically, ignoring order.
func (m ExpenseMap) Equal(other ExpenseMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	for _, c := range m.order {
		b, ok := other.amounts[c]
		if !ok || !m.amounts[c].Equal(b) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares nothing with m.
func (m ExpenseMap) Clone() ExpenseMap {
	var out ExpenseMap
	for _, e := range m.Entries() {
		_ = out.Set(e.Category, e.Amount)
	}
	return out
}

// String renders the map as an ordered JSON object.
func (m ExpenseMap) String() string {
	b, err := m.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(b)
}

// MarshalJSON encodes the map as a JSON object preserving insertion order.
// Amounts are emitted as JSON numbers.
func (m ExpenseMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range m.order {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.WriteString(m.amounts[c].String())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of numbers, keeping key order.
func (m *ExpenseMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expense map: expected object")
	}

	var out ExpenseMap
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return fmt.Errorf("expense map: value of %q: %w", key, err)
		}
		amount, err := decimal.NewFromString(num.String())
		if err == nil {
			err = CheckAmount(amount)
		}
		if err != nil {
			return fmt.Errorf("expense map: value of %q: %w", key, err)
		}
		if err := out.Set(key, amount); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}
