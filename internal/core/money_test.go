package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.5", true},
		{"-1", "-1", true},
		{"+7", "7", true},
		{"1e3", "1000", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,200.50", "", false},
		{"1,200", "", false},
		{"NaN", "", false},
		{"Inf", "", false},
		{"", "", false},
		{"1e30", "1e30", true},
		{"1e2000000000", "", false},
		{"1e-2000000000", "", false},
		{"1e31", "", false},
		{"1234567890123456789012345678901", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			want := decimal.RequireFromString(tc.out)
			if err != nil || !got.Equal(want) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmountOutOfRangeIsNonNumeric(t *testing.T) {
	for _, in := range []string{"1e2000000000", "-1E-2000000000", "0.0000000000000000000000000000001"} {
		if _, err := ParseAmount(in); !errors.Is(err, ErrNonNumeric) {
			t.Errorf("%q: err = %v, want ErrNonNumeric", in, err)
		}
	}
}

func TestFormatEuros(t *testing.T) {
	cases := map[string]string{
		"12.34": "€12,34",
		"860":   "€860,00",
		"-3.5":  "-€3,50",
		"0.005": "€0,01",
	}
	for in, want := range cases {
		if got := FormatEuros(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatEuros(%s) = %q, want %q", in, got, want)
		}
	}
}
