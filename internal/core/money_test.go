package core

import (
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
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"450":    "$450.00",
		"12.3":   "$12.30",
		"-7.125": "-$7.13",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Fatalf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(decimal.NewFromInt(450), decimal.NewFromInt(500)); !got.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("Percent(450, 500) = %s, want 90", got)
	}
	if got := Percent(decimal.NewFromInt(10), decimal.Zero); !got.IsZero() {
		t.Fatalf("Percent with zero whole = %s, want 0", got)
	}
	if got := Percent(decimal.NewFromInt(10), decimal.NewFromInt(-5)); !got.IsZero() {
		t.Fatalf("Percent with negative whole = %s, want 0", got)
	}
}
