package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{" 5 ", "5", true},
		{"0", "0", true},
		{"", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"-1", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
			}
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("ParseAmount(%q) expected validation error, got %v", tc.in, err)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(dec("880")); got != "880.00" {
		t.Fatalf("FormatAmount = %q", got)
	}
	if got := FormatAmount(dec("-3.456")); got != "-3.46" {
		t.Fatalf("FormatAmount = %q", got)
	}
}
