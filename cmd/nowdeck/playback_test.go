package main

import "testing"

func TestParsePosition(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want int64
	}{
		{"0", 0},
		{"90", 90000},
		{"1:30", 90000},
		{"0:05", 5000},
		{"12:00", 720000},
	} {
		got, err := parsePosition(tc.raw)
		if err != nil {
			t.Fatalf("parsePosition(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parsePosition(%q): expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestParsePositionRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "-5", "1:60", "1:-1", "abc", "1:2:3"} {
		if _, err := parsePosition(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
