package versionutil

import "testing"

func TestAddSuffix(t *testing.T) {
	for _, test := range []struct {
		version, suffix, want string
	}{
		{"1.0~jan+lint3", "~jan+lint", "1.0~jan+lint4"},
		{"1.0", "~jan+lint", "1.0~jan+lint1"},
		{"1.0-1~jan+lint3", "~jan+lint", "1.0-1~jan+lint4"},
		{"1.0-1", "~jan+lint", "1.0-1~jan+lint1"},
		{"0.0.12-1", "~jan+lint", "0.0.12-1~jan+lint1"},
		{"0.0.12-1~jan+unchanged1", "~jan+lint", "0.0.12-1~jan+unchanged1~jan+lint1"},
	} {
		if got := AddSuffix(test.version, test.suffix); got != test.want {
			t.Errorf("AddSuffix(%q, %q) = %q, want %q", test.version, test.suffix, got, test.want)
		}
	}
}

func TestCompare(t *testing.T) {
	for _, test := range []struct {
		a, b string
		want int
	}{
		{"1.2.0", "1.2", 0},
		{"1.2.3", "1.2.4", -1},
		{"2.0", "1.9.9", 1},
		{"0.0.27", "0.0.27", 0},
	} {
		if got := Compare(test.a, test.b); got != test.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	if !AtLeast("0.0.34", "0.0.27") {
		t.Error("AtLeast(0.0.34, 0.0.27) = false, want true")
	}
	if AtLeast("0.0.10", "0.0.27") {
		t.Error("AtLeast(0.0.10, 0.0.27) = true, want false")
	}
}
