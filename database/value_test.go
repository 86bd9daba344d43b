package database

import (
	"bytes"
	"database/sql/driver"
	"math"
	"testing"
)

func TestAsText(t *testing.T) {
	tests := []struct {
		name string
		in   driver.Value
		want string
	}{
		{"null", nil, ""},
		{"text", "abc", "abc"},
		{"blob", []byte("xyz"), "xyz"},
		{"integer", int64(-12), "-12"},
		{"integral real", 3.0, "3.0"},
		{"real", 0.5, "0.5"},
		{"large real", 1e20, "1e+20"},
		{"bool", true, "1"},
	}
	for _, tt := range tests {
		if got := asText(tt.in); got != tt.want {
			t.Errorf("%s: asText(%v) = %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		name string
		in   driver.Value
		want int64
	}{
		{"null", nil, 0},
		{"integer", int64(42), 42},
		{"real truncates", 2.9, 2},
		{"negative real truncates", -2.9, -2},
		{"huge real clamps", 1e300, math.MaxInt64},
		{"text", "17", 17},
		{"text with suffix", "  12abc", 12},
		{"text real", "4.75", 4},
		{"text exponent", "1e3", 1000},
		{"not a number", "abc", 0},
		{"blob", []byte("-5"), -5},
		{"bool", false, 0},
	}
	for _, tt := range tests {
		if got := asInt64(tt.in); got != tt.want {
			t.Errorf("%s: asInt64(%v) = %d, want %d", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestAsFloat64(t *testing.T) {
	tests := []struct {
		name string
		in   driver.Value
		want float64
	}{
		{"null", nil, 0},
		{"real", 1.25, 1.25},
		{"integer", int64(3), 3},
		{"text", "2.5xyz", 2.5},
		{"signed text", "-0.125", -0.125},
		{"lone sign", "-", 0},
	}
	for _, tt := range tests {
		if got := asFloat64(tt.in); got != tt.want {
			t.Errorf("%s: asFloat64(%v) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestAsBlob(t *testing.T) {
	if got := asBlob(nil); got != nil {
		t.Errorf("expected nil for NULL, got %v", got)
	}
	if got := asBlob("hi"); !bytes.Equal(got, []byte("hi")) {
		t.Errorf("expected text bytes, got %v", got)
	}
	if got := asBlob(int64(7)); !bytes.Equal(got, []byte("7")) {
		t.Errorf("expected integer rendered as text, got %v", got)
	}
}
