package validate

import (
	"encoding/json"
	"math"
	"testing"
)

type pointKind string

func TestNumeric(t *testing.T) {
	var nilPtr *float64
	five := 5.0
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"int", 42, true},
		{"zero", 0, true},
		{"negative float", -3.25, true},
		{"uint8", uint8(7), true},
		{"float32", float32(1.5), true},
		{"json number", json.Number("12.5"), true},
		{"pointer", &five, true},
		{"integer string", "123", true},
		{"padded decimal", "  12.34 ", true},
		{"leading dot", ".5", true},
		{"trailing dot", "12.", true},
		{"signed", "-0.75", true},
		{"scientific", "1.5e3", true},
		{"scientific negative exponent", "2E-4", true},
		{"NaN value", math.NaN(), false},
		{"Inf value", math.Inf(1), false},
		{"NaN literal", "NaN", false},
		{"Infinity literal", "Infinity", false},
		{"negative Infinity literal", "-Infinity", false},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"nil", nil, false},
		{"nil pointer", nilPtr, false},
		{"multi dot", "12.34.56", false},
		{"letters", "abc", false},
		{"comma decimal", "1,5", false},
		{"hex", "0x10", false},
		{"overflow", "1e400", false},
		{"bool", true, false},
		{"slice", []int{1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Numeric(tc.value); got != tc.want {
				t.Fatalf("Numeric(%#v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	f, ok := ParseNumber(" 0.42 ")
	if !ok || f != 0.42 {
		t.Fatalf("expected 0.42, got %v %v", f, ok)
	}
	if _, ok := ParseNumber("4.2.1"); ok {
		t.Fatalf("expected multi-dot literal to be rejected")
	}
}

func TestRequired(t *testing.T) {
	var nilSlice []string
	var nilMap map[string]any
	var nilPtr *string
	text := "x"
	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"blank string", "   ", false},
		{"empty slice", []string{}, false},
		{"nil slice", nilSlice, false},
		{"empty map", map[string]any{}, false},
		{"nil map", nilMap, false},
		{"nil pointer", nilPtr, false},
		{"zero", 0, true},
		{"zero float", 0.0, true},
		{"false", false, true},
		{"true", true, true},
		{"string", "Kitchen", true},
		{"slice", []int{1}, true},
		{"map", map[string]int{"a": 1}, true},
		{"pointer to string", &text, true},
		{"struct", struct{ A int }{}, true},
		{"empty struct", struct{}{}, false},
		{"pointer to empty struct", &struct{}{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Required(tc.value); got != tc.want {
				t.Fatalf("Required(%#v) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}

func TestRange(t *testing.T) {
	cases := []struct {
		name     string
		value    any
		min, max float64
		want     bool
	}{
		{"lower bound", 0, 0, 10000, true},
		{"upper bound", 10000, 0, 10000, true},
		{"inside string", "12.5", 0, 1000, true},
		{"below", -0.01, 0, 1000, false},
		{"above", "1000.5", 0, 1000, false},
		{"non numeric", "abc", 0, 1000, false},
		{"nil", nil, 0, 1000, false},
		{"NaN", math.NaN(), 0, 1000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Range(tc.value, tc.min, tc.max); got != tc.want {
				t.Fatalf("Range(%#v, %v, %v) = %v, want %v", tc.value, tc.min, tc.max, got, tc.want)
			}
		})
	}
}

func TestEmail(t *testing.T) {
	cases := []struct {
		value any
		want  bool
	}{
		{"user+tag@example.com", true},
		{"a@b.co", true},
		{"user@domain", false},
		{"@example.com", false},
		{"user@.com", false},
		{"us er@example.com", false},
		{"", false},
		{"   ", false},
		{nil, false},
		{42, false},
	}
	for _, tc := range cases {
		if got := Email(tc.value); got != tc.want {
			t.Fatalf("Email(%#v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestEnum(t *testing.T) {
	allowed := []pointKind{"socket_1p", "rcd"}
	if !Enum(pointKind("rcd"), allowed) {
		t.Fatalf("expected typed member to match")
	}
	if !Enum("socket_1p", allowed) {
		t.Fatalf("expected raw string to match typed member by value")
	}
	if Enum("lighting", allowed) {
		t.Fatalf("expected non-member to be rejected")
	}
	if Enum(nil, allowed) {
		t.Fatalf("expected nil to be rejected")
	}
	if Enum[pointKind](nil, nil) {
		t.Fatalf("expected nil to be rejected for empty set")
	}
	if Enum(1, allowed) {
		t.Fatalf("expected non-string value to be rejected")
	}
	if !Enum(30, []int{10, 30, 100}) {
		t.Fatalf("expected int membership")
	}
}
