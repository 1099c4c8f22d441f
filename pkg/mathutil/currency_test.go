package mathutil

import (
	"encoding/json"
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round down below midpoint", 1.234, 1.23},
		{"No rounding needed", 1.23, 1.23},
		{"Large number", 12345.678, 12345.68},
		{"Negative number round down", -1.234, -1.23},
		{"Zero", 0.0, 0.0},
		{"Very small positive", 0.001, 0.00},
		{"Exactly one cent", 0.01, 0.01},
		{"Nearly two cents", 0.019, 0.02},
		{"Band boundary", 180000.005000001, 180000.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNonNegative(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Positive", 12.5, 12.5},
		{"Zero", 0, 0},
		{"Negative", -3, 0},
		{"NaN", math.NaN(), 0},
		{"Positive infinity", math.Inf(1), 0},
		{"Negative infinity", math.Inf(-1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := NonNegative(tt.input); result != tt.expected {
				t.Errorf("NonNegative(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestWholeDays(t *testing.T) {
	if got := WholeDays(4.9); got != 4 {
		t.Errorf("WholeDays(4.9) = %v, expected 4", got)
	}
	if got := WholeDays(-2); got != 0 {
		t.Errorf("WholeDays(-2) = %v, expected 0", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(1.5, 0, 1); got != 1 {
		t.Errorf("Clamp(1.5, 0, 1) = %v, expected 1", got)
	}
	if got := Clamp(-0.5, 0, 1); got != 0 {
		t.Errorf("Clamp(-0.5, 0, 1) = %v, expected 0", got)
	}
	if got := Clamp(0.25, 0, 1); got != 0.25 {
		t.Errorf("Clamp(0.25, 0, 1) = %v, expected 0.25", got)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"", 0},
		{"   ", 0},
		{"3000", 3000},
		{"3000.50", 3000.50},
		{"3.000,50", 3000.50},
		{"R$ 1.234,56", 1234.56},
		{"12,5", 12.5},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"-10", -10},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ParseNumber(tt.input); math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ParseNumber(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
	}{
		{"float", 2.5, 2.5},
		{"int", 7, 7},
		{"int64", int64(9), 9},
		{"string", "1.234,00", 1234},
		{"json number", json.Number("42.5"), 42.5},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"NaN", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Coerce(tt.input); result != tt.expected {
				t.Errorf("Coerce(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCoerceBool(t *testing.T) {
	tests := []struct {
		input    interface{}
		expected bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"sim", true},
		{"", false},
		{"nao", false},
		{1.0, true},
		{0, false},
		{nil, false},
	}

	for _, tt := range tests {
		if result := CoerceBool(tt.input); result != tt.expected {
			t.Errorf("CoerceBool(%v) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}
