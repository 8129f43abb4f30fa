package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in        string
		magnitude float64
		unit      string
		ok        bool
	}{
		{"100nF", 100, "nF", true},
		{"0.1uF", 0.1, "uF", true},
		{"  50V ", 50, "V", true},
		{"-12mV", -12, "mV", true},
		{"+3.3", 3.3, "", true},
		{"4.7 kOhm", 4.7, "kOhm", true},
		{"10μF", 10, "μF", true},
		{"", 0, "", false},
		{"abc", 0, "", false},
		{"nF100", 0, "", false},
		{"1..2", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mag, unit, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.magnitude, mag)
				assert.Equal(t, tt.unit, unit)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		magnitude float64
		unit      string
		want      float64
		ok        bool
	}{
		{100, "nF", 1e-7, true},
		{0.1, "uF", 1e-7, true},
		{4.7, "kOhm", 4700, true},
		{4.7, "kΩ", 4700, true},
		{2, "MHz", 2e6, true},
		{50, "V", 50, true},
		{10, "mA", 0.01, true},
		{3, "mH", 0.003, true},
		{42, "", 42, true},
		{1, "parsecs", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.unit, func(t *testing.T) {
			got, ok := Normalize(tt.magnitude, tt.unit)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InEpsilon(t, tt.want, got, CompareTolerance)
			}
		})
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		unit string
		want string
		ok   bool
	}{
		{"nF", "capacitance", true},
		{"Ohm", "resistance", true},
		{"Ω", "resistance", true},
		{"kΩ", "resistance", true},
		{"uH", "inductance", true},
		{"kV", "voltage", true},
		{"mA", "current", true},
		{"GHz", "frequency", true},
		{"furlong", "", false},
	}
	for _, tt := range tests {
		got, ok := Category(tt.unit)
		assert.Equal(t, tt.ok, ok, tt.unit)
		assert.Equal(t, tt.want, got, tt.unit)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
		ok   bool
	}{
		{"equal across units", "100nF", "0.1uF", 0, true},
		{"less within category", "50nF", "100nF", -1, true},
		{"greater across units", "1uF", "100nF", 1, true},
		{"incompatible categories", "100nF", "50V", 0, false},
		{"unitless pair", "5", "7", -1, true},
		{"unitless equal", "3", "3", 0, true},
		{"unitless vs united", "5", "5V", 0, false},
		{"unknown unit", "5blorp", "5blorp", 0, false},
		{"malformed left", "?", "100nF", 0, false},
		{"resistance aliases", "1kOhm", "1kΩ", 0, true},
		{"near-equal floats", "0.30000000000000004V", "0.3V", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compare(tt.a, tt.b)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
