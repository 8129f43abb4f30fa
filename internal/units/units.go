// Package units normalizes engineering-unit strings so component
// attributes expressed in different units can be compared numerically
// (e.g. "100nF" vs "0.1uF").
package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// CompareTolerance is the relative tolerance under which two normalized
// values are considered equal.
const CompareTolerance = 1e-10

// Multipliers relative to the base unit of each category.
var capacitanceUnits = map[string]float64{ // base: Farad
	"f":  1,
	"mf": 1e-3,
	"μf": 1e-6,
	"uf": 1e-6,
	"nf": 1e-9,
	"pf": 1e-12,
}

var resistanceUnits = map[string]float64{ // base: Ohm
	"ohm":   1,
	"ohms":  1,
	"kohm":  1e3,
	"kohms": 1e3,
	"mohm":  1e6,
	"mohms": 1e6,
	"gohm":  1e9,
	"gohms": 1e9,
}

var inductanceUnits = map[string]float64{ // base: Henry
	"h":  1,
	"mh": 1e-3,
	"μh": 1e-6,
	"uh": 1e-6,
	"nh": 1e-9,
}

var voltageUnits = map[string]float64{ // base: Volt
	"v":  1,
	"mv": 1e-3,
	"kv": 1e3,
}

var currentUnits = map[string]float64{ // base: Ampere
	"a":  1,
	"ma": 1e-3,
	"μa": 1e-6,
	"ua": 1e-6,
	"na": 1e-9,
}

var frequencyUnits = map[string]float64{ // base: Hertz
	"hz":  1,
	"khz": 1e3,
	"mhz": 1e6,
	"ghz": 1e9,
}

// categories is ordered so lookups are deterministic when a unit string
// could in principle appear in more than one table.
var categories = []struct {
	name  string
	units map[string]float64
}{
	{"capacitance", capacitanceUnits},
	{"resistance", resistanceUnits},
	{"inductance", inductanceUnits},
	{"voltage", voltageUnits},
	{"current", currentUnits},
	{"frequency", frequencyUnits},
}

var valueRe = regexp.MustCompile(`^([+-]?[\d.]+)\s*([a-zA-ZμΩ/±%]*)$`)

// Parse splits a string like "100nF" into its numeric magnitude and unit
// suffix. ok is false when the input is malformed.
func Parse(s string) (magnitude float64, unit string, ok bool) {
	m := valueRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}
	return v, m[2], true
}

// canonical lowercases a unit and folds the Ω symbol onto "ohm".
func canonical(unit string) string {
	u := strings.ToLower(strings.ReplaceAll(unit, " ", ""))
	u = strings.ReplaceAll(u, "ω", "ohm")
	return u
}

// Normalize converts a magnitude in the given unit to the category's base
// unit (nF → F, kΩ → Ω, ...). An empty unit passes the magnitude through.
// ok is false when the unit is unknown in every category.
func Normalize(magnitude float64, unit string) (float64, bool) {
	if unit == "" {
		return magnitude, true
	}
	u := canonical(unit)
	for _, c := range categories {
		if mult, found := c.units[u]; found {
			return magnitude * mult, true
		}
	}
	return 0, false
}

// Category reports which engineering domain a unit belongs to
// ("nF" → "capacitance"). ok is false for unknown units.
func Category(unit string) (string, bool) {
	u := canonical(unit)
	for _, c := range categories {
		if _, found := c.units[u]; found {
			return c.name, true
		}
	}
	return "", false
}

// Compare orders two value strings that may use different units of the
// same category. It returns -1, 0, or 1, with ok=false when either side
// fails to parse or the units belong to different categories. Near-equal
// normalized values (relative difference under CompareTolerance) compare
// as equal.
func Compare(a, b string) (int, bool) {
	va, ua, okA := Parse(a)
	vb, ub, okB := Parse(b)
	if !okA || !okB {
		return 0, false
	}

	if ua == "" && ub == "" {
		return rawCompare(va, vb), true
	}

	catA, haveA := Category(ua)
	catB, haveB := Category(ub)
	if ua != "" && !haveA {
		return 0, false
	}
	if ub != "" && !haveB {
		return 0, false
	}
	if catA != catB {
		return 0, false
	}

	na, _ := Normalize(va, ua)
	nb, _ := Normalize(vb, ub)

	diff := math.Abs(na - nb)
	scale := math.Max(math.Abs(na), math.Abs(nb))
	if scale > 0 {
		diff /= scale
	}
	if diff < CompareTolerance {
		return 0, true
	}
	return rawCompare(na, nb), true
}

func rawCompare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
