package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PriceTier is one price breakpoint: the unit price that applies from
// MinimumQuantity upward.
type PriceTier struct {
	MinimumQuantity int     `json:"minimumQuantity"`
	UnitPrice       float64 `json:"unitPrice"`
}

// AttributeValue is either a bare scalar string (e.g. a package code) or
// a measured quantity with a unit (e.g. 100 nF).
type AttributeValue struct {
	Scalar    string
	Magnitude float64
	Unit      string
	Measured  bool
}

// attributePayload is the wire shape of a measured attribute.
type attributePayload struct {
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit"`
}

// UnmarshalJSON accepts both shapes the snapshot uses: a bare JSON
// string/number, or an object {"value": ..., "unit": ...}.
func (a *AttributeValue) UnmarshalJSON(data []byte) error {
	*a = AttributeValue{}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Scalar = s
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		a.Magnitude = f
		a.Measured = true
		return nil
	}

	var p attributePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("attribute value: %w", err)
	}
	a.Unit = p.Unit
	if len(p.Value) > 0 {
		if err := json.Unmarshal(p.Value, &f); err == nil {
			a.Magnitude = f
			a.Measured = true
			return nil
		}
		if err := json.Unmarshal(p.Value, &s); err == nil {
			a.Scalar = s
			return nil
		}
	}
	return fmt.Errorf("attribute value: unsupported payload %s", data)
}

// MarshalJSON round-trips the union back to its wire shape.
func (a AttributeValue) MarshalJSON() ([]byte, error) {
	if a.Measured {
		return json.Marshal(struct {
			Value float64 `json:"value"`
			Unit  string  `json:"unit,omitempty"`
		}{a.Magnitude, a.Unit})
	}
	if a.Unit != "" {
		return json.Marshal(struct {
			Value string `json:"value"`
			Unit  string `json:"unit"`
		}{a.Scalar, a.Unit})
	}
	return json.Marshal(a.Scalar)
}

// String renders the value for display, magnitude and unit joined for
// measured quantities.
func (a AttributeValue) String() string {
	if a.Measured {
		return strconv.FormatFloat(a.Magnitude, 'g', -1, 64) + a.Unit
	}
	return a.Scalar
}

// Component is one catalog record hydrated from a snapshot row. Instances
// are derived per query and never written back.
type Component struct {
	LCSC         string
	MPN          string
	Description  string
	Manufacturer string
	Category     string
	Subcategory  string
	Package      string
	Joints       int
	Basic        bool
	Stock        int
	PriceTiers   []PriceTier
	Attributes   map[string]AttributeValue
}

// Price is the first-tier unit price, 0 when no tiers are present.
func (c *Component) Price() float64 {
	if len(c.PriceTiers) == 0 {
		return 0
	}
	return c.PriceTiers[0].UnitPrice
}

// Attribute returns the named attribute, ok=false when absent.
func (c *Component) Attribute(name string) (AttributeValue, bool) {
	v, ok := c.Attributes[name]
	return v, ok
}

// extraPayload is the nested JSON blob stored per row.
type extraPayload struct {
	Description string                    `json:"description"`
	Attributes  map[string]AttributeValue `json:"attributes"`
}

// ComponentRow is the raw scanned shape of a components row, before JSON
// payloads are decoded.
type ComponentRow struct {
	LCSC         int64
	MPN          string
	Description  string
	Manufacturer string
	Category     string
	Subcategory  string
	Package      string
	Joints       int
	Basic        bool
	Stock        int
	PriceJSON    string
	ExtraJSON    string
}

// Component decodes the row's JSON payloads into a hydrated record. An
// undecodable payload is an error; callers decide whether to skip the row.
func (r ComponentRow) Component() (*Component, error) {
	c := &Component{
		LCSC:         FormatLCSC(r.LCSC),
		MPN:          r.MPN,
		Description:  r.Description,
		Manufacturer: r.Manufacturer,
		Category:     r.Category,
		Subcategory:  r.Subcategory,
		Package:      r.Package,
		Joints:       r.Joints,
		Basic:        r.Basic,
		Stock:        r.Stock,
		Attributes:   map[string]AttributeValue{},
	}

	if r.PriceJSON != "" {
		if err := json.Unmarshal([]byte(r.PriceJSON), &c.PriceTiers); err != nil {
			return nil, fmt.Errorf("decode price tiers for %s: %w", c.LCSC, err)
		}
	}

	if r.ExtraJSON != "" {
		var extra extraPayload
		if err := json.Unmarshal([]byte(r.ExtraJSON), &extra); err != nil {
			return nil, fmt.Errorf("decode extra payload for %s: %w", c.LCSC, err)
		}
		if extra.Description != "" {
			c.Description = extra.Description
		}
		if extra.Attributes != nil {
			c.Attributes = extra.Attributes
		}
	}

	return c, nil
}

// FormatLCSC renders an internal numeric key as the external "C"-prefixed
// part number.
func FormatLCSC(key int64) string {
	return "C" + strconv.FormatInt(key, 10)
}

// ParseLCSC translates an external id like "C12345" back to its internal
// numeric key. ok is false for anything but a single letter prefix
// followed by decimal digits.
func ParseLCSC(id string) (int64, bool) {
	if len(id) < 2 {
		return 0, false
	}
	prefix := id[0]
	if !(prefix >= 'A' && prefix <= 'Z') && !(prefix >= 'a' && prefix <= 'z') {
		return 0, false
	}
	key, err := strconv.ParseInt(id[1:], 10, 64)
	if err != nil || key < 0 {
		return 0, false
	}
	return key, true
}
