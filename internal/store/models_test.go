package store

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLCSCRoundTrip(t *testing.T) {
	for _, key := range []int64{0, 1, 12345, 999999999, math.MaxInt64} {
		id := FormatLCSC(key)
		back, ok := ParseLCSC(id)
		require.True(t, ok, id)
		assert.Equal(t, key, back)
	}
	assert.Equal(t, "C12345", FormatLCSC(12345))
}

func TestParseLCSCRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "C", "12345", "Cx123", "C12.5", "C-5", "CC123", "C99999999999999999999"} {
		_, ok := ParseLCSC(id)
		assert.False(t, ok, id)
	}
}

func TestParseLCSCAnyLetterPrefix(t *testing.T) {
	key, ok := ParseLCSC("c42")
	require.True(t, ok)
	assert.Equal(t, int64(42), key)
}

func TestAttributeValueUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want AttributeValue
	}{
		{"bare string", `"0402"`, AttributeValue{Scalar: "0402"}},
		{"bare number", `25`, AttributeValue{Magnitude: 25, Measured: true}},
		{"measured", `{"value":100,"unit":"nF"}`, AttributeValue{Magnitude: 100, Unit: "nF", Measured: true}},
		{"string value with unit", `{"value":"X7R","unit":""}`, AttributeValue{Scalar: "X7R"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got AttributeValue
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var bad AttributeValue
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &bad))
}

func TestAttributeValueString(t *testing.T) {
	assert.Equal(t, "100nF", AttributeValue{Magnitude: 100, Unit: "nF", Measured: true}.String())
	assert.Equal(t, "0603", AttributeValue{Scalar: "0603"}.String())
}

func TestComponentRowHydration(t *testing.T) {
	row := ComponentRow{
		LCSC:         1525,
		MPN:          "CL10B104KB8NNNC",
		Description:  "plain description",
		Manufacturer: "Samsung",
		Category:     "Capacitors",
		Subcategory:  "MLCC",
		Package:      "0603",
		Joints:       2,
		Basic:        true,
		Stock:        500000,
		PriceJSON:    `[{"minimumQuantity":1,"unitPrice":0.0012},{"minimumQuantity":100,"unitPrice":0.0009}]`,
		ExtraJSON:    `{"description":"richer description","attributes":{"Capacitance":{"value":100,"unit":"nF"},"Type":"X7R"}}`,
	}

	c, err := row.Component()
	require.NoError(t, err)

	assert.Equal(t, "C1525", c.LCSC)
	assert.Equal(t, "richer description", c.Description, "extra description preferred")
	assert.Equal(t, 0.0012, c.Price())
	require.Len(t, c.PriceTiers, 2)
	assert.Equal(t, 100, c.PriceTiers[1].MinimumQuantity)

	cap, ok := c.Attribute("Capacitance")
	require.True(t, ok)
	assert.True(t, cap.Measured)
	assert.Equal(t, "nF", cap.Unit)

	typ, ok := c.Attribute("Type")
	require.True(t, ok)
	assert.Equal(t, "X7R", typ.Scalar)

	_, ok = c.Attribute("Voltage Rated")
	assert.False(t, ok)
}

func TestComponentRowEmptyPayloads(t *testing.T) {
	c, err := ComponentRow{LCSC: 7, MPN: "X"}.Component()
	require.NoError(t, err)
	assert.Empty(t, c.PriceTiers)
	assert.Empty(t, c.Attributes)
	assert.Zero(t, c.Price())
}

func TestComponentRowMalformedJSON(t *testing.T) {
	_, err := ComponentRow{LCSC: 7, PriceJSON: `{not json`}.Component()
	assert.Error(t, err)

	_, err = ComponentRow{LCSC: 7, ExtraJSON: `{"attributes":`}.Component()
	assert.Error(t, err)
}
