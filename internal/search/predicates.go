package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// predicates accumulates conjunctive WHERE conditions. Caller values are
// always bound as parameters; attribute names travel as parameters too
// and are quoted into the JSON path on the engine side.
type predicates struct {
	conds []string
	args  []any
}

func (p *predicates) add(cond string, args ...any) {
	p.conds = append(p.conds, cond)
	p.args = append(p.args, args...)
}

func (p *predicates) where() string {
	if len(p.conds) == 0 {
		return "1=1"
	}
	return strings.Join(p.conds, " AND ")
}

// attrPath builds a JSON path expression for a named attribute. The name
// is a bound parameter wrapped in quotes inside the engine, so it may
// contain spaces and slashes but never a double quote. Every JSON
// predicate is guarded by json_valid: a corrupted payload must drop its
// row, not error the statement.
const (
	attrPath      = `json_extract(c.extra, '$.attributes."' || ? || '"')`
	attrValuePath = `json_extract(c.extra, '$.attributes."' || ? || '".value')`
	extraValid    = `json_valid(c.extra)`
)

func validAttrName(name string) error {
	if name == "" {
		return fmt.Errorf("empty attribute name")
	}
	if strings.ContainsAny(name, `"'`) {
		return fmt.Errorf("invalid attribute name %q", name)
	}
	return nil
}

func buildPredicates(p Params) (*predicates, error) {
	pred := &predicates{}

	if p.Category != "" {
		pred.add("c.category_name = ?", p.Category)
	}
	if p.Subcategory != "" {
		pred.add("c.subcategory_name = ?", p.Subcategory)
	}
	if p.Manufacturer != "" {
		pred.add("c.manufacturer_name LIKE ?", "%"+p.Manufacturer+"%")
	}
	if p.Description != "" {
		pred.add("c.description LIKE ?", "%"+p.Description+"%")
	}
	if p.BasicOnly {
		pred.add("c.basic = 1")
	}
	if p.InStockOnly {
		pred.add("c.stock > 0")
	}
	if p.MinStock > 0 {
		pred.add("c.stock >= ?", p.MinStock)
	}
	if p.MaxPrice > 0 {
		pred.add("(json_valid(c.price) AND CAST(json_extract(c.price, '$[0].unitPrice') AS REAL) <= ?)", p.MaxPrice)
	}
	if p.Package != "" {
		pred.add("c.package = ?", p.Package)
	}

	// Iterate attribute filters in a fixed order so the emitted statement
	// is stable for identical params.
	for _, name := range sortedKeys(p.Attributes) {
		if err := validAttrName(name); err != nil {
			return nil, err
		}
		value := p.Attributes[name]
		cond := attrPath + " = ? OR " + attrValuePath + " = ?"
		args := []any{name, value, name, value}
		// Measured attributes extract as INTEGER/REAL, which never
		// equals a TEXT binding; numeric-looking values get a numeric
		// arm too.
		if num, err := strconv.ParseFloat(value, 64); err == nil {
			cond += " OR " + attrValuePath + " = ?"
			args = append(args, name, num)
		}
		pred.add("("+extraValid+" AND ("+cond+"))", args...)
	}

	// Range filter names are validated here even though the comparison
	// itself happens after hydration; a bad name should fail fast. The
	// attribute must at least be present for the row to qualify.
	for _, name := range sortedKeys(p.Ranges) {
		if err := validAttrName(name); err != nil {
			return nil, err
		}
		pred.add("("+extraValid+" AND "+attrPath+" IS NOT NULL)", name)
	}

	return pred, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
