// Package search composes caller filters into parameterized predicates,
// applies the catalog's deterministic ordering and pagination, and
// hydrates typed records from the optimized snapshot.
package search

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gregmatthewcrossley/jlc-has-it/internal/store"
	"github.com/gregmatthewcrossley/jlc-has-it/internal/units"
)

const (
	// DefaultLimit is the page size the CLI and MCP surfaces use when the
	// caller asks for none. The engine itself clamps whatever it is given
	// to [1, MaxLimit].
	DefaultLimit = 20
	// MaxLimit caps a page; larger requests are clamped, never rejected.
	MaxLimit = 100
)

// Range bounds an attribute filter. Bounds are value strings in any unit
// of the attribute's category ("10V", "0.1uF"); nil-equivalent empty
// strings mean unbounded on that side.
type Range struct {
	Min string
	Max string
}

// Params is the caller-supplied predicate set. Zero values mean "no
// filter" except InStockOnly and BasicOnly, which are plain booleans
// (both default to permissive false).
type Params struct {
	Category     string
	Subcategory  string
	Manufacturer string // substring match
	Description  string // substring match
	BasicOnly    bool
	InStockOnly  bool
	MinStock     int
	MaxPrice     float64 // 0 disables the filter
	Package      string  // exact match
	Attributes   map[string]string
	Ranges       map[string]Range
	Offset       int
	Limit        int
	IncludeTotal bool
}

// Result is one page of matches with its pagination envelope. Total is
// valid only when the query asked for it; HasMore is then exact,
// otherwise it is the "page came back full" heuristic.
type Result struct {
	Components []*store.Component
	Offset     int
	Limit      int
	HasMore    bool
	Total      int
	TotalKnown bool
}

// Engine executes searches against an optimized snapshot. It is
// stateless per call and safe for concurrent use.
type Engine struct {
	db  *sql.DB
	log zerolog.Logger
}

// New creates an engine over the given store.
func New(st *store.Store, log zerolog.Logger) *Engine {
	return &Engine{db: st.DB(), log: log}
}

const selectColumns = `
	c.lcsc, c.mfr, c.description,
	COALESCE(c.manufacturer_name, ''),
	COALESCE(c.category_name, ''),
	COALESCE(c.subcategory_name, ''),
	COALESCE(c.package, ''),
	c.joints, c.basic, c.stock,
	COALESCE(c.price, ''), COALESCE(c.extra, '')`

// Deterministic ordering: basic parts first, deepest stock next, then
// cheapest first tier, with the numeric key as a total tie-break. The
// price key is json_valid-guarded so one corrupted payload cannot error
// the whole statement.
const orderClause = ` ORDER BY c.basic DESC, c.stock DESC,
	CASE WHEN json_valid(c.price)
		THEN CAST(json_extract(c.price, '$[0].unitPrice') AS REAL) END ASC,
	c.lcsc ASC`

// Search returns one page of components matching the filter.
func (e *Engine) Search(p Params) (*Result, error) {
	p.Offset = max(p.Offset, 0)
	p.Limit = min(max(p.Limit, 1), MaxLimit)

	pred, err := buildPredicates(p)
	if err != nil {
		return nil, err
	}

	// Range filters need unit normalization, which the engine cannot do,
	// so those rows are filtered after hydration and pagination moves to
	// this side of the connection.
	postFilter := len(p.Ranges) > 0

	q := "SELECT" + selectColumns + " FROM components c WHERE " + pred.where() + orderClause
	args := pred.args
	if !postFilter {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, p.Offset)
	}

	rows, err := e.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	res := &Result{Offset: p.Offset, Limit: p.Limit}
	skipped := 0 // matched rows before the requested page
	for rows.Next() {
		c, err := e.scanRow(rows)
		if err != nil {
			// Malformed payloads cost one row, never the page.
			e.log.Warn().Err(err).Msg("skipping malformed component row")
			continue
		}
		if postFilter {
			if !matchesRanges(c, p.Ranges) {
				continue
			}
			if skipped < p.Offset {
				skipped++
				continue
			}
			if len(res.Components) == p.Limit {
				// Page is full; keep scanning only to finish the count.
				if p.IncludeTotal {
					res.Total++
					continue
				}
				res.HasMore = true
				break
			}
		}
		res.Components = append(res.Components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search scan: %w", err)
	}

	if p.IncludeTotal {
		if postFilter {
			res.Total += skipped + len(res.Components)
		} else {
			total, err := e.countMatches(pred)
			if err != nil {
				return nil, err
			}
			res.Total = total
		}
		res.TotalKnown = true
		res.HasMore = res.Offset+len(res.Components) < res.Total
	} else if !res.HasMore {
		res.HasMore = len(res.Components) == p.Limit
	}

	return res, nil
}

// SearchOne looks up a single component by its external id. A missing
// row returns (nil, nil).
func (e *Engine) SearchOne(externalID string) (*store.Component, error) {
	key, ok := store.ParseLCSC(externalID)
	if !ok {
		return nil, fmt.Errorf("invalid part number %q", externalID)
	}

	row := e.db.QueryRow(
		"SELECT"+selectColumns+" FROM components c WHERE c.lcsc = ?", key)
	c, err := e.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", externalID, err)
	}
	return c, nil
}

// FullText runs a ranked term query over the full-text index
// (description, part number, category) and returns up to limit matches,
// best first. Use Search for filtered substring matching; this path is
// for free-text queries where relevance ordering matters.
func (e *Engine) FullText(query string, limit int) ([]*store.Component, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty full-text query")
	}
	limit = min(max(limit, 1), MaxLimit)

	rows, err := e.db.Query(
		"SELECT"+selectColumns+` FROM components c
		JOIN components_fts ON components_fts.rowid = c.lcsc
		WHERE components_fts MATCH ?
		ORDER BY components_fts.rank
		LIMIT ?`, query, limit)
	if err != nil {
		if strings.Contains(err.Error(), "no such table: components_fts") {
			return nil, fmt.Errorf("full-text index unavailable, rebuild with -tags sqlite_fts5: %w", err)
		}
		return nil, fmt.Errorf("fulltext query: %w", err)
	}
	defer rows.Close()

	var out []*store.Component
	for rows.Next() {
		c, err := e.scanRow(rows)
		if err != nil {
			e.log.Warn().Err(err).Msg("skipping malformed component row")
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fulltext scan: %w", err)
	}
	return out, nil
}

func (e *Engine) countMatches(pred *predicates) (int, error) {
	var n int
	err := e.db.QueryRow(
		"SELECT COUNT(*) FROM components c WHERE "+pred.where(), pred.args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (e *Engine) scanRow(s scanner) (*store.Component, error) {
	var r store.ComponentRow
	var basic int
	err := s.Scan(
		&r.LCSC, &r.MPN, &r.Description,
		&r.Manufacturer, &r.Category, &r.Subcategory, &r.Package,
		&r.Joints, &basic, &r.Stock,
		&r.PriceJSON, &r.ExtraJSON,
	)
	if err != nil {
		return nil, err
	}
	r.Basic = basic != 0
	return r.Component()
}

// matchesRanges applies attribute range filters after hydration. A row
// whose attribute is missing, unit-less in an incompatible way, or in an
// unknown unit is excluded rather than erroring the query.
func matchesRanges(c *store.Component, ranges map[string]Range) bool {
	for name, bounds := range ranges {
		attr, ok := c.Attribute(name)
		if !ok {
			return false
		}
		val := attr.String()
		if bounds.Min != "" {
			cmp, ok := units.Compare(val, bounds.Min)
			if !ok || cmp < 0 {
				return false
			}
		}
		if bounds.Max != "" {
			cmp, ok := units.Compare(val, bounds.Max)
			if !ok || cmp > 0 {
				return false
			}
		}
	}
	return true
}
