// Package store opens the local catalog snapshot and prepares it for
// querying: denormalized lookup columns, supporting indexes, and the
// full-text index. All preparation steps are idempotent and tolerate
// concurrent invocation from independent processes.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store wraps an open snapshot connection.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens the snapshot at the given path. It does not validate or
// optimize; callers run Validate/Optimize/InitFTS as needed.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// DB exposes the underlying connection for the query layer.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Validate asserts the snapshot is structurally sound: it must contain
// at least one table.
func (s *Store) Validate() error {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'").Scan(&n)
	if err != nil {
		return fmt.Errorf("validate snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("validate snapshot: database has no tables")
	}
	return nil
}

// alreadyApplied reports whether an error from a DDL step means another
// process already performed it, or the snapshot is mounted read-only.
// Both count as success.
func alreadyApplied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "duplicate column name") ||
		strings.Contains(msg, "readonly database") ||
		strings.Contains(msg, "read-only database")
}

// Optimize denormalizes category, subcategory and manufacturer names onto
// the components table and indexes the hot filter columns. It is a no-op
// when the marker column is already present, and treats conflicts from a
// concurrent run as already-applied.
func (s *Store) Optimize() error {
	cols, err := s.tableColumns("components")
	if err != nil {
		return fmt.Errorf("inspect components table: %w", err)
	}
	if cols["category_name"] {
		return nil
	}

	s.log.Debug().Msg("optimizing snapshot schema")

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin optimize: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		"ALTER TABLE components ADD COLUMN category_name TEXT",
		"ALTER TABLE components ADD COLUMN subcategory_name TEXT",
		"ALTER TABLE components ADD COLUMN manufacturer_name TEXT",
		`UPDATE components SET category_name = (
			SELECT category FROM categories WHERE id = components.category_id
		)`,
		`UPDATE components SET subcategory_name = (
			SELECT subcategory FROM categories WHERE id = components.category_id
		)`,
		`UPDATE components SET manufacturer_name = (
			SELECT name FROM manufacturers WHERE id = components.manufacturer_id
		)`,
		"CREATE INDEX IF NOT EXISTS idx_category_name ON components(category_name)",
		"CREATE INDEX IF NOT EXISTS idx_subcategory_name ON components(subcategory_name)",
		"CREATE INDEX IF NOT EXISTS idx_manufacturer_name ON components(manufacturer_name)",
		"CREATE INDEX IF NOT EXISTS idx_package ON components(package)",
	}
	for _, stmt := range steps {
		if _, err := tx.Exec(stmt); err != nil {
			if alreadyApplied(err) {
				s.log.Debug().Err(err).Msg("schema optimization already applied elsewhere")
				return nil
			}
			return fmt.Errorf("optimize schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		if alreadyApplied(err) {
			return nil
		}
		return fmt.Errorf("commit optimize: %w", err)
	}
	s.log.Debug().Msg("snapshot schema optimized")
	return nil
}

// InitFTS builds the full-text index over description, manufacturer part
// number and category. Skips when the virtual table already exists; a
// concurrent "already exists" during creation also counts as done.
func (s *Store) InitFTS() error {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'components_fts'",
	).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check fts table: %w", err)
	}

	s.log.Debug().Msg("building full-text index")

	_, err = s.db.Exec(`
		CREATE VIRTUAL TABLE components_fts USING fts5(
			description,
			mfr,
			category,
			content=components,
			content_rowid=lcsc
		)`)
	if err != nil {
		if alreadyApplied(err) {
			return nil
		}
		// The sqlite driver only compiles the fts5 module behind the
		// sqlite_fts5 build tag. Everything except ranked full-text
		// search works without it, so a missing module skips the index
		// instead of failing every connection.
		if strings.Contains(strings.ToLower(err.Error()), "no such module: fts5") {
			s.log.Warn().Msg("driver built without fts5, skipping full-text index (build with -tags sqlite_fts5)")
			return nil
		}
		return fmt.Errorf("create fts table: %w", err)
	}

	// Prefer the richer description nested in the extra payload. The
	// json_valid guard keeps one corrupted payload from failing the
	// whole bulk insert.
	_, err = s.db.Exec(`
		INSERT INTO components_fts(rowid, description, mfr, category)
		SELECT
			c.lcsc,
			CASE WHEN json_valid(c.extra)
				THEN COALESCE(json_extract(c.extra, '$.description'), c.description)
				ELSE c.description END,
			c.mfr,
			cat.category
		FROM components c
		LEFT JOIN categories cat ON c.category_id = cat.id`)
	if err != nil {
		if alreadyApplied(err) {
			return nil
		}
		return fmt.Errorf("populate fts table: %w", err)
	}
	return nil
}

// FTSEnabled reports whether the full-text index is present. It stays
// false after InitFTS when the driver was built without the fts5
// module.
func (s *Store) FTSEnabled() bool {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'components_fts'",
	).Scan(&name)
	return err == nil
}

func (s *Store) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
