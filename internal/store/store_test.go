package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDDL = `
CREATE TABLE categories (
	id INTEGER PRIMARY KEY,
	category TEXT NOT NULL,
	subcategory TEXT NOT NULL
);
CREATE TABLE manufacturers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE components (
	lcsc INTEGER PRIMARY KEY,
	category_id INTEGER,
	manufacturer_id INTEGER,
	mfr TEXT,
	description TEXT,
	package TEXT,
	joints INTEGER,
	basic INTEGER,
	stock INTEGER,
	price TEXT,
	extra TEXT
);
`

// newFixture creates a snapshot shaped like a freshly downloaded one:
// lookup tables plus a raw components table, no denormalized columns.
func newFixture(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.sqlite3")
	st, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.DB().Exec(fixtureDDL)
	require.NoError(t, err)

	seed := []string{
		`INSERT INTO categories VALUES (1, 'Capacitors', 'MLCC'), (2, 'Resistors', 'Chip Resistor')`,
		`INSERT INTO manufacturers VALUES (1, 'Samsung'), (2, 'Yageo')`,
		`INSERT INTO components VALUES
			(1525, 1, 1, 'CL10B104KB8NNNC', '100nF 50V X7R 0603', '0603', 2, 1, 500000,
			 '[{"minimumQuantity":1,"unitPrice":0.0012}]',
			 '{"description":"100nF ±10% 50V X7R 0603 MLCC","attributes":{"Capacitance":{"value":100,"unit":"nF"},"Voltage Rated":{"value":50,"unit":"V"},"Type":"X7R"}}'),
			(25804, 2, 2, 'RC0603FR-0710KL', '10kOhm 1% 0603', '0603', 2, 1, 300000,
			 '[{"minimumQuantity":1,"unitPrice":0.0008}]',
			 '{"attributes":{"Resistance":{"value":10,"unit":"kOhm"}}}')`,
	}
	for _, stmt := range seed {
		_, err := st.DB().Exec(stmt)
		require.NoError(t, err)
	}
	return st, path
}

func tableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	return names
}

func componentIndexes(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(
		"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = 'components' ORDER BY name")
	require.NoError(t, err)
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		require.NoError(t, rows.Scan(&n))
		names = append(names, n)
	}
	return names
}

func TestValidate(t *testing.T) {
	st, _ := newFixture(t)
	assert.NoError(t, st.Validate())
}

func TestValidateEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.sqlite3")
	st, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	err = st.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tables")
}

func TestOptimizeAddsColumnsAndIndexes(t *testing.T) {
	st, _ := newFixture(t)

	before, err := st.tableColumns("components")
	require.NoError(t, err)
	require.NoError(t, st.Optimize())

	after, err := st.tableColumns("components")
	require.NoError(t, err)
	assert.Len(t, after, len(before)+3, "exactly three denormalized columns added")
	assert.True(t, after["category_name"])
	assert.True(t, after["subcategory_name"])
	assert.True(t, after["manufacturer_name"])

	idx := componentIndexes(t, st.DB())
	assert.Equal(t, []string{
		"idx_category_name", "idx_manufacturer_name", "idx_package", "idx_subcategory_name",
	}, idx)

	// Backfill came from the lookup tables.
	var category, subcategory, manufacturer string
	err = st.DB().QueryRow(
		"SELECT category_name, subcategory_name, manufacturer_name FROM components WHERE lcsc = 1525",
	).Scan(&category, &subcategory, &manufacturer)
	require.NoError(t, err)
	assert.Equal(t, "Capacitors", category)
	assert.Equal(t, "MLCC", subcategory)
	assert.Equal(t, "Samsung", manufacturer)
}

func TestOptimizeIdempotent(t *testing.T) {
	st, _ := newFixture(t)

	require.NoError(t, st.Optimize())
	colsOnce, err := st.tableColumns("components")
	require.NoError(t, err)
	idxOnce := componentIndexes(t, st.DB())

	require.NoError(t, st.Optimize())
	colsTwice, err := st.tableColumns("components")
	require.NoError(t, err)
	assert.Equal(t, colsOnce, colsTwice)
	assert.Equal(t, idxOnce, componentIndexes(t, st.DB()))
}

func TestOptimizeReadOnlySnapshot(t *testing.T) {
	st, path := newFixture(t)
	require.NoError(t, st.Close())

	ro, err := Open("file:"+path+"?mode=ro", zerolog.Nop())
	require.NoError(t, err)
	defer ro.Close()

	// Another process owns the writable copy; this one must not fail.
	assert.NoError(t, ro.Optimize())
}

func TestInitFTS(t *testing.T) {
	st, _ := newFixture(t)
	// Never an error, even on a driver built without the fts5 module;
	// that build skips the index instead.
	require.NoError(t, st.InitFTS())
	if !st.FTSEnabled() {
		t.Skip("driver built without fts5")
	}
	assert.Contains(t, tableNames(t, st.DB()), "components_fts")

	var n int
	err := st.DB().QueryRow(
		"SELECT COUNT(*) FROM components_fts WHERE components_fts MATCH 'X7R'").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "nested extra description is indexed")
}

func TestInitFTSIdempotent(t *testing.T) {
	st, _ := newFixture(t)
	require.NoError(t, st.InitFTS())
	if !st.FTSEnabled() {
		t.Skip("driver built without fts5")
	}

	var before int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM components_fts").Scan(&before))

	require.NoError(t, st.InitFTS())
	var after int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM components_fts").Scan(&after))
	assert.Equal(t, before, after, "no duplicated content")
}

func TestOptimizeAfterFTS(t *testing.T) {
	// The connection path runs both passes back to back; neither may
	// disturb the other.
	st, _ := newFixture(t)
	require.NoError(t, st.InitFTS())
	require.NoError(t, st.Optimize())
	require.NoError(t, st.Validate())
}

func TestOpenMissingDirectory(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "nope", "cache.sqlite3"), zerolog.Nop())
	if err == nil {
		// The sqlite driver defers file creation; the first query fails.
		defer st.Close()
		assert.Error(t, st.Validate())
	}
}
