// Package catalog owns the local snapshot of the parts database: it
// decides freshness by file age, performs the multi-part download and
// extraction, and hands out optimized store connections.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gregmatthewcrossley/jlc-has-it/internal/store"
)

const (
	// DefaultBaseURL serves the jlcparts snapshot as split zip parts.
	DefaultBaseURL = "https://yaqwsx.github.io/jlcparts/data"
	// DefaultMaxAge is how old the snapshot may grow before the next
	// access re-downloads it.
	DefaultMaxAge = 24 * time.Hour
	// SnapshotFile is the extracted database file name inside the cache
	// directory.
	SnapshotFile = "cache.sqlite3"

	partTimeout = 60 * time.Second
	infoTimeout = 10 * time.Second
	maxParts    = 99
)

// Config parameterizes a Manager. Zero fields fall back to defaults.
type Config struct {
	CacheDir  string
	BaseURL   string
	MaxAge    time.Duration
	Client    *http.Client
	Extractor Extractor
	Logger    zerolog.Logger
}

// Manager keeps the local snapshot fresh. All state is explicit on the
// struct; there is no process-global cache.
type Manager struct {
	cacheDir  string
	baseURL   string
	maxAge    time.Duration
	client    *http.Client
	infoHTTP  *http.Client
	extractor Extractor
	log       zerolog.Logger
}

// NewManager creates a manager over the given cache directory, creating
// it if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("catalog: cache directory is required")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: partTimeout}
	}
	if cfg.Extractor == nil {
		cfg.Extractor = SevenZip{}
	}
	return &Manager{
		cacheDir:  cfg.CacheDir,
		baseURL:   cfg.BaseURL,
		maxAge:    cfg.MaxAge,
		client:    cfg.Client,
		infoHTTP:  &http.Client{Timeout: infoTimeout},
		extractor: cfg.Extractor,
		log:       cfg.Logger,
	}, nil
}

// SnapshotPath is where the extracted database lives.
func (m *Manager) SnapshotPath() string {
	return filepath.Join(m.cacheDir, SnapshotFile)
}

// CheckAge returns how old the snapshot file is; ok is false when the
// snapshot does not exist yet.
func (m *Manager) CheckAge() (time.Duration, bool) {
	info, err := os.Stat(m.SnapshotPath())
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}

// NeedsUpdate reports whether the snapshot is missing or older than the
// configured maximum age.
func (m *Manager) NeedsUpdate() bool {
	age, ok := m.CheckAge()
	if !ok {
		return true
	}
	return age > m.maxAge
}

// EnsureFresh downloads the snapshot when missing or stale. When the
// snapshot is current this makes zero network calls.
func (m *Manager) EnsureFresh() error {
	if !m.NeedsUpdate() {
		if age, ok := m.CheckAge(); ok {
			m.log.Debug().Dur("age", age).Msg("snapshot is current")
		}
		return nil
	}
	m.log.Info().Msg("snapshot missing or stale, downloading")
	return m.Download()
}

// Download fetches the numbered parts (cache.z01.. until a 404) and the
// final cache.zip, extracts them into the cache directory, and validates
// the result. Temporary part files are removed whether or not the
// operation succeeds; a failed part fetch aborts without retry.
func (m *Manager) Download() (err error) {
	var parts []string
	defer func() {
		for _, p := range parts {
			os.Remove(p)
		}
	}()

	for n := 1; n <= maxParts; n++ {
		name := fmt.Sprintf("cache.z%02d", n)
		path, found, ferr := m.fetchPart(name)
		if path != "" {
			// Recorded before the error check so a fetch that dies
			// mid-body still has its partial file cleaned up.
			parts = append(parts, path)
		}
		if ferr != nil {
			return ferr
		}
		if !found {
			break
		}
	}

	finalPath, found, err := m.fetchPart("cache.zip")
	if finalPath != "" {
		parts = append(parts, finalPath)
	}
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("download snapshot: cache.zip not found at %s", m.baseURL)
	}

	// Extraction starts from the first numbered part when the archive is
	// split; the extractor finds the rest alongside it.
	archive := parts[0]
	if err := m.extractor.Extract(archive, m.cacheDir); err != nil {
		return fmt.Errorf("extract snapshot: %w", err)
	}

	st, err := store.Open(m.SnapshotPath(), m.log)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Validate(); err != nil {
		return err
	}

	m.log.Info().Str("path", m.SnapshotPath()).Msg("snapshot downloaded")
	return nil
}

// fetchPart downloads one archive part into the cache directory. found
// is false on a 404, which marks the end of the numbered sequence.
func (m *Manager) fetchPart(name string) (path string, found bool, err error) {
	url := m.baseURL + "/" + name
	resp, err := m.client.Get(url)
	if err != nil {
		return "", false, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("fetch %s: unexpected status %d", name, resp.StatusCode)
	}

	path = filepath.Join(m.cacheDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", false, fmt.Errorf("create part file %s: %w", name, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return path, true, fmt.Errorf("write part file %s: %w", name, err)
	}
	m.log.Debug().Str("part", name).Int64("bytes", n).Msg("downloaded part")
	return path, true, nil
}

// CatalogInfo is catalog-level metadata served next to the snapshot.
type CatalogInfo struct {
	Created    string   `json:"created"`
	Categories []string `json:"categories"`
}

// Info fetches the catalog metadata endpoint. It is best-effort: any
// network or decode failure returns ok=false, never an error.
func (m *Manager) Info() (*CatalogInfo, bool) {
	resp, err := m.infoHTTP.Get(m.baseURL + "/index.json")
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	var info CatalogInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, false
	}
	return &info, true
}

// Connect ensures the snapshot is fresh, opens it, and runs the
// idempotent full-text and schema optimization passes before returning
// the store.
func (m *Manager) Connect() (*store.Store, error) {
	if err := m.EnsureFresh(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(m.SnapshotPath()); err != nil {
		return nil, fmt.Errorf("snapshot not found at %s: %w", m.SnapshotPath(), err)
	}

	st, err := store.Open(m.SnapshotPath(), m.log)
	if err != nil {
		return nil, err
	}
	if err := st.InitFTS(); err != nil {
		st.Close()
		return nil, err
	}
	if err := st.Optimize(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
