// Package library fetches KiCad symbol/footprint/3D-model sets for
// catalog parts through the external easyeda2kicad tool and validates
// that each set is complete.
package library

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultWorkers bounds concurrent fetches.
	DefaultWorkers = 10
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 30 * time.Second

	symbolFile   = "easyeda2kicad.kicad_sym"
	footprintDir = "easyeda2kicad.pretty"
	modelDir     = "easyeda2kicad.3dshapes"
)

// ComponentLibrary is the on-disk file set fetched for one part.
type ComponentLibrary struct {
	ID         string
	SymbolPath string
	Footprints string
	Models     string
}

// Valid reports whether the set is complete: a non-empty symbol file, at
// least one footprint, and at least one 3D model.
func (l *ComponentLibrary) Valid() bool {
	return l.validate() == ""
}

// validate returns an empty string for a complete set, or the reason the
// set is incomplete.
func (l *ComponentLibrary) validate() string {
	info, err := os.Stat(l.SymbolPath)
	if err != nil {
		return "symbol file missing"
	}
	if info.Size() == 0 {
		return "symbol file is empty"
	}
	if n, _ := filepath.Glob(filepath.Join(l.Footprints, "*.kicad_mod")); len(n) == 0 {
		return "no footprint files"
	}
	steps, _ := filepath.Glob(filepath.Join(l.Models, "*.step"))
	wrls, _ := filepath.Glob(filepath.Join(l.Models, "*.wrl"))
	if len(steps)+len(wrls) == 0 {
		return "no 3D model files"
	}
	return ""
}

// runner is the seam over the external conversion tool so tests can
// substitute it.
type runner interface {
	Run(ctx context.Context, id, symbolOut string) error
}

type easyedaRunner struct{}

func (easyedaRunner) Run(ctx context.Context, id, symbolOut string) error {
	cmd := exec.CommandContext(ctx, "easyeda2kicad",
		"--full",
		"--lcsc_id="+id,
		"--output="+symbolOut,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("easyeda2kicad %s: %w (%s)", id, err, tail(out, 200))
	}
	return nil
}

func tail(out []byte, n int) string {
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return string(out)
}

// Downloader fetches and validates component libraries. Safe for
// concurrent use.
type Downloader struct {
	cacheDir string
	timeout  time.Duration
	workers  int
	run      runner
	log      zerolog.Logger
}

// NewDownloader creates a downloader caching under dir.
func NewDownloader(dir string, log zerolog.Logger) (*Downloader, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "jlc-has-it", "libraries")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library cache: %w", err)
	}
	return &Downloader{
		cacheDir: dir,
		timeout:  DefaultTimeout,
		workers:  DefaultWorkers,
		run:      easyedaRunner{},
		log:      log,
	}, nil
}

// Fetch downloads one part's library set and validates it. A part the
// tool cannot convert, or an incomplete set, returns nil without error;
// only infrastructure failures are errors.
func (d *Downloader) Fetch(ctx context.Context, id string) (*ComponentLibrary, error) {
	outDir := filepath.Join(d.cacheDir, id)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir for %s: %w", id, err)
	}

	lib := &ComponentLibrary{
		ID:         id,
		SymbolPath: filepath.Join(outDir, symbolFile),
		Footprints: filepath.Join(outDir, footprintDir),
		Models:     filepath.Join(outDir, modelDir),
	}

	// A cached complete set never re-runs the tool.
	if lib.Valid() {
		return lib, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.run.Run(runCtx, id, lib.SymbolPath); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			d.log.Warn().Str("id", id).Dur("timeout", d.timeout).Msg("library fetch timed out")
			return nil, nil
		}
		d.log.Warn().Str("id", id).Err(err).Msg("library fetch failed")
		return nil, nil
	}

	if reason := lib.validate(); reason != "" {
		d.log.Warn().Str("id", id).Str("reason", reason).Msg("library set incomplete")
		return nil, nil
	}
	return lib, nil
}

// FetchAll fans out over a bounded worker pool and collects one entry
// per requested id; failed or incomplete fetches map to nil. Completion
// order is unspecified, only the final aggregation is.
func (d *Downloader) FetchAll(ctx context.Context, ids []string) map[string]*ComponentLibrary {
	jobs := make(chan string)
	var mu sync.Mutex
	results := make(map[string]*ComponentLibrary, len(ids))

	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				lib, err := d.Fetch(ctx, id)
				if err != nil {
					d.log.Warn().Str("id", id).Err(err).Msg("library fetch error")
					lib = nil
				}
				mu.Lock()
				results[id] = lib
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	return results
}

// Validated fetches all ids and keeps only complete sets.
func (d *Downloader) Validated(ctx context.Context, ids []string) map[string]*ComponentLibrary {
	valid := make(map[string]*ComponentLibrary)
	for id, lib := range d.FetchAll(ctx, ids) {
		if lib != nil && lib.Valid() {
			valid[id] = lib
		}
	}
	return valid
}

// Prune removes cached library sets older than the given age and
// returns how many were removed.
func (d *Downloader) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(d.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read library cache: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(d.cacheDir, e.Name())); err != nil {
				return removed, fmt.Errorf("prune %s: %w", e.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}
