package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gregmatthewcrossley/jlc-has-it/internal/catalog"
)

var (
	flagCacheDir string
	flagMaxAge   time.Duration
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "jlc-has-it",
	Short: "Search the JLCPCB parts catalog from a local snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "snapshot cache directory (default ./cache, falling back to the user cache dir)")
	rootCmd.PersistentFlags().DurationVar(&flagMaxAge, "max-age", catalog.DefaultMaxAge, "snapshot age before re-download")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// resolveCacheDir prefers a project-local ./cache for development and
// falls back to the user cache directory.
func resolveCacheDir() string {
	if flagCacheDir != "" {
		return flagCacheDir
	}
	wd, err := os.Getwd()
	if err == nil {
		local := filepath.Join(wd, "cache")
		if _, err := os.Stat(local); err == nil {
			return local
		}
		if writable(wd) {
			return local
		}
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "jlc-has-it")
}

func writable(dir string) bool {
	probe := filepath.Join(dir, ".write_test")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

func newManager(log zerolog.Logger) (*catalog.Manager, error) {
	return catalog.NewManager(catalog.Config{
		CacheDir: resolveCacheDir(),
		MaxAge:   flagMaxAge,
		Logger:   log,
	})
}
