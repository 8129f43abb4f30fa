package catalog

import (
	"fmt"
	"os/exec"
	"strings"
)

// Extractor assembles and extracts a (possibly split) archive into a
// destination directory. The production implementation shells out to 7z,
// which understands multi-part zip archives natively.
type Extractor interface {
	Extract(archive, dest string) error
}

// SevenZip extracts archives with the external 7z binary.
type SevenZip struct{}

func (SevenZip) Extract(archive, dest string) error {
	bin, err := exec.LookPath("7z")
	if err != nil {
		return fmt.Errorf("7z not found in PATH (install p7zip): %w", err)
	}
	out, err := exec.Command(bin, "x", "-y", archive, "-o"+dest).CombinedOutput()
	if err != nil {
		return fmt.Errorf("7z failed: %s: %w", tail(out, 200), err)
	}
	return nil
}

// tail keeps error output short; 7z prints a banner before the failure.
func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
