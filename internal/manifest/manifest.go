package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CollapseLauncher/ApplyUpdate/internal/version"
)

// IndexFile is the manifest name under each channel directory.
const IndexFile = "fileindex.json"

// ErrIntegrity is returned by Verify when extracted files disagree with the
// manifest.
var ErrIntegrity = errors.New("package contents do not match manifest")

// FileInfo describes one file of a release.
type FileInfo struct {
	Path string `json:"p"`
	CRC  string `json:"crc"`
	Size int64  `json:"s"`
}

// Manifest describes the release published on a channel.
type Manifest struct {
	Version version.Version `json:"ver"`
	Time    int64           `json:"time"`
	Files   []FileInfo      `json:"f"`
}

// RelativePath returns the manifest location for a channel.
func RelativePath(channel string) string {
	return channel + "/" + IndexFile
}

// Decode reads a manifest document. A missing or malformed "ver" is an error
// since there is nothing sensible to install without it.
func Decode(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Version.IsZero() {
		return nil, fmt.Errorf("failed to parse manifest: %w", &version.FormatError{Input: "", Reason: "missing ver field"})
	}
	return &m, nil
}

// Load reads a manifest from disk.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// TotalSize sums the advertised file sizes.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// Mismatch is one disagreement found by Verify.
type Mismatch struct {
	Path     string
	Expected int64
	Actual   int64
	Missing  bool
}

func (m Mismatch) String() string {
	if m.Missing {
		return m.Path + ": missing"
	}
	return fmt.Sprintf("%s: size %d, expected %d", m.Path, m.Actual, m.Expected)
}

// Verify compares the sizes of listed files under root. Checksums are not
// compared; the manifest does not document their algorithm.
func (m *Manifest) Verify(root string) ([]Mismatch, error) {
	var mismatches []Mismatch
	for _, f := range m.Files {
		rel := filepath.FromSlash(strings.TrimLeft(f.Path, "/\\"))
		info, err := os.Stat(filepath.Join(root, rel))
		switch {
		case errors.Is(err, os.ErrNotExist):
			mismatches = append(mismatches, Mismatch{Path: f.Path, Expected: f.Size, Missing: true})
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to stat %s: %w", f.Path, err)
		}
		if info.Size() != f.Size {
			mismatches = append(mismatches, Mismatch{Path: f.Path, Expected: f.Size, Actual: info.Size()})
		}
	}

	if len(mismatches) > 0 {
		return mismatches, fmt.Errorf("%w: %d file(s) differ, first %s", ErrIntegrity, len(mismatches), mismatches[0])
	}
	return nil, nil
}
