package version

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// InstallDirPrefix marks directories that hold an installed launcher version.
const InstallDirPrefix = "app-"

// ScanResult is the outcome of reading a version out of a directory name.
// Exactly one of Parsed or Unparseable is meaningful, selected by OK.
type ScanResult struct {
	Name    string
	Version Version
	OK      bool
}

// Parsed wraps a successfully read version.
func Parsed(name string, v Version) ScanResult {
	return ScanResult{Name: name, Version: v, OK: true}
}

// Unparseable records a name that carried no usable version.
func Unparseable(name string) ScanResult {
	return ScanResult{Name: name}
}

func (r ScanResult) String() string {
	if !r.OK {
		return fmt.Sprintf("unparseable(%s)", r.Name)
	}
	return r.Version.Full()
}

// Compare orders results; an unparseable result sorts below every parsed one.
func (r ScanResult) Compare(other ScanResult) int {
	switch {
	case !r.OK && !other.OK:
		return 0
	case !r.OK:
		return -1
	case !other.OK:
		return 1
	}
	return Compare(r.Version, other.Version)
}

// ScanDirName reads the version suffix of a name like "app-1.9.0.2". The text
// after the last '-' may hold at most four dot separated integers; missing
// trailing components are zero.
func ScanDirName(name string) ScanResult {
	base := filepath.Base(name)
	suffix := base
	if i := strings.LastIndex(base, "-"); i >= 0 {
		suffix = base[i+1:]
	}

	if strings.Count(suffix, ".")+1 > 4 {
		return Unparseable(base)
	}

	var nums []int
	for _, group := range strings.Split(suffix, ".") {
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil || n < 0 {
			return Unparseable(base)
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return Unparseable(base)
	}
	for len(nums) < 3 {
		nums = append(nums, 0)
	}

	return Parsed(base, fromInts(nums))
}

// ScanInstalled reads every app-* directory directly under dir and returns
// the highest result. found is false when no such directory exists. A
// directory whose name does not parse is logged and skipped over rather than
// failing the scan.
func ScanInstalled(dir string, logger *zap.Logger) (best ScanResult, found bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ScanResult{}, false, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), InstallDirPrefix) {
			continue
		}

		result := ScanDirName(entry.Name())
		if !result.OK {
			logger.Warn("Failed to parse version from directory name, treating it as the lowest version",
				zap.String("path", filepath.Join(dir, entry.Name())))
		}

		if !found || result.Compare(best) > 0 {
			best = result
			found = true
		}
	}

	return best, found, nil
}
