package process

import (
	"fmt"
	"os"
	"path/filepath"
)

// StartDetached starts the executable at path in its own directory without
// waiting for it. The started process outlives the caller.
func StartDetached(path string, args ...string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to find %s: %w", path, err)
	}
	return startDetached(path, filepath.Dir(path), args)
}
