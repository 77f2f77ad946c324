package selfupdate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CollapseLauncher/ApplyUpdate/internal/fileops"
)

// OldSuffix is appended to the running executable while it is being replaced.
const OldSuffix = ".old"

// Executable returns the resolved path of the running executable.
func Executable() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	return exePath, nil
}

// IsSelf reports whether rel, a path relative to the install root, names the
// executable at selfPath inside root.
func IsSelf(root, rel, selfPath string) bool {
	if selfPath == "" {
		return false
	}
	return strings.EqualFold(filepath.Clean(filepath.Join(root, rel)), filepath.Clean(selfPath))
}

// Replace swaps the executable at selfPath for the file at newPath. The
// running image is renamed to selfPath+OldSuffix first since a running
// executable cannot be overwritten on Windows; it is restored when the new
// file cannot be moved in.
func Replace(selfPath, newPath string) error {
	oldExe := selfPath + OldSuffix
	if err := fileops.RemoveFile(oldExe); err != nil {
		return err
	}

	if err := os.Rename(selfPath, oldExe); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &fileops.PathActionError{Action: fileops.ActionMove, Kind: fileops.KindFile, Path: selfPath, Err: err}
	}

	if _, err := fileops.MoveOrCopy(newPath, selfPath); err != nil {
		if restoreErr := os.Rename(oldExe, selfPath); restoreErr != nil && !errors.Is(restoreErr, os.ErrNotExist) {
			return errors.Join(err, fmt.Errorf("failed to restore %s: %w", selfPath, restoreErr))
		}
		return err
	}
	return nil
}

// CleanupOld removes the backup left by a previous Replace. It reports
// whether a backup was found.
func CleanupOld(selfPath string) (bool, error) {
	oldExe := selfPath + OldSuffix
	if _, err := os.Stat(oldExe); err != nil {
		return false, nil
	}
	return true, fileops.RemoveFile(oldExe)
}
