package fileops

import (
	"io/fs"
	"os"
	"path/filepath"
)

// SweepFunc is called before each deletion with the path relative to the
// sweep root and its 1-based ordinal.
type SweepFunc func(rel string, kind Kind, ordinal int)

// Sweep deletes everything under root that is not excluded: first the
// top-level directories, then every remaining file at any depth. Failures
// are collected and the sweep carries on, so one locked file does not block
// the rest.
func Sweep(root string, excludes ExclusionSet, onItem SweepFunc) []error {
	var errs []error
	ordinal := 0

	entries, err := os.ReadDir(root)
	if err != nil {
		return []error{wrap(ActionDelete, KindDirectory, root, err)}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if IsExcluded(path, excludes) {
			continue
		}
		ordinal++
		if onItem != nil {
			onItem(entry.Name(), KindDirectory, ordinal)
		}
		if err := RemoveDirectory(path); err != nil {
			errs = append(errs, err)
		}
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, wrap(ActionDelete, KindDirectory, path, err))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || IsExcluded(path, excludes) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		ordinal++
		if onItem != nil {
			onItem(rel, KindFile, ordinal)
		}
		if err := RemoveFile(path); err != nil {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	return errs
}
