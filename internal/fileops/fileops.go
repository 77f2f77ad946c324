package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Action is the attempted path operation.
type Action string

const (
	ActionCreate Action = "create"
	ActionDelete Action = "delete"
	ActionMove   Action = "move"
	ActionCopy   Action = "copy"
)

// Kind is the type of filesystem object an action targeted.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// PathActionError carries the action, target kind and path of a failed
// filesystem operation.
type PathActionError struct {
	Action Action
	Kind   Kind
	Path   string
	Err    error
}

func (e *PathActionError) Error() string {
	return fmt.Sprintf("failed to %s %s %s: %v", e.Action, e.Kind, e.Path, e.Err)
}

func (e *PathActionError) Unwrap() error {
	return e.Err
}

func wrap(action Action, kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathActionError{Action: action, Kind: kind, Path: path, Err: err}
}

// EnsureDirectory creates path and any missing parents. An existing directory
// is not an error.
func EnsureDirectory(path string) error {
	return wrap(ActionCreate, KindDirectory, path, os.MkdirAll(path, 0755))
}

// RemoveDirectory deletes path recursively. A missing directory is not an
// error.
func RemoveDirectory(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	// Read-only entries block deletion on Windows.
	if clearErr := clearReadOnlyTree(path); clearErr == nil {
		err = os.RemoveAll(path)
	}
	return wrap(ActionDelete, KindDirectory, path, err)
}

// RemoveFile deletes path. A missing file is not an error. When deletion
// fails the read-only attribute is cleared and the delete retried once.
func RemoveFile(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	info, statErr := os.Lstat(path)
	if statErr != nil {
		return wrap(ActionDelete, KindFile, path, err)
	}
	if chmodErr := os.Chmod(path, info.Mode().Perm()|0200); chmodErr != nil {
		return wrap(ActionDelete, KindFile, path, err)
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return wrap(ActionDelete, KindFile, path, err)
}

func clearReadOnlyTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode().Perm()&0200 == 0 {
			_ = os.Chmod(path, info.Mode().Perm()|0200)
		}
		return nil
	})
}

// renameFile is swapped out by tests to simulate a locked destination.
var renameFile = os.Rename

// ExclusionSet lists tokens identifying paths that must survive a sweep.
type ExclusionSet []string

// IsExcluded reports whether path contains any token of set. Matching is a
// case-sensitive substring test anywhere in the path.
func IsExcluded(path string, set ExclusionSet) bool {
	for _, token := range set {
		if token != "" && strings.Contains(path, token) {
			return true
		}
	}
	return false
}

// Contains is IsExcluded as a method.
func (s ExclusionSet) Contains(path string) bool {
	return IsExcluded(path, s)
}

// MoveOrCopy moves src to dst, replacing dst. When the move fails the file
// is copied, the copy's size checked against the source, and the source
// removed. The returned error is non-nil only when both strategies failed.
// moved reports which strategy succeeded.
func MoveOrCopy(src, dst string) (moved bool, err error) {
	if err := EnsureDirectory(filepath.Dir(dst)); err != nil {
		return false, err
	}

	moveErr := move(src, dst)
	if moveErr == nil {
		return true, nil
	}

	if copyErr := copyVerified(src, dst); copyErr != nil {
		return false, errors.Join(
			wrap(ActionMove, KindFile, src, moveErr),
			wrap(ActionCopy, KindFile, src, copyErr),
		)
	}

	// The copy is in place; a source we cannot delete is left behind.
	_ = RemoveFile(src)
	return false, nil
}

func move(src, dst string) error {
	if err := RemoveFile(dst); err != nil {
		return err
	}
	return renameFile(src, dst)
}

func copyVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0200)
	if err != nil {
		return err
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	written, err := os.Stat(dst)
	if err != nil {
		return err
	}
	if n != info.Size() || written.Size() != info.Size() {
		return fmt.Errorf("copied %d of %d bytes", written.Size(), info.Size())
	}
	return nil
}
