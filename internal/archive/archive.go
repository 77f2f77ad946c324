package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/CollapseLauncher/ApplyUpdate/internal/fileops"
)

const copyBufferSize = 32 * 1024

// EntryFunc is called for every archive entry with its name and 1-based
// ordinal. The total entry count is unknown until the stream ends.
type EntryFunc func(name string, ordinal int)

// Extract decompresses a brotli stream holding a tar archive and writes its
// entries under outDir in stream order. It returns the number of entries
// read. File payloads are streamed to disk in fixed-size chunks and ctx is
// checked between chunks.
func Extract(ctx context.Context, r io.Reader, outDir string, onEntry EntryFunc) (int, error) {
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	if err := fileops.EnsureDirectory(absOut); err != nil {
		return 0, err
	}

	tr := tar.NewReader(brotli.NewReader(r))
	buf := make([]byte, copyBufferSize)
	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read package entry %d: %w", count+1, err)
		}

		count++
		if onEntry != nil {
			onEntry(hdr.Name, count)
		}

		target, err := containedPath(absOut, hdr.Name)
		if err != nil {
			return count, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := fileops.EnsureDirectory(target); err != nil {
				return count, err
			}
		case tar.TypeReg:
			if target == absOut {
				return count, fmt.Errorf("file entry %q resolves to the output directory", hdr.Name)
			}
			if err := fileops.EnsureDirectory(filepath.Dir(target)); err != nil {
				return count, err
			}
			if err := writeEntry(ctx, tr, target, buf); err != nil {
				return count, fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		default:
			// Links and device entries are never produced by the packer.
		}
	}
}

// ExtractFile extracts the package at pkgPath into outDir. The package file
// is deleted once it has been closed, whether or not extraction succeeded.
func ExtractFile(ctx context.Context, pkgPath, outDir string, onEntry EntryFunc) (n int, err error) {
	f, err := os.Open(pkgPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open package: %w", err)
	}
	defer func() {
		f.Close()
		if rmErr := fileops.RemoveFile(pkgPath); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	return Extract(ctx, f, outDir, onEntry)
}

func writeEntry(ctx context.Context, r io.Reader, target string, buf []byte) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	_, err = copyContext(ctx, out, r, buf, nil)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

// copyContext copies src to dst through buf, checking ctx before every
// chunk. onChunk, when set, receives the size of each written chunk.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte, onChunk func(int)) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != n {
				return written, io.ErrShortWrite
			}
			if onChunk != nil {
				onChunk(n)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// containedPath joins an archive entry name onto base and rejects names that
// escape it.
func containedPath(base, name string) (string, error) {
	joined := filepath.Join(base, filepath.FromSlash(name))
	if joined != base && !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected: %s", name)
	}
	return joined, nil
}
