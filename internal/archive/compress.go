package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
)

// Brotli settings used for release packages.
const (
	CompressQuality = 11
	CompressWindow  = 24

	compressBufferSize = 4 << 14
)

// ProgressFunc receives the bytes consumed so far and the input size.
type ProgressFunc func(processed, total int64)

func newWriter(w io.Writer) *brotli.Writer {
	return brotli.NewWriterOptions(w, brotli.WriterOptions{
		Quality: CompressQuality,
		LGWin:   CompressWindow,
	})
}

// Compress brotli-compresses the file at inPath into outPath.
func Compress(ctx context.Context, inPath, outPath string, onProgress ProgressFunc) error {
	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	total := info.Size()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	bw := newWriter(out)
	var processed int64
	_, err = copyContext(ctx, bw, in, make([]byte, compressBufferSize), func(n int) {
		processed += int64(n)
		if onProgress != nil {
			onProgress(processed, total)
		}
	})
	if err != nil {
		bw.Close()
		return fmt.Errorf("failed to compress %s: %w", inPath, err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	return out.Close()
}

// Pack writes every file and directory under srcDir into a brotli
// compressed tar at outPath, in the layout Extract expects. Directories are
// written before their contents.
func Pack(ctx context.Context, srcDir, outPath string, onEntry EntryFunc) (int, error) {
	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve source dir: %w", err)
	}
	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve output path: %w", err)
	}

	out, err := os.Create(absOut)
	if err != nil {
		return 0, fmt.Errorf("failed to create package: %w", err)
	}
	defer out.Close()

	bw := newWriter(out)
	tw := tar.NewWriter(bw)
	buf := make([]byte, compressBufferSize)
	count := 0

	walkErr := filepath.WalkDir(absSrc, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == absSrc || path == absOut {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absSrc, path)
		if err != nil {
			return err
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}

		count++
		if onEntry != nil {
			onEntry(hdr.Name, count)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = copyContext(ctx, tw, f, buf, nil)
		return err
	})
	if walkErr != nil {
		return count, fmt.Errorf("failed to pack %s: %w", srcDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return count, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := bw.Close(); err != nil {
		return count, fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	return count, out.Close()
}
