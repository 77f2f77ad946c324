package testing

import (
	"archive/tar"
	"bytes"
	"os"
	"path"
	"sort"
	"testing"

	"github.com/andybalholm/brotli"
)

// BuildPackage returns a brotli compressed tar holding files (slash
// separated relative paths). Directory entries are emitted for every parent
// directory ahead of the files inside it.
func BuildPackage(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	bw := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	tw := tar.NewWriter(bw)

	dirs := make(map[string]bool)
	for _, name := range names {
		for dir := path.Dir(name); dir != "." && !dirs[dir]; dir = path.Dir(dir) {
			dirs[dir] = true
		}
	}
	dirNames := make([]string, 0, len(dirs))
	for dir := range dirs {
		dirNames = append(dirNames, dir)
	}
	sort.Strings(dirNames)

	for _, dir := range dirNames {
		hdr := &tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0755}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write dir header: %v", err)
		}
	}
	for _, name := range names {
		body := []byte(files[name])
		hdr := &tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(body))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write header: %v", err)
		}
		if _, err := tw.Write(body); err != nil {
			t.Fatalf("failed to write body: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("failed to close tar: %v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("failed to close brotli: %v", err)
	}
	return buf.Bytes()
}

// WritePackage writes BuildPackage output to path.
func WritePackage(t *testing.T, p string, files map[string]string) {
	t.Helper()
	if err := os.WriteFile(p, BuildPackage(t, files), 0644); err != nil {
		t.Fatalf("failed to write package: %v", err)
	}
}
