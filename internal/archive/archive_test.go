package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"

	testutil "github.com/CollapseLauncher/ApplyUpdate/testing"
)

type tarEntry struct {
	name string
	body string
	dir  bool
}

// rawPackage writes entries in exactly the given order.
func rawPackage(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	tw := tar.NewWriter(bw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Typeflag: tar.TypeReg, Size: int64(len(e.body))}
		if e.dir {
			hdr = &tar.Header{Name: e.name, Mode: 0755, Typeflag: tar.TypeDir}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// truncatedPackage is valid brotli whose payload is too short to be a tar
// header.
func truncatedPackage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	if _, err := bw.Write([]byte("not a tar archive")); err != nil {
		t.Fatal(err)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_RoundTrip(t *testing.T) {
	files := map[string]string{
		"CollapseLauncher.exe":            "exe bytes",
		"Lib/Hi3Helper.Core.dll":          strings.Repeat("core", 20000),
		"Lib/Native/brotli.dll":           "native",
		"Assets/Images/PageBackground":    "",
		"app-1.82.7/CollapseLauncher.exe": "nested",
	}
	pkg := testutil.BuildPackage(t, files)

	out := t.TempDir()
	var names []string
	n, err := Extract(context.Background(), bytes.NewReader(pkg), out, func(name string, ordinal int) {
		if ordinal != len(names)+1 {
			t.Errorf("ordinal = %d, want %d", ordinal, len(names)+1)
		}
		names = append(names, name)
	})
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	if n != len(names) {
		t.Errorf("Extract() returned %d, callback saw %d entries", n, len(names))
	}

	testutil.AssertTree(t, out, files)
}

func TestExtract_ParentsInferredFromFiles(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{
			name: "no directory entries",
			entries: []tarEntry{
				{name: "a/b/c.txt", body: "c"},
				{name: "a/d.txt", body: "d"},
			},
		},
		{
			name: "directory entry after its file",
			entries: []tarEntry{
				{name: "a/b/c.txt", body: "c"},
				{name: "a/", dir: true},
				{name: "a/b/", dir: true},
				{name: "a/d.txt", body: "d"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			if _, err := Extract(context.Background(), bytes.NewReader(rawPackage(t, tt.entries)), out, nil); err != nil {
				t.Fatalf("Extract() unexpected error: %v", err)
			}
			testutil.AssertTree(t, out, map[string]string{"a/b/c.txt": "c", "a/d.txt": "d"})
		})
	}
}

func TestExtract_EmptyDirectoryEntry(t *testing.T) {
	out := t.TempDir()
	pkg := rawPackage(t, []tarEntry{{name: "empty/", dir: true}})
	if _, err := Extract(context.Background(), bytes.NewReader(pkg), out, nil); err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
	info, err := os.Stat(filepath.Join(out, "empty"))
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory empty/, got %v", err)
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	out := t.TempDir()
	pkg := rawPackage(t, []tarEntry{{name: "../escape.txt", body: "x"}})

	_, err := Extract(context.Background(), bytes.NewReader(pkg), out, nil)
	if err == nil || !strings.Contains(err.Error(), "traversal") {
		t.Fatalf("Extract() error = %v, want traversal error", err)
	}
	testutil.AssertFileNotExists(t, filepath.Join(filepath.Dir(out), "escape.txt"))
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pkg := testutil.BuildPackage(t, map[string]string{"a.txt": "a"})
	_, err := Extract(ctx, bytes.NewReader(pkg), t.TempDir(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestExtract_CorruptStream(t *testing.T) {
	_, err := Extract(context.Background(), bytes.NewReader(truncatedPackage(t)), t.TempDir(), nil)
	if err == nil {
		t.Error("Extract() expected error for corrupt input")
	}
}

func TestExtractFile_DeletesPackage(t *testing.T) {
	for _, corrupt := range []bool{false, true} {
		dir := t.TempDir()
		pkgPath := filepath.Join(dir, "latest")
		if corrupt {
			if err := os.WriteFile(pkgPath, truncatedPackage(t), 0644); err != nil {
				t.Fatal(err)
			}
		} else {
			testutil.WritePackage(t, pkgPath, map[string]string{"x.txt": "x"})
		}

		_, err := ExtractFile(context.Background(), pkgPath, filepath.Join(dir, "_Extract"), nil)
		if corrupt && err == nil {
			t.Error("ExtractFile() expected error for corrupt package")
		}
		if !corrupt && err != nil {
			t.Errorf("ExtractFile() unexpected error: %v", err)
		}
		testutil.AssertFileNotExists(t, pkgPath)
	}
}

func TestCompress(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "input.bin")
	out := filepath.Join(dir, "input.bin.br")
	content := strings.Repeat("collapse launcher release payload ", 10000)
	testutil.WriteFile(t, in, content)

	var last, total int64
	calls := 0
	err := Compress(context.Background(), in, out, func(processed, size int64) {
		if processed < last {
			t.Errorf("progress went backwards: %d after %d", processed, last)
		}
		last, total = processed, size
		calls++
	})
	if err != nil {
		t.Fatalf("Compress() unexpected error: %v", err)
	}
	if calls == 0 || last != int64(len(content)) || total != int64(len(content)) {
		t.Errorf("progress calls=%d last=%d total=%d, want final %d", calls, last, total, len(content))
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		t.Fatalf("failed to decompress: %v", err)
	}
	if string(got) != content {
		t.Error("decompressed content differs from input")
	}
}

func TestPack_ExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"CollapseLauncher.exe": "exe",
		"Lib/a.dll":            "a",
		"Lib/Sub/b.dll":        strings.Repeat("b", 100000),
	}
	testutil.WriteTree(t, src, files)

	pkgPath := filepath.Join(t.TempDir(), "latest")
	n, err := Pack(context.Background(), src, pkgPath, nil)
	if err != nil {
		t.Fatalf("Pack() unexpected error: %v", err)
	}
	// 3 files + Lib/ + Lib/Sub/
	if n != 5 {
		t.Errorf("Pack() wrote %d entries, want 5", n)
	}

	out := t.TempDir()
	if _, err := ExtractFile(context.Background(), pkgPath, out, nil); err != nil {
		t.Fatalf("ExtractFile() unexpected error: %v", err)
	}
	testutil.AssertTree(t, out, files)
}
