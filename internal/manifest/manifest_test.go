package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CollapseLauncher/ApplyUpdate/internal/version"
)

const sampleIndex = `{
  "ver": "1.82.7.0",
  "time": 1718000000,
  "f": [
    {"p": "CollapseLauncher.exe", "crc": "0f1e2d3c", "s": 5},
    {"p": "Lib/Hi3Helper.Core.dll", "crc": "aabbccdd", "s": 3}
  ]
}`

func TestDecode(t *testing.T) {
	m, err := Decode(strings.NewReader(sampleIndex))
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}

	if m.Version != (version.Version{Major: 1, Minor: 82, Build: 7}) {
		t.Errorf("Version = %+v", m.Version)
	}
	if m.Time != 1718000000 {
		t.Errorf("Time = %d, want 1718000000", m.Time)
	}
	if len(m.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(m.Files))
	}
	if m.Files[1].Path != "Lib/Hi3Helper.Core.dll" || m.Files[1].CRC != "aabbccdd" || m.Files[1].Size != 3 {
		t.Errorf("Files[1] = %+v", m.Files[1])
	}
	if got := m.TotalSize(); got != 8 {
		t.Errorf("TotalSize() = %d, want 8", got)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		malformed bool
	}{
		{name: "not json", input: "<html>"},
		{name: "bad version", input: `{"ver":"1.2","time":1}`, malformed: true},
		{name: "missing version", input: `{"time":1,"f":[]}`, malformed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Decode() expected error, got nil")
			}
			if tt.malformed && !errors.Is(err, version.ErrMalformed) {
				t.Errorf("Decode() error = %v, want version.ErrMalformed", err)
			}
		})
	}
}

func TestRelativePath(t *testing.T) {
	if got := RelativePath("preview"); got != "preview/fileindex.json" {
		t.Errorf("RelativePath() = %q", got)
	}
}

func TestVerify(t *testing.T) {
	m, err := Decode(strings.NewReader(sampleIndex))
	if err != nil {
		t.Fatalf("Decode() unexpected error: %v", err)
	}

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "CollapseLauncher.exe"), []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}

	mismatches, err := m.Verify(root)
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("Verify() error = %v, want ErrIntegrity", err)
	}
	if len(mismatches) != 1 || !mismatches[0].Missing {
		t.Errorf("Verify() mismatches = %v, want one missing file", mismatches)
	}

	if err := os.MkdirAll(filepath.Join(root, "Lib"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Lib", "Hi3Helper.Core.dll"), []byte("1234"), 0644); err != nil {
		t.Fatal(err)
	}
	mismatches, err = m.Verify(root)
	if !errors.Is(err, ErrIntegrity) || len(mismatches) != 1 || mismatches[0].Actual != 4 {
		t.Errorf("Verify() = %v, %v; want one size mismatch", mismatches, err)
	}

	if err := os.WriteFile(filepath.Join(root, "Lib", "Hi3Helper.Core.dll"), []byte("123"), 0644); err != nil {
		t.Fatal(err)
	}
	if mismatches, err := m.Verify(root); err != nil || len(mismatches) != 0 {
		t.Errorf("Verify() = %v, %v; want clean", mismatches, err)
	}
}
