package selfupdate

import (
	"os"
	"path/filepath"
	"testing"

	testutil "github.com/CollapseLauncher/ApplyUpdate/testing"
)

func TestReplace(t *testing.T) {
	dir := t.TempDir()
	self := filepath.Join(dir, "ApplyUpdate.exe")
	incoming := filepath.Join(dir, "_Temp", "_Extract", "ApplyUpdate.exe")
	testutil.WriteFile(t, self, "old build")
	testutil.WriteFile(t, incoming, "new build")

	if err := Replace(self, incoming); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	testutil.AssertFileContent(t, self, "new build")
	testutil.AssertFileContent(t, self+OldSuffix, "old build")
	testutil.AssertFileNotExists(t, incoming)
}

func TestReplace_StaleBackup(t *testing.T) {
	dir := t.TempDir()
	self := filepath.Join(dir, "ApplyUpdate.exe")
	incoming := filepath.Join(dir, "new.exe")
	testutil.WriteFile(t, self, "current")
	testutil.WriteFile(t, self+OldSuffix, "ancient")
	testutil.WriteFile(t, incoming, "next")

	if err := Replace(self, incoming); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	testutil.AssertFileContent(t, self+OldSuffix, "current")
	testutil.AssertFileContent(t, self, "next")
}

func TestReplace_RestoresOnFailure(t *testing.T) {
	dir := t.TempDir()
	self := filepath.Join(dir, "ApplyUpdate.exe")
	testutil.WriteFile(t, self, "current")

	if err := Replace(self, filepath.Join(dir, "missing.exe")); err == nil {
		t.Fatal("Replace() expected error for missing source")
	}
	testutil.AssertFileContent(t, self, "current")
	testutil.AssertFileNotExists(t, self+OldSuffix)
}

func TestCleanupOld(t *testing.T) {
	dir := t.TempDir()
	self := filepath.Join(dir, "ApplyUpdate.exe")

	t.Run("no backup", func(t *testing.T) {
		found, err := CleanupOld(self)
		if found || err != nil {
			t.Errorf("CleanupOld() = %v, %v; want false, nil", found, err)
		}
	})

	t.Run("removes backup", func(t *testing.T) {
		testutil.WriteFile(t, self+OldSuffix, "x")
		found, err := CleanupOld(self)
		if !found || err != nil {
			t.Errorf("CleanupOld() = %v, %v; want true, nil", found, err)
		}
		if _, err := os.Stat(self + OldSuffix); !os.IsNotExist(err) {
			t.Error("backup still exists")
		}
	})
}

func TestIsSelf(t *testing.T) {
	root := filepath.Join("C:", "Games", "Collapse")
	self := filepath.Join(root, "ApplyUpdate.exe")

	tests := []struct {
		rel  string
		self string
		want bool
	}{
		{"ApplyUpdate.exe", self, true},
		{"applyupdate.EXE", self, true},
		{filepath.Join("Lib", "ApplyUpdate.exe"), self, false},
		{"CollapseLauncher.exe", self, false},
		{"ApplyUpdate.exe", "", false},
	}
	for _, tt := range tests {
		if got := IsSelf(root, tt.rel, tt.self); got != tt.want {
			t.Errorf("IsSelf(%q, %q) = %v, want %v", tt.rel, tt.self, got, tt.want)
		}
	}
}
