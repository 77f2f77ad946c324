package channel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	testutil "github.com/CollapseLauncher/ApplyUpdate/testing"
)

// TestSaveAndLoad tests saving and loading the channel stamp
func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()

	for _, channel := range []string{"stable", "preview", "Preview"} {
		t.Run(channel, func(t *testing.T) {
			if err := Save(tempDir, channel); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			loaded, err := Load(tempDir)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			want, _ := Normalize(channel)
			if loaded != want {
				t.Errorf("Load() = %q, want %q", loaded, want)
			}
		})
	}
}

func TestSave_RejectsUnknown(t *testing.T) {
	err := Save(t.TempDir(), "nightly")
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Save() error = %v, want ErrInvalid", err)
	}
}

// TestLoad_Content tests how the first line of the stamp is interpreted
func TestLoad_Content(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "lowercase stable", content: "stable", want: "stable"},
		{name: "mixed case preview", content: "Preview", want: "preview"},
		{name: "upper case", content: "STABLE\n", want: "stable"},
		{name: "crlf line ending", content: "Preview\r\n", want: "preview"},
		{name: "surrounding space", content: "  preview  \n", wantErr: true},
		{name: "only first line counts", content: "preview\nstable\n", want: "preview"},
		{name: "unknown token", content: "nightly", wantErr: true},
		{name: "empty file", content: "", wantErr: true},
		{name: "channel on second line", content: "\nstable", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFile(t, filepath.Join(dir, StampFile), tt.content)

			got, err := Load(dir)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("Load() error = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Load() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !os.IsNotExist(err) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
}

// TestResolve tests the temp-then-working-dir search order
func TestResolve(t *testing.T) {
	work := t.TempDir()
	temp := filepath.Join(work, "_Temp")

	tests := []struct {
		name     string
		temp     string
		work     string
		want     string
		wantFrom string
		wantErr  bool
		noStamp  bool
	}{
		{name: "temp wins", temp: "Preview", work: "stable", want: "preview", wantFrom: temp},
		{name: "invalid temp does not fall through", temp: "garbage", work: "stable", wantErr: true, wantFrom: temp},
		{name: "working dir only", work: "preview", want: "preview", wantFrom: work},
		{name: "none", wantErr: true, noStamp: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.RemoveAll(temp)
			os.Remove(filepath.Join(work, StampFile))
			if tt.temp != "" {
				testutil.WriteFile(t, filepath.Join(temp, StampFile), tt.temp)
			}
			if tt.work != "" {
				testutil.WriteFile(t, filepath.Join(work, StampFile), tt.work)
			}

			got, from, err := Resolve(temp, work)
			if tt.wantErr {
				if err == nil {
					t.Error("Resolve() expected error")
				}
				if from != tt.wantFrom {
					t.Errorf("Resolve() from = %q, want %q", from, tt.wantFrom)
				}
				if got := errors.Is(err, ErrNoStamp); got != tt.noStamp {
					t.Errorf("errors.Is(err, ErrNoStamp) = %v, want %v", got, tt.noStamp)
				}
				if Exists(temp, work) == tt.noStamp {
					t.Errorf("Exists() = %v", !tt.noStamp)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want || from != tt.wantFrom {
				t.Errorf("Resolve() = %q from %q, want %q from %q", got, from, tt.want, tt.wantFrom)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := map[string]string{"stable": "Stable", "preview": "Preview", "": ""}
	for in, want := range tests {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}
