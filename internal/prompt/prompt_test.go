package prompt

import (
	"bytes"
	"strings"
	"testing"
)

type recordingPlayer struct {
	played []string
}

func (r *recordingPlayer) Play(name string)      { r.played = append(r.played, name) }
func (r *recordingPlayer) PlayAsync(name string) { r.played = append(r.played, name) }

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		want       bool
		wantSounds string
	}{
		{name: "yes", input: "y\n", want: true, wantSounds: "select,success"},
		{name: "long yes mixed case", input: "  YES \n", want: true, wantSounds: "select,success"},
		{name: "no", input: "n\n", want: false, wantSounds: "select"},
		{name: "garbage", input: "maybe\n", want: false},
		{name: "eof", input: "", want: false},
		{name: "yes without newline", input: "y", want: true, wantSounds: "select,success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			player := &recordingPlayer{}
			p := New(strings.NewReader(tt.input), &out, Config{Sound: player})

			if got := p.Confirm("Title", "Continue?"); got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Continue? (y/n): ") {
				t.Errorf("question not printed: %q", out.String())
			}
			if got := strings.Join(player.played, ","); got != tt.wantSounds {
				t.Errorf("sounds = %q, want %q", got, tt.wantSounds)
			}
		})
	}
}

func TestConfirm_NonInteractive(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("n\n"), &out, Config{NonInteractive: true})
	if !p.Confirm("Title", "Continue?") {
		t.Error("Confirm() = false, want true in non-interactive mode")
	}
	if out.Len() != 0 {
		t.Errorf("non-interactive prompt wrote %q", out.String())
	}
}

func TestChannelMenu(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "stable by number", input: "1\n", want: "stable"},
		{name: "preview by name", input: "Preview\n", want: "preview"},
		{name: "retry after invalid", input: "9\n2\n", want: "preview"},
		{name: "cancel", input: "0\n", want: ""},
		{name: "eof", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := New(strings.NewReader(tt.input), &out, Config{})
			if got := p.ChannelMenu(); got != tt.want {
				t.Errorf("ChannelMenu() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannelMenu_NonInteractive(t *testing.T) {
	p := New(strings.NewReader("1\n"), &bytes.Buffer{}, Config{NonInteractive: true})
	if got := p.ChannelMenu(); got != "" {
		t.Errorf("ChannelMenu() = %q, want empty", got)
	}
}
