package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/CollapseLauncher/ApplyUpdate/internal/channel"
)

// SoundPlayer defines the interface for playing sounds
type SoundPlayer interface {
	Play(name string)
	PlayAsync(name string)
}

// Config holds configuration for prompting
type Config struct {
	NonInteractive bool
	// Dialogs shows confirmations as native message boxes where the
	// platform has them, falling back to the console otherwise.
	Dialogs bool
	Sound   SoundPlayer
}

// errNoDialog is returned by confirmDialog on platforms without one.
var errNoDialog = errors.New("native dialogs not supported")

// Prompter asks questions on a console.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	cfg Config
}

// New returns a Prompter reading answers from in and writing questions to
// out.
func New(in io.Reader, out io.Writer, cfg Config) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, cfg: cfg}
}

func (p *Prompter) play(name string) {
	if p.cfg.Sound != nil {
		p.cfg.Sound.Play(name)
	}
}

// WaitForKey waits for user to press Enter
func (p *Prompter) WaitForKey(prompt string) {
	if p.cfg.NonInteractive {
		return
	}
	fmt.Fprint(p.out, prompt)
	p.in.ReadBytes('\n')
}

// Confirm asks a yes/no question. Non-interactive runs always confirm. A
// read error counts as no.
func (p *Prompter) Confirm(title, question string) bool {
	if p.cfg.NonInteractive {
		return true
	}

	if p.cfg.Dialogs {
		confirmed, err := confirmDialog(title, question)
		if err == nil {
			p.answered(confirmed)
			return confirmed
		}
	}

	fmt.Fprintf(p.out, "%s (y/n): ", question)
	response, err := p.in.ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	confirmed := response == "y" || response == "yes"
	if confirmed || response == "n" || response == "no" {
		p.answered(confirmed)
	}
	return confirmed
}

func (p *Prompter) answered(confirmed bool) {
	p.play("select")
	if confirmed {
		p.play("success")
	}
}

// ChannelMenu asks which release channel to install. It returns "" when the
// user gives up or input ends.
func (p *Prompter) ChannelMenu() string {
	if p.cfg.NonInteractive {
		return ""
	}

	fmt.Fprintln(p.out, "\nNo release channel was recorded for this installation.")
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "  1. Stable")
	fmt.Fprintln(p.out, "     Tested releases, recommended for most users")
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "  2. Preview")
	fmt.Fprintln(p.out, "     Early builds with the newest features")
	fmt.Fprintln(p.out)
	fmt.Fprint(p.out, "Enter your choice (1 or 2, 0 to cancel): ")

	for {
		response, err := p.in.ReadString('\n')
		response = strings.TrimSpace(response)
		if err != nil && response == "" {
			fmt.Fprintln(p.out, "\nError reading input.")
			return ""
		}

		switch strings.ToLower(response) {
		case "1", channel.Stable:
			p.answered(true)
			return channel.Stable
		case "2", channel.Preview:
			p.answered(true)
			return channel.Preview
		case "0":
			p.play("select")
			return ""
		default:
			if err != nil {
				return ""
			}
			fmt.Fprint(p.out, "Invalid choice. Please enter 1, 2 or 0: ")
		}
	}
}
