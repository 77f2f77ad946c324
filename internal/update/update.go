package update

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/CollapseLauncher/ApplyUpdate/internal/archive"
	"github.com/CollapseLauncher/ApplyUpdate/internal/console"
	"github.com/CollapseLauncher/ApplyUpdate/internal/manifest"
	"github.com/CollapseLauncher/ApplyUpdate/internal/paths"
	"github.com/CollapseLauncher/ApplyUpdate/internal/process"
)

var (
	// ErrLegacyDeclined is returned when the user refuses the legacy wipe.
	ErrLegacyDeclined = errors.New("legacy installation clean-up declined")
	// ErrNoChannel is returned when no release channel could be determined.
	ErrNoChannel = errors.New("no release channel selected")
	// ErrSwapExhausted is returned when the old install directories could
	// not be removed within the configured attempts.
	ErrSwapExhausted = errors.New("failed to remove previous installation")
)

// ExitCodeDeclined is the process exit code for a declined legacy clean-up.
const ExitCodeDeclined = math.MinInt32

// ExitCode maps the result of Run onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrLegacyDeclined):
		return ExitCodeDeclined
	default:
		return 1
	}
}

// PackageRelativePath returns the package location for a channel.
func PackageRelativePath(channel string) string {
	return "squirrel/" + channel + "/" + paths.PackageName
}

// State is a stage of an update run.
type State int

const (
	Precheck State = iota
	LegacyDetection
	PrepareTemp
	Download
	Extract
	Swap
	Install
	Cleanup
	Relaunch
)

func (s State) String() string {
	switch s {
	case Precheck:
		return "precheck"
	case LegacyDetection:
		return "legacy-detection"
	case PrepareTemp:
		return "prepare-temp"
	case Download:
		return "download"
	case Extract:
		return "extract"
	case Swap:
		return "swap"
	case Install:
		return "install"
	case Cleanup:
		return "cleanup"
	case Relaunch:
		return "relaunch"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is emitted on every stage transition and notable step.
type Status struct {
	State         State
	Headline      string
	Activity      string
	Detail        string
	Indeterminate bool
}

// StatusFunc observes status changes. It is called from the orchestration
// goroutine.
type StatusFunc func(Status)

// Fetcher is the part of download.Fetcher the orchestrator uses.
type Fetcher interface {
	FetchToFile(ctx context.Context, relPath, dst string, parallelism int) error
	Probe(ctx context.Context, relPath string) (*manifest.Manifest, error)
}

// ProcessController waits for and terminates the launcher.
type ProcessController interface {
	WaitForExit(ctx context.Context, name string, interval, timeout time.Duration) error
	KillAll(ctx context.Context, name string) (int, error)
}

// Asker is the part of prompt.Prompter the orchestrator uses.
type Asker interface {
	Confirm(title, question string) bool
	ChannelMenu() string
}

// CuePlayer plays audio cues by name.
type CuePlayer interface {
	Play(name string)
	PlayAsync(name string)
}

// LaunchFunc starts a program detached from the updater.
type LaunchFunc func(path string, args ...string) error

// CountdownFunc counts seconds down to zero, calling tick once per second.
type CountdownFunc func(ctx context.Context, seconds int, tick func(remaining int)) error

// Settings are the tunables of a run.
type Settings struct {
	Layout      paths.Layout
	ProcessName string
	// Channel is used when no stamp file names one.
	Channel string

	Parallelism         int
	SwapRetries         int
	SwapRetryDelay      time.Duration
	PollInterval        time.Duration
	ExitWaitTimeout     time.Duration
	CountdownSeconds    int
	StartupDelaySeconds int
	VerifyManifest      bool
}

// Updater runs one update from launcher shutdown to relaunch.
type Updater struct {
	settings  Settings
	fetcher   Fetcher
	logger    *zap.Logger
	procs     ProcessController
	asker     Asker
	sound     CuePlayer
	launch    LaunchFunc
	countdown CountdownFunc
	onStatus  StatusFunc
	onEntry   archive.EntryFunc
}

// Option configures an Updater.
type Option func(*Updater)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *Updater) { u.logger = l }
}

// WithProcesses replaces the process watcher.
func WithProcesses(p ProcessController) Option {
	return func(u *Updater) { u.procs = p }
}

// WithAsker sets where confirmations and the channel menu are shown.
func WithAsker(a Asker) Option {
	return func(u *Updater) { u.asker = a }
}

// WithSound sets the audio cue player.
func WithSound(p CuePlayer) Option {
	return func(u *Updater) { u.sound = p }
}

// WithLauncher replaces how the launcher is started.
func WithLauncher(fn LaunchFunc) Option {
	return func(u *Updater) { u.launch = fn }
}

// WithCountdown replaces the one second countdown.
func WithCountdown(fn CountdownFunc) Option {
	return func(u *Updater) { u.countdown = fn }
}

// WithStatus registers the status observer.
func WithStatus(fn StatusFunc) Option {
	return func(u *Updater) { u.onStatus = fn }
}

// WithEntryProgress registers an observer for per-file progress during
// extraction, installation and the legacy wipe.
func WithEntryProgress(fn archive.EntryFunc) Option {
	return func(u *Updater) { u.onEntry = fn }
}

// New creates an Updater. Unset collaborators fall back to the system
// process table, automatic confirmation and process.StartDetached.
func New(settings Settings, fetcher Fetcher, opts ...Option) *Updater {
	u := &Updater{
		settings:  settings,
		fetcher:   fetcher,
		launch:    process.StartDetached,
		countdown: console.Countdown,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	u.logger = u.logger.Named("update")
	if u.procs == nil {
		u.procs = process.NewWatcher(u.logger)
	}
	if u.asker == nil {
		u.asker = autoConfirm{}
	}
	if u.settings.Parallelism < 1 {
		u.settings.Parallelism = 1
	}
	if u.settings.SwapRetries < 1 {
		u.settings.SwapRetries = 1
	}
	if u.settings.PollInterval <= 0 {
		u.settings.PollInterval = process.DefaultPollInterval
	}
	return u
}

// autoConfirm accepts every question and never picks a channel.
type autoConfirm struct{}

func (autoConfirm) Confirm(string, string) bool { return true }
func (autoConfirm) ChannelMenu() string         { return "" }

func (u *Updater) status(s Status) {
	if u.onStatus != nil {
		u.onStatus(s)
	}
}

func (u *Updater) entry(name string, ordinal int) {
	if u.onEntry != nil {
		u.onEntry(name, ordinal)
	}
}

func (u *Updater) play(cue string) {
	if u.sound != nil {
		u.sound.PlayAsync(cue)
	}
}
