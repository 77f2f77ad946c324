package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/CollapseLauncher/ApplyUpdate/internal/audio"
	"github.com/CollapseLauncher/ApplyUpdate/internal/config"
	"github.com/CollapseLauncher/ApplyUpdate/internal/console"
	"github.com/CollapseLauncher/ApplyUpdate/internal/download"
	"github.com/CollapseLauncher/ApplyUpdate/internal/logging"
	"github.com/CollapseLauncher/ApplyUpdate/internal/paths"
	"github.com/CollapseLauncher/ApplyUpdate/internal/process"
	"github.com/CollapseLauncher/ApplyUpdate/internal/prompt"
	"github.com/CollapseLauncher/ApplyUpdate/internal/selfupdate"
	"github.com/CollapseLauncher/ApplyUpdate/internal/update"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const title = "Collapse Launcher Updater"

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"work-dir":        "working_dir",
	"launcher":        "launcher_executable",
	"channel":         "channel",
	"mirror":          "preferred_mirror",
	"parallelism":     "parallelism",
	"non-interactive": "non_interactive",
	"sounds":          "sounds",
	"verify":          "verify_manifest",
	"log-level":       "log_level",
	"log-file":        "log_file",
}

type app struct {
	v          *viper.Viper
	configFile string
	quiet      bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "ApplyUpdate",
		Short: "Collapse Launcher updater",
		Long: `ApplyUpdate waits for Collapse Launcher to close, downloads the latest
release of its channel from the fastest available mirror, installs it in
place and starts the launcher again.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUpdate(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file path")
	flags.String("work-dir", "", "Launcher installation directory (default: the updater's directory)")
	flags.String("launcher", "", "Launcher executable to start after updating")
	flags.String("channel", "", "Release channel used when no stamp file exists: stable or preview")
	flags.String("mirror", "", "Preferred mirror name")
	flags.Int("parallelism", 0, "Concurrent connections per download")
	flags.Bool("non-interactive", false, "Never prompt; confirmations are accepted")
	flags.Bool("sounds", false, "Play audio cues")
	flags.Bool("verify", false, "Verify extracted files against the release manifest")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-file", "", "Log file path (default: ApplyUpdate.log in the working directory)")
	root.Flags().BoolVarP(&a.quiet, "quiet", "q", false, "Suppress console output")

	for name, key := range flagKeys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}

	root.AddCommand(
		newVersionCommand(),
		newMirrorsCommand(a),
		newConfigCommand(a),
		newCompressCommand(),
		newPackCommand(),
		newVerifyCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	err := NewRootCommand().Execute()
	if err != nil && !errors.Is(err, update.ErrLegacyDeclined) {
		fmt.Fprintln(os.Stderr, err)
	}
	return update.ExitCode(err)
}

// loadConfig reads and validates the configuration. The config file is
// searched next to the executable and in the current directory.
func (a *app) loadConfig() (*config.Config, error) {
	var dirs []string
	if dir, err := paths.ExecutableDir(); err == nil {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, ".")

	cfg, err := config.Load(a.v, a.configFile, dirs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (a *app) layout(cfg *config.Config) (paths.Layout, error) {
	workDir := cfg.WorkingDir
	if workDir == "" {
		dir, err := paths.ExecutableDir()
		if err != nil {
			return paths.Layout{}, err
		}
		workDir = dir
	}
	layout, err := paths.New(workDir, cfg.LauncherExecutable)
	if err != nil {
		return paths.Layout{}, err
	}
	if self, err := selfupdate.Executable(); err == nil {
		layout.Self = self
	}
	return layout, nil
}

func (a *app) runUpdate(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	layout, err := a.layout(cfg)
	if err != nil {
		return err
	}

	logOpts := cfg.LoggingOptions()
	if logOpts.File == "" {
		logOpts.File = layout.LogPath()
	}
	if a.quiet {
		logOpts.Output = io.Discard
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	defer closeLog()

	console.SetTitle(title)
	if layout.Self != "" {
		if found, err := selfupdate.CleanupOld(layout.Self); err != nil {
			logger.Warn("Failed to remove previous updater binary", zap.Error(err))
		} else if found {
			logger.Info("Removed previous updater binary")
		}
	}

	renderer := console.NewRenderer(os.Stdout, a.quiet)
	player := audio.NewPlayer(cfg.Sounds, 0, logger)
	if cfg.SoundDir != "" {
		if err := player.LoadDir(cfg.SoundDir); err != nil {
			logger.Warn("Failed to load custom sounds", zap.String("dir", cfg.SoundDir), zap.Error(err))
		}
	}
	defer player.StopAll()

	prompter := prompt.New(os.Stdin, os.Stdout, prompt.Config{
		NonInteractive: cfg.NonInteractive,
		Dialogs:        true,
		Sound:          player,
	})

	fetcher := download.New(cfg.Registry(),
		download.WithHTTPClient(&http.Client{}),
		download.WithLogger(logger),
		download.WithProgress(renderer.Progress),
		download.WithProbeTimeout(cfg.HTTPTimeout))

	updater := update.New(update.Settings{
		Layout:              layout,
		ProcessName:         cfg.ProcessName,
		Channel:             cfg.Channel,
		Parallelism:         cfg.Parallelism,
		SwapRetries:         cfg.SwapRetries,
		SwapRetryDelay:      cfg.SwapRetryDelay,
		PollInterval:        cfg.PollInterval,
		ExitWaitTimeout:     cfg.ExitWaitTimeout,
		CountdownSeconds:    cfg.CountdownSeconds,
		StartupDelaySeconds: cfg.StartupDelaySeconds,
		VerifyManifest:      cfg.VerifyManifest,
	}, fetcher,
		update.WithLogger(logger),
		update.WithProcesses(process.NewWatcher(logger)),
		update.WithAsker(prompter),
		update.WithSound(player),
		update.WithStatus(func(s update.Status) {
			renderer.Status(s.Headline, s.Activity, s.Detail, s.Indeterminate)
		}),
		update.WithEntryProgress(renderer.Entry),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := updater.Run(ctx)
	renderer.Done()
	if err != nil {
		if !errors.Is(err, update.ErrLegacyDeclined) && !errors.Is(err, context.Canceled) {
			renderer.Log("Update failed: %v", err)
			renderer.Log("Temporary files were kept in %s, run the updater again to resume.", filepath.Base(layout.TempDir()))
			prompter.WaitForKey("\nPress Enter to exit...")
		}
		return err
	}

	renderer.Log("Updated to %s (%d files).", availableVersion(res), res.Files)
	return nil
}

func availableVersion(res update.Result) string {
	if res.Available == nil {
		return "the latest " + res.Channel + " release"
	}
	return res.Available.String()
}
