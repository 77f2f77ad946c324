package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/CollapseLauncher/ApplyUpdate/internal/archive"
	"github.com/CollapseLauncher/ApplyUpdate/internal/audio"
	"github.com/CollapseLauncher/ApplyUpdate/internal/channel"
	"github.com/CollapseLauncher/ApplyUpdate/internal/console"
	"github.com/CollapseLauncher/ApplyUpdate/internal/fileops"
	"github.com/CollapseLauncher/ApplyUpdate/internal/manifest"
	"github.com/CollapseLauncher/ApplyUpdate/internal/process"
	"github.com/CollapseLauncher/ApplyUpdate/internal/selfupdate"
	"github.com/CollapseLauncher/ApplyUpdate/internal/version"
)

// noStampExtraDelay is added to the startup delay when the install carries
// no channel stamp, giving the user more time to abort.
const noStampExtraDelay = 5

// Result summarizes a finished run.
type Result struct {
	Channel string
	// Installed is the highest app-* version found before the update.
	Installed    version.ScanResult
	HasInstalled bool
	// Available is the version advertised by the channel manifest, if it
	// could be fetched.
	Available  *version.Version
	Files      int
	Relaunched bool
}

// Run performs the whole update. A cancelled ctx stops it between steps and
// inside transfers. Fatal errors during download, extraction and install
// leave the temp directory in place for the next attempt.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	var res Result
	layout := u.settings.Layout

	u.logger.Info("Starting update",
		zap.String("work_dir", layout.WorkDir),
		zap.String("launcher", layout.LauncherPath()))
	u.play(audio.CueStart)

	if err := u.startupDelay(ctx, layout.StampDirs()); err != nil {
		return res, err
	}

	ch, stamped, err := u.precheck(ctx)
	if err != nil {
		return res, u.fail(err)
	}
	res.Channel = ch

	m := u.summarize(ctx, &res)
	if m == nil && u.settings.VerifyManifest {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		return res, u.fail(fmt.Errorf("manifest required for verification: %w", manifest.ErrIntegrity))
	}

	if err := u.cleanupLegacy(ctx); err != nil {
		return res, u.fail(err)
	}
	u.prepareTemp()
	if !stamped {
		u.saveStamp(ch)
	}
	if err := u.download(ctx, ch, m); err != nil {
		return res, u.fail(err)
	}
	if err := u.extract(ctx, m); err != nil {
		return res, u.fail(err)
	}
	if err := u.swap(ctx); err != nil {
		return res, u.fail(err)
	}
	n, err := u.install(ctx)
	res.Files = n
	if err != nil {
		return res, u.fail(err)
	}
	u.cleanup()

	if err := u.relaunch(ctx); err != nil {
		return res, u.fail(err)
	}
	res.Relaunched = true
	return res, nil
}

func (u *Updater) fail(err error) error {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrLegacyDeclined) {
		u.logger.Error("Update failed", zap.Error(err))
		u.play(audio.CueError)
	}
	return err
}

func (u *Updater) startupDelay(ctx context.Context, stampDirs []string) error {
	seconds := u.settings.StartupDelaySeconds
	if seconds > 0 && !channel.Exists(stampDirs...) {
		seconds += noStampExtraDelay
	}
	if seconds <= 0 {
		return ctx.Err()
	}
	return u.countdown(ctx, seconds, func(remaining int) {
		u.status(Status{
			State:    Precheck,
			Headline: "Preparing update",
			Activity: fmt.Sprintf("Update starts in %d second(s), press Ctrl+C to cancel", remaining),
		})
	})
}

// precheck waits for the launcher to exit, kills what is left of it and
// resolves the release channel. stamped reports whether the channel was
// read from a stamp file.
func (u *Updater) precheck(ctx context.Context) (ch string, stamped bool, err error) {
	s := u.settings
	u.status(Status{State: Precheck, Headline: "Preparing update", Activity: "Waiting for the launcher to close", Indeterminate: true})

	err = u.procs.WaitForExit(ctx, s.ProcessName, s.PollInterval, s.ExitWaitTimeout)
	switch {
	case errors.Is(err, process.ErrStillRunning):
		u.logger.Warn("Launcher did not exit in time, terminating it", zap.String("process", s.ProcessName))
	case err != nil:
		return "", false, err
	}
	if n, err := u.procs.KillAll(ctx, s.ProcessName); err != nil {
		u.logger.Warn("Failed to terminate launcher", zap.String("process", s.ProcessName), zap.Error(err))
	} else if n > 0 {
		u.logger.Info("Terminated lingering launcher instances", zap.Int("count", n))
	}

	return u.resolveChannel()
}

// resolveChannel reads the stamp file, then falls back to the configured
// channel and finally to the channel menu. Nothing is written here.
func (u *Updater) resolveChannel() (string, bool, error) {
	ch, from, err := channel.Resolve(u.settings.Layout.StampDirs()...)
	if err == nil {
		u.logger.Info("Release channel found", zap.String("channel", ch), zap.String("stamp", from))
		return ch, true, nil
	}
	u.logger.Warn("No usable release stamp", zap.Error(err))

	if normalized, ok := channel.Normalize(u.settings.Channel); ok {
		ch = normalized
	} else {
		ch = u.asker.ChannelMenu()
	}
	if ch == "" {
		return "", false, ErrNoChannel
	}
	u.logger.Info("Release channel selected", zap.String("channel", ch))
	return ch, false, nil
}

// saveStamp records a channel that did not come from a stamp in the temp
// directory so a retried run finds it.
func (u *Updater) saveStamp(ch string) {
	dir := u.settings.Layout.TempDir()
	if err := fileops.EnsureDirectory(dir); err != nil {
		u.logger.Warn("Failed to save release stamp", zap.Error(err))
		return
	}
	if err := channel.Save(dir, ch); err != nil {
		u.logger.Warn("Failed to save release stamp", zap.Error(err))
	}
}

// summarize reports the installed and available versions. The manifest is
// informational unless verification is enabled, so failing to fetch it is
// only logged.
func (u *Updater) summarize(ctx context.Context, res *Result) *manifest.Manifest {
	layout := u.settings.Layout

	installed, found, err := version.ScanInstalled(layout.WorkDir, u.logger)
	if err != nil {
		u.logger.Warn("Failed to scan installed versions", zap.Error(err))
	}
	res.Installed, res.HasInstalled = installed, found

	m, err := u.fetcher.Probe(ctx, manifest.RelativePath(res.Channel))
	if err != nil {
		u.logger.Warn("Failed to fetch release manifest", zap.String("channel", res.Channel), zap.Error(err))
	} else {
		v := m.Version
		res.Available = &v
	}

	from := "none"
	if found {
		from = installed.String()
	}
	to := "unknown"
	if res.Available != nil {
		to = res.Available.String()
	}
	u.logger.Info("Update summary",
		zap.String("channel", res.Channel),
		zap.String("installed", from),
		zap.String("available", to))
	if found && installed.OK && res.Available != nil && !installed.Version.Less(*res.Available) {
		u.logger.Warn("Installed version is not older than the release, reinstalling",
			zap.String("installed", from),
			zap.String("available", to))
	}
	u.status(Status{
		State:    Precheck,
		Headline: fmt.Sprintf("Updating to %s (%s)", to, channel.Title(res.Channel)),
		Activity: "Installed version",
		Detail:   from,
	})
	return m
}

// cleanupLegacy wipes an installation that predates the app-* layout after
// two confirmations.
func (u *Updater) cleanupLegacy(ctx context.Context) error {
	layout := u.settings.Layout
	if !layout.HasLegacyInstall() {
		return nil
	}

	const title = "A legacy installation of Collapse was detected"
	u.status(Status{State: LegacyDetection, Headline: title, Activity: "Waiting for confirmation"})
	if !u.asker.Confirm(title, "The updater needs to clean up every old file in its directory. "+
		"Anything else stored inside it will be wiped out. Proceed?") {
		return ErrLegacyDeclined
	}
	if !u.asker.Confirm(title, "Confirm once again to start the clean-up.") {
		return ErrLegacyDeclined
	}

	err := u.countdown(ctx, u.settings.CountdownSeconds, func(remaining int) {
		u.status(Status{
			State:    LegacyDetection,
			Headline: title,
			Activity: fmt.Sprintf("Clean-up starts in %d second(s)", remaining),
		})
	})
	if err != nil {
		return err
	}

	u.status(Status{State: LegacyDetection, Headline: "Cleaning up legacy installation", Indeterminate: true})
	errs := fileops.Sweep(layout.WorkDir, layout.Exclusions(), func(rel string, kind fileops.Kind, ordinal int) {
		u.entry(filepath.ToSlash(rel), ordinal)
	})
	for _, err := range errs {
		u.logger.Error("Failed to delete legacy file", zap.Error(err))
	}
	if err := fileops.RemoveFile(layout.LegacyConfigPath()); err != nil {
		u.logger.Error("Failed to delete legacy config", zap.Error(err))
	}
	u.logger.Info("Legacy installation cleaned up", zap.Int("failures", len(errs)))
	return nil
}

// prepareTemp clears a stale extract directory and creates the temp
// directory. Failures are logged; a broken temp directory fails the
// download that follows.
func (u *Updater) prepareTemp() {
	layout := u.settings.Layout
	u.status(Status{State: PrepareTemp, Headline: "Preparing update", Activity: "Preparing temporary directory"})

	if err := fileops.RemoveDirectory(layout.ExtractDir()); err != nil {
		u.logger.Warn("Failed to remove stale extract directory", zap.Error(err))
	}
	if err := fileops.EnsureDirectory(layout.TempDir()); err != nil {
		u.logger.Warn("Failed to create temporary directory", zap.Error(err))
	}
}

// download fetches the package unless a previous run already left one.
func (u *Updater) download(ctx context.Context, ch string, m *manifest.Manifest) error {
	pkg := u.settings.Layout.PackagePath()
	if _, err := os.Stat(pkg); err == nil {
		u.logger.Info("Package already downloaded, skipping", zap.String("path", pkg))
		return nil
	}

	detail := channel.Title(ch)
	if m != nil {
		if size := m.TotalSize(); size > 0 {
			detail += ", " + console.SummarizeSize(float64(size), 2) + " installed"
		}
	}
	u.play(audio.CueDownload)
	u.status(Status{State: Download, Headline: "Downloading update", Activity: "Downloading package", Detail: detail})

	rel := PackageRelativePath(ch)
	if err := u.fetcher.FetchToFile(ctx, rel, pkg, u.settings.Parallelism); err != nil {
		return fmt.Errorf("failed to download %s: %w", rel, err)
	}
	return nil
}

// extract unpacks the package into the extract directory, deleting the
// package, and verifies the result against m when enabled.
func (u *Updater) extract(ctx context.Context, m *manifest.Manifest) error {
	layout := u.settings.Layout
	u.play(audio.CueExtract)
	u.status(Status{State: Extract, Headline: "Extracting update", Activity: "Extracting package", Indeterminate: true})

	n, err := archive.ExtractFile(ctx, layout.PackagePath(), layout.ExtractDir(), u.entry)
	if err != nil {
		return err
	}
	u.logger.Info("Package extracted", zap.Int("entries", n))

	if !u.settings.VerifyManifest || m == nil {
		return nil
	}
	mismatches, err := m.Verify(layout.ExtractDir())
	for _, mm := range mismatches {
		u.logger.Error("Extracted file does not match manifest", zap.String("file", mm.String()))
	}
	return err
}

// swap removes the previous app-* directories and the packages directory,
// retrying while files are still locked.
func (u *Updater) swap(ctx context.Context) error {
	s := u.settings
	u.status(Status{State: Swap, Headline: "Installing update", Activity: "Removing previous version", Indeterminate: true})

	var lastErr error
	for attempt := 1; attempt <= s.SwapRetries; attempt++ {
		if lastErr = u.removeOldInstall(); lastErr == nil {
			return nil
		}
		u.logger.Warn("Failed to remove previous version",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.SwapRetries),
			zap.Error(lastErr))

		if attempt == s.SwapRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.SwapRetryDelay):
		}
	}
	return errors.Join(ErrSwapExhausted, lastErr)
}

func (u *Updater) removeOldInstall() error {
	layout := u.settings.Layout
	dirs, err := layout.AppDirs()
	if err != nil {
		return err
	}
	dirs = append(dirs, layout.PackagesDir())

	var errs []error
	for _, dir := range dirs {
		if err := fileops.RemoveDirectory(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// install moves every extracted file into the working directory. The
// updater's own executable is replaced through selfupdate.
func (u *Updater) install(ctx context.Context) (int, error) {
	layout := u.settings.Layout
	src := layout.ExtractDir()
	u.play(audio.CueInstall)
	u.status(Status{State: Install, Headline: "Installing update", Activity: "Moving files"})

	var files []string
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list extracted files: %w", err)
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return i, err
		}
		name := filepath.ToSlash(rel)
		u.entry(name, i+1)

		if selfupdate.IsSelf(layout.WorkDir, rel, layout.Self) {
			u.logger.Info("Replacing running updater", zap.String("path", layout.Self))
			if err := selfupdate.Replace(layout.Self, path); err != nil {
				return i, err
			}
			continue
		}

		dst := filepath.Join(layout.WorkDir, rel)
		if err := fileops.EnsureDirectory(filepath.Dir(dst)); err != nil {
			return i, err
		}
		moved, err := fileops.MoveOrCopy(path, dst)
		if err != nil {
			return i, err
		}
		if !moved {
			u.logger.Warn("Move failed, file was copied instead", zap.String("file", name))
		}
	}

	u.logger.Info("Files installed", zap.Int("count", len(files)))
	return len(files), nil
}

func (u *Updater) cleanup() {
	u.status(Status{State: Cleanup, Headline: "Finishing update", Activity: "Removing temporary files"})
	if err := fileops.RemoveDirectory(u.settings.Layout.TempDir()); err != nil {
		u.logger.Warn("Failed to remove temporary directory", zap.Error(err))
	}
}

func (u *Updater) relaunch(ctx context.Context) error {
	launcher := u.settings.Layout.LauncherPath()
	u.play(audio.CueDone)

	err := u.countdown(ctx, u.settings.CountdownSeconds, func(remaining int) {
		u.status(Status{
			State:    Relaunch,
			Headline: "Update completed",
			Activity: fmt.Sprintf("Launcher starts in %d second(s)", remaining),
		})
	})
	if err != nil {
		return err
	}

	u.status(Status{State: Relaunch, Headline: "Update completed", Activity: "Starting launcher", Detail: filepath.Base(launcher)})
	if err := u.launch(launcher); err != nil {
		return fmt.Errorf("failed to start launcher: %w", err)
	}
	u.logger.Info("Launcher started", zap.String("path", launcher))
	return nil
}
