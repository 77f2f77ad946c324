package paths

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CollapseLauncher/ApplyUpdate/internal/fileops"
	"github.com/CollapseLauncher/ApplyUpdate/internal/version"
)

// Names inside the working directory.
const (
	TempDirName     = "_Temp"
	ExtractDirName  = "_Extract"
	PackageName     = "latest"
	PackagesDirName = "packages"

	DefaultLauncher = "CollapseLauncher.exe"
	UpdaterName     = "ApplyUpdate.exe"
	LogName         = "ApplyUpdate.log"
	ConfigName      = "applyupdate.yaml"
	ExcludesName    = "applyupdate.excludes"

	legacyConfigName = "ApplyUpdate.exe.config"
)

// DefaultExclusions are path fragments that survive a legacy wipe: the
// updater itself, installer leftovers and game data folders that may share
// the directory.
var DefaultExclusions = fileops.ExclusionSet{
	UpdaterName, "config.ini", TempDirName, "unins00", "unins000",
	"Hi3SEA", "Hi3Global", "Hi3TW", "Hi3KR", "Hi3CN", "Hi3JP", "BH3",
	"GIGlb", "GICN", "GenshinImpact", "YuanShen", "GIBilibili",
	"SRGlb", "SRCN", "StarRail", "HSRBilibili",
	"ZZZGlb", "ZZZCN", "ZZZ",
	LogName, ConfigName, ExcludesName,
}

// LegacyMarkers are the files of an installation that predates the app-*
// layout. All of them must be present for the install to count as legacy.
var LegacyMarkers = []string{
	"CollapseLauncher.exe",
	"CollapseLauncher.dll",
	"Hi3Helper.Core.dll",
	"Hi3Helper.Http.dll",
	"Hi3Helper.EncTool.dll",
}

// Layout is the set of locations one update run works with.
type Layout struct {
	WorkDir  string
	Launcher string
	// Self is the path of the running updater executable, if known.
	Self string
}

// New builds a layout rooted at workDir. An empty launcher uses
// DefaultLauncher.
func New(workDir, launcher string) (Layout, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	if launcher == "" {
		launcher = DefaultLauncher
	}
	return Layout{WorkDir: abs, Launcher: launcher}, nil
}

// ExecutableDir returns the directory of the running executable.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func (l Layout) TempDir() string     { return filepath.Join(l.WorkDir, TempDirName) }
func (l Layout) ExtractDir() string  { return filepath.Join(l.TempDir(), ExtractDirName) }
func (l Layout) PackagePath() string { return filepath.Join(l.TempDir(), PackageName) }
func (l Layout) PackagesDir() string { return filepath.Join(l.WorkDir, PackagesDirName) }
func (l Layout) LogPath() string     { return filepath.Join(l.WorkDir, LogName) }

// LauncherPath is the executable started after a successful update.
func (l Layout) LauncherPath() string {
	if filepath.IsAbs(l.Launcher) {
		return l.Launcher
	}
	return filepath.Join(l.WorkDir, l.Launcher)
}

// LegacyConfigPath is the runtime config file left by old updater builds.
func (l Layout) LegacyConfigPath() string {
	return filepath.Join(l.WorkDir, legacyConfigName)
}

// StampDirs lists where the channel stamp is searched, in order.
func (l Layout) StampDirs() []string {
	return []string{l.TempDir(), l.WorkDir}
}

// AppDirs returns the versioned install directories (app-*) in WorkDir.
func (l Layout) AppDirs() ([]string, error) {
	entries, err := os.ReadDir(l.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list install directories: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), version.InstallDirPrefix) {
			dirs = append(dirs, filepath.Join(l.WorkDir, entry.Name()))
		}
	}
	return dirs, nil
}

// HasLegacyInstall reports whether every legacy marker exists in WorkDir.
func (l Layout) HasLegacyInstall() bool {
	for _, name := range LegacyMarkers {
		if _, err := os.Stat(filepath.Join(l.WorkDir, name)); err != nil {
			return false
		}
	}
	return true
}

// Exclusions returns DefaultExclusions plus the running executable's name
// and any tokens listed in the excludes file.
func (l Layout) Exclusions() fileops.ExclusionSet {
	set := append(fileops.ExclusionSet{}, DefaultExclusions...)
	if l.Self != "" {
		if name := filepath.Base(l.Self); !set.Contains(name) {
			set = append(set, name)
		}
	}
	for _, token := range LoadExcludes(filepath.Join(l.WorkDir, ExcludesName)) {
		if !set.Contains(token) {
			set = append(set, token)
		}
	}
	return set
}

// LoadExcludes reads extra exclusion tokens, one per line. Blank lines and
// lines starting with '#' are ignored. Tokens may use forward slashes on any
// platform. A missing file yields no tokens.
func LoadExcludes(excludesPath string) []string {
	file, err := os.Open(excludesPath)
	if err != nil {
		return nil
	}
	defer file.Close()

	var tokens []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			tokens = append(tokens, filepath.FromSlash(line))
		}
	}
	return tokens
}
