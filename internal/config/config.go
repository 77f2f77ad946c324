package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CollapseLauncher/ApplyUpdate/internal/channel"
	"github.com/CollapseLauncher/ApplyUpdate/internal/logging"
	"github.com/CollapseLauncher/ApplyUpdate/internal/mirror"
)

const (
	// FileName is the config file name searched for, without extension.
	FileName  = "applyupdate"
	EnvPrefix = "APPLYUPDATE"

	maxParallelism = 4
)

// Config holds all updater configuration
type Config struct {
	// Installation
	WorkingDir         string `mapstructure:"working_dir" yaml:"working_dir"`
	LauncherExecutable string `mapstructure:"launcher_executable" yaml:"launcher_executable"`
	ProcessName        string `mapstructure:"process_name" yaml:"process_name"`
	Channel            string `mapstructure:"channel" yaml:"channel"`

	// Mirrors
	PreferredMirror string            `mapstructure:"preferred_mirror" yaml:"preferred_mirror"`
	Mirrors         []mirror.Endpoint `mapstructure:"mirrors" yaml:"mirrors"`
	Parallelism     int               `mapstructure:"parallelism" yaml:"parallelism"`
	HTTPTimeout     time.Duration     `mapstructure:"http_timeout" yaml:"http_timeout"`

	// Timing
	SwapRetries         int           `mapstructure:"swap_retries" yaml:"swap_retries"`
	SwapRetryDelay      time.Duration `mapstructure:"swap_retry_delay" yaml:"swap_retry_delay"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ExitWaitTimeout     time.Duration `mapstructure:"exit_wait_timeout" yaml:"exit_wait_timeout"`
	CountdownSeconds    int           `mapstructure:"countdown_seconds" yaml:"countdown_seconds"`
	StartupDelaySeconds int           `mapstructure:"startup_delay_seconds" yaml:"startup_delay_seconds"`

	// Features
	NonInteractive bool   `mapstructure:"non_interactive" yaml:"non_interactive"`
	Sounds         bool   `mapstructure:"sounds" yaml:"sounds"`
	SoundDir       string `mapstructure:"sound_dir" yaml:"sound_dir"`
	VerifyManifest bool   `mapstructure:"verify_manifest" yaml:"verify_manifest"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
}

// DefaultParallelism is the number of CPUs, capped at 4.
func DefaultParallelism() int {
	return min(runtime.NumCPU(), maxParallelism)
}

// Default returns configuration with sensible defaults
func Default() *Config {
	return &Config{
		ProcessName:         "CollapseLauncher",
		LauncherExecutable:  "CollapseLauncher.exe",
		Mirrors:             append([]mirror.Endpoint(nil), mirror.Defaults...),
		Parallelism:         DefaultParallelism(),
		HTTPTimeout:         30 * time.Second,
		SwapRetries:         10,
		SwapRetryDelay:      time.Second,
		PollInterval:        100 * time.Millisecond,
		CountdownSeconds:    5,
		StartupDelaySeconds: 5,
		LogLevel:            "info",
		LogFormat:           "console",
	}
}

// Load reads configuration from an explicit file, or from applyupdate.yaml in
// searchDirs, then from APPLYUPDATE_* environment variables. Values already
// bound on v (such as command line flags) take precedence. A missing config
// file is not an error.
func Load(v *viper.Viper, file string, searchDirs ...string) (*Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if len(cfg.Mirrors) == 0 {
		cfg.Mirrors = append([]mirror.Endpoint(nil), mirror.Defaults...)
	}
	return cfg, nil
}

// setDefaults registers every scalar key so environment variables are seen
// by Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("working_dir", cfg.WorkingDir)
	v.SetDefault("launcher_executable", cfg.LauncherExecutable)
	v.SetDefault("process_name", cfg.ProcessName)
	v.SetDefault("channel", cfg.Channel)
	v.SetDefault("preferred_mirror", cfg.PreferredMirror)
	v.SetDefault("parallelism", cfg.Parallelism)
	v.SetDefault("http_timeout", cfg.HTTPTimeout)
	v.SetDefault("swap_retries", cfg.SwapRetries)
	v.SetDefault("swap_retry_delay", cfg.SwapRetryDelay)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("exit_wait_timeout", cfg.ExitWaitTimeout)
	v.SetDefault("countdown_seconds", cfg.CountdownSeconds)
	v.SetDefault("startup_delay_seconds", cfg.StartupDelaySeconds)
	v.SetDefault("non_interactive", cfg.NonInteractive)
	v.SetDefault("sounds", cfg.Sounds)
	v.SetDefault("sound_dir", cfg.SoundDir)
	v.SetDefault("verify_manifest", cfg.VerifyManifest)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
}

// Validate checks the config for invalid values and returns all errors found.
func (c *Config) Validate() error {
	var errs []error

	if c.Channel != "" {
		if _, ok := channel.Normalize(c.Channel); !ok {
			errs = append(errs, fmt.Errorf("channel %q must be %q or %q", c.Channel, channel.Stable, channel.Preview))
		}
	}
	if c.ProcessName == "" {
		errs = append(errs, errors.New("process_name is required"))
	}
	if c.LauncherExecutable == "" {
		errs = append(errs, errors.New("launcher_executable is required"))
	}

	if len(c.Mirrors) == 0 {
		errs = append(errs, errors.New("at least one mirror is required"))
	}
	for i, m := range c.Mirrors {
		if m.Name == "" || m.URLPrefix == "" {
			errs = append(errs, fmt.Errorf("mirrors[%d] needs both name and url_prefix", i))
		}
	}
	if c.PreferredMirror != "" && !c.hasMirror(c.PreferredMirror) {
		errs = append(errs, fmt.Errorf("preferred_mirror %q is not in the mirror list", c.PreferredMirror))
	}

	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism %d must be at least 1", c.Parallelism))
	}
	if c.SwapRetries < 1 {
		errs = append(errs, fmt.Errorf("swap_retries %d must be at least 1", c.SwapRetries))
	}
	for name, d := range map[string]time.Duration{
		"swap_retry_delay":  c.SwapRetryDelay,
		"poll_interval":     c.PollInterval,
		"exit_wait_timeout": c.ExitWaitTimeout,
		"http_timeout":      c.HTTPTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.CountdownSeconds < 0 || c.StartupDelaySeconds < 0 {
		errs = append(errs, errors.New("countdown_seconds and startup_delay_seconds must not be negative"))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "console", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q must be console or json", c.LogFormat))
	}

	return errors.Join(errs...)
}

func (c *Config) hasMirror(name string) bool {
	for _, m := range c.Mirrors {
		if strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}

// Registry builds the mirror registry with the preferred mirror selected.
func (c *Config) Registry() *mirror.Registry {
	reg := mirror.NewRegistry(c.Mirrors...)
	if c.PreferredMirror != "" {
		reg.SelectByName(c.PreferredMirror)
	}
	return reg
}

// LoggingOptions maps the logging keys onto logging.Options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat, File: c.LogFile}
}
