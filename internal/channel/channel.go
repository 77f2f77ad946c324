package channel

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StampFile is the name of the file that records the release channel.
const StampFile = "release"

const (
	Stable  = "stable"
	Preview = "preview"
)

// ErrInvalid is returned when a stamp file names no recognized channel.
var ErrInvalid = errors.New("unrecognized release channel")

// Normalize lowercases a channel token and reports whether it is one of the
// built-in channels.
func Normalize(token string) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(token))
	return c, IsBuiltIn(c)
}

// IsBuiltIn returns true if the channel is a built-in channel (stable or preview)
func IsBuiltIn(channel string) bool {
	return channel == Stable || channel == Preview
}

// Title returns the channel name for display, e.g. "Preview".
func Title(channel string) string {
	if channel == "" {
		return ""
	}
	return strings.ToUpper(channel[:1]) + channel[1:]
}

// Save writes the channel stamp into dir.
func Save(dir, channel string) error {
	c, ok := Normalize(channel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalid, channel)
	}
	return os.WriteFile(filepath.Join(dir, StampFile), []byte(c+"\n"), 0644)
}

// Load reads the first line of the stamp file in dir. The line must be a
// built-in channel token, in any case, with nothing around it.
func Load(dir string) (string, error) {
	path := filepath.Join(dir, StampFile)
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var line string
	if scanner.Scan() {
		line = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	c := strings.ToLower(line)
	if !IsBuiltIn(c) {
		return "", fmt.Errorf("%w in %s: %q", ErrInvalid, path, line)
	}
	return c, nil
}

// ErrNoStamp is returned by Resolve when none of the directories holds a
// stamp file.
var ErrNoStamp = errors.New("no release stamp found")

// Resolve reads the stamp of the first directory that has one and returns
// its channel along with that directory. An invalid stamp is not skipped in
// favour of a later one.
func Resolve(dirs ...string) (channel, from string, err error) {
	for _, dir := range dirs {
		if !Exists(dir) {
			continue
		}
		c, err := Load(dir)
		if err != nil {
			return "", dir, err
		}
		return c, dir, nil
	}
	return "", "", fmt.Errorf("%w in %s", ErrNoStamp, strings.Join(dirs, ", "))
}

// Exists reports whether any of dirs holds a stamp file, valid or not.
func Exists(dirs ...string) bool {
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, StampFile)); err == nil {
			return true
		}
	}
	return false
}
