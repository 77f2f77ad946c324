package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// ErrStillRunning is returned by WaitForExit when the timeout elapses first.
var ErrStillRunning = errors.New("process still running")

const DefaultPollInterval = 100 * time.Millisecond

// Watcher finds, waits for and terminates processes by executable name.
type Watcher struct {
	logger *zap.Logger
	find   func(ctx context.Context, name string) ([]int32, error)
	kill   func(ctx context.Context, pid int32) error
}

// NewWatcher returns a Watcher backed by the system process table.
func NewWatcher(logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		logger: logger.Named("process"),
		find:   findByName,
		kill:   killPID,
	}
}

// sameName compares executable names, ignoring case and a trailing ".exe".
func sameName(a, b string) bool {
	trim := func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimSuffix(s, ".exe")
	}
	return trim(a) == trim(b)
}

func findByName(ctx context.Context, name string) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	self := int32(os.Getpid())
	var pids []int32
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		n, err := p.NameWithContext(ctx)
		if err != nil {
			// Exited or inaccessible.
			continue
		}
		if sameName(n, name) {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

func killPID(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

// Running returns the ids of processes named name.
func (w *Watcher) Running(ctx context.Context, name string) ([]int32, error) {
	return w.find(ctx, name)
}

// WaitForExit polls every interval until no process named name is left.
// A zero timeout waits until ctx is done.
func (w *Watcher) WaitForExit(ctx context.Context, name string, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logged := false
	for {
		pids, err := w.Running(ctx, name)
		if err != nil && ctx.Err() == nil {
			// Listing failed; assume nothing is running rather than blocking forever.
			w.logger.Warn("Could not list processes", zap.Error(err))
			return nil
		}
		if len(pids) == 0 && err == nil {
			return nil
		}
		if !logged {
			w.logger.Info("Waiting for process to exit", zap.String("name", name), zap.Int("count", len(pids)))
			logged = true
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s after %s", ErrStillRunning, name, timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// KillAll terminates every process named name and returns how many were
// killed. Processes that vanish in between are not errors.
func (w *Watcher) KillAll(ctx context.Context, name string) (int, error) {
	pids, err := w.Running(ctx, name)
	if err != nil {
		return 0, err
	}

	var errs []error
	killed := 0
	for _, pid := range pids {
		if err := w.kill(ctx, pid); err != nil {
			if errors.Is(err, process.ErrorProcessNotRunning) {
				continue
			}
			w.logger.Warn("Failed to kill process", zap.Int32("pid", pid), zap.Error(err))
			errs = append(errs, fmt.Errorf("kill %d: %w", pid, err))
			continue
		}
		killed++
		w.logger.Info("Killed lingering process", zap.String("name", name), zap.Int32("pid", pid))
	}
	return killed, errors.Join(errs...)
}
