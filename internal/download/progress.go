package download

import (
	"math"
	"sync"
	"time"
)

// Progress is a snapshot of one transfer.
type Progress struct {
	BytesProcessed int64
	BytesTotal     int64
	// Read is the number of bytes received since the previous snapshot.
	Read int64
	// Throughput is in bytes per second.
	Throughput float64
}

// Percent returns completion in the range 0..100, or 0 when the total is
// unknown.
func (p Progress) Percent() float64 {
	if p.BytesTotal <= 0 {
		return 0
	}
	return float64(p.BytesProcessed) / float64(p.BytesTotal) * 100
}

// ETA estimates the remaining time from the current throughput.
func (p Progress) ETA() time.Duration {
	remaining := p.BytesTotal - p.BytesProcessed
	if remaining <= 0 {
		return 0
	}
	secs := float64(remaining) / math.Max(p.Throughput, 1)
	return time.Duration(secs * float64(time.Second))
}

// ProgressFunc observes transfer progress. It may be called from a transfer
// goroutine.
type ProgressFunc func(Progress)

// tracker accumulates bytes for one transfer and turns them into Progress
// snapshots. Processed bytes never decrease.
type tracker struct {
	mu        sync.Mutex
	fn        ProgressFunc
	now       func() time.Time
	start     time.Time
	total     int64
	processed int64
	lastEmit  int64
}

func newTracker(total int64, fn ProgressFunc) *tracker {
	t := &tracker{fn: fn, now: time.Now, total: total}
	t.start = t.now()
	return t
}

func (t *tracker) add(n int64) {
	t.mu.Lock()
	t.processed += n
	t.mu.Unlock()
}

// set records an absolute byte count reported by the transport.
func (t *tracker) set(n, total int64) {
	t.mu.Lock()
	if n > t.processed {
		t.processed = n
	}
	if total > 0 {
		t.total = total
	}
	t.mu.Unlock()
}

// emit reports a snapshot. rate is the transport's own throughput figure;
// when it is zero the throughput is derived from elapsed wall-clock time.
func (t *tracker) emit(rate float64) {
	if t.fn == nil {
		return
	}

	t.mu.Lock()
	p := Progress{
		BytesProcessed: t.processed,
		BytesTotal:     t.total,
		Read:           t.processed - t.lastEmit,
		Throughput:     rate,
	}
	t.lastEmit = t.processed
	if p.Throughput <= 0 {
		if elapsed := t.now().Sub(t.start).Seconds(); elapsed > 0 {
			p.Throughput = float64(t.processed) / elapsed
		}
	}
	t.mu.Unlock()

	t.fn(p)
}
