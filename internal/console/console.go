package console

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/CollapseLauncher/ApplyUpdate/internal/download"
)

// RefreshInterval is the minimum time between two progress redraws.
const RefreshInterval = 33 * time.Millisecond

const defaultWidth = 80

// countdownStep is the pause between two countdown ticks.
var countdownStep = time.Second

var sizeSuffixes = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// SummarizeSize renders a byte count with a binary divisor and a decimal
// magnitude, e.g. 1536 -> "1.50 KB".
func SummarizeSize(value float64, decimals int) string {
	if value < 1 || math.IsNaN(value) {
		return strconv.FormatFloat(math.Max(value, 0), 'f', decimals, 64) + " B"
	}
	mag := int(math.Log(value) / math.Log(1000))
	if mag >= len(sizeSuffixes) {
		mag = len(sizeSuffixes) - 1
	}
	adjusted := value / math.Pow(2, float64(mag*10))
	return strconv.FormatFloat(adjusted, 'f', decimals, 64) + " " + sizeSuffixes[mag]
}

// FormatDuration renders d as hh:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// Align places left and right on one line of width columns. Text that does
// not fit is separated by a single space.
func Align(left, right string, width int) string {
	gap := width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// Renderer draws status and progress lines on a terminal. It is safe for use
// from transfer goroutines.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	width    int
	quiet    bool
	now      func() time.Time
	last     time.Time
	inline   bool
	headline string
}

// NewRenderer returns a Renderer writing to out. A quiet renderer prints
// nothing.
func NewRenderer(out io.Writer, quiet bool) *Renderer {
	return &Renderer{out: out, width: terminalWidth(out), quiet: quiet, now: time.Now}
}

// terminalWidth returns the column count of out when it is a terminal.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

// Log prints a message if not in quiet mode
func (r *Renderer) Log(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}
	r.breakLine()
	fmt.Fprintf(r.out, format+"\n", args...)
}

// breakLine ends a pending in-place progress line.
func (r *Renderer) breakLine() {
	if r.inline {
		fmt.Fprintln(r.out)
		r.inline = false
	}
}

// Status prints a stage transition.
func (r *Renderer) Status(headline, activity, detail string, indeterminate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}
	r.breakLine()

	if headline != "" && headline != r.headline {
		fmt.Fprintf(r.out, "\n== %s ==\n", headline)
		r.headline = headline
	}
	line := activity
	if detail != "" {
		line = Align(activity, detail, r.width)
	}
	if indeterminate {
		line += " ..."
	}
	if line != "" {
		fmt.Fprintln(r.out, line)
	}
	r.last = time.Time{}
}

// Progress redraws the transfer line in place, at most once per
// RefreshInterval. The final update of a transfer is always drawn.
func (r *Renderer) Progress(p download.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}

	now := r.now()
	final := p.BytesTotal > 0 && p.BytesProcessed >= p.BytesTotal
	if !final && now.Sub(r.last) < RefreshInterval {
		return
	}
	r.last = now

	left := fmt.Sprintf("%s / %s (%.2f%%)",
		SummarizeSize(float64(p.BytesProcessed), 2),
		SummarizeSize(float64(p.BytesTotal), 2),
		p.Percent())
	right := fmt.Sprintf("%s/s | ETA %s", SummarizeSize(p.Throughput, 2), FormatDuration(p.ETA()))
	fmt.Fprintf(r.out, "\r%s", Align(left, right, r.width-1))
	r.inline = true

	if final {
		r.breakLine()
	}
}

// Entry redraws the extraction counter in place, throttled like Progress.
func (r *Renderer) Entry(name string, ordinal int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quiet {
		return
	}

	now := r.now()
	if now.Sub(r.last) < RefreshInterval {
		return
	}
	r.last = now

	left := fmt.Sprintf("[%d] ", ordinal)
	room := r.width - 1 - len(left)
	if n := utf8.RuneCountInString(name); room > 3 && n > room {
		runes := []rune(name)
		name = "..." + string(runes[n-room+3:])
	}
	fmt.Fprintf(r.out, "\r%s", Align(left+name, "", r.width-1))
	r.inline = true
}

// Done ends any in-place line.
func (r *Renderer) Done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.quiet {
		r.breakLine()
	}
}

// Countdown calls tick with seconds, seconds-1, ..., 1, one second apart,
// and returns early with ctx's error when it is cancelled.
func Countdown(ctx context.Context, seconds int, tick func(remaining int)) error {
	for remaining := seconds; remaining > 0; remaining-- {
		if tick != nil {
			tick(remaining)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(countdownStep):
		}
	}
	return ctx.Err()
}
