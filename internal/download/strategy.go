package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"golang.org/x/sync/errgroup"

	"github.com/CollapseLauncher/ApplyUpdate/internal/fileops"
	"github.com/CollapseLauncher/ApplyUpdate/internal/mirror"
)

// Strategy is how a single mirror attempt transfers its bytes.
type Strategy int

const (
	SingleToStream Strategy = iota
	SingleToFile
	SegmentedToFile
)

func (s Strategy) String() string {
	switch s {
	case SingleToStream:
		return "single-stream"
	case SingleToFile:
		return "single-file"
	case SegmentedToFile:
		return "segmented-file"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ChooseStrategy picks the transfer mode for one mirror attempt.
func ChooseStrategy(toStream bool, ep mirror.Endpoint, parallelism int) Strategy {
	switch {
	case toStream:
		return SingleToStream
	case ep.PartialDownload && parallelism > 1:
		return SegmentedToFile
	default:
		return SingleToFile
	}
}

// segmentPartSuffix marks a file that is still being assembled from ranges.
const segmentPartSuffix = ".part"

// singleToFile transfers url to dst over one connection. The body lands in
// a .part file that only replaces dst once the transfer completed.
func (f *Fetcher) singleToFile(ctx context.Context, url, dst string) error {
	if err := fileops.EnsureDirectory(filepath.Dir(dst)); err != nil {
		return err
	}
	part := dst + segmentPartSuffix
	// grab treats an existing file of the expected size as complete.
	if err := fileops.RemoveFile(part); err != nil {
		return err
	}

	req, err := grab.NewRequest(part, url)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.NoResume = true
	req = req.WithContext(ctx)

	resp := f.grab.Do(req)
	tr := newTracker(resp.Size(), f.onProgress)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tr.set(resp.BytesComplete(), resp.Size())
			tr.emit(resp.BytesPerSecond())
		case <-resp.Done:
			if err := resp.Err(); err != nil {
				os.Remove(part)
				return fmt.Errorf("download failed: %w", err)
			}
			tr.set(resp.BytesComplete(), resp.Size())
			tr.emit(resp.BytesPerSecond())
			return commitPart(part, dst)
		}
	}
}

// singleToStream transfers url into w over one connection.
func (f *Fetcher) singleToStream(ctx context.Context, url string, w io.Writer) error {
	tr := newTracker(0, f.onProgress)
	stop := f.report(tr)
	err := f.get(ctx, url, w, tr)
	stop()
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	tr.emit(0)
	return nil
}

// segmentedToFile splits the resource into ranges and fetches them
// concurrently into dst. Without a known size or range support it falls
// back to a single connection.
func (f *Fetcher) segmentedToFile(ctx context.Context, url, dst string, parallelism int, st probeStatus) error {
	if st.Size <= 0 || !st.AcceptRanges {
		f.logger.Debug("Mirror cannot serve ranges for this file, using single connection")
		return f.singleToFile(ctx, url, dst)
	}
	if err := fileops.EnsureDirectory(filepath.Dir(dst)); err != nil {
		return err
	}

	part := dst + segmentPartSuffix
	out, err := os.OpenFile(part, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return &fileops.PathActionError{Action: fileops.ActionCreate, Kind: fileops.KindFile, Path: part, Err: err}
	}
	if err := out.Truncate(st.Size); err != nil {
		out.Close()
		os.Remove(part)
		return fmt.Errorf("failed to allocate %s: %w", part, err)
	}

	tr := newTracker(st.Size, f.onProgress)
	stop := f.report(tr)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range splitRanges(st.Size, parallelism) {
		r := r
		g.Go(func() error {
			return f.fetchRange(gctx, url, io.NewOffsetWriter(out, r.start), r, tr)
		})
	}
	err = g.Wait()
	stop()

	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("segmented download failed: %w", err)
	}
	tr.emit(0)
	return commitPart(part, dst)
}

// commitPart moves a completed .part file over dst.
func commitPart(part, dst string) error {
	if err := fileops.RemoveFile(dst); err != nil {
		return err
	}
	if err := os.Rename(part, dst); err != nil {
		return &fileops.PathActionError{Action: fileops.ActionMove, Kind: fileops.KindFile, Path: part, Err: err}
	}
	return nil
}

type byteRange struct {
	start, end int64 // inclusive
}

func (r byteRange) len() int64 { return r.end - r.start + 1 }

// splitRanges divides size bytes into at most n contiguous ranges.
func splitRanges(size int64, n int) []byteRange {
	if n < 1 {
		n = 1
	}
	if int64(n) > size {
		n = int(size)
	}
	chunk := size / int64(n)
	ranges := make([]byteRange, 0, n)
	var start int64
	for i := 0; i < n; i++ {
		end := start + chunk - 1
		if i == n-1 {
			end = size - 1
		}
		ranges = append(ranges, byteRange{start: start, end: end})
		start = end + 1
	}
	return ranges
}

func (f *Fetcher) fetchRange(ctx context.Context, url string, w io.Writer, r byteRange, tr *tracker) error {
	resp, err := f.do(ctx, http.MethodGet, url, fmt.Sprintf("bytes=%d-%d", r.start, r.end))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("range %d-%d: unexpected status %d", r.start, r.end, resp.StatusCode)
	}
	if resp.ContentLength >= 0 && resp.ContentLength != r.len() {
		return fmt.Errorf("range %d-%d: server sent %d bytes", r.start, r.end, resp.ContentLength)
	}

	n, err := copyContext(ctx, w, io.LimitReader(resp.Body, r.len()), make([]byte, copyBufferSize), func(n int) {
		tr.add(int64(n))
	})
	if err != nil {
		return err
	}
	if n != r.len() {
		return fmt.Errorf("range %d-%d: short body, got %d bytes", r.start, r.end, n)
	}
	return nil
}

// report emits progress from tr on the fetcher's interval until the
// returned stop function is called.
func (f *Fetcher) report(tr *tracker) (stop func()) {
	if f.onProgress == nil {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tr.emit(0)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}
