package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"go.uber.org/zap"

	"github.com/CollapseLauncher/ApplyUpdate/internal/manifest"
	"github.com/CollapseLauncher/ApplyUpdate/internal/mirror"
)

const (
	userAgent = "ApplyUpdate"

	defaultProgressInterval = 100 * time.Millisecond
	defaultProbeTimeout     = 30 * time.Second

	copyBufferSize = 32 * 1024
)

// Fetcher downloads relative paths from a mirror registry, failing over to
// the next mirror whenever one cannot serve the request.
type Fetcher struct {
	registry     *mirror.Registry
	client       *http.Client
	grab         *grab.Client
	logger       *zap.Logger
	onProgress   ProgressFunc
	interval     time.Duration
	probeTimeout time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for probes and transfers.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithProgress registers the progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(f *Fetcher) { f.onProgress = fn }
}

// WithProgressInterval sets how often progress is reported during a transfer.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Fetcher) { f.interval = d }
}

// WithProbeTimeout bounds each status probe and manifest request.
func WithProbeTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.probeTimeout = d }
}

// New creates a Fetcher over registry.
func New(registry *mirror.Registry, opts ...Option) *Fetcher {
	f := &Fetcher{
		registry:     registry,
		client:       &http.Client{},
		interval:     defaultProgressInterval,
		probeTimeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	f.logger = f.logger.Named("download")
	if f.interval <= 0 {
		f.interval = defaultProgressInterval
	}

	f.grab = grab.NewClient()
	f.grab.HTTPClient = f.client
	f.grab.UserAgent = userAgent
	f.grab.BufferSize = copyBufferSize

	return f
}

// attemptFunc performs the transfer against one mirror after its probe
// succeeded.
type attemptFunc func(ctx context.Context, ep mirror.Endpoint, url string, st probeStatus) error

// FetchToFile downloads relPath to dst. Mirrors that support partial
// downloads are fetched with up to parallelism concurrent range requests.
func (f *Fetcher) FetchToFile(ctx context.Context, relPath, dst string, parallelism int) error {
	return f.failover(ctx, relPath, func(ctx context.Context, ep mirror.Endpoint, url string, st probeStatus) error {
		strategy := ChooseStrategy(false, ep, parallelism)
		f.logger.Debug("Transfer strategy selected",
			zap.String("mirror", ep.Name),
			zap.Stringer("strategy", strategy),
			zap.Int("parallelism", parallelism))

		switch strategy {
		case SegmentedToFile:
			return f.segmentedToFile(ctx, url, dst, parallelism, st)
		default:
			return f.singleToFile(ctx, url, dst)
		}
	})
}

// FetchToStream downloads relPath into w over a single connection. w is
// rewound to the start before every attempt.
func (f *Fetcher) FetchToStream(ctx context.Context, relPath string, w io.WriteSeeker) error {
	return f.failover(ctx, relPath, func(ctx context.Context, ep mirror.Endpoint, url string, st probeStatus) error {
		if err := rewind(w); err != nil {
			return err
		}
		return f.singleToStream(ctx, url, w)
	})
}

// Probe fetches and decodes the manifest stored at relPath.
func (f *Fetcher) Probe(ctx context.Context, relPath string) (*manifest.Manifest, error) {
	var m *manifest.Manifest
	err := f.failover(ctx, relPath, func(ctx context.Context, ep mirror.Endpoint, url string, st probeStatus) error {
		ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
		defer cancel()

		var buf bytes.Buffer
		if err := f.get(ctx, url, &buf, nil); err != nil {
			return err
		}
		decoded, err := manifest.Decode(&buf)
		if err != nil {
			return err
		}
		m = decoded
		return nil
	})
	return m, err
}

func (f *Fetcher) failover(ctx context.Context, relPath string, attempt attemptFunc) error {
	candidates := f.registry.Candidates()
	var attempts []error

	for _, ep := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		url := ep.URL(relPath)
		f.logger.Info("Getting content from mirror", zap.String("mirror", ep.Name), zap.String("url", url))

		st, err := f.probe(ctx, ep, url)
		if err == nil {
			err = attempt(ctx, ep, url, st)
		}
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		f.logger.Error("Failed while getting content from mirror",
			zap.String("mirror", ep.Name),
			zap.String("prefix", ep.URLPrefix),
			zap.String("path", relPath),
			zap.Error(err))

		if _, ok := err.(*MirrorUnavailableError); !ok {
			err = &MirrorUnavailableError{Mirror: ep.Name, URL: url, Err: err}
		}
		attempts = append(attempts, err)
	}

	return &AllMirrorsExhaustedError{Path: relPath, Attempts: attempts}
}

// probeStatus is what a successful probe learned about the resource.
type probeStatus struct {
	Size         int64
	AcceptRanges bool
}

func (f *Fetcher) probe(ctx context.Context, ep mirror.Endpoint, url string) (probeStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	resp, err := f.do(ctx, http.MethodHead, url, "")
	if err != nil {
		return probeStatus{}, &MirrorUnavailableError{Mirror: ep.Name, URL: url, Err: err}
	}
	resp.Body.Close()

	// Some object stores reject HEAD; ask for a single byte instead.
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		resp, err = f.do(ctx, http.MethodGet, url, "bytes=0-0")
		if err != nil {
			return probeStatus{}, &MirrorUnavailableError{Mirror: ep.Name, URL: url, Err: err}
		}
		resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("Mirror returned error status",
			zap.String("mirror", ep.Name),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return probeStatus{}, &MirrorUnavailableError{Mirror: ep.Name, URL: url, StatusCode: resp.StatusCode}
	}

	st := probeStatus{AcceptRanges: resp.Header.Get("Accept-Ranges") == "bytes"}
	if resp.Request.Method == http.MethodHead {
		st.Size = resp.ContentLength
	}
	return st, nil
}

func (f *Fetcher) do(ctx context.Context, method, url, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}
	return f.client.Do(req)
}

// get streams the body of url into w. tr, when set, receives every chunk.
func (f *Fetcher) get(ctx context.Context, url string, w io.Writer, tr *tracker) error {
	resp, err := f.do(ctx, http.MethodGet, url, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if tr != nil && resp.ContentLength > 0 {
		tr.set(0, resp.ContentLength)
	}

	var onChunk func(int)
	if tr != nil {
		onChunk = func(n int) { tr.add(int64(n)) }
	}
	_, err = copyContext(ctx, w, resp.Body, make([]byte, copyBufferSize), onChunk)
	return err
}

// rewind seeks w to its start and drops stale bytes from a previous attempt
// when w can be truncated.
func rewind(w io.WriteSeeker) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("destination stream is not seekable: %w", err)
	}
	if t, ok := w.(interface{ Truncate(int64) error }); ok {
		if err := t.Truncate(0); err != nil {
			return fmt.Errorf("failed to truncate destination stream: %w", err)
		}
	}
	return nil
}

// copyContext copies src to dst through buf, checking ctx before every
// chunk.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte, onChunk func(int)) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != n {
				return written, io.ErrShortWrite
			}
			if onChunk != nil {
				onChunk(n)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
