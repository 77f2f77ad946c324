package testing

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CollapseLauncher/ApplyUpdate/internal/mirror"
)

// MockMirrorServer serves a release hierarchy the way a CDN mirror does,
// including HEAD and Range requests.
type MockMirrorServer struct {
	*httptest.Server

	mu        sync.Mutex
	files     map[string]MockFile
	failAll   int
	requests  []MockRequest
	intercept func(http.ResponseWriter, *http.Request) bool
}

// MockFile holds the response for one path.
type MockFile struct {
	Body       []byte
	StatusCode int
	// NoRanges serves the whole body without advertising range support.
	NoRanges bool
}

// MockRequest records a request made to the mock server.
type MockRequest struct {
	Method string
	Path   string
	Range  string
}

// NewMockMirrorServer starts a mirror that is closed when the test ends.
func NewMockMirrorServer(t *testing.T) *MockMirrorServer {
	t.Helper()

	mock := &MockMirrorServer{files: make(map[string]MockFile)}
	mock.Server = httptest.NewServer(http.HandlerFunc(mock.serve))
	t.Cleanup(mock.Server.Close)

	return mock
}

func (m *MockMirrorServer) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	m.mu.Lock()
	m.requests = append(m.requests, MockRequest{Method: r.Method, Path: path, Range: r.Header.Get("Range")})
	failAll := m.failAll
	file, ok := m.files[path]
	intercept := m.intercept
	m.mu.Unlock()

	if intercept != nil && intercept(w, r) {
		return
	}

	if failAll != 0 {
		w.WriteHeader(failAll)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if file.StatusCode != 0 && file.StatusCode != http.StatusOK {
		w.WriteHeader(file.StatusCode)
		return
	}

	if file.NoRanges {
		w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write(file.Body)
		}
		return
	}

	http.ServeContent(w, r, path, time.Time{}, bytes.NewReader(file.Body))
}

// SetFile serves body at path (relative to the server root).
func (m *MockMirrorServer) SetFile(path string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[strings.TrimPrefix(path, "/")] = MockFile{Body: body}
}

// SetMockFile installs a fully specified response at path.
func (m *MockMirrorServer) SetMockFile(path string, file MockFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[strings.TrimPrefix(path, "/")] = file
}

// FailAll makes every request answer with status. Zero restores normal
// serving.
func (m *MockMirrorServer) FailAll(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = status
}

// Intercept runs fn before normal serving. When fn returns true it has
// written the response itself.
func (m *MockMirrorServer) Intercept(fn func(w http.ResponseWriter, r *http.Request) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intercept = fn
}

// Endpoint describes this server as a mirror.
func (m *MockMirrorServer) Endpoint(name string, partial bool) mirror.Endpoint {
	return mirror.Endpoint{Name: name, URLPrefix: m.URL, PartialDownload: partial}
}

// Requests returns a copy of the recorded requests.
func (m *MockMirrorServer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests for path with method. An
// empty method matches any.
func (m *MockMirrorServer) RequestCount(path, method string) int {
	count := 0
	for _, req := range m.Requests() {
		if req.Path == strings.TrimPrefix(path, "/") && (method == "" || req.Method == method) {
			count++
		}
	}
	return count
}

// RangeRequestCount returns how many requests carried a Range header.
func (m *MockMirrorServer) RangeRequestCount() int {
	count := 0
	for _, req := range m.Requests() {
		if req.Range != "" {
			count++
		}
	}
	return count
}
