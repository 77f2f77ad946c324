package mirror

import (
	"strings"
	"sync"
)

// Endpoint is a content mirror serving the release hierarchy under URLPrefix.
type Endpoint struct {
	Name            string `yaml:"name" mapstructure:"name"`
	URLPrefix       string `yaml:"url_prefix" mapstructure:"url_prefix"`
	PartialDownload bool   `yaml:"partial_download" mapstructure:"partial_download"`
}

// Same reports whether two endpoints refer to the same mirror.
func (e Endpoint) Same(other Endpoint) bool {
	return e.Name == other.Name && e.URLPrefix == other.URLPrefix
}

// URL joins the endpoint prefix with the given relative segments.
func (e Endpoint) URL(segments ...string) string {
	return JoinURL(e.URLPrefix, segments...)
}

// Defaults is the built-in mirror list, in failover order.
var Defaults = []Endpoint{
	{Name: "Cloudflare", URLPrefix: "https://r2.bagelnl.my.id/cl-cdn", PartialDownload: true},
	{Name: "DigitalOcean", URLPrefix: "https://cdn.collapselauncher.com/cl-cdn", PartialDownload: true},
	{Name: "GitHub", URLPrefix: "https://github.com/CollapseLauncher/CollapseLauncher-ReleaseRepo/raw/main", PartialDownload: true},
	{Name: "GitLab", URLPrefix: "https://gitlab.com/bagusnl/CollapseLauncher-ReleaseRepo/-/raw/main/"},
	{Name: "Coding", URLPrefix: "https://ohly-generic.pkg.coding.net/collapse/release/"},
	{Name: "CNB", URLPrefix: "https://cnb.cool/CollapseLauncher/ReleaseRepo/-/git/raw/main/"},
}

// Registry holds the ordered mirror list and the preferred index.
type Registry struct {
	mu        sync.RWMutex
	endpoints []Endpoint
	preferred int
}

// NewRegistry builds a registry over endpoints with the first one preferred.
func NewRegistry(endpoints ...Endpoint) *Registry {
	list := make([]Endpoint, len(endpoints))
	copy(list, endpoints)
	return &Registry{endpoints: list}
}

// Default returns a registry over the built-in mirrors.
func Default() *Registry {
	return NewRegistry(Defaults...)
}

// Len returns the number of mirrors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

// Endpoints returns a copy of the mirror list in registry order.
func (r *Registry) Endpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// PreferredIndex returns the index of the preferred mirror.
func (r *Registry) PreferredIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.preferred
}

// Select marks index as preferred. Anything out of range selects the first
// mirror.
func (r *Registry) Select(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.endpoints) {
		index = 0
	}
	r.preferred = index
}

// SelectByName marks the named mirror as preferred, falling back to the first
// mirror when no name matches. Matching ignores case.
func (r *Registry) SelectByName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferred = 0
	for i, e := range r.endpoints {
		if strings.EqualFold(e.Name, name) {
			r.preferred = i
			return
		}
	}
}

// Preferred returns the preferred mirror. It returns the zero Endpoint for an
// empty registry.
func (r *Registry) Preferred() Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.endpoints) == 0 {
		return Endpoint{}
	}
	return r.endpoints[r.preferred]
}

// Others returns every mirror except the preferred one, in registry order.
// The preferred mirror is excluded by value, so duplicates of it are skipped
// too.
func (r *Registry) Others() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.endpoints) == 0 {
		return nil
	}
	pref := r.endpoints[r.preferred]
	out := make([]Endpoint, 0, len(r.endpoints)-1)
	for _, e := range r.endpoints {
		if e.Same(pref) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Candidates returns the failover order: the preferred mirror, then Others.
func (r *Registry) Candidates() []Endpoint {
	if r.Len() == 0 {
		return nil
	}
	return append([]Endpoint{r.Preferred()}, r.Others()...)
}

// JoinURL appends segments to prefix with exactly one '/' between parts.
// Empty segments are skipped and a segment starting with '?' is appended
// as-is, without a separator.
func JoinURL(prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(prefix, "/"))

	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if !strings.HasPrefix(seg, "?") {
			b.WriteByte('/')
		}
		b.WriteString(strings.Trim(seg, "/"))
	}

	return b.String()
}
