package mirror

import (
	"reflect"
	"testing"
)

func names(endpoints []Endpoint) []string {
	out := make([]string, len(endpoints))
	for i, e := range endpoints {
		out[i] = e.Name
	}
	return out
}

func testRegistry() *Registry {
	return NewRegistry(
		Endpoint{Name: "A", URLPrefix: "https://a.example"},
		Endpoint{Name: "B", URLPrefix: "https://b.example"},
		Endpoint{Name: "C", URLPrefix: "https://c.example"},
		Endpoint{Name: "D", URLPrefix: "https://d.example"},
	)
}

func TestCandidatesOrder(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{name: "default preferred", index: 0, want: []string{"A", "B", "C", "D"}},
		{name: "middle preferred", index: 2, want: []string{"C", "A", "B", "D"}},
		{name: "last preferred", index: 3, want: []string{"D", "A", "B", "C"}},
		{name: "negative resets", index: -1, want: []string{"A", "B", "C", "D"}},
		{name: "too large resets", index: 17, want: []string{"A", "B", "C", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRegistry()
			r.Select(tt.index)
			if got := names(r.Candidates()); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOthersExcludesByValue(t *testing.T) {
	dup := Endpoint{Name: "A", URLPrefix: "https://a.example"}
	r := NewRegistry(dup, Endpoint{Name: "B", URLPrefix: "https://b.example"}, dup)

	if got := names(r.Others()); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Others() = %v, want [B]", got)
	}

	// Same name with a different prefix is a different mirror.
	r = NewRegistry(dup, Endpoint{Name: "A", URLPrefix: "https://elsewhere.example"})
	if got := len(r.Others()); got != 1 {
		t.Errorf("Others() returned %d mirrors, want 1", got)
	}
}

func TestSelectByName(t *testing.T) {
	r := testRegistry()

	r.SelectByName("c")
	if got := r.Preferred().Name; got != "C" {
		t.Errorf("Preferred() after SelectByName(c) = %s, want C", got)
	}

	r.SelectByName("nope")
	if got := r.PreferredIndex(); got != 0 {
		t.Errorf("PreferredIndex() after unknown name = %d, want 0", got)
	}
}

func TestEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	r.Select(3)
	if r.Candidates() != nil {
		t.Error("Candidates() on empty registry should be nil")
	}
	if (r.Preferred() != Endpoint{}) {
		t.Error("Preferred() on empty registry should be zero")
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	if r.Len() != 6 {
		t.Fatalf("Default() has %d mirrors, want 6", r.Len())
	}
	if got := r.Preferred().Name; got != "Cloudflare" {
		t.Errorf("Default() preferred = %s, want Cloudflare", got)
	}

	// Mutating the copy must not reach the registry.
	eps := r.Endpoints()
	eps[0].Name = "changed"
	if r.Preferred().Name != "Cloudflare" {
		t.Error("Endpoints() returned the registry's own slice")
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		segments []string
		want     string
	}{
		{name: "plain", prefix: "https://cdn.example", segments: []string{"stable", "fileindex.json"}, want: "https://cdn.example/stable/fileindex.json"},
		{name: "prefix trailing slashes", prefix: "https://cdn.example///", segments: []string{"stable"}, want: "https://cdn.example/stable"},
		{name: "segment slashes", prefix: "https://cdn.example/", segments: []string{"/squirrel/stable/latest/"}, want: "https://cdn.example/squirrel/stable/latest"},
		{name: "empty segments skipped", prefix: "https://cdn.example", segments: []string{"", "a", "", "b"}, want: "https://cdn.example/a/b"},
		{name: "query segment", prefix: "https://cdn.example", segments: []string{"file", "?raw=true"}, want: "https://cdn.example/file?raw=true"},
		{name: "no segments", prefix: "https://cdn.example/", want: "https://cdn.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinURL(tt.prefix, tt.segments...); got != tt.want {
				t.Errorf("JoinURL(%q, %q) = %q, want %q", tt.prefix, tt.segments, got, tt.want)
			}
		})
	}
}

func TestJoinURLIdempotentTrimming(t *testing.T) {
	want := "https://cdn.example/seg"
	for _, prefix := range []string{"https://cdn.example", "https://cdn.example/", "https://cdn.example//"} {
		for _, seg := range []string{"seg", "/seg", "seg/", "//seg//"} {
			if got := JoinURL(prefix, seg); got != want {
				t.Errorf("JoinURL(%q, %q) = %q, want %q", prefix, seg, got, want)
			}
		}
	}
}
