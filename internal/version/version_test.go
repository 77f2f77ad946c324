package version

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestVersionString(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		short   string
		full    string
	}{
		{
			name:    "three components",
			version: Version{Major: 1, Minor: 2, Build: 3},
			short:   "1.2.3",
			full:    "1.2.3.0",
		},
		{
			name:    "revision is omitted from short form",
			version: Version{Major: 1, Minor: 9, Build: 0, Revision: 2},
			short:   "1.9.0",
			full:    "1.9.0.2",
		},
		{
			name:    "zero version",
			version: Version{},
			short:   "0.0.0",
			full:    "0.0.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.version.String(); got != tt.short {
				t.Errorf("Version.String() = %q, want %q", got, tt.short)
			}
			if got := tt.version.Full(); got != tt.full {
				t.Errorf("Version.Full() = %q, want %q", got, tt.full)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "three components", input: "1.2.3", want: Version{1, 2, 3, 0}},
		{name: "four components", input: "1.82.14.6", want: Version{1, 82, 14, 6}},
		{name: "surrounding whitespace", input: " 2.0.0 \n", want: Version{2, 0, 0, 0}},
		{name: "two components", input: "1.2", wantErr: true},
		{name: "five components", input: "1.2.3.4.5", wantErr: true},
		{name: "non numeric", input: "1.x.3", wantErr: true},
		{name: "negative", input: "1.-2.3", wantErr: true},
		{name: "empty component", input: "1..3", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, got)
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("Parse(%q) error = %v, want ErrMalformed", tt.input, err)
				}
				var fe *FormatError
				if !errors.As(err, &fe) {
					t.Errorf("Parse(%q) error is not a *FormatError", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRoundTripShortForm(t *testing.T) {
	inputs := map[string]string{
		"1.2.3":    "1.2.3",
		"1.2.3.4":  "1.2.3",
		"10.0.1.0": "10.0.1",
	}

	for input, want := range inputs {
		v, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", input, err)
		}
		if got := v.String(); got != want {
			t.Errorf("Parse(%q).String() = %q, want %q", input, got, want)
		}
	}
}

func TestFromParts(t *testing.T) {
	v, err := FromParts([]int{1, 9, 0})
	if err != nil {
		t.Fatalf("FromParts() unexpected error: %v", err)
	}
	if v != (Version{1, 9, 0, 0}) {
		t.Errorf("FromParts() = %+v", v)
	}

	if _, err := FromParts([]int{1, 2}); !errors.Is(err, ErrMalformed) {
		t.Errorf("FromParts(2 parts) error = %v, want ErrMalformed", err)
	}
	if _, err := FromParts([]int{1, 2, 3, 4, 5}); !errors.Is(err, ErrMalformed) {
		t.Errorf("FromParts(5 parts) error = %v, want ErrMalformed", err)
	}
	if _, err := FromParts([]int{1, -1, 3}); !errors.Is(err, ErrMalformed) {
		t.Errorf("FromParts(negative) error = %v, want ErrMalformed", err)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{name: "minor beats build", a: "1.2.3.0", b: "1.3.0.0", want: -1},
		{name: "major beats minor", a: "1.3.0.0", b: "2.0.0.0", want: -1},
		{name: "transitive chain end", a: "1.2.3.0", b: "2.0.0.0", want: -1},
		{name: "greater", a: "2.0.0", b: "1.9.9.9", want: 1},
		{name: "revision decides", a: "1.0.0.1", b: "1.0.0.0", want: 1},
		{name: "absent revision equals zero", a: "1.2.3", b: "1.2.3.0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustParse(t, tt.a)
			b := mustParse(t, tt.b)
			if got := Compare(a, b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(b, a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
			if got := a.Less(b); got != (tt.want < 0) {
				t.Errorf("%s.Less(%s) = %v, want %v", tt.a, tt.b, got, tt.want < 0)
			}
		})
	}
}

func TestVersionJSON(t *testing.T) {
	var doc struct {
		Ver Version `json:"ver"`
	}
	if err := json.Unmarshal([]byte(`{"ver":"1.82.7"}`), &doc); err != nil {
		t.Fatalf("json.Unmarshal() unexpected error: %v", err)
	}
	if doc.Ver != (Version{1, 82, 7, 0}) {
		t.Errorf("decoded version = %+v", doc.Ver)
	}

	if err := json.Unmarshal([]byte(`{"ver":"bogus"}`), &doc); !errors.Is(err, ErrMalformed) {
		t.Errorf("json.Unmarshal(bogus) error = %v, want ErrMalformed", err)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json.Marshal() unexpected error: %v", err)
	}
	if string(out) != `{"ver":"1.82.7.0"}` {
		t.Errorf("json.Marshal() = %s", out)
	}
}

func mustParse(t *testing.T, s string) Version {
	t.Helper()
	v, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", s, err)
	}
	return v
}
