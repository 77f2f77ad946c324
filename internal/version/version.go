package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is matched by every FormatError.
var ErrMalformed = errors.New("malformed version")

// FormatError reports why a version string could not be parsed.
type FormatError struct {
	Input  string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid version %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

// Version is a launcher release version. Revision is zero when the source
// only carried three components.
type Version struct {
	Major    int
	Minor    int
	Build    int
	Revision int
}

// String returns the short "major.minor.build" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// Full returns all four components.
func (v Version) Full() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// IsZero reports whether every component is zero.
func (v Version) IsZero() bool {
	return v == Version{}
}

// Parse reads a dot-separated version with 3 or 4 numeric components.
func Parse(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 && len(parts) != 4 {
		return Version{}, &FormatError{Input: s, Reason: fmt.Sprintf("expected 3 or 4 components, got %d", len(parts))}
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, &FormatError{Input: s, Reason: fmt.Sprintf("component %d is not a number", i+1), Err: err}
		}
		if n < 0 {
			return Version{}, &FormatError{Input: s, Reason: fmt.Sprintf("component %d is negative", i+1)}
		}
		nums[i] = n
	}

	return fromInts(nums), nil
}

// FromParts builds a Version from a slice of 3 or 4 non-negative integers.
func FromParts(parts []int) (Version, error) {
	if len(parts) != 3 && len(parts) != 4 {
		return Version{}, &FormatError{Input: fmt.Sprint(parts), Reason: fmt.Sprintf("expected 3 or 4 components, got %d", len(parts))}
	}
	for i, n := range parts {
		if n < 0 {
			return Version{}, &FormatError{Input: fmt.Sprint(parts), Reason: fmt.Sprintf("component %d is negative", i+1)}
		}
	}
	return fromInts(parts), nil
}

func fromInts(nums []int) Version {
	v := Version{Major: nums[0], Minor: nums[1], Build: nums[2]}
	if len(nums) == 4 {
		v.Revision = nums[3]
	}
	return v
}

// Compare returns -1, 0 or 1 comparing a to b component by component.
func Compare(a, b Version) int {
	pairs := [4][2]int{
		{a.Major, b.Major},
		{a.Minor, b.Minor},
		{a.Build, b.Build},
		{a.Revision, b.Revision},
	}
	for _, p := range pairs {
		switch {
		case p[0] < p[1]:
			return -1
		case p[0] > p[1]:
			return 1
		}
	}
	return 0
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return Compare(v, other) < 0
}

// MarshalText renders the full four component form.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.Full()), nil
}

// UnmarshalText parses with Parse.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
