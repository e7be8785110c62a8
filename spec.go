package ocflstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrSpecInvalid = errors.New("invalid conformance version")

// Spec represents a conformance version number, e.g. "1.0".
type Spec [2]int

// ParseSpec parses v ("major.minor") into the value referenced by s.
func ParseSpec(v string, s *Spec) error {
	a, b, found := strings.Cut(v, `.`)
	if !found {
		return fmt.Errorf("%w: %s", ErrSpecInvalid, v)
	}
	if len(a) < 1 || len(b) < 1 || (len(a) > 1 && a[0] == '0') || (len(b) > 1 && b[0] == '0') {
		return fmt.Errorf("%w: %s", ErrSpecInvalid, v)
	}
	maj, err := strconv.Atoi(a)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSpecInvalid, v)
	}
	min, err := strconv.Atoi(b)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSpecInvalid, v)
	}
	s[0] = maj
	s[1] = min
	return nil
}

// MustParseSpec parses v as a Spec and panics if it cannot.
func MustParseSpec(v string) Spec {
	var s Spec
	if err := ParseSpec(v, &s); err != nil {
		panic(err)
	}
	return s
}

func (s Spec) String() string {
	return fmt.Sprintf("%d.%d", s[0], s[1])
}

// Empty returns true if s is the zero value.
func (s Spec) Empty() bool {
	return s == Spec{}
}

// Cmp compares s to s2, returning -1, 0, or 1.
func (s Spec) Cmp(s2 Spec) int {
	diff := s[0] - s2[0]
	if diff == 0 {
		diff = s[1] - s2[1]
	}
	switch {
	case diff > 0:
		return 1
	case diff < 0:
		return -1
	}
	return 0
}

func (s *Spec) UnmarshalText(text []byte) error {
	return ParseSpec(string(text), s)
}

func (s Spec) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
