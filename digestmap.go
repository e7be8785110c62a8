package ocflstore

import (
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DigestMap maps digest values to path lists. It is the shape of an
// inventory's manifest (digest to physical paths), a version's state (digest
// to logical paths), and each fixity block.
type DigestMap map[string][]string

// Add appends name to the path list for digest if not already present.
func (m DigestMap) Add(digest string, name string) {
	if slices.Contains(m[digest], name) {
		return
	}
	m[digest] = append(m[digest], name)
}

// Paths returns the path list for digest, which may be nil.
func (m DigestMap) Paths(digest string) []string {
	return m[digest]
}

// HasDigest returns true if digest has at least one path in m.
func (m DigestMap) HasDigest(digest string) bool {
	return len(m[digest]) > 0
}

// Digests returns m's digest values, sorted.
func (m DigestMap) Digests() []string {
	digests := maps.Keys(m)
	sort.Strings(digests)
	return digests
}

// NumPaths returns the total number of paths in m.
func (m DigestMap) NumPaths() int {
	var n int
	for _, paths := range m {
		n += len(paths)
	}
	return n
}

// EachPath calls fn for every digest/path pair in m, in sorted order. It
// stops and returns fn's error if it is non-nil.
func (m DigestMap) EachPath(fn func(digest string, name string) error) error {
	for _, digest := range m.Digests() {
		for _, name := range m[digest] {
			if err := fn(digest, name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Normalize sorts every path list in m, so that a scan over a fixed tree
// always yields the same map. The first entry of each list is the canonical
// source used by checkout.
func (m DigestMap) Normalize() {
	for _, paths := range m {
		sort.Strings(paths)
	}
}

// Copy returns a deep copy of m.
func (m DigestMap) Copy() DigestMap {
	c := make(DigestMap, len(m))
	for digest, paths := range m {
		c[digest] = append(make([]string, 0, len(paths)), paths...)
	}
	return c
}

// Eq returns true if m and other hold the same digests and path sets,
// ignoring path order.
func (m DigestMap) Eq(other DigestMap) bool {
	if len(m) != len(other) {
		return false
	}
	for digest, paths := range m {
		otherPaths := other[digest]
		if len(paths) != len(otherPaths) {
			return false
		}
		a := append(make([]string, 0, len(paths)), paths...)
		b := append(make([]string, 0, len(otherPaths)), otherPaths...)
		sort.Strings(a)
		sort.Strings(b)
		if !slices.Equal(a, b) {
			return false
		}
	}
	return true
}
