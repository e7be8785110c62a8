package ocflstore

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	ErrVNumInvalid = errors.New("invalid version name")

	vnumRE = regexp.MustCompile(`^v([1-9][0-9]*)$`)
)

// VNum is an object version number. Version directories and inventory keys
// use the form "v1", "v2", ... without zero padding.
type VNum int

// ParseVNum parses v ("vN") and sets the value referenced by vn.
func ParseVNum(v string, vn *VNum) error {
	m := vnumRE.FindStringSubmatch(v)
	if len(m) != 2 {
		return fmt.Errorf("%s: %w", v, ErrVNumInvalid)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fmt.Errorf("%s: %w", v, ErrVNumInvalid)
	}
	*vn = VNum(n)
	return nil
}

// MustParseVNum parses v as a VNum and panics if it cannot.
func MustParseVNum(v string) VNum {
	var vn VNum
	if err := ParseVNum(v, &vn); err != nil {
		panic(err)
	}
	return vn
}

// Num returns v as an int.
func (v VNum) Num() int { return int(v) }

// First returns true if v is version 1.
func (v VNum) First() bool { return v == 1 }

// Valid returns an error if v is not a positive version number.
func (v VNum) Valid() error {
	if v < 1 {
		return fmt.Errorf("%d: %w", int(v), ErrVNumInvalid)
	}
	return nil
}

func (v VNum) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// Lineage returns every version from v1 through v, ascending.
func (v VNum) Lineage() VNums {
	if v < 1 {
		return VNums{}
	}
	nums := make(VNums, v)
	for i := range nums {
		nums[i] = VNum(i + 1)
	}
	return nums
}

// VNums is a slice of VNum elements.
type VNums []VNum

// Sort sorts vs ascending.
func (vs VNums) Sort() {
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
}

// Head returns the largest VNum in vs, or zero if vs is empty.
func (vs VNums) Head() VNum {
	var head VNum
	for _, v := range vs {
		if v > head {
			head = v
		}
	}
	return head
}

// Valid returns an error unless vs is a continuous sequence v1, v2, ...
func (vs VNums) Valid() error {
	if len(vs) == 0 {
		return fmt.Errorf("no versions: %w", ErrVNumInvalid)
	}
	sorted := make(VNums, len(vs))
	copy(sorted, vs)
	sorted.Sort()
	for i, v := range sorted {
		if v.Num() != i+1 {
			return fmt.Errorf("missing version v%d: %w", i+1, ErrVNumInvalid)
		}
	}
	return nil
}
