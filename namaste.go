package ocflstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

var (
	ErrDeclNotExist = fmt.Errorf("missing NAMASTE declaration: %w", fs.ErrNotExist)
	ErrDeclMultiple = errors.New("multiple NAMASTE declarations found")

	declRE       = regexp.MustCompile(`^0=([a-z_]+)_([0-9]+\.[0-9]+)$`)
	storageTagRE = regexp.MustCompile(`^1=([a-z_]+)$`)
)

// Declaration represents a NAMASTE type declaration ("0=NAME_VERSION"). The
// declaration is an empty tag file; the filename carries the information.
type Declaration struct {
	Type    string
	Version Spec
}

// ParseDeclaration parses name as a declaration filename and sets the value
// referenced by d.
func ParseDeclaration(name string, d *Declaration) error {
	m := declRE.FindStringSubmatch(name)
	if len(m) != 3 {
		return ErrDeclNotExist
	}
	d.Type = m[1]
	if err := ParseSpec(m[2], &d.Version); err != nil {
		return ErrDeclNotExist
	}
	return nil
}

// FindDeclaration returns the declaration from a fs.DirEntry slice. An error
// is returned if the number of declarations is not one.
func FindDeclaration(items []fs.DirEntry) (Declaration, error) {
	var found []Declaration
	for _, e := range items {
		if !e.Type().IsRegular() {
			continue
		}
		var d Declaration
		if err := ParseDeclaration(e.Name(), &d); err == nil {
			found = append(found, d)
		}
	}
	switch len(found) {
	case 0:
		return Declaration{}, ErrDeclNotExist
	case 1:
		return found[0], nil
	}
	return Declaration{}, ErrDeclMultiple
}

// Name returns the filename for d ("0=TYPE_VERSION"), or an empty string if d
// is empty.
func (d Declaration) Name() string {
	if d.Type == "" || d.Version.Empty() {
		return ""
	}
	return "0=" + d.Type + `_` + d.Version.String()
}

// IsObject returns true if d declares an object.
func (d Declaration) IsObject() bool {
	return d.Type == ObjectConformance
}

// IsRoot returns true if d declares a storage root.
func (d Declaration) IsRoot() bool {
	return d.Type == RootConformance
}

// Write writes d as an empty tag file in dir.
func (d Declaration) Write(ctx context.Context, fsys WriteFS, dir string) error {
	if d.Name() == "" {
		return errors.New("writing declaration: empty declaration")
	}
	if _, err := fsys.Write(ctx, path.Join(dir, d.Name()), strings.NewReader("")); err != nil {
		return fmt.Errorf("writing declaration: %w", err)
	}
	return nil
}

// StorageTag represents a storage root's dispersal scheme declaration
// ("1=SCHEME"), also an empty tag file.
type StorageTag struct {
	Scheme string
}

// ParseStorageTag parses name as a storage tag filename and sets the value
// referenced by t.
func ParseStorageTag(name string, t *StorageTag) error {
	m := storageTagRE.FindStringSubmatch(name)
	if len(m) != 2 {
		return ErrDeclNotExist
	}
	t.Scheme = m[1]
	return nil
}

// FindStorageTag returns the storage tag from a fs.DirEntry slice. An error
// is returned if the number of tags is not one.
func FindStorageTag(items []fs.DirEntry) (StorageTag, error) {
	var found []StorageTag
	for _, e := range items {
		if !e.Type().IsRegular() {
			continue
		}
		var t StorageTag
		if err := ParseStorageTag(e.Name(), &t); err == nil {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return StorageTag{}, ErrDeclNotExist
	case 1:
		return found[0], nil
	}
	return StorageTag{}, ErrDeclMultiple
}

// Name returns the filename for t ("1=SCHEME"), or an empty string if t is
// empty.
func (t StorageTag) Name() string {
	if t.Scheme == "" {
		return ""
	}
	return "1=" + t.Scheme
}

// Write writes t as an empty tag file in dir.
func (t StorageTag) Write(ctx context.Context, fsys WriteFS, dir string) error {
	if t.Name() == "" {
		return errors.New("writing storage tag: empty tag")
	}
	if _, err := fsys.Write(ctx, path.Join(dir, t.Name()), strings.NewReader("")); err != nil {
		return fmt.Errorf("writing storage tag: %w", err)
	}
	return nil
}
