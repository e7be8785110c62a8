package ocflstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-logr/logr"
)

// Object represents one versioned object: a directory holding a declaration
// tag, inventories, and one content tree per version.
type Object struct {
	fsys FS
	// dir is relative to the storage root when the object is attached to
	// one, otherwise relative to fsys.
	dir  string
	root *StorageRoot // non-owning back reference, may be nil

	digestAlg string
	fixityAlg string
	spec      Spec
	log       logr.Logger

	inv *Inventory
}

// ObjectOption configures NewObject.
type ObjectOption func(*Object)

// WithDigestAlgorithm sets the object's primary digest algorithm, used for
// manifests, version states, and inventory sidecars.
func WithDigestAlgorithm(alg string) ObjectOption {
	return func(o *Object) {
		o.digestAlg = alg
	}
}

// WithFixityAlgorithm sets the object's default fixity algorithm.
func WithFixityAlgorithm(alg string) ObjectOption {
	return func(o *Object) {
		o.fixityAlg = alg
	}
}

// WithLogger sets the object's logger.
func WithLogger(l logr.Logger) ObjectOption {
	return func(o *Object) {
		o.log = l
	}
}

func objectWithRoot(root *StorageRoot) ObjectOption {
	return func(o *Object) {
		o.root = root
	}
}

// NewObject returns an *Object for the directory dir in fsys. If the
// directory already holds a valid object its inventory is loaded; otherwise
// the returned *Object can be used to create one with Init.
func NewObject(ctx context.Context, fsys FS, dir string, opts ...ObjectOption) (*Object, error) {
	o := &Object{
		fsys:      fsys,
		dir:       strings.TrimSuffix(dir, "/"),
		digestAlg: DefaultDigestAlgorithm,
		fixityAlg: DefaultFixityAlgorithm,
		spec:      DefaultSpec,
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.Parse(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// FS returns the object's backend.
func (o *Object) FS() FS {
	if o.root != nil {
		return o.root.fsys
	}
	return o.fsys
}

// Path returns the object's directory: relative to the storage root when
// attached, otherwise relative to the backend.
func (o *Object) Path() string {
	return o.dir
}

// FullPath returns the object's directory relative to the backend, resolving
// through the storage root when attached.
func (o *Object) FullPath() string {
	if o.root != nil {
		return path.Join(o.root.dir, o.dir)
	}
	return o.dir
}

// Root returns the storage root the object is attached to, or nil.
func (o *Object) Root() *StorageRoot {
	return o.root
}

// ID returns the object's logical id from its inventory, or an empty string
// if no inventory is loaded.
func (o *Object) ID() string {
	if o.inv == nil {
		return ""
	}
	return o.inv.ID
}

// Inventory returns the object's inventory, which may be nil. The inventory
// is owned by the object.
func (o *Object) Inventory() *Inventory {
	return o.inv
}

// DigestAlgorithm returns the object's primary digest algorithm. The
// inventory's value wins when one is loaded.
func (o *Object) DigestAlgorithm() string {
	if o.inv != nil && o.inv.DigestAlgorithm != "" {
		return o.inv.DigestAlgorithm
	}
	return o.digestAlg
}

// Declaration returns the object's NAMASTE declaration. It returns
// ErrNotObject if the directory has no declaration, more than one, or one
// with a type other than "ocfl_object"; ErrMissingPath if the directory does
// not exist.
func (o *Object) Declaration(ctx context.Context) (Declaration, error) {
	entries, err := o.FS().ReadDir(ctx, o.FullPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Declaration{}, fmt.Errorf("%s: %w", o.FullPath(), ErrMissingPath)
		}
		return Declaration{}, err
	}
	decl, err := FindDeclaration(entries)
	if err != nil {
		return Declaration{}, fmt.Errorf("%s: %w", err, ErrNotObject)
	}
	if !decl.IsObject() {
		return Declaration{}, fmt.Errorf("declared type is %q: %w", decl.Type, ErrNotObject)
	}
	return decl, nil
}

// IsObject returns true if the object's directory holds a valid declaration.
func (o *Object) IsObject(ctx context.Context) bool {
	_, err := o.Declaration(ctx)
	return err == nil
}

// Parse loads the object's inventory from disk. It is a no-op if the
// directory does not exist or is not an object.
func (o *Object) Parse(ctx context.Context) error {
	if _, err := o.Declaration(ctx); err != nil {
		if errors.Is(err, ErrMissingPath) || errors.Is(err, ErrNotObject) {
			return nil
		}
		return err
	}
	inv, err := readInventoryFile(ctx, o.FS(), path.Join(o.FullPath(), inventoryFile))
	if err != nil {
		return fmt.Errorf("parsing object %s: %w", o.FullPath(), err)
	}
	o.inv = inv
	return nil
}

// ValidateInventorySidecar recomputes the digest of the object's root
// inventory and compares it to the sidecar file.
func (o *Object) ValidateInventorySidecar(ctx context.Context) error {
	if o.inv == nil {
		return errors.New("object has no inventory")
	}
	name := path.Join(o.FullPath(), inventoryFile)
	return validateInventorySidecar(ctx, o.FS(), name, o.DigestAlgorithm())
}

// InitObjectConf holds optional settings for Object.Init.
type InitObjectConf struct {
	// ID is the object's logical id; a fresh id is generated when empty.
	ID string
	// VersionMessage is recorded as the v1 message.
	VersionMessage string
	// Readme, if set, is written next to the declaration as
	// "ocfl_object_<version>.txt".
	Readme string
}

// Init converts the object's directory, in place, into a version-1 object:
// existing contents move beneath v1/content/, the declaration is written, and
// inventories are generated. The backend must support rename.
func (o *Object) Init(ctx context.Context, conf *InitObjectConf) error {
	if conf == nil {
		conf = &InitObjectConf{}
	}
	rfs, ok := o.FS().(RenameFS)
	if !ok {
		return fmt.Errorf("converting %s: %w", o.FullPath(), ErrNotRenamer)
	}
	full := o.FullPath()
	if o.IsObject(ctx) {
		return fmt.Errorf("%s is already an OCFL object: %w", full, ErrPathConflict)
	}
	entries, err := o.FS().ReadDir(ctx, full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", full, ErrMissingPath)
		}
		return err
	}
	// stage version contents under a temporary name so the move doesn't
	// consume itself
	tmp := freshID()
	for _, e := range entries {
		src := path.Join(full, e.Name())
		dst := path.Join(full, tmp, contentDir, e.Name())
		if err := rfs.Rename(ctx, src, dst); err != nil {
			return fmt.Errorf("staging v1 content: %w", err)
		}
	}
	if len(entries) > 0 {
		if err := rfs.Rename(ctx, path.Join(full, tmp), path.Join(full, "v1")); err != nil {
			return fmt.Errorf("renaming staged v1: %w", err)
		}
	}
	o.inv = NewInventory(conf.ID)
	o.inv.DigestAlgorithm = o.digestAlg
	if conf.VersionMessage != "" {
		msg := conf.VersionMessage
		o.inv.Versions["v1"].Message = &msg
	}
	decl := Declaration{Type: ObjectConformance, Version: o.spec}
	if err := decl.Write(ctx, rfs, full); err != nil {
		return err
	}
	if conf.Readme != "" {
		name := path.Join(full, fmt.Sprintf("%s_%s.txt", ObjectConformance, o.spec))
		if _, err := rfs.Write(ctx, name, strings.NewReader(conf.Readme)); err != nil {
			return fmt.Errorf("writing declaration readme: %w", err)
		}
	}
	o.log.V(1).Info("converted directory to object", "path", full, "id", o.inv.ID)
	return o.Update(ctx)
}

// VersionDirs returns the version numbers present as directories in the
// object, sorted ascending.
func (o *Object) VersionDirs(ctx context.Context) (VNums, error) {
	entries, err := o.FS().ReadDir(ctx, o.FullPath())
	if err != nil {
		return nil, err
	}
	var nums VNums
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var vn VNum
		if err := ParseVNum(e.Name(), &vn); err != nil {
			continue
		}
		nums = append(nums, vn)
	}
	nums.Sort()
	return nums, nil
}

// Open opens a file from the object's head version by its logical path,
// resolving through the manifest to surviving content.
func (o *Object) Open(ctx context.Context, logical string) (fs.File, error) {
	if o.inv == nil {
		return nil, errors.New("object has no inventory")
	}
	head := o.inv.HeadVersion()
	if head == nil {
		return nil, errors.New("object has no versions")
	}
	var digest string
	for d, paths := range head.State {
		for _, p := range paths {
			if p == logical {
				digest = d
				break
			}
		}
	}
	if digest == "" {
		return nil, fmt.Errorf("%s: %w", logical, fs.ErrNotExist)
	}
	physical := o.inv.Manifest.Paths(digest)
	if len(physical) == 0 {
		return nil, fmt.Errorf("no path in manifest for digest %s", digest)
	}
	return o.FS().OpenFile(ctx, path.Join(o.FullPath(), physical[0]))
}
