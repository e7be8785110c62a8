package ocflstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"strings"

	"github.com/carlmjohnson/workgroup"
	"github.com/go-logr/logr"
	"github.com/srerickson/ocflstore/internal/xfer"
)

// StorageRoot represents an OCFL storage root: a declared directory holding
// many objects, dispersed through a storage scheme that maps object ids to
// directories.
type StorageRoot struct {
	fsys FS
	dir  string

	conformance string
	spec        Spec
	scheme      string
	idAlg       string
	layout      Layout
	log         logr.Logger
}

// RootOption configures NewStorageRoot.
type RootOption func(*StorageRoot)

// RootWithScheme sets the dispersal scheme for a new storage root. Loading an
// existing root replaces it with the declared scheme.
func RootWithScheme(scheme string) RootOption {
	return func(r *StorageRoot) {
		r.scheme = scheme
	}
}

// RootWithIDAlgorithm sets the digest algorithm used to derive storage ids
// from object ids.
func RootWithIDAlgorithm(alg string) RootOption {
	return func(r *StorageRoot) {
		r.idAlg = alg
	}
}

// RootWithLogger sets the storage root's logger.
func RootWithLogger(l logr.Logger) RootOption {
	return func(r *StorageRoot) {
		r.log = l
	}
}

// NewStorageRoot returns a *StorageRoot for directory dir in fsys. If the
// directory exists and holds a declaration, its declaration tags are loaded
// and verified; otherwise nothing is loaded and the returned root can be used
// to create it with Init.
func NewStorageRoot(ctx context.Context, fsys FS, dir string, opts ...RootOption) (*StorageRoot, error) {
	r := &StorageRoot{
		fsys:        fsys,
		dir:         strings.TrimSuffix(dir, "/"),
		conformance: RootConformance,
		spec:        DefaultSpec,
		scheme:      StoragePairTree,
		idAlg:       DefaultIDAlgorithm,
		log:         logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	layout, err := NewLayout(r.scheme)
	if err != nil {
		return nil, err
	}
	r.layout = layout
	// load declarations when the directory already holds a storage root
	if entries, err := fsys.ReadDir(ctx, r.dir); err == nil {
		if _, declErr := FindDeclaration(entries); declErr == nil {
			if err := r.Load(ctx); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// FS returns the root's backend.
func (r *StorageRoot) FS() FS {
	return r.fsys
}

// Path returns the root's directory relative to its backend.
func (r *StorageRoot) Path() string {
	return r.dir
}

// Scheme returns the root's dispersal scheme name.
func (r *StorageRoot) Scheme() string {
	return r.scheme
}

// Load reads the root's declaration tags: the storage tag sets the dispersal
// scheme, and the conformance declaration must match the configured values.
func (r *StorageRoot) Load(ctx context.Context) error {
	entries, err := r.fsys.ReadDir(ctx, r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", r.dir, ErrMissingPath)
		}
		return err
	}
	tag, err := FindStorageTag(entries)
	if err == nil {
		layout, layoutErr := NewLayout(tag.Scheme)
		if layoutErr != nil {
			return layoutErr
		}
		r.scheme = tag.Scheme
		r.layout = layout
	}
	decl, err := FindDeclaration(entries)
	if err != nil {
		return fmt.Errorf("not an OCFL storage root: %w", err)
	}
	if decl.Type != r.conformance || decl.Version != r.spec {
		return fmt.Errorf("storage root declares %s_%s, expected %s_%s",
			decl.Type, decl.Version, r.conformance, r.spec)
	}
	return nil
}

// VerifyDeclaration returns true if both declaration tags are present and
// match the configured conformance, version, and scheme.
func (r *StorageRoot) VerifyDeclaration(ctx context.Context) bool {
	entries, err := r.fsys.ReadDir(ctx, r.dir)
	if err != nil {
		return false
	}
	decl, err := FindDeclaration(entries)
	if err != nil || decl.Type != r.conformance || decl.Version != r.spec {
		return false
	}
	tag, err := FindStorageTag(entries)
	return err == nil && tag.Scheme == r.scheme
}

// InitRootConf holds optional settings for StorageRoot.Init.
type InitRootConf struct {
	// Readme, if set, is written next to the conformance declaration as
	// "<conformance>_<version>.txt".
	Readme string
	// StorageReadme, if set, is written next to the storage tag as
	// "<scheme>.txt".
	StorageReadme string
}

// Init creates the storage root directory and writes its declaration tags.
// An existing directory is left as-is; a regular file at the root's path is
// a conflict.
func (r *StorageRoot) Init(ctx context.Context, conf *InitRootConf) error {
	if conf == nil {
		conf = &InitRootConf{}
	}
	if r.dir == "" {
		return fmt.Errorf("creating storage root: path must be set: %w", ErrRootConfig)
	}
	wfs, ok := r.fsys.(WriteFS)
	if !ok {
		return errors.New("storage root backend is not writable")
	}
	if _, err := r.fsys.ReadDir(ctx, r.dir); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		// a regular file at the root path
		if f, openErr := r.fsys.OpenFile(ctx, r.dir); openErr == nil {
			f.Close()
			return fmt.Errorf("%s exists and is not a directory: %w", r.dir, ErrPathConflict)
		}
		return err
	}
	decl := Declaration{Type: r.conformance, Version: r.spec}
	if err := decl.Write(ctx, wfs, r.dir); err != nil {
		return err
	}
	if conf.Readme != "" {
		name := path.Join(r.dir, fmt.Sprintf("%s_%s.txt", r.conformance, r.spec))
		if _, err := wfs.Write(ctx, name, strings.NewReader(conf.Readme)); err != nil {
			return fmt.Errorf("writing declaration readme: %w", err)
		}
	}
	tag := StorageTag{Scheme: r.scheme}
	if err := tag.Write(ctx, wfs, r.dir); err != nil {
		return err
	}
	if conf.StorageReadme != "" {
		name := path.Join(r.dir, r.scheme+".txt")
		if _, err := wfs.Write(ctx, name, strings.NewReader(conf.StorageReadme)); err != nil {
			return fmt.Errorf("writing storage readme: %w", err)
		}
	}
	r.log.V(1).Info("created storage root", "path", r.dir, "scheme", r.scheme)
	return nil
}

// StorageID derives the internal storage id for objID using the root's id
// algorithm.
func (r *StorageRoot) StorageID(objID string) (string, error) {
	return StorageID(r.idAlg, objID)
}

// ResolveID resolves objID to an object directory relative to the root.
func (r *StorageRoot) ResolveID(objID string) (string, error) {
	storageID, err := r.StorageID(objID)
	if err != nil {
		return "", err
	}
	objPath, err := r.layout.Resolve(storageID)
	if err != nil {
		return "", err
	}
	if !fs.ValidPath(objPath) {
		return "", fmt.Errorf("scheme resolved id to an invalid path: %s", objPath)
	}
	return objPath, nil
}

// AddObject copies obj into the root at the directory dispersed from its id,
// attaches it to the root, and updates it. A non-empty targetID overwrites
// the object's id first.
func (r *StorageRoot) AddObject(ctx context.Context, obj *Object, targetID string) error {
	if _, err := obj.Declaration(ctx); err != nil {
		return err
	}
	if obj.Inventory() == nil {
		return fmt.Errorf("source object has no inventory: %w", ErrNotObject)
	}
	wfs, ok := r.fsys.(WriteFS)
	if !ok {
		return errors.New("storage root backend is not writable")
	}
	if targetID != "" {
		obj.inv.ID = targetID
	}
	objPath, err := r.ResolveID(obj.ID())
	if err != nil {
		return err
	}
	dst := path.Join(r.dir, objPath)
	if _, err := r.fsys.ReadDir(ctx, dst); err == nil {
		return fmt.Errorf("%s is already occupied: %w", dst, ErrPathConflict)
	}
	files := map[string]string{}
	src := obj.FullPath()
	err = EachFile(ctx, obj.FS(), src, func(name string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		files[path.Join(dst, strings.TrimPrefix(name, src+"/"))] = name
		return nil
	})
	if err != nil {
		return err
	}
	if err := xfer.Copy(ctx, obj.FS(), wfs, files, runtime.GOMAXPROCS(0), r.log); err != nil {
		return fmt.Errorf("copying object into storage root: %w", err)
	}
	obj.root = r
	obj.fsys = r.fsys
	obj.dir = objPath
	r.log.V(1).Info("added object", "id", obj.ID(), "path", objPath)
	return obj.Update(ctx)
}

// GetObject returns the object stored under id, or nil if the dispersed
// path does not exist. A directory that exists but is not a valid object is
// an ErrNotObject error.
func (r *StorageRoot) GetObject(ctx context.Context, id string) (*Object, error) {
	objPath, err := r.ResolveID(id)
	if err != nil {
		return nil, err
	}
	return r.GetObjectPath(ctx, objPath)
}

// GetObjectPath is GetObject for a directory path relative to the root.
func (r *StorageRoot) GetObjectPath(ctx context.Context, objPath string) (*Object, error) {
	if _, err := r.fsys.ReadDir(ctx, path.Join(r.dir, objPath)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	obj, err := NewObject(ctx, r.fsys, objPath, objectWithRoot(r))
	if err != nil {
		return nil, err
	}
	if _, err := obj.Declaration(ctx); err != nil {
		return nil, err
	}
	return obj, nil
}

// MoveObject renames obj's directory to the directory dispersed from
// targetID and updates the object's id. The target must not already resolve
// to an object.
func (r *StorageRoot) MoveObject(ctx context.Context, obj *Object, targetID string) error {
	rfs, ok := r.fsys.(RenameFS)
	if !ok {
		return fmt.Errorf("moving object: %w", ErrNotRenamer)
	}
	existing, err := r.GetObject(ctx, targetID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("content found at %s: %w", existing.Path(), ErrPathConflict)
	}
	srcPath, err := r.ResolveID(obj.ID())
	if err != nil {
		return err
	}
	dstPath, err := r.ResolveID(targetID)
	if err != nil {
		return err
	}
	if err := rfs.Rename(ctx, path.Join(r.dir, srcPath), path.Join(r.dir, dstPath)); err != nil {
		return fmt.Errorf("moving object: %w", err)
	}
	// the object's path stays relative to the root, same as AddObject
	obj.root = r
	obj.fsys = r.fsys
	obj.dir = dstPath
	obj.inv.ID = targetID
	r.log.V(1).Info("moved object", "id", targetID, "path", dstPath)
	return obj.Update(ctx)
}

// EachObjectPath calls fn for every directory under the root that holds an
// object declaration, with paths relative to the root. Object directories
// are not descended into.
func (r *StorageRoot) EachObjectPath(ctx context.Context, fn func(objPath string) error) error {
	if scanner, ok := r.fsys.(ObjectScanner); ok {
		roots, err := scanner.ObjectRoots(ctx, r.dir)
		if err != nil {
			return err
		}
		for _, objRoot := range roots {
			if err := fn(r.relPath(objRoot)); err != nil {
				return err
			}
		}
		return nil
	}
	return r.walkObjectPaths(ctx, r.dir, fn)
}

func (r *StorageRoot) walkObjectPaths(ctx context.Context, dir string, fn func(string) error) error {
	entries, err := r.fsys.ReadDir(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			var d Declaration
			if err := ParseDeclaration(e.Name(), &d); err == nil && d.IsObject() {
				return fn(r.relPath(dir))
			}
		}
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := r.walkObjectPaths(ctx, path.Join(dir, e.Name()), fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *StorageRoot) relPath(p string) string {
	if r.dir == "." || r.dir == "" {
		return p
	}
	return strings.TrimPrefix(p, r.dir+"/")
}

// ObjectPaths returns the paths of every object in the root, relative to the
// root.
func (r *StorageRoot) ObjectPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.EachObjectPath(ctx, func(objPath string) error {
		paths = append(paths, objPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Objects returns every object in the root, parsed.
func (r *StorageRoot) Objects(ctx context.Context) ([]*Object, error) {
	var objects []*Object
	err := r.EachObjectPath(ctx, func(objPath string) error {
		obj, err := r.GetObjectPath(ctx, objPath)
		if err != nil {
			return err
		}
		objects = append(objects, obj)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// CountObjects returns the number of objects in the root.
func (r *StorageRoot) CountObjects(ctx context.Context) (int, error) {
	var count int
	err := r.EachObjectPath(ctx, func(string) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CheckFixity checks fixity for every object in the root, fanning out one
// task per object. The result maps object ids to failed fixity results;
// an empty map means every object passed.
func (r *StorageRoot) CheckFixity(ctx context.Context, conf *FixityConf) (map[string]*FixityResult, error) {
	paths, err := r.ObjectPaths(ctx)
	if err != nil {
		return nil, err
	}
	type outcome struct {
		id     string
		result *FixityResult
	}
	failed := map[string]*FixityResult{}
	var taskErr error
	task := func(objPath string) (outcome, error) {
		obj, err := r.GetObjectPath(ctx, objPath)
		if err != nil {
			return outcome{}, err
		}
		result, err := obj.CheckFixity(ctx, conf)
		if err != nil {
			return outcome{}, err
		}
		return outcome{id: obj.ID(), result: result}, nil
	}
	manager := func(objPath string, out outcome, err error) ([]string, bool) {
		if err != nil {
			taskErr = fmt.Errorf("checking fixity of %s: %w", objPath, err)
			return nil, false
		}
		if !out.result.OK() {
			failed[out.id] = out.result
		}
		return nil, true
	}
	workgroup.DoTasks(runtime.GOMAXPROCS(0), task, manager, paths...)
	if taskErr != nil {
		return nil, taskErr
	}
	r.log.V(1).Info("checked fixity", "objects", len(paths), "failed", len(failed))
	return failed, nil
}

// CalcFixity calculates and records fixity for every object in the root.
func (r *StorageRoot) CalcFixity(ctx context.Context, conf *FixityConf) error {
	paths, err := r.ObjectPaths(ctx)
	if err != nil {
		return err
	}
	var taskErr error
	task := func(objPath string) (struct{}, error) {
		obj, err := r.GetObjectPath(ctx, objPath)
		if err != nil {
			return struct{}{}, err
		}
		_, err = obj.CalcFixity(ctx, conf)
		return struct{}{}, err
	}
	manager := func(objPath string, _ struct{}, err error) ([]string, bool) {
		if err != nil {
			taskErr = fmt.Errorf("calculating fixity of %s: %w", objPath, err)
			return nil, false
		}
		return nil, true
	}
	workgroup.DoTasks(runtime.GOMAXPROCS(0), task, manager, paths...)
	return taskErr
}
