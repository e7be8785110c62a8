package ocflstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/local"
)

func newTestRoot(t *testing.T, opts ...ocfl.RootOption) (*ocfl.StorageRoot, *local.FS) {
	t.Helper()
	ctx := context.Background()
	fsys, err := local.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	root, err := ocfl.NewStorageRoot(ctx, fsys, "sr", opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := root.Init(ctx, nil); err != nil {
		t.Fatal(err)
	}
	return root, fsys
}

func TestStorageRootInit(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	root, err := ocfl.NewStorageRoot(ctx, fsys, "sr")
	is.NoErr(err)
	err = root.Init(ctx, &ocfl.InitRootConf{
		Readme:        "conformance notes",
		StorageReadme: "pair tree dispersal",
	})
	is.NoErr(err)

	// declaration tags and readmes on disk
	for _, name := range []string{
		"sr/0=ocfl_1.0",
		"sr/1=storage_pair_tree",
		"sr/ocfl_1.0.txt",
		"sr/storage_pair_tree.txt",
	} {
		_, err := os.Stat(filepath.Join(fsys.Root(), filepath.FromSlash(name)))
		is.NoErr(err)
	}
	is.True(root.VerifyDeclaration(ctx))
}

func TestStorageRootInitNoPath(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	root, err := ocfl.NewStorageRoot(ctx, fsys, "")
	is.NoErr(err)
	err = root.Init(ctx, nil)
	is.True(errors.Is(err, ocfl.ErrRootConfig))
}

func TestStorageRootInitFileConflict(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	dir := t.TempDir()
	writeTestFiles(t, dir, map[string]string{"sr": "a regular file"})
	fsys, err := local.NewFS(dir)
	is.NoErr(err)
	root, err := ocfl.NewStorageRoot(ctx, fsys, "sr")
	is.NoErr(err)
	err = root.Init(ctx, nil)
	is.True(errors.Is(err, ocfl.ErrPathConflict))
}

func TestStorageRootLoad(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	_, fsys := newTestRoot(t, ocfl.RootWithScheme(ocfl.StorageSimple))

	// reloading recovers the scheme from the storage tag
	reloaded, err := ocfl.NewStorageRoot(ctx, fsys, "sr")
	is.NoErr(err)
	is.Equal(reloaded.Scheme(), ocfl.StorageSimple)
	is.True(reloaded.VerifyDeclaration(ctx))
}

func TestResolveID(t *testing.T) {
	is := is.New(t)
	root, _ := newTestRoot(t)
	objPath, err := root.ResolveID("ocfl_obj1")
	is.NoErr(err)
	is.Equal(objPath, "51/78/15/a5/04/46/ac/68/9c/54/f4/a0/86/0f/77/f1/517815a50446ac689c54f4a0860f77f1")

	simple, _ := newTestRoot(t, ocfl.RootWithScheme(ocfl.StorageSimple))
	objPath, err = simple.ResolveID("ocfl_obj1")
	is.NoErr(err)
	is.Equal(objPath, "517815a50446ac689c54f4a0860f77f1")
}

func TestAddAndGetObject(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	root, _ := newTestRoot(t)
	obj, _ := newTestObject(t, nil, map[string]string{
		"foo.xml":               "foo content",
		"level1/level2/bar.txt": "bar content",
	})
	is.NoErr(root.AddObject(ctx, obj, "ocfl_obj1"))
	is.Equal(obj.ID(), "ocfl_obj1")
	is.Equal(obj.Root(), root)

	// the object's path is the dispersed path, relative to the root
	wantPath, err := root.ResolveID("ocfl_obj1")
	is.NoErr(err)
	is.Equal(obj.Path(), wantPath)

	found, err := root.GetObject(ctx, "ocfl_obj1")
	is.NoErr(err)
	is.True(found != nil)
	is.Equal(found.ID(), "ocfl_obj1")
	is.True(found.IsObject(ctx))

	// ids that don't resolve return nil without error
	missing, err := root.GetObject(ctx, "no_such_id")
	is.NoErr(err)
	is.True(missing == nil)

	// adding over an occupied path is a conflict
	obj2, _ := newTestObject(t, nil, map[string]string{"a.txt": "a"})
	err = root.AddObject(ctx, obj2, "ocfl_obj1")
	is.True(errors.Is(err, ocfl.ErrPathConflict))
}

func TestAddObjectInvalidSource(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	root, _ := newTestRoot(t)
	dir := t.TempDir()
	writeTestFiles(t, dir, map[string]string{"plain.txt": "not an object"})
	fsys, err := local.NewFS(dir)
	is.NoErr(err)
	obj, err := ocfl.NewObject(ctx, fsys, ".")
	is.NoErr(err)
	err = root.AddObject(ctx, obj, "some_id")
	is.True(errors.Is(err, ocfl.ErrNotObject))
}

func TestGetObjectPathInvalid(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	root, fsys := newTestRoot(t)
	writeTestFiles(t, filepath.Join(fsys.Root(), "sr", "junk"), map[string]string{"file.txt": "x"})
	_, err := root.GetObjectPath(ctx, "junk")
	is.True(errors.Is(err, ocfl.ErrNotObject))
}

func TestMoveObject(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	root, fsys := newTestRoot(t)
	obj, _ := newTestObject(t, nil, map[string]string{"foo.xml": "foo content"})
	is.NoErr(root.AddObject(ctx, obj, "ocfl_obj1"))

	is.NoErr(root.MoveObject(ctx, obj, "ocfl_obj2"))
	is.Equal(obj.ID(), "ocfl_obj2")

	// the old path no longer resolves, the new one does
	old, err := root.GetObject(ctx, "ocfl_obj1")
	is.NoErr(err)
	is.True(old == nil)
	moved, err := root.GetObject(ctx, "ocfl_obj2")
	is.NoErr(err)
	is.True(moved != nil)

	// the object's path stays relative to the root and resolves on disk
	wantPath, err := root.ResolveID("ocfl_obj2")
	is.NoErr(err)
	is.Equal(obj.Path(), wantPath)
	_, err = os.Stat(filepath.Join(fsys.Root(), "sr", filepath.FromSlash(obj.Path()), "0=ocfl_object_1.0"))
	is.NoErr(err)

	// moving onto an occupied id is a conflict
	other, _ := newTestObject(t, nil, map[string]string{"b.txt": "b"})
	is.NoErr(root.AddObject(ctx, other, "ocfl_obj3"))
	err = root.MoveObject(ctx, other, "ocfl_obj2")
	is.True(errors.Is(err, ocfl.ErrPathConflict))
}

func TestEnumerateObjects(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	root, _ := newTestRoot(t)
	for _, id := range []string{"obj_a", "obj_b", "obj_c"} {
		obj, _ := newTestObject(t, nil, map[string]string{"file.txt": "content of " + id})
		is.NoErr(root.AddObject(ctx, obj, id))
	}
	count, err := root.CountObjects(ctx)
	is.NoErr(err)
	is.Equal(count, 3)

	paths, err := root.ObjectPaths(ctx)
	is.NoErr(err)
	is.Equal(len(paths), 3)

	objects, err := root.Objects(ctx)
	is.NoErr(err)
	ids := map[string]bool{}
	for _, obj := range objects {
		ids[obj.ID()] = true
	}
	is.True(ids["obj_a"] && ids["obj_b"] && ids["obj_c"])
}

func TestStorageRootFixity(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	root, fsys := newTestRoot(t)
	for _, id := range []string{"obj_a", "obj_b"} {
		obj, _ := newTestObject(t, nil, map[string]string{"file.txt": "content of " + id})
		is.NoErr(root.AddObject(ctx, obj, id))
	}
	conf := &ocfl.FixityConf{Algorithm: ocfl.SHA256}
	is.NoErr(root.CalcFixity(ctx, conf))

	failed, err := root.CheckFixity(ctx, conf)
	is.NoErr(err)
	is.Equal(len(failed), 0)

	// corrupt one object's content
	objPath, err := root.ResolveID("obj_b")
	is.NoErr(err)
	corrupt := filepath.Join(fsys.Root(), "sr", filepath.FromSlash(objPath), "v1", "content", "file.txt")
	is.NoErr(os.WriteFile(corrupt, []byte("tampered"), 0644))

	failed, err = root.CheckFixity(ctx, conf)
	is.NoErr(err)
	is.Equal(len(failed), 1)
	result := failed["obj_b"]
	is.True(result != nil)
	is.True(!result.OK())
}
