package ocflstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/local"
)

// writeTestFiles creates files under dir, keyed by slash-separated relative
// path.
func writeTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// newTestObject converts a directory with the given files into an object and
// returns it with its backend.
func newTestObject(t *testing.T, conf *ocfl.InitObjectConf, files map[string]string) (*ocfl.Object, *local.FS) {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	writeTestFiles(t, dir, files)
	fsys, err := local.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := ocfl.NewObject(ctx, fsys, ".")
	if err != nil {
		t.Fatal(err)
	}
	if err := obj.Init(ctx, conf); err != nil {
		t.Fatal(err)
	}
	return obj, fsys
}

func TestObjectInit(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	files := map[string]string{
		"foo.xml":               "foo content",
		"level1/level2/bar.txt": "bar content",
		"level1/level2/baz.txt": "baz content",
	}
	msg := "This message will accompany the v1 version"
	obj, fsys := newTestObject(t, &ocfl.InitObjectConf{VersionMessage: msg}, files)

	// the directory is now a declared object
	decl, err := obj.Declaration(ctx)
	is.NoErr(err)
	is.True(decl.IsObject())
	is.True(obj.IsObject(ctx))

	// original files moved beneath v1/content
	for name, content := range files {
		f, err := fsys.OpenFile(ctx, "v1/content/"+name)
		is.NoErr(err)
		b, err := io.ReadAll(f)
		f.Close()
		is.NoErr(err)
		is.Equal(string(b), content)
	}

	// one version, head v1, v1 state lists every file
	inv := obj.Inventory()
	is.Equal(inv.Head, "v1")
	is.Equal(inv.VersionNums(), ocfl.VNums{1})
	v1 := inv.Version(1)
	is.Equal(*v1.Message, msg)
	is.Equal(v1.State.NumPaths(), len(files))
	for _, name := range []string{"foo.xml", "level1/level2/bar.txt"} {
		found := false
		v1.State.EachPath(func(_, p string) error {
			if p == name {
				found = true
			}
			return nil
		})
		is.True(found)
	}

	// every state digest resolves through the manifest to a physical path
	for digest := range v1.State {
		is.True(inv.Manifest.HasDigest(digest))
	}

	// inventory and sidecar written at root and in v1
	for _, name := range []string{
		"inventory.json", "inventory.json.md5",
		"v1/inventory.json", "v1/inventory.json.md5",
	} {
		f, err := fsys.OpenFile(ctx, name)
		is.NoErr(err)
		f.Close()
	}
	is.NoErr(obj.ValidateInventorySidecar(ctx))

	// a second Init is a conflict
	err = obj.Init(ctx, nil)
	is.True(errors.Is(err, ocfl.ErrPathConflict))
}

func TestObjectInitMissingDir(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	obj, err := ocfl.NewObject(ctx, fsys, "nope")
	is.NoErr(err)
	err = obj.Init(ctx, nil)
	is.True(errors.Is(err, ocfl.ErrMissingPath))
}

func TestObjectParseNonObject(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	dir := t.TempDir()
	writeTestFiles(t, dir, map[string]string{"plain.txt": "plain"})
	fsys, err := local.NewFS(dir)
	is.NoErr(err)
	obj, err := ocfl.NewObject(ctx, fsys, ".")
	is.NoErr(err)
	is.True(!obj.IsObject(ctx))
	is.True(obj.Inventory() == nil)
}

// addVersionDir writes raw content files for a later version, the way a new
// version lands on disk before update() runs.
func addVersionDir(t *testing.T, fsys *local.FS, version string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(fsys.Root(), version, "content")
	writeTestFiles(t, dir, files)
}

func newVersionedObject(t *testing.T) (*ocfl.Object, *local.FS) {
	t.Helper()
	ctx := context.Background()
	obj, fsys := newTestObject(t, &ocfl.InitObjectConf{ID: "ocfl_obj1"}, map[string]string{
		"foo.xml":               "foo content",
		"level1/level2/bar.txt": "bar content",
		"to_be_gone.txt":        "gone content",
	})
	// v2 repeats foo.xml and carries bar.txt at a new logical path
	addVersionDir(t, fsys, "v2", map[string]string{
		"foo.xml":                   "foo content",
		"level100/level200/bar.txt": "bar content",
	})
	// v3 has all new content
	addVersionDir(t, fsys, "v3", map[string]string{
		"foo.xml":   "foo content v3",
		"penny.txt": "penny content",
	})
	if err := obj.Update(ctx); err != nil {
		t.Fatal(err)
	}
	return obj, fsys
}

func TestForwardDeltaReconciliation(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, fsys := newVersionedObject(t)
	inv := obj.Inventory()
	is.Equal(inv.VersionNums(), ocfl.VNums{1, 2, 3})
	is.Equal(inv.Head, "v3")

	// every duplicated digest keeps only its v1 path in the manifest
	v2 := inv.Version(2)
	for digest := range v2.State {
		paths := inv.Manifest.Paths(digest)
		is.Equal(len(paths), 1)
		is.True(len(paths[0]) > 3 && paths[0][:3] == "v1/")
	}

	// v2's physical duplicates are gone, empty directories removed
	for _, name := range []string{
		"v2/content/foo.xml",
		"v2/content/level100/level200/bar.txt",
		"v2/content/level100/level200",
		"v2/content/level100",
	} {
		_, err := fsys.OpenFile(ctx, name)
		is.True(err != nil)
	}

	// digests unique to v3 are untouched
	v3 := inv.Version(3)
	for digest := range v3.State {
		paths := inv.Manifest.Paths(digest)
		is.Equal(len(paths), 1)
		is.True(paths[0][:3] == "v3/")
		f, err := fsys.OpenFile(ctx, paths[0])
		is.NoErr(err)
		f.Close()
	}

	// every manifest path survives on disk
	for _, paths := range inv.Manifest {
		for _, p := range paths {
			f, err := fsys.OpenFile(ctx, p)
			is.NoErr(err)
			f.Close()
		}
	}
}

func TestUpdateIdempotent(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, fsys := newVersionedObject(t)

	readInv := func() []byte {
		f, err := fsys.OpenFile(ctx, "inventory.json")
		is.NoErr(err)
		defer f.Close()
		b, err := io.ReadAll(f)
		is.NoErr(err)
		return b
	}
	before := readInv()
	is.NoErr(obj.Update(ctx))
	after := readInv()
	is.True(bytes.Equal(before, after))
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, _ := newVersionedObject(t)

	readBack := func(dir string, name string) string {
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		is.NoErr(err)
		return string(b)
	}

	// v2's bar.txt no longer exists physically under v2, but checkout
	// resolves it through the manifest to the v1 copy
	v2Dir := t.TempDir()
	dst, err := local.NewFS(v2Dir)
	is.NoErr(err)
	err = obj.Checkout(ctx, dst, ".", &ocfl.CheckoutConf{Version: 2})
	is.NoErr(err)
	is.Equal(readBack(v2Dir, "foo.xml"), "foo content")
	is.Equal(readBack(v2Dir, "level100/level200/bar.txt"), "bar content")
	_, err = os.Stat(filepath.Join(v2Dir, "to_be_gone.txt"))
	is.True(err != nil)

	// default checkout selects the latest version
	headDir := t.TempDir()
	dst, err = local.NewFS(headDir)
	is.NoErr(err)
	is.NoErr(obj.Checkout(ctx, dst, ".", nil))
	is.Equal(readBack(headDir, "foo.xml"), "foo content v3")
	is.Equal(readBack(headDir, "penny.txt"), "penny content")

	// reconstructed files digest to the version state
	v2State := obj.Inventory().Version(2).State
	v2FS, err := local.NewFS(v2Dir)
	is.NoErr(err)
	err = v2State.EachPath(func(digest, logical string) error {
		sum, err := ocfl.Checksum(ctx, v2FS, logical, ocfl.MD5)
		if err != nil {
			return err
		}
		if sum != digest {
			t.Fatalf("digest mismatch for %s", logical)
		}
		return nil
	})
	is.NoErr(err)
}

func TestCheckoutConflicts(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, _ := newVersionedObject(t)

	// a regular file at the target path is a conflict
	outer := t.TempDir()
	writeTestFiles(t, outer, map[string]string{"taken": "x", "occupied/file.txt": "x"})
	dst, err := local.NewFS(outer)
	is.NoErr(err)
	err = obj.Checkout(ctx, dst, "taken", nil)
	is.True(errors.Is(err, ocfl.ErrPathConflict))

	// a non-empty directory without overwrite is a conflict
	err = obj.Checkout(ctx, dst, "occupied", &ocfl.CheckoutConf{Overwrite: false})
	is.True(errors.Is(err, ocfl.ErrPathConflict))

	// with overwrite it succeeds
	err = obj.Checkout(ctx, dst, "occupied", &ocfl.CheckoutConf{Overwrite: true})
	is.NoErr(err)

	// unknown versions error
	err = obj.Checkout(ctx, dst, "vx", &ocfl.CheckoutConf{Version: 9, Overwrite: true})
	is.True(errors.Is(err, ocfl.ErrVersionNotFound))
}

func TestObjectOpen(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, _ := newVersionedObject(t)
	f, err := obj.Open(ctx, "penny.txt")
	is.NoErr(err)
	b, err := io.ReadAll(f)
	f.Close()
	is.NoErr(err)
	is.Equal(string(b), "penny content")
	_, err = obj.Open(ctx, "to_be_gone.txt") // not in head version
	is.True(err != nil)
}

func TestObjectFixity(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, fsys := newVersionedObject(t)

	// record sha256 fixity, then verify it
	fixity, err := obj.CalcFixity(ctx, &ocfl.FixityConf{Algorithm: ocfl.SHA256})
	is.NoErr(err)
	is.True(len(fixity[ocfl.SHA256]) > 0)
	result, err := obj.CheckFixity(ctx, &ocfl.FixityConf{Algorithm: ocfl.SHA256})
	is.NoErr(err)
	is.True(result.OK())

	// no fixity recorded for sha512
	result, err = obj.CheckFixity(ctx, &ocfl.FixityConf{Algorithm: ocfl.SHA512})
	is.NoErr(err)
	is.True(result.NoFixity)
	is.True(!result.OK())

	// find the recorded digest for v1/content/foo.xml
	var fooDigest string
	obj.Inventory().Fixity[ocfl.SHA256].EachPath(func(digest, name string) error {
		if name == "v1/content/foo.xml" {
			fooDigest = digest
		}
		return nil
	})
	is.True(fooDigest != "")

	// corrupt one byte and expect the discrepancy to be reported
	full := filepath.Join(fsys.Root(), "v1", "content", "foo.xml")
	is.NoErr(os.WriteFile(full, []byte("foo CONTENT"), 0644))
	result, err = obj.CheckFixity(ctx, &ocfl.FixityConf{Algorithm: ocfl.SHA256})
	is.NoErr(err)
	is.True(!result.OK())
	paths := result.Failures[fooDigest]
	is.Equal(paths, []string{"v1/content/foo.xml"})
}

func TestCalcFixityUseManifestDigest(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	obj, _ := newVersionedObject(t)
	fixity, err := obj.CalcFixity(ctx, &ocfl.FixityConf{UseManifestDigest: true})
	is.NoErr(err)
	inv := obj.Inventory()
	is.True(fixity[inv.DigestAlgorithm].Eq(inv.Manifest))
	result, err := obj.CheckFixity(ctx, &ocfl.FixityConf{UseManifestDigest: true})
	is.NoErr(err)
	is.True(result.OK())
}
