package cloud_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/srerickson/ocflstore/backend/cloud"
	"gocloud.dev/blob/memblob"
)

func newMemFS(t *testing.T) *cloud.FS {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	return cloud.NewFS(bucket)
}

func TestWriteOpenReadDir(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	fsys := newMemFS(t)

	_, err := fsys.Write(ctx, "dir/file.txt", strings.NewReader("content"))
	is.NoErr(err)
	_, err = fsys.Write(ctx, "dir/sub/other.txt", strings.NewReader("more"))
	is.NoErr(err)

	f, err := fsys.OpenFile(ctx, "dir/file.txt")
	is.NoErr(err)
	b, err := io.ReadAll(f)
	f.Close()
	is.NoErr(err)
	is.Equal(string(b), "content")

	entries, err := fsys.ReadDir(ctx, "dir")
	is.NoErr(err)
	is.Equal(len(entries), 2)
	is.Equal(entries[0].Name(), "file.txt")
	is.True(!entries[0].IsDir())
	is.Equal(entries[1].Name(), "sub")
	is.True(entries[1].IsDir())

	_, err = fsys.ReadDir(ctx, "missing")
	is.True(errors.Is(err, fs.ErrNotExist))
	_, err = fsys.OpenFile(ctx, "missing.txt")
	is.True(errors.Is(err, fs.ErrNotExist))
}

func TestCopyRemove(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	fsys := newMemFS(t)
	_, err := fsys.Write(ctx, "src.txt", strings.NewReader("content"))
	is.NoErr(err)

	is.NoErr(fsys.Copy(ctx, "dst.txt", "src.txt"))
	f, err := fsys.OpenFile(ctx, "dst.txt")
	is.NoErr(err)
	f.Close()

	is.NoErr(fsys.Remove(ctx, "dst.txt"))
	_, err = fsys.OpenFile(ctx, "dst.txt")
	is.True(errors.Is(err, fs.ErrNotExist))

	_, err = fsys.Write(ctx, "tree/a.txt", strings.NewReader("a"))
	is.NoErr(err)
	_, err = fsys.Write(ctx, "tree/deep/b.txt", strings.NewReader("b"))
	is.NoErr(err)
	is.NoErr(fsys.RemoveAll(ctx, "tree"))
	_, err = fsys.OpenFile(ctx, "tree/a.txt")
	is.True(errors.Is(err, fs.ErrNotExist))
	_, err = fsys.OpenFile(ctx, "tree/deep/b.txt")
	is.True(errors.Is(err, fs.ErrNotExist))
}
