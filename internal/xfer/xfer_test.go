package xfer_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/matryer/is"
	ocfl "github.com/srerickson/ocflstore"
	"github.com/srerickson/ocflstore/backend/local"
	"github.com/srerickson/ocflstore/internal/xfer"
)

func TestCopy(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	srcFS, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	dstFS, err := local.NewFS(t.TempDir())
	is.NoErr(err)

	contents := map[string]string{
		"a.txt":        "content a",
		"deep/b.txt":   "content b",
		"deep/er/c.md": "content c",
	}
	files := map[string]string{}
	for name, data := range contents {
		_, err := srcFS.Write(ctx, name, strings.NewReader(data))
		is.NoErr(err)
		files["copied/"+name] = name
	}
	is.NoErr(xfer.Copy(ctx, srcFS, dstFS, files, 4, logr.Discard()))
	for name, data := range contents {
		f, err := dstFS.OpenFile(ctx, "copied/"+name)
		is.NoErr(err)
		b, err := io.ReadAll(f)
		f.Close()
		is.NoErr(err)
		is.Equal(string(b), data)
	}
}

func TestCopySameFS(t *testing.T) {
	ctx := context.Background()
	is := is.New(t)
	fsys, err := local.NewFS(t.TempDir())
	is.NoErr(err)
	_, err = fsys.Write(ctx, "src.txt", strings.NewReader("content"))
	is.NoErr(err)
	// same-backend transfers use the backend's native copy
	var _ ocfl.CopyFS = fsys
	is.NoErr(xfer.Copy(ctx, fsys, fsys, map[string]string{"dst.txt": "src.txt"}, 1, logr.Discard()))
	f, err := fsys.OpenFile(ctx, "dst.txt")
	is.NoErr(err)
	f.Close()
}
