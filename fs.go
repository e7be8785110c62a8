package ocflstore

import (
	"context"
	"io"
	"io/fs"
	"path"
)

// FS is the minimal read interface for storage backends.
type FS interface {
	OpenFile(ctx context.Context, name string) (fs.File, error)
	ReadDir(ctx context.Context, name string) ([]fs.DirEntry, error)
}

// WriteFS is a storage backend that supports writes and deletes.
type WriteFS interface {
	FS
	Write(ctx context.Context, name string, src io.Reader) (int64, error)
	// Remove removes the named file or (empty) directory.
	Remove(ctx context.Context, name string) error
	// RemoveAll removes name and everything below it.
	RemoveAll(ctx context.Context, name string) error
}

// CopyFS is a WriteFS with a backend-native copy, used as a fast path when
// source and destination share a backend.
type CopyFS interface {
	WriteFS
	Copy(ctx context.Context, dst string, src string) error
}

// RenameFS is a WriteFS that can rename files and directories. In-place
// object conversion and object moves require it.
type RenameFS interface {
	WriteFS
	Rename(ctx context.Context, src string, dst string) error
}

// ObjectScanner is implemented by backends with a native (typically faster)
// scan for object declarations below a directory.
type ObjectScanner interface {
	FS
	// ObjectRoots returns paths of directories under dir that include an
	// object declaration, in lexical order.
	ObjectRoots(ctx context.Context, dir string) ([]string, error)
}

// NewFS wraps an io/fs.FS as an FS.
func NewFS(fsys fs.FS) FS {
	return &ioFS{FS: fsys}
}

type ioFS struct {
	fs.FS
}

func (fsys *ioFS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "openfile", Path: name, Err: err}
	}
	return fsys.Open(name)
}

func (fsys *ioFS) ReadDir(ctx context.Context, name string) ([]fs.DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return fs.ReadDir(fsys.FS, name)
}

// EachFile calls walkFn for every regular file under root in fsys. Files are
// visited in lexical order, directories recursively.
func EachFile(ctx context.Context, fsys FS, root string, walkFn fs.WalkDirFunc) error {
	entries, err := fsys.ReadDir(ctx, root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		next := path.Join(root, e.Name())
		if e.Type().IsRegular() {
			if err := walkFn(next, e, nil); err != nil {
				return err
			}
		}
		if e.IsDir() {
			if err := EachFile(ctx, fsys, next, walkFn); err != nil {
				return err
			}
		}
	}
	return nil
}
