// Package local implements the storage backend over the operating system's
// filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ocfl "github.com/srerickson/ocflstore"
)

const (
	dirPerm  = 0755
	filePerm = 0644
)

// FS is a storage backend rooted at a directory on the local filesystem.
type FS struct {
	ocfl.FS
	// path is the os-specific path to the backend's base directory
	path string
}

var (
	_ ocfl.RenameFS      = (*FS)(nil)
	_ ocfl.CopyFS        = (*FS)(nil)
	_ ocfl.ObjectScanner = (*FS)(nil)
)

// NewFS returns an FS rooted at path, which need not exist yet.
func NewFS(path string) (*FS, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("new backend: %w", err)
	}
	return &FS{
		path: abs,
		FS:   ocfl.NewFS(os.DirFS(abs)),
	}, nil
}

// Root returns the backend's base directory as an os-specific path.
func (fsys *FS) Root() string {
	return fsys.path
}

func (fsys *FS) Write(ctx context.Context, name string, src io.Reader) (int64, error) {
	if !fs.ValidPath(name) || name == "." {
		return 0, &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fullPath := fsys.osPath(name)
	if err := os.MkdirAll(filepath.Dir(fullPath), dirPerm); err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	dst, err := os.OpenFile(fullPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return n, err
}

func (fsys *FS) Copy(ctx context.Context, dst string, src string) error {
	reader, err := fsys.OpenFile(ctx, src)
	if err != nil {
		return err
	}
	defer reader.Close()
	info, err := reader.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return &fs.PathError{Op: "copy", Path: src, Err: errors.New("source is not a regular file")}
	}
	_, err = fsys.Write(ctx, dst, reader)
	return err
}

// Remove removes the named file or empty directory.
func (fsys *FS) Remove(ctx context.Context, name string) error {
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Remove(fsys.osPath(name))
}

func (fsys *FS) RemoveAll(ctx context.Context, name string) error {
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "remove_all", Path: name, Err: fs.ErrInvalid}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(fsys.osPath(name))
}

// Rename renames src to dst: src should exist, dst should not.
func (fsys *FS) Rename(ctx context.Context, src string, dst string) error {
	if !fs.ValidPath(src) || src == "." {
		return &fs.PathError{Op: "rename", Path: src, Err: fs.ErrInvalid}
	}
	if !fs.ValidPath(dst) || dst == "." {
		return &fs.PathError{Op: "rename", Path: dst, Err: fs.ErrInvalid}
	}
	if strings.HasPrefix(dst, src+"/") {
		return &fs.PathError{
			Op:   "rename",
			Path: dst,
			Err:  fmt.Errorf("cannot move %s to subdirectory of itself", src),
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	fullSrc := fsys.osPath(src)
	fullDst := fsys.osPath(dst)
	_, err := os.Stat(fullDst)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rename: %w", err)
	}
	if err == nil {
		return fmt.Errorf("rename: new name exists: %s: %w", dst, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(fullDst), dirPerm); err != nil {
		return err
	}
	return os.Rename(fullSrc, fullDst)
}

func (fsys *FS) osPath(name string) string {
	return filepath.Join(fsys.path, filepath.FromSlash(name))
}
