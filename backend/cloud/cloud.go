// Package cloud implements the storage backend over a gocloud.dev blob
// bucket (S3, Azure, GCS, mem). Buckets have no rename, so in-place object
// conversion and object moves are not available on this backend.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	ocfl "github.com/srerickson/ocflstore"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// FS is a storage backend for cloud buckets using a blob.Bucket.
type FS struct {
	*blob.Bucket
	log        logr.Logger
	writerOpts *blob.WriterOptions
	readerOpts *blob.ReaderOptions
}

var (
	_ ocfl.WriteFS = (*FS)(nil)
	_ ocfl.CopyFS  = (*FS)(nil)
)

type fsOption func(*FS)

// NewFS returns an FS backed by b.
func NewFS(b *blob.Bucket, opts ...fsOption) *FS {
	fsys := &FS{
		Bucket: b,
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(fsys)
	}
	return fsys
}

// WithLogger sets the logger used for debug messages.
func WithLogger(l logr.Logger) fsOption {
	return func(fsys *FS) {
		fsys.log = l
	}
}

func (fsys *FS) OpenFile(ctx context.Context, name string) (fs.File, error) {
	fsys.log.V(1).Info("openfile", "name", name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "openfile", Path: name, Err: fs.ErrInvalid}
	}
	reader, err := fsys.Bucket.NewReader(ctx, name, fsys.readerOpts)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			err = errors.Join(err, fs.ErrNotExist)
		}
		return nil, &fs.PathError{Op: "openfile", Path: name, Err: err}
	}
	return &file{
		ReadCloser: reader,
		info: &fileInfo{
			name:    path.Base(name),
			size:    reader.Size(),
			modTime: reader.ModTime(),
		},
	}, nil
}

func (fsys *FS) ReadDir(ctx context.Context, name string) ([]fs.DirEntry, error) {
	fsys.log.V(1).Info("readdir", "name", name)
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	const pageSize = 1000
	opts := &blob.ListOptions{Delimiter: "/"}
	if name != "." {
		opts.Prefix = name + "/"
	}
	var (
		token   = blob.FirstPageToken
		results []fs.DirEntry
	)
	for {
		list, nextToken, err := fsys.Bucket.ListPage(ctx, token, pageSize, opts)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if gcerrors.Code(err) == gcerrors.NotFound {
				err = errors.Join(err, fs.ErrNotExist)
			}
			return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
		}
		for _, item := range list {
			entry := &dirEntry{
				info: &fileInfo{
					name:    path.Base(strings.TrimSuffix(item.Key, "/")),
					size:    item.Size,
					modTime: item.ModTime,
					isDir:   item.IsDir,
				},
			}
			results = append(results, entry)
		}
		if len(nextToken) == 0 {
			break
		}
		token = nextToken
	}
	if len(results) == 0 {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name() < results[j].Name()
	})
	return results, nil
}

func (fsys *FS) Write(ctx context.Context, name string, src io.Reader) (int64, error) {
	fsys.log.V(1).Info("write", "name", name)
	if !fs.ValidPath(name) || name == "." {
		return 0, &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	writer, err := fsys.Bucket.NewWriter(ctx, name, fsys.writerOpts)
	if err != nil {
		return 0, &fs.PathError{Op: "write", Path: name, Err: err}
	}
	n, err := io.Copy(writer, src)
	if closeErr := writer.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return n, err
}

// Remove deletes the blob with key name. Directories have no blobs, so
// removing one is a no-op.
func (fsys *FS) Remove(ctx context.Context, name string) error {
	fsys.log.V(1).Info("remove", "name", name)
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrInvalid}
	}
	if err := fsys.Bucket.Delete(ctx, name); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	return nil
}

// RemoveAll deletes every blob with the prefix name.
func (fsys *FS) RemoveAll(ctx context.Context, name string) error {
	fsys.log.V(1).Info("remove_all", "name", name)
	if !fs.ValidPath(name) || name == "." {
		return &fs.PathError{Op: "remove_all", Path: name, Err: fs.ErrInvalid}
	}
	iter := fsys.Bucket.List(&blob.ListOptions{Prefix: name + "/"})
	for {
		item, err := iter.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := fsys.Bucket.Delete(ctx, item.Key); err != nil {
			return fmt.Errorf("removing %s: %w", item.Key, err)
		}
	}
	// name may be a single blob rather than a prefix
	return fsys.Remove(ctx, name)
}

func (fsys *FS) Copy(ctx context.Context, dst string, src string) error {
	fsys.log.V(1).Info("copy", "src", src, "dst", dst)
	if !fs.ValidPath(src) || !fs.ValidPath(dst) || dst == "." {
		return &fs.PathError{Op: "copy", Path: dst, Err: fs.ErrInvalid}
	}
	if err := fsys.Bucket.Copy(ctx, dst, src, nil); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			err = errors.Join(err, fs.ErrNotExist)
		}
		return &fs.PathError{Op: "copy", Path: dst, Err: err}
	}
	return nil
}
