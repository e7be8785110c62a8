// Package xfer copies sets of files between storage backends.
package xfer

import (
	"context"
	"errors"
	"io/fs"

	"github.com/go-logr/logr"
	ocfl "github.com/srerickson/ocflstore"
	"golang.org/x/sync/errgroup"
)

const (
	modeCopy  = "fs-copy"
	modeWrite = "read/write"
)

// Copy transfers the dst/src names in files from srcFS to dstFS using conc
// goroutines.
func Copy(ctx context.Context, srcFS ocfl.FS, dstFS ocfl.WriteFS, files map[string]string, conc int, logger logr.Logger) error {
	if conc < 1 {
		conc = 1
	}
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(conc)
	for dst, src := range files {
		dst, src := dst, src
		grp.Go(func() error {
			return copyFile(ctx, dstFS, dst, srcFS, src, logger)
		})
	}
	return grp.Wait()
}

func copyFile(ctx context.Context, dstFS ocfl.WriteFS, dst string, srcFS ocfl.FS, src string, logger logr.Logger) (err error) {
	xferMode := modeWrite
	cpFS, ok := dstFS.(ocfl.CopyFS)
	if ok && dstFS == srcFS {
		xferMode = modeCopy
	}
	logger.V(1).Info("file xfer", "mode", xferMode, "src", src, "dst", dst)
	if xferMode == modeCopy {
		return cpFS.Copy(ctx, dst, src)
	}
	var srcF fs.File
	srcF, err = srcFS.OpenFile(ctx, src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := srcF.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	_, err = dstFS.Write(ctx, dst, srcF)
	return err
}
