package ocflstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"strings"

	"github.com/srerickson/ocflstore/internal/checksum"
)

// DirDigests digests every file under dir in fsys using alg. Returned paths
// are relative to trim (typically dir itself, or an ancestor of it) and each
// digest's path list is sorted, so a fixed tree always produces the same map.
// A missing dir yields an empty map.
func DirDigests(ctx context.Context, fsys FS, dir string, alg string, trim string) (DigestMap, error) {
	newHash := func() hash.Hash {
		h, err := NewHash(alg)
		if err != nil {
			panic(err)
		}
		return h
	}
	// resolve alg before the pipeline starts
	if _, err := NewHash(alg); err != nil {
		return nil, err
	}
	digests := DigestMap{}
	setup := func(add checksum.AddFunc) error {
		walkFn := func(name string, e fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("during directory scan: %w", err)
			}
			if !add(name, checksum.HashSet{alg: newHash}) {
				return errors.New("directory scan ended prematurely")
			}
			return nil
		}
		err := EachFile(ctx, fsys, dir, walkFn)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	cb := func(name string, result checksum.HashResult, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(name, trim+"/")
		digests.Add(hex.EncodeToString(result[alg]), rel)
		return nil
	}
	open := func(name string) (io.ReadCloser, error) {
		return fsys.OpenFile(ctx, name)
	}
	if err := checksum.Run(setup, cb, checksum.WithOpenFunc(open)); err != nil {
		return nil, err
	}
	digests.Normalize()
	return digests, nil
}
