package checksum_test

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/matryer/is"
	"github.com/srerickson/ocflstore/internal/checksum"
)

func TestRun(t *testing.T) {
	is := is.New(t)
	fsys := fstest.MapFS{
		"a.txt":     &fstest.MapFile{Data: []byte("hello world")},
		"dir/b.txt": &fstest.MapFile{Data: []byte("more bytes")},
	}
	algs := checksum.HashSet{"md5": md5.New, "sha256": sha256.New}
	results := map[string]checksum.HashResult{}
	setup := func(add checksum.AddFunc) error {
		for name := range fsys {
			if !add(name, algs) {
				return errors.New("add failed")
			}
		}
		return nil
	}
	cb := func(name string, result checksum.HashResult, err error) error {
		if err != nil {
			return err
		}
		results[name] = result
		return nil
	}
	is.NoErr(checksum.Run(setup, cb, checksum.WithFS(fsys), checksum.WithNumGos(3)))
	is.Equal(len(results), 2)
	is.Equal(hex.EncodeToString(results["a.txt"]["md5"]), "5eb63bbbe01eeed093cb22bb8f5acdc3")
	is.Equal(len(results["a.txt"]["sha256"]), sha256.Size)
}

func TestRunOpenError(t *testing.T) {
	is := is.New(t)
	fsys := fstest.MapFS{}
	setup := func(add checksum.AddFunc) error {
		add("missing.txt", checksum.HashSet{"md5": md5.New})
		return nil
	}
	cb := func(name string, result checksum.HashResult, err error) error {
		return err
	}
	err := checksum.Run(setup, cb, checksum.WithFS(fsys))
	is.True(err != nil)
}

func TestRunCallbackError(t *testing.T) {
	is := is.New(t)
	fsys := fstest.MapFS{}
	for i := 0; i < 64; i++ {
		fsys[string(rune('a'+i%26))+"/file"+string(rune('0'+i%10))] = &fstest.MapFile{Data: []byte("x")}
	}
	boom := errors.New("boom")
	setup := func(add checksum.AddFunc) error {
		for name := range fsys {
			if !add(name, checksum.HashSet{"md5": md5.New}) {
				return nil // canceled by callback error
			}
		}
		return nil
	}
	cb := func(string, checksum.HashResult, error) error {
		return boom
	}
	err := checksum.Run(setup, cb, checksum.WithFS(fsys))
	is.True(err != nil)
	var runErr *checksum.Err
	is.True(errors.As(err, &runErr))
	is.True(errors.Is(runErr.CallbackErr, boom))
}
