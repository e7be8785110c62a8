package ocflstore

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"
)

var ErrUnknownAlg = errors.New("unknown digest algorithm")

const (
	SHA512  = `sha512`
	SHA256  = `sha256`
	SHA1    = `sha1`
	MD5     = `md5`
	BLAKE2B = `blake2b-512`
)

var (
	builtin = map[string]func() hash.Hash{
		SHA512:  sha512.New,
		SHA256:  sha256.New,
		SHA1:    sha1.New,
		MD5:     md5.New,
		BLAKE2B: mustBlake2bNew512,
	}

	// algorithms registered with RegisterAlg
	register   = map[string]func() hash.Hash{}
	registerMx = sync.RWMutex{}
)

// RegisteredAlgs returns the names of all available digest algorithms.
func RegisteredAlgs() []string {
	algs := make([]string, 0, len(builtin)+len(register))
	for k := range builtin {
		algs = append(algs, k)
	}
	registerMx.RLock()
	defer registerMx.RUnlock()
	for k := range register {
		algs = append(algs, k)
	}
	return algs
}

// RegisterAlg registers a hash constructor for alg. Built-in algorithm names
// cannot be replaced.
func RegisterAlg(alg string, newHash func() hash.Hash) {
	if builtin[alg] != nil {
		return
	}
	registerMx.Lock()
	defer registerMx.Unlock()
	register[alg] = newHash
}

// NewHash returns a new hash.Hash for alg or ErrUnknownAlg.
func NewHash(alg string) (hash.Hash, error) {
	if newHash := builtin[alg]; newHash != nil {
		return newHash(), nil
	}
	registerMx.RLock()
	defer registerMx.RUnlock()
	if newHash := register[alg]; newHash != nil {
		return newHash(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlg, alg)
}

// Digester generates a digest value for the bytes written to it.
type Digester interface {
	io.Writer
	// String returns the digest value for the bytes written to the digester
	// as lowercase hex.
	String() string
}

// NewDigester returns a Digester for alg or ErrUnknownAlg.
func NewDigester(alg string) (Digester, error) {
	h, err := NewHash(alg)
	if err != nil {
		return nil, err
	}
	return hashDigester{Hash: h}, nil
}

type hashDigester struct {
	hash.Hash
}

func (h hashDigester) String() string { return hex.EncodeToString(h.Sum(nil)) }

// MultiDigester generates digests for multiple algorithms at the same time.
type MultiDigester struct {
	io.Writer
	digesters map[string]Digester
}

// NewMultiDigester returns a MultiDigester for the given algorithms. Unknown
// algorithm names are an error.
func NewMultiDigester(algs ...string) (*MultiDigester, error) {
	writers := make([]io.Writer, 0, len(algs))
	digesters := make(map[string]Digester, len(algs))
	for _, alg := range algs {
		digester, err := NewDigester(alg)
		if err != nil {
			return nil, err
		}
		digesters[alg] = digester
		writers = append(writers, digester)
	}
	if len(writers) == 0 {
		return &MultiDigester{Writer: io.Discard}, nil
	}
	return &MultiDigester{
		Writer:    io.MultiWriter(writers...),
		digesters: digesters,
	}, nil
}

// Sum returns the digest value for alg, or an empty string if alg was not
// part of the MultiDigester.
func (md MultiDigester) Sum(alg string) string {
	if dig := md.digesters[alg]; dig != nil {
		return dig.String()
	}
	return ""
}

// Sums returns all digest values keyed by algorithm.
func (md MultiDigester) Sums() map[string]string {
	sums := make(map[string]string, len(md.digesters))
	for alg, digester := range md.digesters {
		sums[alg] = digester.String()
	}
	return sums
}

// Checksum digests the named file in fsys using alg, returning the value as
// lowercase hex. The file is streamed in chunks of 128 times the algorithm's
// block size.
func Checksum(ctx context.Context, fsys FS, name string, alg string) (string, error) {
	h, err := NewHash(alg)
	if err != nil {
		return "", err
	}
	f, err := fsys.OpenFile(ctx, name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, 128*h.BlockSize())
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("digesting %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestError is returned when content's digest conflicts with an expected
// value.
type DigestError struct {
	Name     string // content path
	Alg      string // digest algorithm
	Got      string // calculated digest
	Expected string // expected digest
}

func (e DigestError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("unexpected %s value: %q, expected=%q", e.Alg, e.Got, e.Expected)
	}
	return fmt.Sprintf("unexpected %s for %q: %q, expected=%q", e.Alg, e.Name, e.Got, e.Expected)
}

func mustBlake2bNew512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic("creating new blake2b hash")
	}
	return h
}
