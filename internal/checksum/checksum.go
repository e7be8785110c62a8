// Package checksum provides concurrent file digest processing used to build
// manifests, version states, and fixity records.
package checksum

import (
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"runtime"
	"sync"
)

// HashSet configures the hashes to calculate for a file.
type HashSet map[string]func() hash.Hash

// HashResult is a map of hash results using the same keys as the HashSet.
type HashResult map[string][]byte

// OpenFunc opens the file names added to the work queue.
type OpenFunc func(name string) (io.ReadCloser, error)

// CallbackFunc handles the result of a file digest. Callbacks run serially in
// a single goroutine that Run starts, not in the goroutine that called Run.
type CallbackFunc func(name string, result HashResult, err error) error

// AddFunc passes a filename and HashSet for checksumming. It returns false if
// the run has been canceled and no more work is accepted.
type AddFunc func(name string, algs HashSet) bool

type checksum struct {
	open    OpenFunc
	numGos  int
	workQ   chan *job
	resultQ chan *job
	cancel  chan struct{}
	errChan chan error
}

type job struct {
	path string
	algs HashSet
	sums HashResult
	err  error
}

// Option configures Run.
type Option func(*checksum)

// WithOpenFunc sets the function used to open file names added to the run.
// Defaults to os.Open.
func WithOpenFunc(open OpenFunc) Option {
	return func(ch *checksum) {
		ch.open = open
	}
}

// WithFS opens file names through fsys.
func WithFS(fsys fs.FS) Option {
	return func(ch *checksum) {
		ch.open = func(name string) (io.ReadCloser, error) {
			return fsys.Open(name)
		}
	}
}

// WithNumGos sets the number of goroutines dedicated to processing digests.
// Defaults to runtime.GOMAXPROCS(0).
func WithNumGos(n int) Option {
	return func(ch *checksum) {
		ch.numGos = n
	}
}

// Err combines the two error sources of a Run.
type Err struct {
	RunErr      error // error returned from the setup function
	CallbackErr error // error returned from the callback
}

func (e *Err) Error() string {
	var m string
	if e.RunErr != nil {
		m = e.RunErr.Error()
	}
	if e.CallbackErr != nil {
		if m != "" {
			m += "; "
		}
		m += e.CallbackErr.Error()
	}
	return fmt.Sprintf("checksum: %s", m)
}

func (e *Err) Unwrap() error {
	if e.RunErr != nil {
		return e.RunErr
	}
	return e.CallbackErr
}

// Run does concurrent checksumming: setup adds file names through the
// AddFunc; cb is called once per file with the results.
func Run(setup func(AddFunc) error, cb CallbackFunc, opts ...Option) error {
	ch := checksum{
		open:   func(name string) (io.ReadCloser, error) { return os.Open(name) },
		numGos: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(&ch)
	}
	ch.start(cb)
	runErr := setup(ch.add)
	cbErr := ch.close()
	if runErr != nil || cbErr != nil {
		return &Err{RunErr: runErr, CallbackErr: cbErr}
	}
	return nil
}

func (ch *checksum) start(cb CallbackFunc) {
	if ch.numGos < 1 {
		ch.numGos = 1
	}
	ch.workQ = make(chan *job)
	ch.resultQ = make(chan *job)
	ch.cancel = make(chan struct{})
	ch.errChan = make(chan error, 1)
	var wg sync.WaitGroup
	for i := 0; i < ch.numGos; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch.workQ {
				select {
				case <-ch.cancel:
					continue // drain the queue
				default:
					j.do(ch.open)
					ch.resultQ <- j
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(ch.resultQ)
	}()
	go func() {
		defer close(ch.errChan)
		var cbErr error
		for j := range ch.resultQ {
			if cbErr != nil {
				continue
			}
			if cbErr = cb(j.path, j.sums, j.err); cbErr != nil {
				close(ch.cancel)
			}
		}
		ch.errChan <- cbErr
	}()
}

func (ch *checksum) add(name string, algs HashSet) bool {
	select {
	case <-ch.cancel:
		return false
	case ch.workQ <- &job{path: name, algs: algs}:
		return true
	}
}

func (ch *checksum) close() error {
	close(ch.workQ)
	return <-ch.errChan
}

func (j *job) do(open OpenFunc) {
	f, err := open(j.path)
	if err != nil {
		j.err = err
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			j.err = errors.Join(j.err, closeErr)
		}
	}()
	hashes := make(map[string]hash.Hash, len(j.algs))
	writers := make([]io.Writer, 0, len(j.algs))
	for name, newHash := range j.algs {
		h := newHash()
		hashes[name] = h
		writers = append(writers, h)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), f); err != nil {
		j.err = err
		return
	}
	j.sums = make(HashResult, len(hashes))
	for name, h := range hashes {
		j.sums[name] = h.Sum(nil)
	}
}
