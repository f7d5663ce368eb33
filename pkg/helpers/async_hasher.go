package helpers

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

var ErrHasherClosed = errors.New("hasher closed")

// Hasher is the synchronous contract wrapped by AsyncHasher.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

type hashJob struct {
	run  func()
	done chan struct{}
}

// AsyncHasher runs a Hasher on a fixed pool of worker goroutines so CPU bound
// hashing never runs on request goroutines unbounded. Results are exactly
// those of the wrapped Hasher. The context only bounds the wait for a free
// worker; a job that has started always runs to completion.
type AsyncHasher struct {
	inner Hasher
	jobs  chan hashJob
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func NewAsyncHasher(inner Hasher, workers int) *AsyncHasher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	h := &AsyncHasher{
		inner: inner,
		jobs:  make(chan hashJob),
		quit:  make(chan struct{}),
	}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go h.worker()
	}
	return h
}

func (h *AsyncHasher) worker() {
	defer h.wg.Done()
	for {
		select {
		case j := <-h.jobs:
			j.run()
			close(j.done)
		case <-h.quit:
			return
		}
	}
}

func (h *AsyncHasher) submit(ctx context.Context, run func()) error {
	j := hashJob{run: run, done: make(chan struct{})}
	select {
	case h.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.quit:
		return ErrHasherClosed
	}
	<-j.done
	return nil
}

func (h *AsyncHasher) Hash(ctx context.Context, plain string) (string, error) {
	var (
		out string
		err error
	)
	if sErr := h.submit(ctx, func() { out, err = h.inner.Hash(plain) }); sErr != nil {
		return "", sErr
	}
	return out, err
}

func (h *AsyncHasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	var (
		ok  bool
		err error
	)
	if sErr := h.submit(ctx, func() { ok, err = h.inner.Verify(plain, hash) }); sErr != nil {
		return false, sErr
	}
	return ok, err
}

// Close stops the workers after in-flight jobs finish.
func (h *AsyncHasher) Close() {
	h.once.Do(func() { close(h.quit) })
	h.wg.Wait()
}
