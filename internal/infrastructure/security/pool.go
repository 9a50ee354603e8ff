package security

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/evgeniivall/notes-auth-micro/internal/application/auth"
)

var ErrPoolClosed = fmt.Errorf("hash pool closed: %w", auth.ErrHasherUnavailable)

// HashPool runs bcrypt work on a fixed number of goroutines so a burst of
// logins queues up instead of occupying every CPU.
type HashPool struct {
	hasher *BcryptHasher

	workers    int
	jobs       chan func()
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopSignal chan struct{}
}

// NewHashPool starts workers goroutines; workers <= 0 means runtime.NumCPU().
func NewHashPool(hasher *BcryptHasher, workers int) *HashPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &HashPool{
		hasher:     hasher,
		workers:    workers,
		jobs:       make(chan func()),
		stopSignal: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *HashPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopSignal:
			return
		case job := <-p.jobs:
			job()
		}
	}
}

// submit hands job to a worker and waits for it.
// A job still running when ctx ends finishes in the background; its result is dropped.
func (p *HashPool) submit(ctx context.Context, job func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		job()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopSignal:
		return ErrPoolClosed
	case p.jobs <- wrapped:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

type hashResult struct {
	hash string
	err  error
}

func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	res := make(chan hashResult, 1)

	if err := p.submit(ctx, func() {
		h, err := p.hasher.Hash(ctx, password)
		res <- hashResult{h, err}
	}); err != nil {
		return "", err
	}

	r := <-res
	return r.hash, r.err
}

func (p *HashPool) Compare(ctx context.Context, hash string, password string) error {
	res := make(chan error, 1)

	if err := p.submit(ctx, func() {
		res <- p.hasher.Compare(ctx, hash, password)
	}); err != nil {
		return err
	}
	return <-res
}

// Close stops accepting work and waits for the workers to exit.
func (p *HashPool) Close() {
	p.stopOnce.Do(func() {
		close(p.stopSignal)
	})
	p.wg.Wait()
}
