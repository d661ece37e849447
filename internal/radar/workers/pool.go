// Package workers provides the bounded parallel-for used by the per-frame
// stages. Work is split into contiguous index chunks, one per worker, so
// each chunk can own its scratch buffers.
package workers

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed-size parallel-for executor. The zero value runs serially.
type Pool struct {
	size int
}

// New returns a pool with size workers. size <= 0 selects GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{size: size}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	if p == nil || p.size < 1 {
		return 1
	}
	return p.size
}

// For calls fn over [0, n) split into at most Size contiguous chunks
// [lo, hi). It returns the first error from fn, or ctx.Err() if the context
// ends before every chunk has started.
func (p *Pool) For(ctx context.Context, n int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	workers := p.Size()
	if workers > n {
		workers = n
	}
	if workers == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(0, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(lo, hi)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Each is For with a per-index callback.
func (p *Pool) Each(ctx context.Context, n int, fn func(i int) error) error {
	return p.For(ctx, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	})
}
