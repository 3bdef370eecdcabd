package mdpreview

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/alnah/go-mdpreview/internal/paginate"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one rasterizer is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ErrPoolClosed indicates the pool was closed.
var ErrPoolClosed = errors.New("rasterizer pool closed")

var _ Rasterizer = (*RasterizerPool)(nil)

// RasterizerPool shares a bounded set of rasterizers between sessions.
// Each member has its own browser. Members are created lazily on first
// acquire to avoid startup delay. The pool is itself a Rasterizer.
type RasterizerPool struct {
	size    int
	newFn   func() Rasterizer
	members []Rasterizer
	sem     chan Rasterizer
	mu      sync.Mutex
	created int
	closed  bool
}

// NewRasterizerPool creates a pool with capacity for n rasterizers built
// by newFn. A nil newFn builds RodRasterizers with the default timeout.
func NewRasterizerPool(n int, newFn func() Rasterizer) *RasterizerPool {
	if n < 1 {
		n = 1
	}
	if newFn == nil {
		newFn = func() Rasterizer { return NewRodRasterizer(0) }
	}
	return &RasterizerPool{
		size:    n,
		newFn:   newFn,
		members: make([]Rasterizer, 0, n),
		sem:     make(chan Rasterizer, n),
	}
}

// Acquire gets a rasterizer, creating one if capacity allows. It blocks
// while all are in use.
func (p *RasterizerPool) Acquire(ctx context.Context) (Rasterizer, error) {
	select {
	case r, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		r := p.newFn()

		p.mu.Lock()
		p.members = append(p.members, r)
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	select {
	case r, ok := <-p.sem:
		if !ok {
			return nil, ErrPoolClosed
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a rasterizer to the pool. The channel holds every member,
// so the send never blocks.
func (p *RasterizerPool) Release(r Rasterizer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sem <- r
}

// Rasterize runs page on a pooled rasterizer.
func (p *RasterizerPool) Rasterize(ctx context.Context, page PrintPage) (paginate.Image, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return paginate.Image{}, err
	}
	defer p.Release(r)
	return r.Rasterize(ctx, page)
}

// Close releases all browser resources.
// Returns an aggregated error if several members fail to close.
func (p *RasterizerPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	members := p.members
	p.mu.Unlock()

	var errs []error
	for _, r := range members {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *RasterizerPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs for containers
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
