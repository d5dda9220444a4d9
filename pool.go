package reportpdf

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one renderer is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// ErrPoolClosed is returned when acquiring from a closed pool.
var ErrPoolClosed = errors.New("renderer pool closed")

var _ FragmentRenderer = (*RendererPool)(nil)

// RendererPool spreads fragment rendering over several ChromeRenderer
// instances, each with its own browser. Renderers are created lazily on
// first acquire.
type RendererPool struct {
	size    int
	opts    []ChromeOption
	newFunc func(...ChromeOption) (*ChromeRenderer, error)

	sem       chan *ChromeRenderer
	mu        sync.Mutex
	renderers []*ChromeRenderer
	created   int
	closed    bool
}

// NewRendererPool creates a pool with capacity for n renderers configured
// with opts.
func NewRendererPool(n int, opts ...ChromeOption) *RendererPool {
	if n < 1 {
		n = 1
	}
	return &RendererPool{
		size:      n,
		opts:      opts,
		newFunc:   NewChromeRenderer,
		sem:       make(chan *ChromeRenderer, n),
		renderers: make([]*ChromeRenderer, 0, n),
	}
}

// Acquire gets a renderer from the pool, creating one if capacity allows.
// Blocks until one is released or ctx is done.
func (p *RendererPool) Acquire(ctx context.Context) (*ChromeRenderer, error) {
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

		r, err := p.newFunc(p.opts...)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		p.mu.Lock()
		p.renderers = append(p.renderers, r)
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

// Release returns a renderer to the pool. The channel holds every renderer
// ever created, so the send never blocks.
func (p *RendererPool) Release(r *ChromeRenderer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.sem <- r
}

// RenderFragment renders on the next free renderer.
func (p *RendererPool) RenderFragment(ctx context.Context, markup string, data *FragmentData, opts *RenderOptions) (*Fragment, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(r)
	return r.RenderFragment(ctx, markup, data, opts)
}

// Close releases all browser resources.
// Returns an aggregated error if multiple renderers fail to close.
func (p *RendererPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.sem)
	renderers := p.renderers
	p.mu.Unlock()

	var errs []error
	for _, r := range renderers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Size returns the pool capacity.
func (p *RendererPool) Size() int {
	return p.size
}

// ResolvePoolSize determines the pool size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolvePoolSize(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS is adjusted by automaxprocs in containers.
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}
