package js

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Pool.Get after the pool was closed.
var ErrPoolClosed = errors.New("engine pool is closed")

// Pool hands out engines for exclusive use.
type Pool struct {
	engines chan *Engine
	all     []*Engine

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPool creates size engines with newFn. If one of them can't be created,
// the ones that were are disposed and the error is returned.
func NewPool(size int, newFn func() (*Engine, error)) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		engines: make(chan *Engine, size),
		all:     make([]*Engine, 0, size),
		closed:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		e, err := newFn()
		if err != nil {
			for _, created := range p.all {
				created.Dispose()
			}
			return nil, err
		}
		p.all = append(p.all, e)
		p.engines <- e
	}
	return p, nil
}

// Size returns the number of engines in the pool.
func (p *Pool) Size() int {
	return len(p.all)
}

// Get waits for an idle engine.
func (p *Pool) Get(ctx context.Context) (*Engine, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}
	select {
	case e := <-p.engines:
		return e, nil
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns an engine obtained with Get.
func (p *Pool) Put(e *Engine) {
	select {
	case <-p.closed:
		return
	default:
	}
	select {
	case p.engines <- e:
	default:
	}
}

// Close disposes every engine of the pool, including those that are in use.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for _, e := range p.all {
			e.Dispose()
		}
	})
}
