package loader

import (
	"context"
	"sync"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/internal/state"
)

type completion struct {
	name string
	p    *bytecode.Prototype
	err  error
	done func(*bytecode.Prototype, error)
}

/**
 * AsyncLoader runs the loads of another loader on background goroutines.
 * Completions are not delivered from those goroutines: the host pumps them
 * with Poll or Wait on the goroutine that owns the VM.
 */
type AsyncLoader struct {
	inner   state.Loader
	results chan completion

	mu      sync.Mutex
	pending int
}

func NewAsyncLoader(inner state.Loader) *AsyncLoader {
	return &AsyncLoader{inner: inner, results: make(chan completion, 16)}
}

func (l *AsyncLoader) Load(name string, done func(*bytecode.Prototype, error)) {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
	log.Debugf("queued load of '%s'", name)
	go l.inner.Load(name, func(p *bytecode.Prototype, err error) {
		l.results <- completion{name: name, p: p, err: err, done: done}
	})
}

/* Pending is the number of loads not yet delivered */
func (l *AsyncLoader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

/* Poll delivers the completions that are ready without blocking */
func (l *AsyncLoader) Poll() int {
	n := 0
	for {
		select {
		case c := <-l.results:
			l.deliver(c)
			n++
		default:
			return n
		}
	}
}

/* Wait blocks until one completion is delivered or ctx is done */
func (l *AsyncLoader) Wait(ctx context.Context) error {
	select {
	case c := <-l.results:
		l.deliver(c)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *AsyncLoader) deliver(c completion) {
	l.mu.Lock()
	l.pending--
	l.mu.Unlock()
	if c.err != nil {
		log.Debugf("load of '%s' failed: %s", c.name, c.err)
	} else {
		log.Debugf("load of '%s' complete", c.name)
	}
	c.done(c.p, c.err)
}
