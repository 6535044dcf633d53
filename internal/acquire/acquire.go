// Package acquire obtains checkpoint resources cache-first: a local cache
// hit is returned immediately, a miss is streamed from the locator and
// written back to the cache on a best-effort basis.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/cache"
	"github.com/pablasso/sidegen/internal/fetch"
	"github.com/pablasso/sidegen/internal/progress"
	"github.com/pablasso/sidegen/internal/task"
)

// ErrAcquisition marks a failed fetch after a cache miss.
var ErrAcquisition = errors.New("acquisition failed")

// AcquisitionError reports which locator could not be fetched.
type AcquisitionError struct {
	Locator string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Locator, e.Err)
}

func (e *AcquisitionError) Is(target error) bool {
	return target == ErrAcquisition
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Resource is an acquired checkpoint.
type Resource struct {
	Checkpoint arch.Checkpoint
	Data       []byte
	// Cached is true when the data came from the local cache.
	Cached bool
}

// Acquirer fetches resources cache-first. Concurrent requests for the same
// locator share a single probe, fetch and store.
type Acquirer struct {
	cache   cache.Cache
	fetcher fetch.Fetcher

	mu       sync.Mutex
	inflight map[string]*call
}

// call is one shared acquisition of a locator.
type call struct {
	done     chan struct{}
	data     []byte
	cached   bool
	err      error
	progress *progress.Observable
	waiters  int
	cancel   context.CancelFunc
}

// New creates an Acquirer. A nil cache disables caching.
func New(c cache.Cache, f fetch.Fetcher) *Acquirer {
	return &Acquirer{
		cache:    c,
		fetcher:  f,
		inflight: make(map[string]*call),
	}
}

// NewTask returns a Pending task that acquires ckpt when run.
func (a *Acquirer) NewTask(ckpt arch.Checkpoint, opts ...task.Option) *task.Task[arch.Checkpoint, Resource] {
	return task.New("acquire "+ckpt.Name(), a.Strategy(), opts...)
}

// Strategy returns the task body used by NewTask, for callers that compose
// acquisition with further work.
func (a *Acquirer) Strategy() task.Strategy[arch.Checkpoint, Resource] {
	return func(ctx context.Context, ckpt arch.Checkpoint, p *progress.Observable) (Resource, error) {
		data, cached, err := a.Acquire(ctx, ckpt.Locator, p)
		if err != nil {
			return Resource{}, err
		}
		return Resource{Checkpoint: ckpt, Data: data, Cached: cached}, nil
	}
}

// Acquire returns the resource at locator, mirroring progress into p.
// Cancelling ctx returns an error matching task.ErrAborted; the shared
// acquisition keeps going while other callers still wait for it.
func (a *Acquirer) Acquire(ctx context.Context, locator string, p *progress.Observable) ([]byte, bool, error) {
	c := a.join(ctx, locator)

	if p != nil {
		id := c.progress.Follow(p.Set)
		defer c.progress.RemoveListener(id)
	}

	select {
	case <-c.done:
		if c.err != nil {
			return nil, false, c.err
		}
		return c.data, c.cached, nil
	case <-ctx.Done():
		a.leave(locator, c)
		return nil, false, fmt.Errorf("%w: %w", task.ErrAborted, ctx.Err())
	}
}

// IsCached reports whether locator is present in the cache. Errors count as
// absent.
func (a *Acquirer) IsCached(ctx context.Context, locator string) bool {
	if a.cache == nil {
		return false
	}
	if c, ok := a.cache.(interface {
		Contains(ctx context.Context, locator string) (bool, error)
	}); ok {
		found, err := c.Contains(ctx, locator)
		return err == nil && found
	}
	_, err := a.cache.Probe(ctx, locator)
	return err == nil
}

func (a *Acquirer) join(ctx context.Context, locator string) *call {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.inflight[locator]
	if !ok {
		// The shared work outlives any single caller; it is cancelled when
		// the last waiter leaves.
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{
			done:     make(chan struct{}),
			progress: progress.NewObservable(0),
			cancel:   cancel,
		}
		a.inflight[locator] = c
		go a.run(callCtx, locator, c)
	} else {
		slog.Debug("Joining in-flight acquisition.", "locator", locator)
	}
	c.waiters++
	return c
}

func (a *Acquirer) leave(locator string, c *call) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c.waiters--
	if c.waiters > 0 {
		return
	}
	if a.inflight[locator] == c {
		delete(a.inflight, locator)
	}
	c.cancel()
}

func (a *Acquirer) run(ctx context.Context, locator string, c *call) {
	data, cached, err := a.acquire(ctx, locator, c.progress)

	a.mu.Lock()
	if a.inflight[locator] == c {
		delete(a.inflight, locator)
	}
	a.mu.Unlock()

	c.data, c.cached, c.err = data, cached, err
	c.cancel()
	close(c.done)
}

// acquire is the cache-first body shared by all waiters of a locator.
func (a *Acquirer) acquire(ctx context.Context, locator string, p *progress.Observable) ([]byte, bool, error) {
	p.Set(0)

	if a.cache != nil {
		data, err := a.cache.Probe(ctx, locator)
		if err == nil {
			slog.Debug("Checkpoint cache hit.", "locator", locator)
			p.Set(1)
			return data, true, nil
		}
		// Every probe failure is a miss.
		if !errors.Is(err, cache.ErrMiss) {
			slog.Debug("Checkpoint cache probe failed, treating as miss.", "locator", locator, "err", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", task.ErrAborted, err)
	}

	slog.Info("Downloading checkpoint.", "locator", locator)
	data, err := a.fetcher.Stream(ctx, locator, p.Set)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, fmt.Errorf("%w: %w", task.ErrAborted, ctxErr)
		}
		return nil, false, &AcquisitionError{Locator: locator, Err: err}
	}

	if a.cache != nil {
		if err := a.cache.Store(ctx, locator, data); err != nil {
			slog.Warn("Failed to cache checkpoint.", "locator", locator, "err", err)
		}
	}

	p.Set(1)
	return data, false, nil
}
