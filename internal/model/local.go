// Package model loads an architecture's checkpoints into a compute runtime
// and serves generation requests from them.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pablasso/sidegen/internal/acquire"
	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/progress"
	"github.com/pablasso/sidegen/internal/registry"
	"github.com/pablasso/sidegen/internal/runtime"
	"github.com/pablasso/sidegen/internal/task"
)

// LoadTask acquires one checkpoint and loads it into the runtime.
type LoadTask = task.Task[arch.Checkpoint, *Generator]

// Local runs an architecture's checkpoints on a local compute runtime.
type Local struct {
	arch       arch.Architecture
	acquirer   *acquire.Acquirer
	runtime    runtime.Runtime
	generators *registry.Registry[*Generator]
	loaded     *task.Task[pipeline, struct{}]

	mu          sync.Mutex
	initialized bool
	tasks       []*LoadTask

	warmOnce    sync.Once
	warmStarted atomic.Bool
	warmDone    chan struct{}
}

// pipeline is the input of the Loaded task: the context Initialize was
// called with and the load tasks it started.
type pipeline struct {
	ctx   context.Context
	loads []*LoadTask
}

// NewLocal creates an uninitialized model for a.
func NewLocal(a arch.Architecture, acq *acquire.Acquirer, rt runtime.Runtime) *Local {
	m := &Local{
		arch:       a,
		acquirer:   acq,
		runtime:    rt,
		generators: registry.New[*Generator](),
		warmDone:   make(chan struct{}),
	}
	m.loaded = task.New("ready "+a.Name, m.awaitReady)
	return m
}

// Architecture returns the descriptor the model was built for.
func (m *Local) Architecture() arch.Architecture { return m.arch }

// Initialize starts one load task per checkpoint and returns them without
// waiting. The tasks run concurrently; cancelling ctx cancels those still
// pending or in flight. Use Loaded to wait for the pipeline.
func (m *Local) Initialize(ctx context.Context) ([]*LoadTask, error) {
	if err := m.arch.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil, ErrAlreadyInitialized
	}
	m.initialized = true
	tasks := make([]*LoadTask, len(m.arch.Checkpoints))
	for i, ckpt := range m.arch.Checkpoints {
		tasks[i] = task.New("load "+ckpt.Name(), m.load)
	}
	m.tasks = tasks
	m.mu.Unlock()

	slog.Info("Loading architecture.", "arch", m.arch.Name, "version", m.arch.Version, "checkpoints", len(tasks))

	for i, t := range tasks {
		go m.runLoad(ctx, t, m.arch.Checkpoints[i])
	}
	go m.loaded.Run(ctx, pipeline{ctx: ctx, loads: tasks})

	return tasks, nil
}

// Tasks returns the load tasks started by Initialize.
func (m *Local) Tasks() []*LoadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*LoadTask(nil), m.tasks...)
}

// Loaded settles once the runtime is ready, every load task has settled and
// warm-up has been attempted. Failed checkpoints do not fail it; a runtime
// that never becomes ready does.
func (m *Local) Loaded() task.Settler {
	return m.loaded
}

// WaitLoaded blocks until Loaded settles and returns its error.
func (m *Local) WaitLoaded(ctx context.Context) error {
	_, err := m.loaded.Wait(ctx)
	return err
}

// Watch aggregates the progress of the load tasks.
func Watch(tasks []*LoadTask) *progress.Computed {
	sources := make([]progress.Source, len(tasks))
	for i, t := range tasks {
		sources[i] = t.Progress()
	}
	return progress.NewComputed(sources...)
}

// SelectGenerator resolves the generator serving sources → targets. A false
// result with a nil error means the architecture has no generator for the
// combination.
func (m *Local) SelectGenerator(sources, targets []domain.Domain) (*Generator, bool, error) {
	return m.generators.Resolve(sources, targets)
}

// Generators returns the number of loaded generators.
func (m *Local) Generators() int {
	return m.generators.Len()
}

// SupportedPairs lists the (source, target) slots with a loaded generator.
func (m *Local) SupportedPairs() []domain.Pair {
	return m.generators.Keys()
}

// IsCached reports, per checkpoint name, whether its resource is already in
// the local cache.
func (m *Local) IsCached(ctx context.Context) map[string]bool {
	cached := make(map[string]bool, len(m.arch.Checkpoints))
	for _, ckpt := range m.arch.Checkpoints {
		cached[ckpt.Name()] = m.acquirer.IsCached(ctx, ckpt.Locator)
	}
	return cached
}

func (m *Local) runLoad(ctx context.Context, t *LoadTask, ckpt arch.Checkpoint) {
	_, err := t.Run(ctx, ckpt)
	switch {
	case err == nil:
	case errors.Is(err, task.ErrAborted):
		slog.Info("Silently cancelled checkpoint load.", "checkpoint", ckpt.Name())
	default:
		slog.Error("Failed to load checkpoint.", "checkpoint", ckpt.Name(), "err", err)
	}
}

// load is the body of a LoadTask.
func (m *Local) load(ctx context.Context, ckpt arch.Checkpoint, p *progress.Observable) (*Generator, error) {
	data, cached, err := m.acquirer.Acquire(ctx, ckpt.Locator, p)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	backend, err := m.runtime.Load(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ComputeError{Op: "load", Checkpoint: ckpt.Name(), Err: err}
	}

	g := &Generator{model: m, checkpoint: ckpt, backend: backend}
	if err := m.generators.Insert(ckpt.Source, ckpt.Target, g); err != nil {
		return nil, err
	}
	slog.Info("Checkpoint loaded.", "checkpoint", ckpt.Name(), "cached", cached, "elapsed", time.Since(start))

	m.warmOnce.Do(func() {
		m.warmStarted.Store(true)
		go m.warmUp(g)
	})
	return g, nil
}

// warmUp runs one throwaway inference so the first user-visible generation
// does not pay the runtime's initialization cost. Failures are logged only.
func (m *Local) warmUp(g *Generator) {
	defer close(m.warmDone)

	start := time.Now()
	if _, err := m.runtime.Execute(g.backend, runtime.WarmUpInputs(g.backend), nil); err != nil {
		slog.Warn("Warm-up inference failed.", "checkpoint", g.checkpoint.Name(), "err", err)
		return
	}
	slog.Debug("Warm-up inference done.", "checkpoint", g.checkpoint.Name(), "elapsed", time.Since(start))
}

// awaitReady is the body of the Loaded task.
func (m *Local) awaitReady(ctx context.Context, in pipeline, p *progress.Observable) (struct{}, error) {
	loads := in.loads
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := m.runtime.Ready(gctx); err != nil {
			return fmt.Errorf("compute runtime not ready: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		for i, t := range loads {
			select {
			case <-t.Done():
				p.Set(float64(i+1) / float64(len(loads)+1))
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return struct{}{}, err
	}

	// Loads cancelled through Initialize's context cancel the pipeline too.
	if err := in.ctx.Err(); err != nil {
		return struct{}{}, err
	}

	// Load tasks start warm-up before settling, so warmStarted is final here.
	if m.warmStarted.Load() {
		select {
		case <-m.warmDone:
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	}

	slog.Info("Architecture ready.", "arch", m.arch.Name, "generators", m.generators.Len(), "of", len(loads))
	return struct{}{}, nil
}
