// Package task implements cancellable, dependency-gated units of work that
// report progress.
//
// A Task is created Pending, runs at most once, and settles exactly once in
// Succeeded, Failed or Cancelled. Per-kind behaviour is injected as a
// Strategy closure instead of subclassing.
package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pablasso/sidegen/internal/progress"
	"github.com/pablasso/sidegen/internal/util"
)

// tracerName scopes task spans. The tracer is looked up per run so a
// provider installed after package init is honoured.
const tracerName = "sidegen/task"

// Strategy is the execution body of a Task. It must watch ctx at its
// suspension points and update p as meaningful work completes.
type Strategy[In, Out any] func(ctx context.Context, in In, p *progress.Observable) (Out, error)

// Settler is the read-only view of anything that settles once, used to
// express prerequisites.
type Settler interface {
	Name() string
	Done() <-chan struct{}
	State() State
	Err() error
}

// Option configures a Task at construction time.
type Option func(*options)

type options struct {
	id      string
	prereqs []Settler
}

// WithPrerequisites makes the Task wait for every given Settler before
// running. A failed or cancelled prerequisite settles the Task the same way.
func WithPrerequisites(prereqs ...Settler) Option {
	return func(o *options) {
		o.prereqs = append(o.prereqs, prereqs...)
	}
}

// WithID overrides the generated task identity.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// Task is a single asynchronous unit of work.
//
// It is safe for concurrent use. Run must be called at most once.
type Task[In, Out any] struct {
	id       string
	name     string
	strategy Strategy[In, Out]
	prereqs  []Settler
	progress *progress.Observable

	// token is the cancellation signal handed to the strategy.
	token  context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	state   State
	result  Out
	err     error
	done    chan struct{}
}

// New creates a Pending task.
func New[In, Out any](name string, strategy Strategy[In, Out], opts ...Option) *Task[In, Out] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = util.GenerateTaskID(name)
	}

	token, cancel := context.WithCancel(context.Background())
	return &Task[In, Out]{
		id:       o.id,
		name:     name,
		strategy: strategy,
		prereqs:  o.prereqs,
		progress: progress.NewObservable(0),
		token:    token,
		cancel:   cancel,
		state:    StatePending,
		done:     make(chan struct{}),
	}
}

// ID returns the task identity.
func (t *Task[In, Out]) ID() string { return t.id }

// Name returns the human-readable task name.
func (t *Task[In, Out]) Name() string { return t.name }

// Progress returns the task's progress observable.
func (t *Task[In, Out]) Progress() *progress.Observable { return t.progress }

// Done is closed once the task has settled.
func (t *Task[In, Out]) Done() <-chan struct{} { return t.done }

// State returns the current lifecycle state.
func (t *Task[In, Out]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the settlement error, or nil if the task succeeded or has
// not settled yet.
func (t *Task[In, Out]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Result returns the settled result and error. Before settlement it returns
// the zero value and a nil error.
func (t *Task[In, Out]) Result() (Out, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Wait blocks until the task settles or ctx is done.
func (t *Task[In, Out]) Wait(ctx context.Context) (Out, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		var zero Out
		return zero, ctx.Err()
	}
}

// Cancel requests cooperative cancellation. A task that has not started
// settles Cancelled immediately; a running task settles Cancelled when its
// strategy returns after observing the signal. Cancel is a no-op once the
// task is terminal.
func (t *Task[In, Out]) Cancel() {
	t.cancel()

	t.mu.Lock()
	var settled bool
	if !t.started {
		var zero Out
		settled = t.settleLocked(StateCancelled, zero, ErrAborted)
	}
	t.mu.Unlock()

	if settled {
		t.logSettled(StateCancelled, ErrAborted)
	}
}

// Run executes the task and blocks until it settles. Cancelling ctx is
// equivalent to calling Cancel.
func (t *Task[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	var zero Out

	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return zero, ErrAlreadyStarted
	}
	t.started = true
	settled := t.state.Terminal()
	t.mu.Unlock()

	if settled {
		// Cancelled before Run; the strategy never runs.
		return t.Result()
	}

	stop := context.AfterFunc(ctx, t.Cancel)
	defer stop()

	_, span := otel.Tracer(tracerName).Start(ctx, "task."+t.name, trace.WithAttributes(
		attribute.String("sidegen.task.id", t.id),
		attribute.Int("sidegen.task.prerequisites", len(t.prereqs)),
	))
	defer func() {
		state, err := t.State(), t.Err()
		span.SetAttributes(attribute.String("sidegen.task.state", state.String()))
		if err != nil && state == StateFailed {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if dep := t.awaitPrerequisites(); dep != nil {
		state := StateFailed
		if dep.State == StateCancelled {
			state = StateCancelled
		}
		t.settle(state, zero, dep)
		return t.Result()
	}

	if t.token.Err() != nil {
		t.settle(StateCancelled, zero, ErrAborted)
		return t.Result()
	}

	if !t.transition(StateRunning) {
		return t.Result()
	}

	out, err := t.strategy(trace.ContextWithSpan(t.token, span), in, t.progress)
	switch {
	case err == nil:
		t.progress.Set(1)
		t.settle(StateSucceeded, out, nil)
	case t.token.Err() != nil || errors.Is(err, context.Canceled):
		t.settle(StateCancelled, zero, aborted(err))
	default:
		t.settle(StateFailed, zero, err)
	}

	return t.Result()
}

// awaitPrerequisites blocks until every prerequisite succeeded, one failed,
// or the task was cancelled. It returns nil when the task may run.
func (t *Task[In, Out]) awaitPrerequisites() *DependencyError {
	if len(t.prereqs) == 0 {
		return nil
	}

	waitCtx, cancelWait := context.WithCancel(t.token)
	defer cancelWait()

	settled := make(chan Settler, len(t.prereqs))
	for _, p := range t.prereqs {
		go func(p Settler) {
			select {
			case <-p.Done():
				settled <- p
			case <-waitCtx.Done():
			}
		}(p)
	}

	for range t.prereqs {
		select {
		case p := <-settled:
			state := p.State()
			if state != StateFailed && state != StateCancelled {
				continue
			}
			err := p.Err()
			if err == nil {
				err = errors.New(state.String())
			}
			return &DependencyError{Dependency: p.Name(), State: state, Err: err}
		case <-t.token.Done():
			return nil
		}
	}
	return nil
}

func (t *Task[In, Out]) transition(to State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !canTransition(t.state, to) {
		return false
	}
	t.state = to
	slog.Debug("Task transitioned.", "task", t.name, "id", t.id, "state", to.String())
	return true
}

func (t *Task[In, Out]) settle(state State, result Out, err error) {
	t.mu.Lock()
	settled := t.settleLocked(state, result, err)
	t.mu.Unlock()

	if settled {
		t.cancel()
		t.logSettled(state, err)
	}
}

// settleLocked records a terminal state. t.mu must be held.
func (t *Task[In, Out]) settleLocked(state State, result Out, err error) bool {
	if !canTransition(t.state, state) {
		return false
	}
	t.state = state
	t.result = result
	t.err = err
	close(t.done)
	return true
}

func (t *Task[In, Out]) logSettled(state State, err error) {
	if err != nil {
		slog.Debug("Task settled.", "task", t.name, "id", t.id, "state", state.String(), "err", err)
		return
	}
	slog.Debug("Task settled.", "task", t.name, "id", t.id, "state", state.String())
}
