package model

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pablasso/sidegen/internal/acquire"
	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/fetch"
	"github.com/pablasso/sidegen/internal/registry"
	"github.com/pablasso/sidegen/internal/runtime"
	"github.com/pablasso/sidegen/internal/task"
)

// fakeFetcher serves every locator except those in fail, optionally
// blocking until released.
type fakeFetcher struct {
	fail    map[string]bool
	release chan struct{}
}

func (f *fakeFetcher) Stream(ctx context.Context, locator string, onProgress fetch.ProgressFunc) ([]byte, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[locator] {
		return nil, errors.New("404 not found")
	}
	onProgress(1)
	return []byte(`{"signature":{}}`), nil
}

// countingRuntime wraps the identity runtime and records executions.
type countingRuntime struct {
	runtime.Identity
	executions atomic.Int32
	executeErr error
	ready      chan struct{}
}

func (r *countingRuntime) Ready(ctx context.Context) error {
	if r.ready != nil {
		select {
		case <-r.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.Identity.Ready(ctx)
}

func (r *countingRuntime) Execute(b runtime.Backend, inputs []runtime.NamedValue, outputNames []string) ([]runtime.NamedValue, error) {
	r.executions.Add(1)
	if r.executeErr != nil {
		return nil, r.executeErr
	}
	return r.Identity.Execute(b, inputs, outputNames)
}

func testArch() arch.Architecture {
	return arch.Architecture{
		Name:    "pix2pix",
		Version: "test",
		Inputs:  []arch.InputKind{arch.InputSourceImage},
		Checkpoints: []arch.Checkpoint{
			{Source: domain.Back, Target: domain.Front, Locator: "mem://back-to-front"},
			{Source: domain.Back, Target: domain.Left, Locator: "mem://back-to-left"},
			{Source: domain.Front, Target: domain.Back, Locator: "mem://front-to-back"},
		},
	}
}

func waitLoaded(t *testing.T, m *Local) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.WaitLoaded(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("model never settled")
	}
	return err
}

func TestLocal_ReadyDespiteFailedCheckpoint(t *testing.T) {
	f := &fakeFetcher{fail: map[string]bool{"mem://back-to-left": true}}
	rt := &countingRuntime{}
	m := NewLocal(testArch(), acquire.New(nil, f), rt)

	tasks, err := m.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 load tasks, got %d", len(tasks))
	}

	if err := waitLoaded(t, m); err != nil {
		t.Fatalf("expected readiness despite a failed checkpoint, got %v", err)
	}
	if m.Loaded().State() != task.StateSucceeded {
		t.Errorf("Loaded() state = %s", m.Loaded().State())
	}

	states := map[task.State]int{}
	for _, tk := range tasks {
		states[tk.State()]++
	}
	if states[task.StateSucceeded] != 2 || states[task.StateFailed] != 1 {
		t.Errorf("unexpected task states %v", states)
	}
	if !errors.Is(tasks[1].Err(), acquire.ErrAcquisition) {
		t.Errorf("expected acquisition error, got %v", tasks[1].Err())
	}
	if m.Generators() != 2 {
		t.Errorf("expected 2 generators, got %d", m.Generators())
	}
	pairs := m.SupportedPairs()
	want := map[domain.Pair]bool{
		{Source: domain.Back, Target: domain.Front}: true,
		{Source: domain.Front, Target: domain.Back}: true,
	}
	if len(pairs) != len(want) {
		t.Fatalf("SupportedPairs() = %v", pairs)
	}
	for _, p := range pairs {
		if !want[p] {
			t.Errorf("unexpected supported pair %v", p)
		}
	}
	if got := rt.executions.Load(); got != 1 {
		t.Errorf("expected exactly one warm-up inference, got %d", got)
	}
}

func TestLocal_WarmUpFailureIsNotFatal(t *testing.T) {
	rt := &countingRuntime{executeErr: errors.New("out of memory")}
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), rt)

	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := waitLoaded(t, m); err != nil {
		t.Fatalf("warm-up failure must not fail readiness: %v", err)
	}
	if rt.executions.Load() != 1 {
		t.Errorf("expected warm-up to be attempted once, got %d", rt.executions.Load())
	}
}

func TestLocal_AllCheckpointsFail(t *testing.T) {
	f := &fakeFetcher{fail: map[string]bool{
		"mem://back-to-front": true, "mem://back-to-left": true, "mem://front-to-back": true,
	}}
	rt := &countingRuntime{}
	m := NewLocal(testArch(), acquire.New(nil, f), rt)

	m.Initialize(context.Background())
	if err := waitLoaded(t, m); err != nil {
		t.Fatalf("expected readiness with no generators, got %v", err)
	}
	if rt.executions.Load() != 0 {
		t.Error("warm-up needs a loaded backend")
	}
	if _, ok, _ := m.SelectGenerator([]domain.Domain{domain.Back}, []domain.Domain{domain.Front}); ok {
		t.Error("expected no generator")
	}
}

func TestLocal_RuntimeNotReady(t *testing.T) {
	rt := &countingRuntime{Identity: runtime.Identity{ReadyErr: errors.New("no backend available")}}
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), rt)

	m.Initialize(context.Background())
	err := waitLoaded(t, m)
	if err == nil {
		t.Fatal("expected readiness to fail")
	}
	if m.Loaded().State() != task.StateFailed {
		t.Errorf("Loaded() state = %s", m.Loaded().State())
	}
}

func TestLocal_CancelInitialize(t *testing.T) {
	f := &fakeFetcher{release: make(chan struct{})}
	defer close(f.release)
	m := NewLocal(testArch(), acquire.New(nil, f), &countingRuntime{})

	ctx, cancel := context.WithCancel(context.Background())
	tasks, _ := m.Initialize(ctx)
	cancel()

	if err := waitLoaded(t, m); !errors.Is(err, task.ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	for _, tk := range tasks {
		<-tk.Done()
		if tk.State() != task.StateCancelled {
			t.Errorf("%s: expected Cancelled, got %s", tk.Name(), tk.State())
		}
		if errors.Is(tk.Err(), acquire.ErrAcquisition) {
			t.Errorf("%s: cancellation reported as acquisition failure", tk.Name())
		}
	}
}

func TestLocal_InitializeTwice(t *testing.T) {
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), &countingRuntime{})
	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Initialize(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
	waitLoaded(t, m)
}

func TestLocal_InvalidArchitecture(t *testing.T) {
	a := testArch()
	a.Checkpoints = append(a.Checkpoints, a.Checkpoints[0])
	m := NewLocal(a, acquire.New(nil, &fakeFetcher{}), &countingRuntime{})
	if _, err := m.Initialize(context.Background()); err == nil {
		t.Error("expected duplicate slot to be rejected")
	}
}

func TestWatch(t *testing.T) {
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), &countingRuntime{})
	tasks, _ := m.Initialize(context.Background())

	watch := Watch(tasks)
	defer watch.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	watch.OnComplete(func(float64) { wg.Done() })
	wg.Wait()

	if watch.Value() != 1 {
		t.Errorf("aggregate = %v", watch.Value())
	}
	waitLoaded(t, m)
}

func TestLocal_SelectGeneratorFallback(t *testing.T) {
	a := arch.Builtins("mem://")[1]
	m := NewLocal(a, acquire.New(nil, &fakeFetcher{}), &countingRuntime{})
	m.Initialize(context.Background())
	if err := waitLoaded(t, m); err != nil {
		t.Fatal(err)
	}

	g, ok, err := m.SelectGenerator([]domain.Domain{domain.Back}, []domain.Domain{domain.Front})
	if err != nil || !ok {
		t.Fatalf("SelectGenerator() = %v, %v", ok, err)
	}
	if g.Checkpoint().Source != domain.Any {
		t.Errorf("expected wildcard generator, got %s", g.Checkpoint().Name())
	}

	_, _, err = m.SelectGenerator([]domain.Domain{domain.Back}, []domain.Domain{domain.Front, domain.Left})
	if !errors.Is(err, registry.ErrNotImplemented) {
		t.Errorf("expected ErrNotImplemented, got %v", err)
	}
}

func TestIsCached(t *testing.T) {
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), &countingRuntime{})
	cached := m.IsCached(context.Background())
	if len(cached) != 3 || cached["back-to-front"] {
		t.Errorf("unexpected cached map %v", cached)
	}
}
