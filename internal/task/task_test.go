package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pablasso/sidegen/internal/progress"
)

const testTimeout = 2 * time.Second

func succeed[T any](v T) Strategy[T, T] {
	return func(ctx context.Context, in T, p *progress.Observable) (T, error) {
		return v, nil
	}
}

// blockUntilCancelled returns a strategy that signals started and then waits
// for cancellation.
func blockUntilCancelled(started chan<- struct{}) Strategy[int, int] {
	return func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		p.Set(0.3)
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}
}

func waitDone(t *testing.T, s Settler) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatalf("task %s did not settle", s.Name())
	}
}

func TestTask_Succeeds(t *testing.T) {
	tk := New("double", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		p.Set(0.5)
		return in * 2, nil
	})

	if tk.State() != StatePending {
		t.Fatalf("expected Pending, got %s", tk.State())
	}

	got, err := tk.Run(context.Background(), 21)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Run() = %d, want 42", got)
	}
	if tk.State() != StateSucceeded {
		t.Errorf("expected Succeeded, got %s", tk.State())
	}
	if v := tk.Progress().Value(); v != 1 {
		t.Errorf("expected progress 1 after success, got %v", v)
	}
}

func TestTask_Fails(t *testing.T) {
	boom := errors.New("boom")
	tk := New("fail", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		p.Set(0.4)
		return 0, boom
	})

	_, err := tk.Run(context.Background(), 0)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tk.State() != StateFailed {
		t.Errorf("expected Failed, got %s", tk.State())
	}
	if v := tk.Progress().Value(); v != 0.4 {
		t.Errorf("expected progress frozen at 0.4, got %v", v)
	}
}

func TestTask_RunTwiceIsUsageError(t *testing.T) {
	tk := New("once", succeed(1))

	if _, err := tk.Run(context.Background(), 0); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	_, err := tk.Run(context.Background(), 0)
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if tk.State() != StateSucceeded {
		t.Errorf("second Run changed state to %s", tk.State())
	}
}

func TestTask_CancelBeforeRun(t *testing.T) {
	var calls atomic.Int32
	tk := New("never", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	tk.Cancel()
	waitDone(t, tk)

	_, err := tk.Run(context.Background(), 0)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if tk.State() != StateCancelled {
		t.Errorf("expected Cancelled, got %s", tk.State())
	}
	if calls.Load() != 0 {
		t.Errorf("strategy invoked %d times", calls.Load())
	}
}

func TestTask_CancelWhileRunning(t *testing.T) {
	started := make(chan struct{})
	tk := New("blocking", blockUntilCancelled(started))

	errCh := make(chan error, 1)
	go func() {
		_, err := tk.Run(context.Background(), 0)
		errCh <- err
	}()

	<-started
	if tk.State() != StateRunning {
		t.Fatalf("expected Running, got %s", tk.State())
	}
	tk.Cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("expected ErrAborted, got %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Run did not return after Cancel")
	}
	if tk.State() != StateCancelled {
		t.Errorf("expected Cancelled, got %s", tk.State())
	}
}

func TestTask_ContextCancellationCancels(t *testing.T) {
	started := make(chan struct{})
	tk := New("blocking", blockUntilCancelled(started))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := tk.Run(ctx, 0)
		errCh <- err
	}()

	<-started
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("expected ErrAborted, got %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestTask_CancelAfterSettleIsNoop(t *testing.T) {
	tk := New("done", succeed(7))
	if _, err := tk.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tk.Cancel()

	got, err := tk.Result()
	if err != nil || got != 7 {
		t.Errorf("Result() = %d, %v; want 7, nil", got, err)
	}
	if tk.State() != StateSucceeded {
		t.Errorf("expected Succeeded, got %s", tk.State())
	}
}

func TestTask_NonSuspendingBodyCompletesDespiteCancel(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	tk := New("compute", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		close(entered)
		<-release // simulated synchronous compute; ignores ctx
		return 5, nil
	})

	resCh := make(chan int, 1)
	go func() {
		v, _ := tk.Run(context.Background(), 0)
		resCh <- v
	}()

	<-entered
	tk.Cancel()
	close(release)

	if v := <-resCh; v != 5 {
		t.Errorf("expected result 5, got %d", v)
	}
	if tk.State() != StateSucceeded {
		t.Errorf("expected Succeeded, got %s", tk.State())
	}
}

func TestTask_DependencyFailurePropagates(t *testing.T) {
	boom := errors.New("download failed")
	dep := New("dep", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		return 0, boom
	})

	var calls atomic.Int32
	tk := New("dependent", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		calls.Add(1)
		return 1, nil
	}, WithPrerequisites(dep))

	go dep.Run(context.Background(), 0)

	_, err := tk.Run(context.Background(), 0)
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected dependency error to wrap cause, got %v", err)
	}
	var depErr *DependencyError
	if !errors.As(err, &depErr) || depErr.Dependency != "dep" {
		t.Errorf("expected DependencyError naming dep, got %#v", err)
	}
	if tk.State() != StateFailed {
		t.Errorf("expected Failed, got %s", tk.State())
	}
	if calls.Load() != 0 {
		t.Error("dependent strategy should never run")
	}
}

func TestTask_DependencyCancelledPropagates(t *testing.T) {
	dep := New("dep", succeed(0))
	dep.Cancel()

	tk := New("dependent", succeed(1), WithPrerequisites(dep))
	_, err := tk.Run(context.Background(), 0)

	if !errors.Is(err, ErrDependency) || !errors.Is(err, ErrAborted) {
		t.Fatalf("expected dependency abort, got %v", err)
	}
	if tk.State() != StateCancelled {
		t.Errorf("expected Cancelled, got %s", tk.State())
	}
}

func TestTask_WaitsForAllPrerequisites(t *testing.T) {
	release := make(chan struct{})
	slow := New("slow", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		<-release
		return 0, nil
	})
	fast := New("fast", succeed(0))

	tk := New("dependent", succeed(3), WithPrerequisites(slow, fast))

	go slow.Run(context.Background(), 0)
	go fast.Run(context.Background(), 0)

	resCh := make(chan error, 1)
	go func() {
		_, err := tk.Run(context.Background(), 0)
		resCh <- err
	}()

	waitDone(t, fast)
	select {
	case <-tk.Done():
		t.Fatal("dependent settled before slow prerequisite")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-resCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestTask_CancelWhileWaitingForPrerequisite(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	dep := New("dep", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		<-release
		return 0, nil
	})
	go dep.Run(context.Background(), 0)

	var calls atomic.Int32
	tk := New("dependent", func(ctx context.Context, in int, p *progress.Observable) (int, error) {
		calls.Add(1)
		return 0, nil
	}, WithPrerequisites(dep))

	resCh := make(chan error, 1)
	go func() {
		_, err := tk.Run(context.Background(), 0)
		resCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tk.Cancel()

	select {
	case err := <-resCh:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("expected ErrAborted, got %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("dependent did not settle after Cancel")
	}
	if calls.Load() != 0 {
		t.Error("strategy should not run")
	}
}

func TestTask_Wait(t *testing.T) {
	tk := New("later", succeed("ok"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := tk.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	go tk.Run(context.Background(), "")
	got, err := tk.Wait(context.Background())
	if err != nil || got != "ok" {
		t.Errorf("Wait() = %q, %v", got, err)
	}
}

func TestTask_IDUsesName(t *testing.T) {
	tk := New("Load Model", succeed(0))
	if len(tk.ID()) <= len("load-model-") || tk.ID()[:len("load-model-")] != "load-model-" {
		t.Errorf("unexpected id %q", tk.ID())
	}

	fixed := New("x", succeed(0), WithID("fixed"))
	if fixed.ID() != "fixed" {
		t.Errorf("expected fixed id, got %q", fixed.ID())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
		terminal bool
	}{
		{StatePending, "Pending", false},
		{StateRunning, "Running", false},
		{StateSucceeded, "Succeeded", true},
		{StateFailed, "Failed", true},
		{StateCancelled, "Cancelled", true},
		{State(99), "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	for _, from := range []State{StateSucceeded, StateFailed, StateCancelled} {
		for _, to := range []State{StatePending, StateRunning, StateSucceeded, StateFailed, StateCancelled} {
			if canTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
	if canTransition(StatePending, StateSucceeded) {
		t.Error("Pending must not jump to Succeeded")
	}
	if canTransition(StateRunning, StatePending) {
		t.Error("Running must not return to Pending")
	}
}
