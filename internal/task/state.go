package task

import (
	"errors"
	"fmt"
)

// State is the lifecycle position of a Task.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateRunning:
		return "Running"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// canTransition reports whether from -> to is an allowed edge.
func canTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateFailed || to == StateCancelled
	case StateRunning:
		return to == StateSucceeded || to == StateFailed || to == StateCancelled
	default:
		return false
	}
}

var (
	// ErrAborted marks a settlement caused by cancellation. It is an
	// expected outcome, not a failure.
	ErrAborted = errors.New("task aborted")

	// ErrDependency marks a settlement caused by a failed or cancelled
	// prerequisite.
	ErrDependency = errors.New("dependency failed")

	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("task already started")
)

// DependencyError reports which prerequisite prevented a task from running.
type DependencyError struct {
	Dependency string
	State      State
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %q %s: %v", e.Dependency, stateVerb(e.State), e.Err)
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrDependency
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func stateVerb(s State) string {
	if s == StateCancelled {
		return "was cancelled"
	}
	return "failed"
}

// aborted normalizes an error observed after cancellation so that it
// matches ErrAborted while keeping the original cause.
func aborted(err error) error {
	if err == nil || errors.Is(err, ErrAborted) {
		if err == nil {
			return ErrAborted
		}
		return err
	}
	return fmt.Errorf("%w: %w", ErrAborted, err)
}
