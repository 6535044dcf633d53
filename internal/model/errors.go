package model

import (
	"errors"
	"fmt"
)

// ErrCompute marks a failure inside the compute runtime.
var ErrCompute = errors.New("compute failed")

// ErrAlreadyInitialized is returned by a second Initialize call.
var ErrAlreadyInitialized = errors.New("model already initialized")

// ComputeError reports a runtime failure while loading or executing a
// checkpoint.
type ComputeError struct {
	Op         string
	Checkpoint string
	Err        error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Checkpoint, e.Err)
}

func (e *ComputeError) Is(target error) bool {
	return target == ErrCompute
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}
