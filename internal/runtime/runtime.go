// Package runtime defines the narrow interface sidegen needs from a compute
// runtime, plus a builtin identity runtime used when no learned model
// runtime is linked in.
package runtime

import (
	"context"
	"errors"
	"fmt"
)

// DefaultOutput names a backend's primary output in Execute requests.
const DefaultOutput = ""

// ErrShape is returned for tensors whose data does not match their shape.
var ErrShape = errors.New("tensor shape mismatch")

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Zeros returns a tensor of the given shape filled with zeros.
func Zeros(shape ...int) Tensor {
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, size(shape))}
}

// Len is the number of elements implied by the shape.
func (t Tensor) Len() int {
	return size(t.Shape)
}

// Validate checks that Data holds exactly Len elements.
func (t Tensor) Validate() error {
	if len(t.Data) != t.Len() {
		return fmt.Errorf("%w: shape %v wants %d values, got %d", ErrShape, t.Shape, t.Len(), len(t.Data))
	}
	return nil
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0
		}
		n *= d
	}
	return n
}

// NamedValue is one named input or output of an execution.
type NamedValue struct {
	Name   string
	Tensor Tensor
}

// InputSpec declares one backend input. A batch dimension of -1 is
// accepted and treated as 1 for warm-up.
type InputSpec struct {
	Name  string
	Shape []int
}

// Backend is a loaded computation instance.
type Backend interface {
	Inputs() []InputSpec
}

// Runtime loads and executes backends.
type Runtime interface {
	// Ready blocks until the runtime can execute, or ctx is done.
	Ready(ctx context.Context) error
	// Load builds a backend from acquired checkpoint bytes.
	Load(ctx context.Context, data []byte) (Backend, error)
	// Execute runs b. It does not suspend and cannot be interrupted.
	// outputNames selects outputs; an empty list means the default output.
	Execute(b Backend, inputs []NamedValue, outputNames []string) ([]NamedValue, error)
}

// WarmUpInputs returns zero tensors matching b's declared inputs with the
// batch dimension forced to 1.
func WarmUpInputs(b Backend) []NamedValue {
	specs := b.Inputs()
	values := make([]NamedValue, 0, len(specs))
	for _, s := range specs {
		shape := append([]int(nil), s.Shape...)
		if len(shape) > 0 {
			shape[0] = 1
		}
		for i := range shape {
			if shape[i] < 0 {
				shape[i] = 1
			}
		}
		values = append(values, NamedValue{Name: s.Name, Tensor: Zeros(shape...)})
	}
	return values
}
