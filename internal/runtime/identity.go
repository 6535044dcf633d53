package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Identity is a runtime whose backends return their image input unchanged.
// It exercises loading, warm-up and generation end to end without a learned
// model.
type Identity struct {
	// ReadyErr, when set, is returned by Ready.
	ReadyErr error
}

// manifest is the subset of a checkpoint's model.json the identity runtime
// reads: the declared graph inputs, if any.
type manifest struct {
	Signature struct {
		Inputs map[string]struct {
			TensorShape struct {
				Dim []struct {
					Size string `json:"size"`
				} `json:"dim"`
			} `json:"tensorShape"`
		} `json:"inputs"`
	} `json:"signature"`
}

type identityBackend struct {
	inputs []InputSpec
}

func (b *identityBackend) Inputs() []InputSpec { return b.inputs }

// Ready implements Runtime.
func (r Identity) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.ReadyErr
}

// Load implements Runtime. Data must be non-empty; JSON manifests contribute
// their declared input shapes.
func (r Identity) Load(ctx context.Context, data []byte) (Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty checkpoint")
	}

	b := &identityBackend{}
	var m manifest
	if json.Unmarshal(data, &m) == nil {
		for name, in := range m.Signature.Inputs {
			spec := InputSpec{Name: name}
			for _, d := range in.TensorShape.Dim {
				var n int
				if _, err := fmt.Sscan(d.Size, &n); err != nil {
					n = -1
				}
				spec.Shape = append(spec.Shape, n)
			}
			b.inputs = append(b.inputs, spec)
		}
	}
	return b, nil
}

// Execute implements Runtime. Every requested output is the first image
// input; a stacked multi-view input yields its first non-blank view.
func (r Identity) Execute(b Backend, inputs []NamedValue, outputNames []string) ([]NamedValue, error) {
	if _, ok := b.(*identityBackend); !ok {
		return nil, fmt.Errorf("backend %T was not loaded by the identity runtime", b)
	}
	if len(outputNames) == 0 {
		outputNames = []string{DefaultOutput}
	}

	image, found := Tensor{}, false
	for _, in := range inputs {
		if err := in.Tensor.Validate(); err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		if t, ok := firstImage(in.Tensor); ok && !found {
			image, found = t, true
		}
	}
	if !found {
		image = Zeros(1, 64, 64, 4)
	}

	out := make([]NamedValue, len(outputNames))
	for i, name := range outputNames {
		out[i] = NamedValue{Name: name, Tensor: Tensor{
			Shape: append([]int(nil), image.Shape...),
			Data:  append([]float32(nil), image.Data...),
		}}
	}
	return out, nil
}

// firstImage extracts a [1,H,W,4] image from t. Rank-5 tensors are treated
// as [1,N,H,W,4] stacks.
func firstImage(t Tensor) (Tensor, bool) {
	switch len(t.Shape) {
	case 4:
		if t.Shape[3] != 4 {
			return Tensor{}, false
		}
		return t, true
	case 5:
		if t.Shape[4] != 4 {
			return Tensor{}, false
		}
		n, h, w := t.Shape[1], t.Shape[2], t.Shape[3]
		plane := h * w * 4
		for i := 0; i < n; i++ {
			view := t.Data[i*plane : (i+1)*plane]
			if !blank(view) {
				return Tensor{Shape: []int{1, h, w, 4}, Data: view}, true
			}
		}
		return Tensor{Shape: []int{1, h, w, 4}, Data: t.Data[:plane]}, true
	}
	return Tensor{}, false
}

// blank reports whether a view is uniform, as missing views are.
func blank(data []float32) bool {
	for _, v := range data {
		if v != data[0] {
			return false
		}
	}
	return true
}
