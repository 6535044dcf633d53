package model

import (
	"fmt"

	"github.com/pablasso/sidegen/internal/imageio"
)

// DebugView is the intermediate output currently on display. It is owned by
// the UI and passed by pointer to whatever renders a Result.
type DebugView struct {
	// Name of the selected partial output; empty shows the generated view.
	Name string
}

// Cycle selects the next partial output of r, wrapping back to the
// generated view after the last one.
func (v *DebugView) Cycle(r Result) {
	if len(r.Partial) == 0 {
		v.Name = ""
		return
	}
	next := 0
	for i, p := range r.Partial {
		if p.Name == v.Name {
			next = i + 1
			break
		}
	}
	if v.Name == "" {
		next = 0
	}
	if next >= len(r.Partial) {
		v.Name = ""
		return
	}
	v.Name = r.Partial[next].Name
}

// Render returns the image to display for r. RGBA partial outputs are
// decoded like the generated view; single-channel maps render as grayscale.
func (v *DebugView) Render(r Result) (*imageio.Image, error) {
	if v == nil || v.Name == "" {
		return r.Image, nil
	}
	for _, p := range r.Partial {
		if p.Name != v.Name {
			continue
		}
		switch len(p.Tensor.Data) {
		case imageio.Size * imageio.Size * 4:
			return imageio.FromNormalized(p.Tensor.Data)
		case imageio.Size * imageio.Size:
			return imageio.Grayscale(p.Tensor.Data)
		default:
			return nil, fmt.Errorf("debug output %q: cannot display shape %v", p.Name, p.Tensor.Shape)
		}
	}
	return nil, fmt.Errorf("debug output %q not present", v.Name)
}
