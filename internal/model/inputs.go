package model

import (
	"fmt"

	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/imageio"
	"github.com/pablasso/sidegen/internal/runtime"
)

// encoder builds one network input from a request. source is the view fed
// to single-source inputs.
type encoder func(req Request, source domain.Domain) runtime.Tensor

var encoders = map[arch.InputKind]encoder{
	arch.InputSourceImage:             encodeSourceImage,
	arch.InputSourceImages:            encodeSourceImages,
	arch.InputTargetDomainChannelized: encodeTargetChannelized,
	arch.InputTargetDomain:            encodeTargetDomain,
	arch.InputSourceDomain:            encodeSourceDomain,
}

func assembleInputs(kinds []arch.InputKind, req Request, source domain.Domain) ([]runtime.NamedValue, error) {
	inputs := make([]runtime.NamedValue, 0, len(kinds))
	for _, k := range kinds {
		enc, ok := encoders[k]
		if !ok {
			return nil, fmt.Errorf("no encoder for input kind %s", k)
		}
		inputs = append(inputs, runtime.NamedValue{Name: k.String(), Tensor: enc(req, source)})
	}
	return inputs, nil
}

func encodeSourceImage(req Request, source domain.Domain) runtime.Tensor {
	return runtime.Tensor{
		Shape: []int{1, imageio.Size, imageio.Size, 4},
		Data:  req.Sources[source].Normalized(),
	}
}

// encodeSourceImages stacks every concrete view in canonical order. Missing
// views are zero-filled planes, not normalized transparent sprites.
func encodeSourceImages(req Request, _ domain.Domain) runtime.Tensor {
	const plane = imageio.Size * imageio.Size * 4
	t := runtime.Tensor{
		Shape: []int{1, len(domain.Ordered), imageio.Size, imageio.Size, 4},
		Data:  make([]float32, 0, len(domain.Ordered)*plane),
	}
	for _, d := range domain.Ordered {
		img := req.Sources[d]
		if img == nil {
			t.Data = append(t.Data, make([]float32, plane)...)
			continue
		}
		t.Data = append(t.Data, img.Normalized()...)
	}
	return t
}

func encodeTargetChannelized(req Request, _ domain.Domain) runtime.Tensor {
	n := len(domain.Ordered)
	t := runtime.Zeros(imageio.Size, imageio.Size, n)
	idx := req.Target.Index()
	for px := 0; px < imageio.Size*imageio.Size; px++ {
		t.Data[px*n+idx] = 1
	}
	return t
}

func encodeTargetDomain(req Request, _ domain.Domain) runtime.Tensor {
	return runtime.Tensor{Shape: []int{1, 1}, Data: []float32{float32(req.Target.Index())}}
}

func encodeSourceDomain(_ Request, source domain.Domain) runtime.Tensor {
	return runtime.Tensor{Shape: []int{1, 1}, Data: []float32{float32(source.Index())}}
}
