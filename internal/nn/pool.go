package nn

import (
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// MaxPool takes the maximum over each window of the trailing spatial axes.
//
// Input shape:  [..., spatial...]
// Output shape: [..., out...]
//
// Every leading axis (batch, channels) is pooled independently. Gradients flow only to
// the element that won each window.
//
// Example:
//
//	pool := nn.NewMaxPool2D(2, 2)
//	output := pool.Forward(input) // [32, 6, 24, 24] -> [32, 6, 12, 12]
type MaxPool struct {
	stateless
	spec tensor.WindowSpec
}

// NewMaxPool creates a max pooling layer.
func NewMaxPool(spec tensor.WindowSpec) *MaxPool {
	return &MaxPool{spec: validatedSpec("nn.NewMaxPool", spec)}
}

// NewMaxPool2D creates a 2D max pooling layer with square kernel and stride.
func NewMaxPool2D(kernel, stride int) *MaxPool {
	return NewMaxPool(tensor.NewWindowSpec(2, kernel, stride, 0, 1))
}

// Forward applies max pooling.
func (m *MaxPool) Forward(input *tensor.Tensor) *tensor.Tensor {
	return tensor.MaxPool(input, m.spec)
}

// AvgPool averages each window of the trailing spatial axes.
//
// Zero padding counts towards the average.
type AvgPool struct {
	stateless
	spec tensor.WindowSpec
}

// NewAvgPool creates an average pooling layer.
func NewAvgPool(spec tensor.WindowSpec) *AvgPool {
	return &AvgPool{spec: validatedSpec("nn.NewAvgPool", spec)}
}

// NewAvgPool2D creates a 2D average pooling layer with square kernel and stride.
func NewAvgPool2D(kernel, stride int) *AvgPool {
	return NewAvgPool(tensor.NewWindowSpec(2, kernel, stride, 0, 1))
}

// Forward applies average pooling.
func (a *AvgPool) Forward(input *tensor.Tensor) *tensor.Tensor {
	return tensor.AvgPool(input, a.spec)
}

func validatedSpec(where string, spec tensor.WindowSpec) tensor.WindowSpec {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		exceptions.Panicf("%s: %v", where, err)
	}
	return spec
}
