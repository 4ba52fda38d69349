package nn

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Parameter represents a trainable parameter in a neural network.
//
// A parameter wraps a tensor of differentiable leaves. Optimizers update it in place
// through SetData, so the nodes used by earlier forward passes stay the same objects.
//
// Example:
//
//	weight := nn.NewParameter("weight", tensor.Randn(tensor.Shape{3, 4}, rng))
//	loss := model.Forward(x).Sum()
//	loss.Backward()
//	grad := weight.Grad()
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// NumElements returns the number of scalars in the parameter.
func (p *Parameter) NumElements() int {
	return p.tensor.Len()
}

// Values returns the parameter nodes.
func (p *Parameter) Values() []*autodiff.Value {
	return p.tensor.Values()
}

// Data returns a copy of the parameter values.
func (p *Parameter) Data() []float64 {
	return p.tensor.Data()
}

// SetData overwrites the parameter values in place.
func (p *Parameter) SetData(data []float64) {
	values := p.tensor.Values()
	if len(data) != len(values) {
		exceptions.Panicf("Parameter %q: SetData got %d values, expected %d", p.name, len(data), len(values))
	}
	for i, v := range values {
		v.SetData(data[i])
	}
}

// HasGrad reports whether any element received a gradient.
func (p *Parameter) HasGrad() bool {
	for _, v := range p.tensor.Values() {
		if v.HasGrad() {
			return true
		}
	}
	return false
}

// Grad returns the gradient values.
//
// Returns nil if no gradient has been computed yet (before backward pass).
func (p *Parameter) Grad() []float64 {
	if !p.HasGrad() {
		return nil
	}
	return p.tensor.Grads()
}

// ZeroGrad clears the gradients.
//
// This should be called before each training iteration to avoid
// accumulating gradients from previous iterations.
func (p *Parameter) ZeroGrad() {
	p.tensor.ZeroGrad()
}
