package nn

import (
	"github.com/born-ml/grad/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// Example:
//
//	relu := nn.NewReLU()
//	output := relu.Forward(input) // All negative values become 0
type ReLU struct{ stateless }

// NewReLU creates a new ReLU activation module.
func NewReLU() *ReLU {
	return &ReLU{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.ReLU()
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
type Sigmoid struct{ stateless }

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Forward applies Sigmoid activation.
func (s *Sigmoid) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.Sigmoid()
}

// Tanh is a hyperbolic tangent activation module.
//
// Tanh squashes values to the range (-1, 1).
type Tanh struct{ stateless }

// NewTanh creates a new Tanh activation module.
func NewTanh() *Tanh {
	return &Tanh{}
}

// Forward applies Tanh activation.
func (t *Tanh) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.Tanh()
}

// Softmax normalizes along one axis so every lane sums to 1.
type Softmax struct {
	stateless
	axis int
}

// NewSoftmax creates a softmax over axis (negative counts from the end).
func NewSoftmax(axis int) *Softmax {
	return &Softmax{axis: axis}
}

// Forward applies the softmax.
func (s *Softmax) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.Softmax(s.axis)
}

// LogSoftmax computes log(softmax(x)) along one axis.
type LogSoftmax struct {
	stateless
	axis int
}

// NewLogSoftmax creates a log-softmax over axis (negative counts from the end).
func NewLogSoftmax(axis int) *LogSoftmax {
	return &LogSoftmax{axis: axis}
}

// Forward applies the log-softmax.
func (s *LogSoftmax) Forward(input *tensor.Tensor) *tensor.Tensor {
	return input.LogSoftmax(s.axis)
}

// Flatten collapses every axis after the first: [batch, ...] -> [batch, features].
type Flatten struct{ stateless }

// NewFlatten creates a new Flatten module.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Forward reshapes the input; the nodes are shared with it.
func (f *Flatten) Forward(input *tensor.Tensor) *tensor.Tensor {
	if input.Rank() < 2 {
		return input
	}
	return input.Reshape(tensor.Shape{input.Shape()[0], -1})
}
