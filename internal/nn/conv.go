package nn

import (
	"math/rand"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Conv is an N-dimensional convolutional layer (cross-correlation).
//
// Input shape:  [batch, in_channels, spatial...] or [in_channels, spatial...]
// Weight shape: [out_channels, in_channels, kernel...]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out...]
//
// Where, per spatial axis:
//
//	out = floor((in + 2*padding - dilation*(kernel-1) - 1) / stride) + 1
//
// Example:
//
//	// 1 channel -> 6 channels, 5x5 kernel
//	conv := nn.NewConv2D(1, 6, 5, 1, 0, rng)
//	output := conv.Forward(input) // [32, 1, 28, 28] -> [32, 6, 24, 24]
type Conv struct {
	inChannels  int
	outChannels int
	spec        tensor.WindowSpec

	weight *Parameter // [out_channels, in_channels, kernel...]
	bias   *Parameter // [out_channels] or nil
}

// NewConv creates a convolution over spec.Rank() spatial axes with Xavier-initialized
// weights and a zero bias.
func NewConv(inChannels, outChannels int, spec tensor.WindowSpec, useBias bool, rng *rand.Rand) *Conv {
	if inChannels <= 0 || outChannels <= 0 {
		exceptions.Panicf("nn.NewConv: invalid channels in=%d, out=%d", inChannels, outChannels)
	}
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		exceptions.Panicf("nn.NewConv: %v", err)
	}

	weightShape := append(tensor.Shape{outChannels, inChannels}, spec.Kernel...)
	c := &Conv{
		inChannels:  inChannels,
		outChannels: outChannels,
		spec:        spec,
		weight:      NewParameter("weight", Xavier(weightShape, rng)),
	}
	if useBias {
		c.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outChannels}))
	}
	return c
}

// NewConv1D creates a 1D convolution with a square kernel, stride and padding.
func NewConv1D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv {
	return NewConv(inChannels, outChannels, tensor.NewWindowSpec(1, kernel, stride, padding, 1), true, rng)
}

// NewConv2D creates a 2D convolution with a square kernel, stride and padding.
func NewConv2D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv {
	return NewConv(inChannels, outChannels, tensor.NewWindowSpec(2, kernel, stride, padding, 1), true, rng)
}

// NewConv3D creates a 3D convolution with a cubic kernel, stride and padding.
func NewConv3D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv {
	return NewConv(inChannels, outChannels, tensor.NewWindowSpec(3, kernel, stride, padding, 1), true, rng)
}

// Forward computes the convolution.
//
// An unbatched input [in_channels, spatial...] yields [out_channels, out...].
func (c *Conv) Forward(input *tensor.Tensor) *tensor.Tensor {
	var bias *tensor.Tensor
	if c.bias != nil {
		bias = c.bias.Tensor()
	}
	if input.Rank() == c.spec.Rank()+1 {
		return tensor.Conv(input.InsertAxis(0), c.weight.Tensor(), bias, c.spec).RemoveAxis(0)
	}
	return tensor.Conv(input, c.weight.Tensor(), bias, c.spec)
}

// OutputShape returns the shape Forward produces for input.
func (c *Conv) OutputShape(input tensor.Shape) tensor.Shape {
	n := c.spec.Rank()
	if len(input) < n+1 {
		exceptions.Panicf("Conv.OutputShape: input %s has fewer than %d axes", input, n+1)
	}
	lead := input[:len(input)-n-1].Clone()
	return append(append(lead, c.outChannels), c.spec.OutputShape(input[len(input)-n:])...)
}

// Parameters returns [weight, bias] if bias is present, otherwise [weight].
func (c *Conv) Parameters() []*Parameter {
	if c.bias != nil {
		return []*Parameter{c.weight, c.bias}
	}
	return []*Parameter{c.weight}
}

// Weight returns the weight parameter.
func (c *Conv) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv) Bias() *Parameter {
	return c.bias
}

// Spec returns the window geometry.
func (c *Conv) Spec() tensor.WindowSpec {
	return c.spec
}

// StateDict returns "weight" and, if present, "bias".
func (c *Conv) StateDict() serialization.StateDict {
	return paramStateDict(c.weight, c.bias)
}

// LoadStateDict loads parameters from a state dictionary.
func (c *Conv) LoadStateDict(stateDict serialization.StateDict) error {
	return loadParams(stateDict, c.weight, c.bias)
}
