package nn

import (
	"math/rand"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Linear implements a fully connected (dense) layer.
//
// Performs the transformation: y = x · Wᵀ + b
// where:
//   - x is the input tensor with shape [in_features] or [batch_size, in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features]
//   - y is the output tensor with shape [out_features] or [batch_size, out_features]
//
// Weights are initialized using Xavier/Glorot initialization.
// Biases are initialized to zeros.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, rng)
//	output := layer.Forward(input) // [32, 784] -> [32, 128]
type Linear struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter // [out_features, in_features]
	bias        *Parameter // [out_features]
}

// NewLinear creates a new Linear layer with a bias.
//
// rng seeds the weight initialization; nil uses a time-seeded generator.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	l := NewLinearWithoutBias(inFeatures, outFeatures, rng)
	l.bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outFeatures}))
	return l
}

// NewLinearWithoutBias creates a Linear layer computing y = x · Wᵀ.
func NewLinearWithoutBias(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		exceptions.Panicf("nn.NewLinear: invalid features in=%d, out=%d", inFeatures, outFeatures)
	}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Xavier(tensor.Shape{outFeatures, inFeatures}, rng)),
	}
}

// Forward computes y = x · Wᵀ + b.
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if shape.Rank() < 1 || shape.Rank() > 2 {
		exceptions.Panicf("Linear.Forward: expected [features] or [batch, features], got shape %s", shape)
	}
	if shape[shape.Rank()-1] != l.inFeatures {
		exceptions.Panicf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, shape[shape.Rank()-1])
	}

	output := tensor.Dot(input, l.weight.Tensor().Transpose())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor().BroadcastTo(output.Shape()))
	}
	return output
}

// Parameters returns [weight, bias] if bias is present, otherwise [weight].
func (l *Linear) Parameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weight, l.bias}
	}
	return []*Parameter{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns "weight" and, if present, "bias".
func (l *Linear) StateDict() serialization.StateDict {
	return paramStateDict(l.weight, l.bias)
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear) LoadStateDict(stateDict serialization.StateDict) error {
	return loadParams(stateDict, l.weight, l.bias)
}
