package nn

import (
	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
)

// LayerNorm applies Layer Normalization over an input tensor along the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Where:
//   - gamma is the learnable scale parameter [features]
//   - beta is the learnable shift parameter [features]
//   - mean and (biased) variance are computed along the last dimension
//   - eps is a small value to avoid division by zero
//
// Example:
//
//	layernorm := nn.NewLayerNorm(64, 1e-5)
//	output := layernorm.Forward(hidden) // [..., 64] -> [..., 64]
type LayerNorm struct {
	Gamma   *Parameter // learnable scale [features]
	Beta    *Parameter // learnable shift [features]
	Epsilon float64    // numerical stability constant
}

// NewLayerNorm creates a new LayerNorm layer.
//
// The gamma parameter is initialized to ones, beta to zeros.
func NewLayerNorm(features int, epsilon float64) *LayerNorm {
	return &LayerNorm{
		Gamma:   NewParameter("gamma", tensor.Ones(tensor.Shape{features})),
		Beta:    NewParameter("beta", tensor.Zeros(tensor.Shape{features})),
		Epsilon: epsilon,
	}
}

// Forward applies LayerNorm to the input tensor.
//
// Algorithm:
//  1. Compute mean along last dimension (keepdim)
//  2. Subtract mean: x_centered = x - mean
//  3. Compute variance = mean(x_centered²) along last dimension
//  4. Normalize: x_norm = x_centered / sqrt(variance + epsilon)
//  5. Scale and shift: output = gamma * x_norm + beta
func (l *LayerNorm) Forward(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	centered := x.Sub(keepLastAxis(x.MeanAxis(-1), shape))
	variance := centered.Mul(centered).MeanAxis(-1)
	rstd := keepLastAxis(variance.AddScalar(l.Epsilon).Pow(-0.5), shape)
	return centered.Mul(rstd).
		Mul(l.Gamma.Tensor().BroadcastTo(shape)).
		Add(l.Beta.Tensor().BroadcastTo(shape))
}

// Parameters returns the learnable parameters (gamma and beta).
func (l *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{l.Gamma, l.Beta}
}

// StateDict returns "gamma" and "beta".
func (l *LayerNorm) StateDict() serialization.StateDict {
	return paramStateDict(l.Gamma, l.Beta)
}

// LoadStateDict loads parameters from a state dictionary.
func (l *LayerNorm) LoadStateDict(stateDict serialization.StateDict) error {
	return loadParams(stateDict, l.Gamma, l.Beta)
}

// RMSNorm scales by the root mean square over the last dimension.
//
// Formula: Y = X / sqrt(mean(X²) + eps) * gamma
type RMSNorm struct {
	Gamma   *Parameter // learnable scale [features]
	Epsilon float64
}

// NewRMSNorm creates a new RMSNorm layer with gamma initialized to ones.
func NewRMSNorm(features int, epsilon float64) *RMSNorm {
	return &RMSNorm{
		Gamma:   NewParameter("gamma", tensor.Ones(tensor.Shape{features})),
		Epsilon: epsilon,
	}
}

// Forward applies RMSNorm to the input tensor.
func (r *RMSNorm) Forward(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	rms := keepLastAxis(x.Mul(x).MeanAxis(-1).AddScalar(r.Epsilon).Pow(-0.5), shape)
	return x.Mul(rms).Mul(r.Gamma.Tensor().BroadcastTo(shape))
}

// Parameters returns the learnable parameters (gamma).
func (r *RMSNorm) Parameters() []*Parameter {
	return []*Parameter{r.Gamma}
}

// StateDict returns "gamma".
func (r *RMSNorm) StateDict() serialization.StateDict {
	return paramStateDict(r.Gamma)
}

// LoadStateDict loads parameters from a state dictionary.
func (r *RMSNorm) LoadStateDict(stateDict serialization.StateDict) error {
	return loadParams(stateDict, r.Gamma)
}

// keepLastAxis re-inserts the reduced last axis of stat and broadcasts it to shape.
func keepLastAxis(stat *tensor.Tensor, shape tensor.Shape) *tensor.Tensor {
	return stat.InsertAxis(stat.Rank()).BroadcastTo(shape)
}
