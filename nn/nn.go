// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module = nn.Module

// Parameter represents a trainable parameter in a neural network.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// NumParameters returns the number of scalar parameters of m.
func NumParameters(m Module) int {
	return nn.NumParameters(m)
}

// ZeroGrad clears the gradients of every parameter of m.
func ZeroGrad(m Module) {
	nn.ZeroGrad(m)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, rng)
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng)
}

// NewLinearWithoutBias creates a linear layer without a bias term.
func NewLinearWithoutBias(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinearWithoutBias(inFeatures, outFeatures, rng)
}

// Conv represents an N-dimensional convolutional layer.
type Conv = nn.Conv

// NewConv creates a convolutional layer from a window spec.
func NewConv(inChannels, outChannels int, spec tensor.WindowSpec, useBias bool, rng *rand.Rand) *Conv {
	return nn.NewConv(inChannels, outChannels, spec, useBias, rng)
}

// NewConv1D creates a 1D convolutional layer with bias.
func NewConv1D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv {
	return nn.NewConv1D(inChannels, outChannels, kernel, stride, padding, rng)
}

// NewConv2D creates a 2D convolutional layer with bias.
//
// Example:
//
//	conv := nn.NewConv2D(1, 8, 3, 1, 1, rng) // in=1, out=8, kernel=3x3, stride=1, padding=1
func NewConv2D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv {
	return nn.NewConv2D(inChannels, outChannels, kernel, stride, padding, rng)
}

// NewConv3D creates a 3D convolutional layer with bias.
func NewConv3D(inChannels, outChannels, kernel, stride, padding int, rng *rand.Rand) *Conv {
	return nn.NewConv3D(inChannels, outChannels, kernel, stride, padding, rng)
}

// MaxPool represents a max pooling layer.
type MaxPool = nn.MaxPool

// NewMaxPool creates a max pooling layer from a window spec.
func NewMaxPool(spec tensor.WindowSpec) *MaxPool {
	return nn.NewMaxPool(spec)
}

// NewMaxPool2D creates a 2D max pooling layer.
func NewMaxPool2D(kernel, stride int) *MaxPool {
	return nn.NewMaxPool2D(kernel, stride)
}

// AvgPool represents an average pooling layer.
type AvgPool = nn.AvgPool

// NewAvgPool creates an average pooling layer from a window spec.
func NewAvgPool(spec tensor.WindowSpec) *AvgPool {
	return nn.NewAvgPool(spec)
}

// NewAvgPool2D creates a 2D average pooling layer.
func NewAvgPool2D(kernel, stride int) *AvgPool {
	return nn.NewAvgPool2D(kernel, stride)
}

// Embedding is a lookup table of learned vectors.
type Embedding = nn.Embedding

// NewEmbedding creates an embedding table with normal initialization.
func NewEmbedding(numEmbeddings, embeddingDim int, rng *rand.Rand) *Embedding {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, rng)
}

// LayerNorm normalizes over the last axis.
type LayerNorm = nn.LayerNorm

// NewLayerNorm creates a layer normalization over features.
func NewLayerNorm(features int, epsilon float64) *LayerNorm {
	return nn.NewLayerNorm(features, epsilon)
}

// RMSNorm normalizes by the root mean square of the last axis.
type RMSNorm = nn.RMSNorm

// NewRMSNorm creates an RMS normalization over features.
func NewRMSNorm(features int, epsilon float64) *RMSNorm {
	return nn.NewRMSNorm(features, epsilon)
}

// BatchNorm normalizes each channel over the batch and spatial axes, tracking running
// statistics for evaluation.
type BatchNorm = nn.BatchNorm

// NewBatchNorm creates a batch normalization over features channels in training mode.
func NewBatchNorm(features int) *BatchNorm {
	return nn.NewBatchNorm(features)
}

// TrainingModeSetter is implemented by modules that behave differently in training
// and evaluation.
type TrainingModeSetter = nn.TrainingModeSetter

// SetTraining switches m and its submodules between training and evaluation mode.
func SetTraining(m Module, training bool) {
	nn.SetTraining(m, training)
}

// Sequential chains modules.
type Sequential = nn.Sequential

// NewSequential creates a sequential container.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// Activations

// ReLU is the rectified linear unit.
type ReLU = nn.ReLU

// NewReLU creates a ReLU activation.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Sigmoid is the logistic activation.
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid {
	return nn.NewSigmoid()
}

// Tanh is the hyperbolic tangent activation.
type Tanh = nn.Tanh

// NewTanh creates a Tanh activation.
func NewTanh() *Tanh {
	return nn.NewTanh()
}

// Softmax normalizes lanes along an axis.
type Softmax = nn.Softmax

// NewSoftmax creates a Softmax over axis.
func NewSoftmax(axis int) *Softmax {
	return nn.NewSoftmax(axis)
}

// LogSoftmax is the logarithm of Softmax.
type LogSoftmax = nn.LogSoftmax

// NewLogSoftmax creates a LogSoftmax over axis.
func NewLogSoftmax(axis int) *LogSoftmax {
	return nn.NewLogSoftmax(axis)
}

// Flatten reshapes [batch, ...] to [batch, features].
type Flatten = nn.Flatten

// NewFlatten creates a Flatten module.
func NewFlatten() *Flatten {
	return nn.NewFlatten()
}

// Losses

// Reduction selects how per-element losses are combined.
type Reduction = nn.Reduction

// Reductions.
const (
	ReductionMean = nn.ReductionMean
	ReductionSum  = nn.ReductionSum
)

// MSELoss is the mean squared error.
type MSELoss = nn.MSELoss

// NewMSELoss creates a mean squared error loss.
func NewMSELoss(reduction Reduction) *MSELoss {
	return nn.NewMSELoss(reduction)
}

// CrossEntropyLoss combines LogSoftmax and negative log likelihood.
type CrossEntropyLoss = nn.CrossEntropyLoss

// NewCrossEntropyLoss creates a cross entropy loss.
func NewCrossEntropyLoss(reduction Reduction) *CrossEntropyLoss {
	return nn.NewCrossEntropyLoss(reduction)
}

// Initialization

// Initializer creates a tensor of the given shape.
type Initializer = nn.Initializer

// Xavier (Glorot) uniform initialization.
func Xavier(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.Xavier(shape, rng)
}

// XavierNormal (Glorot) normal initialization.
func XavierNormal(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.XavierNormal(shape, rng)
}

// HeUniform (Kaiming) uniform initialization.
func HeUniform(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.HeUniform(shape, rng)
}

// HeNormal (Kaiming) normal initialization.
func HeNormal(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.HeNormal(shape, rng)
}

// Persistence

// Checkpoint bundles a model, its optimizer and training progress.
type Checkpoint = nn.Checkpoint

// OptimizerState is what a checkpoint needs from an optimizer.
type OptimizerState = nn.OptimizerState

// Save writes the parameters of m to a .grad file.
func Save(path string, m Module, metadata map[string]string) error {
	return nn.Save(path, m, metadata)
}

// Load reads parameters from a .grad file into m.
func Load(path string, m Module) (serialization.Header, error) {
	return nn.Load(path, m)
}

// SaveCheckpoint saves a model and optimizer at the given epoch.
func SaveCheckpoint(path string, model Module, optimizer OptimizerState, epoch int) error {
	return nn.SaveCheckpoint(path, model, optimizer, epoch)
}

// LoadCheckpoint restores a model and optimizer saved with SaveCheckpoint.
func LoadCheckpoint(path string, model Module, optimizer OptimizerState) (*Checkpoint, error) {
	return nn.LoadCheckpoint(path, model, optimizer)
}
