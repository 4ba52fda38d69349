// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides N-dimensional arrays of autodiff values.
//
// A Tensor is a shape plus a row-major list of *autodiff.Value nodes. All operations
// build on the scalar graph, so Backward on any reduction propagates to the leaves.
//
// Example:
//
//	x, _ := tensor.FromFloats(tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
//	w := tensor.Randn(tensor.Shape{3, 2}, rng)
//	loss := tensor.Dot(x, w).Softmax(-1).Sum()
//	loss.Backward()
//	fmt.Println(w.Grads())
package tensor

import (
	"math/rand"

	"github.com/born-ml/grad/internal/autodiff"
	"github.com/born-ml/grad/internal/parallel"
	"github.com/born-ml/grad/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is an N-dimensional array of autodiff values.
type Tensor = tensor.Tensor

// WindowSpec describes kernel, stride, padding and dilation of a sliding window.
type WindowSpec = tensor.WindowSpec

// Windows is a lazy sequence of equally shaped views over a tensor.
type Windows = tensor.Windows

// FromShapeVec wraps values in a tensor of the given shape.
func FromShapeVec(shape Shape, values []*autodiff.Value) (*Tensor, error) {
	return tensor.FromShapeVec(shape, values)
}

// FromFloats creates a tensor of differentiable leaves.
func FromFloats(shape Shape, data []float64) (*Tensor, error) {
	return tensor.FromFloats(shape, data)
}

// Scalar wraps a single value in a 0-d tensor.
func Scalar(v *autodiff.Value) *Tensor {
	return tensor.Scalar(v)
}

// Zeros creates a tensor of differentiable zeros.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a tensor of differentiable ones.
func Ones(shape Shape) *Tensor {
	return tensor.Ones(shape)
}

// Full creates a tensor of differentiable leaves set to value.
func Full(shape Shape, value float64) *Tensor {
	return tensor.Full(shape, value)
}

// ConstZeros creates a tensor of constant zeros.
func ConstZeros(shape Shape) *Tensor {
	return tensor.ConstZeros(shape)
}

// ConstFull creates a tensor of constants set to value.
func ConstFull(shape Shape, value float64) *Tensor {
	return tensor.ConstFull(shape, value)
}

// FromFunc creates a tensor of leaves from the flat offset of each element.
func FromFunc(shape Shape, fn func(offset int) float64) *Tensor {
	return tensor.FromFunc(shape, fn)
}

// Arange creates the 1D tensor [start, start+1, ..., end-1].
func Arange(start, end int) *Tensor {
	return tensor.Arange(start, end)
}

// Randn creates a tensor of standard normal samples.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	return tensor.Randn(shape, rng)
}

// Rand creates a tensor of uniform samples in [low, high).
func Rand(shape Shape, low, high float64, rng *rand.Rand) *Tensor {
	return tensor.Rand(shape, low, high, rng)
}

// Eye creates an n×n identity matrix.
func Eye(n int) *Tensor {
	return tensor.Eye(n)
}

// Dot computes vector dot products, matrix-vector and matrix-matrix products.
func Dot(a, b *Tensor) *Tensor {
	return tensor.Dot(a, b)
}

// Stack joins equally shaped tensors along a new leading axis.
func Stack(tensors ...*Tensor) *Tensor {
	return tensor.Stack(tensors...)
}

// Concat joins tensors along an existing axis.
func Concat(axis int, tensors ...*Tensor) *Tensor {
	return tensor.Concat(axis, tensors...)
}

// BroadcastShapes returns the broadcast shape of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// NewWindowSpec creates a window with the same parameters on rank axes.
func NewWindowSpec(rank, kernel, stride, padding, dilation int) WindowSpec {
	return tensor.NewWindowSpec(rank, kernel, stride, padding, dilation)
}

// OutputSize returns the number of window positions along one axis.
func OutputSize(input, kernel, stride, padding, dilation int) int {
	return tensor.OutputSize(input, kernel, stride, padding, dilation)
}

// Conv computes an N-D cross-correlation of input [batch, in, spatial...] with weight
// [out, in, kernel...]. bias may be nil.
func Conv(input, weight, bias *Tensor, spec WindowSpec) *Tensor {
	return tensor.Conv(input, weight, bias, spec)
}

// MaxPool takes the maximum over windows of the trailing axes.
func MaxPool(input *Tensor, spec WindowSpec) *Tensor {
	return tensor.MaxPool(input, spec)
}

// AvgPool averages windows of the trailing axes.
func AvgPool(input *Tensor, spec WindowSpec) *Tensor {
	return tensor.AvgPool(input, spec)
}

// SetWorkers sets how many goroutines Conv, MaxPool and AvgPool use to build their
// output nodes. The default, 0 or 1, builds them sequentially. Backward is always
// sequential.
func SetWorkers(workers int) {
	parallel.SetDefault(parallel.WithWorkers(workers))
}
