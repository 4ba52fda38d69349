package tensor

import (
	"math/rand"

	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Zeros creates a tensor of differentiable leaves set to zero.
//
// Example:
//
//	w := tensor.Zeros(Shape{3, 4})
func Zeros(shape Shape) *Tensor {
	return Full(shape, 0)
}

// Ones creates a tensor of differentiable leaves set to one.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor of differentiable leaves set to value.
func Full(shape Shape, value float64) *Tensor {
	return FromFunc(shape, func(int) float64 { return value })
}

// ConstZeros creates a tensor of non-differentiable zeros.
func ConstZeros(shape Shape) *Tensor {
	return ConstFull(shape, 0)
}

// ConstFull creates a tensor of non-differentiable constants set to value.
func ConstFull(shape Shape, value float64) *Tensor {
	mustValidShape(shape)
	values := make([]*autodiff.Value, shape.NumElements())
	for i := range values {
		values[i] = autodiff.Const(value)
	}
	return newTensor(shape.Clone(), values)
}

// FromFunc creates a tensor of differentiable leaves, with fn giving the value at each
// row-major offset.
func FromFunc(shape Shape, fn func(offset int) float64) *Tensor {
	mustValidShape(shape)
	values := make([]*autodiff.Value, shape.NumElements())
	for i := range values {
		values[i] = autodiff.New(fn(i))
	}
	return newTensor(shape.Clone(), values)
}

// Arange creates a 1D tensor of leaves with values from start to end (exclusive), step 1.
//
// Example:
//
//	t := tensor.Arange(0, 6) // [0, 1, 2, 3, 4, 5]
func Arange(start, end int) *Tensor {
	if end <= start {
		exceptions.Panicf("tensor.Arange: end (%d) must be greater than start (%d)", end, start)
	}
	return FromFunc(Shape{end - start}, func(i int) float64 { return float64(start + i) })
}

// Randn creates a tensor of leaves drawn from N(0, 1).
// Note: Uses math/rand (not crypto/rand) - appropriate for ML/statistical purposes.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	return FromFunc(shape, func(int) float64 { return rng.NormFloat64() })
}

// Rand creates a tensor of leaves drawn uniformly from [low, high).
func Rand(shape Shape, low, high float64, rng *rand.Rand) *Tensor {
	return FromFunc(shape, func(int) float64 { return low + (high-low)*rng.Float64() })
}

// Eye creates a 2D identity matrix of differentiable leaves.
func Eye(n int) *Tensor {
	return FromFunc(Shape{n, n}, func(i int) float64 {
		if i/n == i%n {
			return 1
		}
		return 0
	})
}

func mustValidShape(shape Shape) {
	if err := shape.Validate(); err != nil {
		exceptions.Panicf("tensor: %v", err)
	}
}
