package tensor

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Dot computes the inner or matrix product of a and b:
//
//	[n]    · [n]    → []      (0-dimensional, use Item)
//	[n]    · [n, m] → [m]
//	[n, m] · [m]    → [n]
//	[n, k] · [k, m] → [n, m]
//
// Panics if either operand has more than 2 axes or the contracted dimensions differ.
func Dot(a, b *Tensor) *Tensor {
	switch {
	case a.Rank() == 1 && b.Rank() == 1:
		mustContract(a, b, a.shape[0], b.shape[0])
		return Scalar(innerProduct(a.values, b.values, 1))

	case a.Rank() == 1 && b.Rank() == 2:
		mustContract(a, b, a.shape[0], b.shape[0])
		row := a.Reshape(Shape{1, a.shape[0]})
		return matMul(row, b).Reshape(Shape{b.shape[1]})

	case a.Rank() == 2 && b.Rank() == 1:
		mustContract(a, b, a.shape[1], b.shape[0])
		col := b.Reshape(Shape{b.shape[0], 1})
		return matMul(a, col).Reshape(Shape{a.shape[0]})

	case a.Rank() == 2 && b.Rank() == 2:
		mustContract(a, b, a.shape[1], b.shape[0])
		return matMul(a, b)
	}
	exceptions.Panicf("tensor.Dot: unsupported ranks %d and %d (shapes %s, %s)", a.Rank(), b.Rank(), a.shape, b.shape)
	return nil
}

// Dot is the method form of the package-level Dot.
func (t *Tensor) Dot(other *Tensor) *Tensor {
	return Dot(t, other)
}

func mustContract(a, b *Tensor, left, right int) {
	if left != right {
		exceptions.Panicf("tensor.Dot: dimension mismatch %s · %s (%d != %d)", a.shape, b.shape, left, right)
	}
}

// matMul multiplies [n, k] by [k, m].
func matMul(a, b *Tensor) *Tensor {
	n, k, m := a.shape[0], a.shape[1], b.shape[1]
	values := make([]*autodiff.Value, 0, n*m)
	for i := range n {
		row := a.values[i*k : (i+1)*k]
		for j := range m {
			values = append(values, innerProduct(row, b.values[j:], m))
		}
	}
	return newTensor(Shape{n, m}, values)
}

// innerProduct computes Σ x[i] * y[i*stride] over len(x) terms.
func innerProduct(x, y []*autodiff.Value, stride int) *autodiff.Value {
	products := make([]*autodiff.Value, len(x))
	for i, v := range x {
		products[i] = v.Mul(y[i*stride])
	}
	return autodiff.Sum(products...)
}
