package tensor

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Map applies fn to every element and returns the results with the same shape.
func (t *Tensor) Map(fn func(*autodiff.Value) *autodiff.Value) *Tensor {
	values := make([]*autodiff.Value, len(t.values))
	for i, v := range t.values {
		values[i] = fn(v)
	}
	return newTensor(t.shape.Clone(), values)
}

// zipWith applies fn pairwise. Shapes must be equal.
func (t *Tensor) zipWith(other *Tensor, op string, fn func(a, b *autodiff.Value) *autodiff.Value) *Tensor {
	t.mustSameShape(other, op)
	values := make([]*autodiff.Value, len(t.values))
	for i, v := range t.values {
		values[i] = fn(v, other.values[i])
	}
	return newTensor(t.shape.Clone(), values)
}

// Add performs element-wise addition. Panics if shapes differ.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.zipWith(other, "Add", (*autodiff.Value).Add)
}

// Sub performs element-wise subtraction. Panics if shapes differ.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.zipWith(other, "Sub", (*autodiff.Value).Sub)
}

// Mul performs element-wise multiplication. Panics if shapes differ.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.zipWith(other, "Mul", (*autodiff.Value).Mul)
}

// Div performs element-wise division. Panics if shapes differ.
func (t *Tensor) Div(other *Tensor) *Tensor {
	return t.zipWith(other, "Div", (*autodiff.Value).Div)
}

// Maximum takes the element-wise maximum. Panics if shapes differ.
func (t *Tensor) Maximum(other *Tensor) *Tensor {
	return t.zipWith(other, "Maximum", (*autodiff.Value).Max)
}

// AddScalar adds a constant to every element.
func (t *Tensor) AddScalar(x float64) *Tensor {
	return t.AddValue(autodiff.Const(x))
}

// SubScalar subtracts a constant from every element.
func (t *Tensor) SubScalar(x float64) *Tensor {
	return t.SubValue(autodiff.Const(x))
}

// MulScalar multiplies every element by a constant.
func (t *Tensor) MulScalar(x float64) *Tensor {
	return t.MulValue(autodiff.Const(x))
}

// DivScalar divides every element by a constant.
func (t *Tensor) DivScalar(x float64) *Tensor {
	return t.DivValue(autodiff.Const(x))
}

// AddValue adds the same node to every element; gradient from every element flows to it.
func (t *Tensor) AddValue(v *autodiff.Value) *Tensor {
	return t.Map(func(x *autodiff.Value) *autodiff.Value { return x.Add(v) })
}

// SubValue subtracts the same node from every element.
func (t *Tensor) SubValue(v *autodiff.Value) *Tensor {
	return t.Map(func(x *autodiff.Value) *autodiff.Value { return x.Sub(v) })
}

// MulValue multiplies every element by the same node.
func (t *Tensor) MulValue(v *autodiff.Value) *Tensor {
	return t.Map(func(x *autodiff.Value) *autodiff.Value { return x.Mul(v) })
}

// DivValue divides every element by the same node.
func (t *Tensor) DivValue(v *autodiff.Value) *Tensor {
	return t.Map(func(x *autodiff.Value) *autodiff.Value { return x.Div(v) })
}

// Neg negates every element.
func (t *Tensor) Neg() *Tensor {
	return t.Map((*autodiff.Value).Neg)
}

// Pow raises every element to a constant exponent.
func (t *Tensor) Pow(exponent float64) *Tensor {
	return t.Map(func(x *autodiff.Value) *autodiff.Value { return x.Pow(exponent) })
}

// Exp computes e^x element-wise.
func (t *Tensor) Exp() *Tensor {
	return t.Map((*autodiff.Value).Exp)
}

// Log computes the natural logarithm element-wise.
func (t *Tensor) Log() *Tensor {
	return t.Map((*autodiff.Value).Log)
}

// ReLU computes max(0, x) element-wise.
func (t *Tensor) ReLU() *Tensor {
	return t.Map((*autodiff.Value).ReLU)
}

// Tanh computes the hyperbolic tangent element-wise.
func (t *Tensor) Tanh() *Tensor {
	return t.Map((*autodiff.Value).Tanh)
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func (t *Tensor) Sigmoid() *Tensor {
	return t.Map((*autodiff.Value).Sigmoid)
}

// BroadcastTo repeats the tensor along axes of extent 1 (and new leading axes) to reach shape.
// The result shares nodes with t.
func (t *Tensor) BroadcastTo(shape Shape) *Tensor {
	target, _, err := BroadcastShapes(t.shape, shape)
	if err != nil || !target.Equal(shape) {
		exceptions.Panicf("tensor.BroadcastTo: cannot broadcast %s to %s", t.shape, shape)
	}
	lead := len(shape) - len(t.shape)
	values := make([]*autodiff.Value, 0, shape.NumElements())
	src := make([]int, len(t.shape))
	forEachIndex(shape, func(indices []int) {
		for axis := range src {
			if t.shape[axis] == 1 {
				src[axis] = 0
			} else {
				src[axis] = indices[lead+axis]
			}
		}
		values = append(values, t.values[t.shape.FlatIndex(src...)])
	})
	return newTensor(shape.Clone(), values)
}
