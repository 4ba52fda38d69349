package autodiff

import (
	"math"

	"github.com/gomlx/exceptions"
)

// Add returns v + other.
func (v *Value) Add(other *Value) *Value {
	return WithOp(v.data+other.data, MakeOp(OpAdd, v, other))
}

// Sub returns v - other.
func (v *Value) Sub(other *Value) *Value {
	return WithOp(v.data-other.data, MakeOp(OpSub, v, other))
}

// Mul returns v * other.
func (v *Value) Mul(other *Value) *Value {
	return WithOp(v.data*other.data, MakeOp(OpMul, v, other))
}

// Div returns v / other.
func (v *Value) Div(other *Value) *Value {
	return WithOp(v.data/other.data, MakeOp(OpDiv, v, other))
}

// AddScalar returns v + x, with x wrapped in a constant node.
func (v *Value) AddScalar(x float64) *Value {
	return v.Add(Const(x))
}

// SubScalar returns v - x, with x wrapped in a constant node.
func (v *Value) SubScalar(x float64) *Value {
	return v.Sub(Const(x))
}

// MulScalar returns v * x, with x wrapped in a constant node.
func (v *Value) MulScalar(x float64) *Value {
	return v.Mul(Const(x))
}

// DivScalar returns v / x, with x wrapped in a constant node.
func (v *Value) DivScalar(x float64) *Value {
	return v.Div(Const(x))
}

// Neg returns -v, computed as 0 - v.
func (v *Value) Neg() *Value {
	return Const(0).Sub(v)
}

// Pow returns v^exponent for a constant exponent.
func (v *Value) Pow(exponent float64) *Value {
	return v.PowValue(Const(exponent))
}

// PowValue returns v^exponent. If exponent requires gradient, Backward also
// differentiates with respect to it (which needs v > 0).
func (v *Value) PowValue(exponent *Value) *Value {
	return WithOp(math.Pow(v.data, exponent.data), MakeOp(OpPow, v, exponent))
}

// Exp returns e^v.
func (v *Value) Exp() *Value {
	return WithOp(math.Exp(v.data), MakeOp(OpExp, v))
}

// Log returns the natural logarithm of v.
//
// Panics for negative v, since the result would be NaN.
func (v *Value) Log() *Value {
	return WithOp(math.Log(v.data), MakeOp(OpLog, v))
}

// ReLU returns max(0, v).
func (v *Value) ReLU() *Value {
	return WithOp(math.Max(0, v.data), MakeOp(OpReLU, v))
}

// Tanh returns the hyperbolic tangent of v.
func (v *Value) Tanh() *Value {
	return WithOp(math.Tanh(v.data), MakeOp(OpTanh, v))
}

// Sigmoid returns 1 / (1 + e^-v), composed from Exp, Add and Div.
func (v *Value) Sigmoid() *Value {
	one := Const(1)
	return one.Div(one.Add(v.Neg().Exp()))
}

// Max returns the larger of v and other. Ties select other.
// Gradient flows only to the selected operand.
func (v *Value) Max(other *Value) *Value {
	return WithOp(math.Max(v.data, other.data), MakeOp(OpMax, v, other))
}

// Sum adds values left to right, starting from a constant zero.
func Sum(values ...*Value) *Value {
	total := Const(0)
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Mean returns the arithmetic mean of values.
//
// Panics on an empty input.
func Mean(values ...*Value) *Value {
	if len(values) == 0 {
		exceptions.Panicf("autodiff.Mean: no values")
	}
	return Sum(values...).DivScalar(float64(len(values)))
}

// MaxOf reduces values with Max, left to right.
//
// Panics on an empty input.
func MaxOf(values ...*Value) *Value {
	if len(values) == 0 {
		exceptions.Panicf("autodiff.MaxOf: no values")
	}
	result := values[0]
	for _, v := range values[1:] {
		result = result.Max(v)
	}
	return result
}

// Data extracts the data of each value.
func Data(values []*Value) []float64 {
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = v.data
	}
	return data
}
