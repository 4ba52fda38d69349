// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation over scalar values.
//
// Every arithmetic operation on a Value records the operation and its operands, so a
// computation builds a directed acyclic graph. Calling Backward on the result fills the
// gradient of every differentiable node. Gradients are themselves Values, which makes
// higher-order derivatives a second Backward call away.
//
// Example:
//
//	x := autodiff.New(3)
//	y := x.Mul(x).AddScalar(1) // y = x² + 1
//	y.Backward()
//	dx := x.Grad()             // 6
//	x.ZeroGrad()
//	dx.Backward()
//	d2x := x.Grad()            // 2
package autodiff

import (
	"github.com/born-ml/grad/internal/autodiff"
)

// Value is a scalar node of the computation graph.
type Value = autodiff.Value

// Op records how a Value was derived.
type Op = autodiff.Op

// OpKind identifies an operation.
type OpKind = autodiff.OpKind

// Operation kinds.
const (
	NoOp      = autodiff.NoOp
	OpAdd     = autodiff.OpAdd
	OpSub     = autodiff.OpSub
	OpMul     = autodiff.OpMul
	OpDiv     = autodiff.OpDiv
	OpPow     = autodiff.OpPow
	OpExp     = autodiff.OpExp
	OpLog     = autodiff.OpLog
	OpReLU    = autodiff.OpReLU
	OpTanh    = autodiff.OpTanh
	OpMax     = autodiff.OpMax
	OpSoftmax = autodiff.OpSoftmax
)

// New creates a differentiable leaf.
func New(x float64) *Value {
	return autodiff.New(x)
}

// Const creates a leaf that never receives a gradient.
func Const(x float64) *Value {
	return autodiff.Const(x)
}

// NewValues creates one differentiable leaf per number.
func NewValues(xs ...float64) []*Value {
	return autodiff.NewValues(xs...)
}

// Sum adds all values.
func Sum(values ...*Value) *Value {
	return autodiff.Sum(values...)
}

// Mean averages all values.
func Mean(values ...*Value) *Value {
	return autodiff.Mean(values...)
}

// MaxOf returns the largest value.
func MaxOf(values ...*Value) *Value {
	return autodiff.MaxOf(values...)
}

// Softmax returns exp(x_i) / Σ exp(x_j) for a group of values.
func Softmax(xs []*Value) []*Value {
	return autodiff.Softmax(xs)
}

// LogSumExp returns log Σ exp(x_i), computed stably.
func LogSumExp(xs []*Value) *Value {
	return autodiff.LogSumExp(xs)
}

// Data returns the numbers held by values.
func Data(values []*Value) []float64 {
	return autodiff.Data(values)
}
