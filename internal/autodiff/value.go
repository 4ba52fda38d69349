// Package autodiff implements reverse-mode automatic differentiation over scalar nodes.
//
// Architecture:
//   - Value: a shared, mutable graph node holding a float64, its gradient and provenance
//   - Op: closed set of operations; each knows how to push gradient to its operands
//   - Backward: iterative topological sort + reverse replay of the recorded graph
//
// Gradients are themselves Values built with the same arithmetic, so a gradient can be
// differentiated again:
//
//	x := autodiff.New(3)
//	y := x.Pow(3)
//	y.Backward()
//	dy := x.Grad() // 27, and dy is a graph node
//	x.ZeroGrad()
//	dy.Backward()
//	x.Grad().Data() // 18
package autodiff

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
)

// Value is a scalar node of the computation graph.
//
// Values are always handled by pointer: the same node may be an operand of many
// operations and every holder observes writes to its data or gradient.
type Value struct {
	data         float64
	grad         *Value // nil until Backward reaches this node
	op           Op     // NoOp for leaves
	requiresGrad bool
	visited      bool // set only while a TopoSort/Backward pass is running
}

// New creates a differentiable leaf node.
//
// Panics if x is NaN.
func New(x float64) *Value {
	checkNaN(x, "New")
	return &Value{data: x, requiresGrad: true}
}

// Const creates a non-differentiable leaf node.
// Backward never accumulates gradient into constants.
func Const(x float64) *Value {
	checkNaN(x, "Const")
	return &Value{data: x}
}

// NewValues creates a differentiable leaf for each element of xs.
func NewValues(xs ...float64) []*Value {
	values := make([]*Value, len(xs))
	for i, x := range xs {
		values[i] = New(x)
	}
	return values
}

// WithOp creates an interior node whose data was computed by applying op to its operands.
//
// The node requires gradient if any of its operands does.
func WithOp(x float64, op Op) *Value {
	checkNaN(x, op.kind.String())
	v := &Value{data: x, op: op}
	for _, operand := range op.operands {
		if operand.requiresGrad {
			v.requiresGrad = true
			break
		}
	}
	return v
}

func checkNaN(x float64, where string) {
	if math.IsNaN(x) {
		exceptions.Panicf("autodiff.%s: cannot create a node holding NaN", where)
	}
}

// Data returns the node's current value.
func (v *Value) Data() float64 {
	return v.data
}

// SetData overwrites the node's value in place (e.g. an optimizer step).
// Every holder of this node observes the new value.
func (v *Value) SetData(x float64) {
	checkNaN(x, "SetData")
	v.data = x
}

// Grad returns the accumulated gradient.
//
// Before any backward pass reaches this node it returns a zero constant, never nil.
func (v *Value) Grad() *Value {
	if v.grad == nil {
		return Const(0)
	}
	return v.grad
}

// GradMut returns the gradient node, storing a zero gradient first if none exists.
func (v *Value) GradMut() *Value {
	if v.grad == nil {
		v.grad = Const(0)
	}
	return v.grad
}

// SetGrad replaces the gradient node.
func (v *Value) SetGrad(grad *Value) {
	v.grad = grad
}

// HasGrad reports whether a gradient has been accumulated since the last ZeroGrad.
func (v *Value) HasGrad() bool {
	return v.grad != nil
}

// ZeroGrad clears the gradient and the traversal flag. The operation is kept, so the
// node can take part in another backward pass.
func (v *Value) ZeroGrad() {
	v.grad = nil
	v.visited = false
}

// RequiresGrad reports whether Backward accumulates gradient into this node.
func (v *Value) RequiresGrad() bool {
	return v.requiresGrad
}

// SetRequiresGrad marks the node as differentiable or constant.
func (v *Value) SetRequiresGrad(requiresGrad bool) *Value {
	v.requiresGrad = requiresGrad
	return v
}

// Op returns the operation that produced this node (NoOp for leaves).
func (v *Value) Op() Op {
	return v.op
}

// IsLeaf reports whether the node was created directly from a number.
func (v *Value) IsLeaf() bool {
	return v.op.kind == NoOp
}

// String implements fmt.Stringer.
func (v *Value) String() string {
	if v.grad == nil {
		return fmt.Sprintf("Value(data=%g)", v.data)
	}
	return fmt.Sprintf("Value(data=%g, grad=%g)", v.data, v.grad.data)
}
