package autodiff

import (
	"github.com/gomlx/exceptions"
)

// OpKind enumerates the operations a Value can be derived from.
type OpKind uint8

// Operation kinds.
const (
	NoOp OpKind = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpPow
	OpExp
	OpLog
	OpReLU
	OpTanh
	OpMax
	OpSoftmax
)

var opNames = [...]string{
	NoOp:      "NoOp",
	OpAdd:     "Add",
	OpSub:     "Sub",
	OpMul:     "Mul",
	OpDiv:     "Div",
	OpPow:     "Pow",
	OpExp:     "Exp",
	OpLog:     "Log",
	OpReLU:    "ReLU",
	OpTanh:    "Tanh",
	OpMax:     "Max",
	OpSoftmax: "Softmax",
}

// String implements fmt.Stringer.
func (k OpKind) String() string {
	if int(k) < len(opNames) {
		return opNames[k]
	}
	return "OpKind(?)"
}

// Arity returns the number of operands of the kind, or -1 for variadic kinds.
func (k OpKind) Arity() int {
	switch k {
	case NoOp:
		return 0
	case OpExp, OpLog, OpReLU, OpTanh:
		return 1
	case OpAdd, OpSub, OpMul, OpDiv, OpPow, OpMax:
		return 2
	case OpSoftmax:
		return -1
	}
	return 0
}

// Op records how a node was derived from its operands.
//
// Operands are held by pointer, so an Op keeps its operand subgraph alive.
type Op struct {
	kind     OpKind
	operands []*Value

	// OpSoftmax: row i of the softmax Jacobian, d out_i / d operand_j, captured at forward time.
	jacobian []float64

	// OpMax: index of the operand selected at forward time.
	winner int
}

// MakeOp builds an Op of a fixed-arity kind.
//
// For OpMax the winning operand is chosen from the operands' current data.
// OpSoftmax needs a Jacobian row: use SoftmaxOp.
func MakeOp(kind OpKind, operands ...*Value) Op {
	arity := kind.Arity()
	if arity < 0 {
		exceptions.Panicf("autodiff.MakeOp(%s): variadic operation, use the dedicated constructor", kind)
	}
	if len(operands) != arity {
		exceptions.Panicf("autodiff.MakeOp(%s): expected %d operands, got %d", kind, arity, len(operands))
	}
	for i, operand := range operands {
		if operand == nil {
			exceptions.Panicf("autodiff.MakeOp(%s): operand #%d is nil", kind, i)
		}
	}
	op := Op{kind: kind, operands: operands}
	if kind == OpMax && !(operands[0].data > operands[1].data) {
		op.winner = 1
	}
	return op
}

// SoftmaxOp builds the operation of one softmax output: the whole input group plus
// the output's Jacobian row.
func SoftmaxOp(group []*Value, jacobianRow []float64) Op {
	if len(group) != len(jacobianRow) {
		exceptions.Panicf("autodiff.SoftmaxOp: %d operands but Jacobian row has %d entries",
			len(group), len(jacobianRow))
	}
	return Op{kind: OpSoftmax, operands: group, jacobian: jacobianRow}
}

// Kind returns the operation kind.
func (op Op) Kind() OpKind {
	return op.kind
}

// Operands returns the operand nodes. The returned slice must not be modified.
func (op Op) Operands() []*Value {
	return op.operands
}

// propagate pushes node's gradient to the operands of node.op using the chain rule.
//
// Contributions are built with Value arithmetic, so the resulting gradients are graph
// nodes that can themselves be differentiated.
func (op Op) propagate(node *Value) {
	g := node.grad
	if g == nil {
		return
	}
	switch op.kind {
	case NoOp:

	case OpAdd:
		a, b := op.operands[0], op.operands[1]
		accumulate(a, func() *Value { return g })
		accumulate(b, func() *Value { return g })

	case OpSub:
		a, b := op.operands[0], op.operands[1]
		accumulate(a, func() *Value { return g })
		accumulate(b, func() *Value { return g.Neg() })

	case OpMul:
		a, b := op.operands[0], op.operands[1]
		accumulate(a, func() *Value { return g.Mul(b) })
		accumulate(b, func() *Value { return g.Mul(a) })

	case OpDiv:
		a, b := op.operands[0], op.operands[1]
		accumulate(a, func() *Value { return g.Div(b) })
		accumulate(b, func() *Value { return g.Mul(a.Neg().Div(b.Pow(2))) })

	case OpPow:
		base, exponent := op.operands[0], op.operands[1]
		accumulate(base, func() *Value {
			return g.Mul(exponent.Mul(base.PowValue(exponent.SubScalar(1))))
		})
		accumulate(exponent, func() *Value { return g.Mul(node.Mul(base.Log())) })

	case OpExp:
		accumulate(op.operands[0], func() *Value { return g.Mul(node) })

	case OpLog:
		x := op.operands[0]
		accumulate(x, func() *Value { return g.Div(x) })

	case OpReLU:
		mask := 0.0
		if node.data > 0 {
			mask = 1
		}
		accumulate(op.operands[0], func() *Value { return g.MulScalar(mask) })

	case OpTanh:
		accumulate(op.operands[0], func() *Value { return g.Mul(Const(1).Sub(node.Mul(node))) })

	case OpMax:
		accumulate(op.operands[op.winner], func() *Value { return g })

	case OpSoftmax:
		for j, x := range op.operands {
			accumulate(x, func() *Value { return g.MulScalar(op.jacobian[j]) })
		}

	default:
		exceptions.Panicf("autodiff: no gradient rule for operation %s", op.kind)
	}
}

// accumulate adds the contribution to operand's gradient, starting from zero if absent.
// Constants are skipped without building the contribution.
func accumulate(operand *Value, contribution func() *Value) {
	if !operand.requiresGrad {
		return
	}
	operand.grad = operand.GradMut().Add(contribution())
}
