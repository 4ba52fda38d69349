package autodiff

import (
	"github.com/gomlx/exceptions"
)

// frame is one entry of the explicit depth-first stack: a node and the index of the
// next operand to visit.
type frame struct {
	node *Value
	next int
}

// topoSort returns every node reachable from v, each after all of its operands, with v
// last. Nodes are marked visited on entry and the flags are left set for the caller to clear.
//
// The traversal keeps its own stack, so graph depth is bounded by memory, not by the
// goroutine stack.
func (v *Value) topoSort() []*Value {
	var order []*Value
	v.visited = true
	stack := []frame{{node: v}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		operands := top.node.op.operands
		if top.next < len(operands) {
			child := operands[top.next]
			top.next++
			if !child.visited {
				child.visited = true
				stack = append(stack, frame{node: child})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// TopoSort returns the nodes reachable from v in topological order: every node appears
// after all of its operands and v is last. Shared nodes appear once.
func (v *Value) TopoSort() []*Value {
	if v.visited {
		exceptions.Panicf("autodiff.TopoSort: called while a traversal through this node is in progress")
	}
	order := v.topoSort()
	clearVisited(order)
	return order
}

// Backward computes d(v)/d(node) for every differentiable node reachable from v and
// accumulates it into node.Grad().
//
// The root's gradient is seeded with 1 and gradients of interior nodes are recomputed
// from scratch; leaf gradients accumulate across calls until ZeroGrad. Since gradients
// are graph nodes, Backward can be called again on a gradient to get higher-order
// derivatives.
//
// Panics if called on a node that is already part of a running backward pass.
func (v *Value) Backward() {
	if v.visited {
		exceptions.Panicf("autodiff.Backward: called while a traversal through this node is in progress")
	}
	order := v.topoSort()
	defer clearVisited(order)

	for _, node := range order {
		if !node.IsLeaf() {
			node.grad = nil
		}
	}
	v.grad = Const(1)
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		node.op.propagate(node)
		node.visited = false
	}
}

func clearVisited(order []*Value) {
	for _, node := range order {
		node.visited = false
	}
}

// ZeroGrads clears the gradient of every node reachable from v.
func (v *Value) ZeroGrads() {
	for _, node := range v.TopoSort() {
		node.grad = nil
	}
}
