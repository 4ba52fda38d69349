// Package tensor implements dense N-dimensional tensors whose elements are autodiff nodes.
//
// Architecture:
//   - Shape: runtime extents, row-major layout
//   - Tensor: a shape plus a flat slice of *autodiff.Value, one node per element
//   - Operations build new nodes through the scalar engine, so any scalar reduced from a
//     tensor can be differentiated with Backward
//   - Views (windows, axis slices, reshapes) share nodes with their source
//
// Shape mismatches and invalid axes are programming errors and panic; only construction
// from caller-supplied data returns an error.
//
// Example:
//
//	x, _ := tensor.FromFloats(tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
//	loss := x.Mul(x).Sum()
//	loss.Backward()
//	x.Grads() // [2 4 6 8]
package tensor

import (
	"fmt"
	"strings"

	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Tensor is a shaped, dense container of autodiff nodes.
//
// The element nodes are shared: two tensors may hold the same node (e.g. a window view
// and its source), and a node's data or gradient written through one is seen by the other.
type Tensor struct {
	shape  Shape
	values []*autodiff.Value
}

// FromShapeVec creates a tensor holding the given nodes in row-major order.
// The slice is copied; the nodes are not.
func FromShapeVec(shape Shape, values []*autodiff.Value) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(values))
	}
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("element %d is nil", i)
		}
	}
	owned := make([]*autodiff.Value, len(values))
	copy(owned, values)
	return &Tensor{shape: shape.Clone(), values: owned}, nil
}

// FromFloats creates a tensor of differentiable leaves from raw data.
func FromFloats(shape Shape, data []float64) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	return FromShapeVec(shape, autodiff.NewValues(data...))
}

// newTensor wraps values without copying or validation; values is owned by the result.
func newTensor(shape Shape, values []*autodiff.Value) *Tensor {
	if shape.NumElements() != len(values) {
		exceptions.Panicf("tensor: shape %s requires %d elements, but got %d", shape, shape.NumElements(), len(values))
	}
	return &Tensor{shape: shape, values: values}
}

// Scalar wraps a single node into a 0-dimensional tensor.
func Scalar(v *autodiff.Value) *Tensor {
	return newTensor(Shape{}, []*autodiff.Value{v})
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.values)
}

// Values returns the element nodes in row-major order.
//
// The returned slice is the tensor's own storage: replacing entries changes the tensor.
func (t *Tensor) Values() []*autodiff.Value {
	return t.values
}

// Data returns a copy of the element values.
func (t *Tensor) Data() []float64 {
	return autodiff.Data(t.values)
}

// Grads returns the current gradient of each element (zero where none was accumulated).
func (t *Tensor) Grads() []float64 {
	grads := make([]float64, len(t.values))
	for i, v := range t.values {
		grads[i] = v.Grad().Data()
	}
	return grads
}

// At returns the node at the given indices.
// Panics if indices are out of bounds.
//
// Example:
//
//	t := tensor.Zeros(Shape{3, 4})
//	value := t.At(1, 2) // Row 1, column 2
func (t *Tensor) At(indices ...int) *autodiff.Value {
	return t.values[t.shape.FlatIndex(indices...)]
}

// Set replaces the node at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(v *autodiff.Value, indices ...int) {
	t.values[t.shape.FlatIndex(indices...)] = v
}

// Item returns the only node of a single-element tensor.
// Panics if the tensor has more than one element.
func (t *Tensor) Item() *autodiff.Value {
	if len(t.values) != 1 {
		exceptions.Panicf("Item() only works for single-element tensors, got shape %s", t.shape)
	}
	return t.values[0]
}

// Backward runs the backward pass from the only element of a single-element tensor.
func (t *Tensor) Backward() {
	t.Item().Backward()
}

// ZeroGrad clears the gradient of every element.
func (t *Tensor) ZeroGrad() {
	for _, v := range t.values {
		v.ZeroGrad()
	}
}

// RequiresGrad reports whether any element requires gradient.
func (t *Tensor) RequiresGrad() bool {
	for _, v := range t.values {
		if v.RequiresGrad() {
			return true
		}
	}
	return false
}

// Clone creates new differentiable leaves holding the current data.
// The clone is disconnected from the source graph.
func (t *Tensor) Clone() *Tensor {
	return newTensor(t.shape.Clone(), autodiff.NewValues(t.Data()...))
}

// Detach creates constant leaves holding the current data.
//
// Gradients never flow through a detached tensor.
func (t *Tensor) Detach() *Tensor {
	values := make([]*autodiff.Value, len(t.values))
	for i, v := range t.values {
		values[i] = autodiff.Const(v.Data())
	}
	return newTensor(t.shape.Clone(), values)
}

// Equal reports whether both tensors have the same shape and element data.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.values {
		if v.Data() != other.values[i].Data() {
			return false
		}
	}
	return true
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%s", t.shape)
	if len(t.values) <= 16 {
		fmt.Fprintf(&sb, "%v", t.Data())
	} else {
		fmt.Fprintf(&sb, "%v...", autodiff.Data(t.values[:16]))
	}
	return sb.String()
}

func (t *Tensor) mustSameShape(other *Tensor, op string) {
	if !t.shape.Equal(other.shape) {
		exceptions.Panicf("tensor.%s: shape mismatch %s vs %s", op, t.shape, other.shape)
	}
}
