package tensor

import (
	"slices"

	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Reshape returns a tensor with the same elements in the same order and a new shape.
// One dimension may be -1 and is inferred. The result shares nodes with t.
//
// Example:
//
//	x := tensor.Arange(0, 6)
//	y := x.Reshape(Shape{2, -1}) // Shape: [2, 3]
func (t *Tensor) Reshape(shape Shape) *Tensor {
	shape = shape.Clone()
	inferred := -1
	known := 1
	for i, dim := range shape {
		if dim == -1 {
			if inferred >= 0 {
				exceptions.Panicf("tensor.Reshape: more than one inferred dimension in %s", shape)
			}
			inferred = i
			continue
		}
		known *= dim
	}
	if inferred >= 0 && known > 0 && len(t.values)%known == 0 {
		shape[inferred] = len(t.values) / known
	}
	if err := shape.Validate(); err != nil || shape.NumElements() != len(t.values) {
		exceptions.Panicf("tensor.Reshape: cannot reshape %s (%d elements) into %s", t.shape, len(t.values), shape)
	}
	return newTensor(shape, slices.Clone(t.values))
}

// Flatten reshapes the tensor into 1D.
func (t *Tensor) Flatten() *Tensor {
	return t.Reshape(Shape{len(t.values)})
}

// InsertAxis adds an axis of extent 1 before position axis (0 <= axis <= rank).
//
// Example:
//
//	x := tensor.Zeros(Shape{2, 3})
//	y := x.InsertAxis(1) // Shape: [2, 1, 3]
func (t *Tensor) InsertAxis(axis int) *Tensor {
	if axis < 0 || axis > len(t.shape) {
		exceptions.Panicf("tensor.InsertAxis: axis %d out of range for shape %s", axis, t.shape)
	}
	shape := slices.Insert(t.shape.Clone(), axis, 1)
	return newTensor(shape, slices.Clone(t.values))
}

// RemoveAxis removes an axis of extent 1.
// Panics if the axis has any other extent.
func (t *Tensor) RemoveAxis(axis int) *Tensor {
	axis = t.shape.normalizeAxis(axis)
	if t.shape[axis] != 1 {
		exceptions.Panicf("tensor.RemoveAxis: axis %d of shape %s has extent %d, not 1", axis, t.shape, t.shape[axis])
	}
	shape := slices.Delete(t.shape.Clone(), axis, axis+1)
	return newTensor(shape, slices.Clone(t.values))
}

// Transpose permutes the axes: result axis i is source axis axes[i].
// With no arguments the axes are reversed.
func (t *Tensor) Transpose(axes ...int) *Tensor {
	rank := len(t.shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		exceptions.Panicf("tensor.Transpose: %d axes given for shape %s", len(axes), t.shape)
	}
	seen := make([]bool, rank)
	shape := make(Shape, rank)
	for i, axis := range axes {
		if axis < 0 || axis >= rank || seen[axis] {
			exceptions.Panicf("tensor.Transpose: invalid permutation %v for shape %s", axes, t.shape)
		}
		seen[axis] = true
		shape[i] = t.shape[axis]
	}

	strides := t.shape.ComputeStrides()
	values := make([]*autodiff.Value, 0, len(t.values))
	forEachIndex(shape, func(indices []int) {
		offset := 0
		for i, idx := range indices {
			offset += idx * strides[axes[i]]
		}
		values = append(values, t.values[offset])
	})
	return newTensor(shape, values)
}

// Outer returns the i-th sub-tensor along axis 0, sharing nodes with t.
func (t *Tensor) Outer(i int) *Tensor {
	if len(t.shape) == 0 {
		exceptions.Panicf("tensor.Outer: 0-dimensional tensor")
	}
	if i < 0 || i >= t.shape[0] {
		exceptions.Panicf("tensor.Outer: index %d out of bounds for dimension 0 (size %d)", i, t.shape[0])
	}
	inner := len(t.values) / t.shape[0]
	return newTensor(t.shape[1:].Clone(), slices.Clone(t.values[i*inner:(i+1)*inner]))
}

// Unstack splits the tensor along axis 0.
func (t *Tensor) Unstack() []*Tensor {
	if len(t.shape) == 0 {
		exceptions.Panicf("tensor.Unstack: 0-dimensional tensor")
	}
	parts := make([]*Tensor, t.shape[0])
	for i := range parts {
		parts[i] = t.Outer(i)
	}
	return parts
}

// Stack joins tensors of equal shape along a new leading axis.
func Stack(tensors ...*Tensor) *Tensor {
	if len(tensors) == 0 {
		exceptions.Panicf("tensor.Stack: at least one tensor required")
	}
	first := tensors[0]
	values := make([]*autodiff.Value, 0, len(tensors)*len(first.values))
	for _, t := range tensors {
		first.mustSameShape(t, "Stack")
		values = append(values, t.values...)
	}
	shape := append(Shape{len(tensors)}, first.shape...)
	return newTensor(shape, values)
}

// Concat joins tensors along an existing axis.
//
// All tensors must have the same shape except along the concatenation axis.
// Supports negative axis indexing (-1 = last axis).
//
// Example:
//
//	a := tensor.Zeros(Shape{2, 3})
//	b := tensor.Zeros(Shape{2, 5})
//	c := tensor.Concat(1, a, b) // Shape: [2, 8]
func Concat(axis int, tensors ...*Tensor) *Tensor {
	if len(tensors) == 0 {
		exceptions.Panicf("tensor.Concat: at least one tensor required")
	}
	first := tensors[0]
	axis = first.shape.normalizeAxis(axis)
	shape := first.shape.Clone()
	shape[axis] = 0
	for _, t := range tensors {
		if len(t.shape) != len(first.shape) {
			exceptions.Panicf("tensor.Concat: rank mismatch %s vs %s", first.shape, t.shape)
		}
		for i := range t.shape {
			if i != axis && t.shape[i] != first.shape[i] {
				exceptions.Panicf("tensor.Concat: shape mismatch %s vs %s on axis %d", first.shape, t.shape, i)
			}
		}
		shape[axis] += t.shape[axis]
	}

	outer := product(first.shape[:axis])
	values := make([]*autodiff.Value, 0, shape.NumElements())
	for o := range outer {
		for _, t := range tensors {
			chunk := t.shape[axis] * product(t.shape[axis+1:])
			values = append(values, t.values[o*chunk:(o+1)*chunk]...)
		}
	}
	return newTensor(shape, values)
}

// Slice returns the sub-tensor of the given extent starting at start, sharing nodes with t.
func (t *Tensor) Slice(start []int, extent Shape) *Tensor {
	if len(start) != len(t.shape) || len(extent) != len(t.shape) {
		exceptions.Panicf("tensor.Slice: start %v / extent %s do not match shape %s", start, extent, t.shape)
	}
	for axis := range t.shape {
		if start[axis] < 0 || extent[axis] <= 0 || start[axis]+extent[axis] > t.shape[axis] {
			exceptions.Panicf("tensor.Slice: [%d, %d) out of bounds for axis %d (size %d)",
				start[axis], start[axis]+extent[axis], axis, t.shape[axis])
		}
	}
	strides := t.shape.ComputeStrides()
	base := 0
	for axis, s := range start {
		base += s * strides[axis]
	}
	values := make([]*autodiff.Value, 0, extent.NumElements())
	forEachIndex(extent, func(indices []int) {
		offset := base
		for axis, idx := range indices {
			offset += idx * strides[axis]
		}
		values = append(values, t.values[offset])
	})
	return newTensor(extent.Clone(), values)
}

// StepSlice keeps every steps[axis]-th element along each axis, starting at 0.
func (t *Tensor) StepSlice(steps []int) *Tensor {
	if len(steps) != len(t.shape) {
		exceptions.Panicf("tensor.StepSlice: %d steps for shape %s", len(steps), t.shape)
	}
	shape := make(Shape, len(t.shape))
	for axis, step := range steps {
		if step <= 0 {
			exceptions.Panicf("tensor.StepSlice: step %d on axis %d must be positive", step, axis)
		}
		shape[axis] = (t.shape[axis] + step - 1) / step
	}
	strides := t.shape.ComputeStrides()
	values := make([]*autodiff.Value, 0, shape.NumElements())
	forEachIndex(shape, func(indices []int) {
		offset := 0
		for axis, idx := range indices {
			offset += idx * steps[axis] * strides[axis]
		}
		values = append(values, t.values[offset])
	})
	return newTensor(shape, values)
}

// Pad surrounds the trailing len(padding) axes with padding[i] zeros on both sides.
// The zeros are constants, so no gradient flows into them.
//
// Example:
//
//	x := tensor.Ones(Shape{3})
//	x.Pad([]int{2}) // [0 0 1 1 1 0 0]
func (t *Tensor) Pad(padding []int) *Tensor {
	if len(padding) > len(t.shape) {
		exceptions.Panicf("tensor.Pad: %d padding values for shape %s", len(padding), t.shape)
	}
	lead := len(t.shape) - len(padding)
	shape := t.shape.Clone()
	padded := false
	for i, p := range padding {
		if p < 0 {
			exceptions.Panicf("tensor.Pad: negative padding %d", p)
		}
		shape[lead+i] += 2 * p
		padded = padded || p > 0
	}
	if !padded {
		return newTensor(shape, slices.Clone(t.values))
	}

	zero := autodiff.Const(0)
	values := make([]*autodiff.Value, 0, shape.NumElements())
	src := make([]int, len(t.shape))
	forEachIndex(shape, func(indices []int) {
		copy(src, indices)
		for i, p := range padding {
			axis := lead + i
			src[axis] -= p
			if src[axis] < 0 || src[axis] >= t.shape[axis] {
				values = append(values, zero)
				return
			}
		}
		values = append(values, t.values[t.shape.FlatIndex(src...)])
	})
	return newTensor(shape, values)
}
