package tensor

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"golang.org/x/exp/constraints"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	return product(s) // Scalar has 1 element
}

// Rank returns the number of axes.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String implements fmt.Stringer.
func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// FlatIndex converts a multi-dimensional index into a row-major offset.
// Panics if indices are out of bounds.
func (s Shape) FlatIndex(indices ...int) int {
	if len(indices) != len(s) {
		exceptions.Panicf("expected %d indices for shape %s, got %d", len(s), s, len(indices))
	}
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= s[i] {
			exceptions.Panicf("index %d out of bounds for dimension %d (size %d)", idx, i, s[i])
		}
		offset = offset*s[i] + idx
	}
	return offset
}

// Unflatten converts a row-major offset into a multi-dimensional index, written into indices.
func (s Shape) Unflatten(offset int, indices []int) {
	for i := len(s) - 1; i >= 0; i-- {
		indices[i] = offset % s[i]
		offset /= s[i]
	}
}

// normalizeAxis maps a possibly negative axis into [0, rank).
func (s Shape) normalizeAxis(axis int) int {
	rank := len(s)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		exceptions.Panicf("axis %d out of range for shape %s", axis, s)
	}
	return axis
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(1, 5) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, Error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := false

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// product multiplies the values together; the empty product is 1.
func product[T constraints.Integer](values []T) T {
	p := T(1)
	for _, v := range values {
		p *= v
	}
	return p
}

// forEachIndex calls fn with every multi-dimensional index of shape in row-major order.
// The index slice is reused between calls.
func forEachIndex(shape Shape, fn func(indices []int)) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	indices := make([]int, len(shape))
	for range n {
		fn(indices)
		for axis := len(shape) - 1; axis >= 0; axis-- {
			indices[axis]++
			if indices[axis] < shape[axis] {
				break
			}
			indices[axis] = 0
		}
	}
}
