package tensor

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Sum adds all elements into a single node.
func (t *Tensor) Sum() *autodiff.Value {
	return autodiff.Sum(t.values...)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() *autodiff.Value {
	return autodiff.Mean(t.values...)
}

// Max returns the largest element. Gradient flows to the selected element only.
func (t *Tensor) Max() *autodiff.Value {
	return autodiff.MaxOf(t.values...)
}

// lanes splits the elements into the 1D lanes that run along axis.
//
// For shape [d0 ... dn] and axis k, with outer = d0*...*d(k-1) and inner = d(k+1)*...*dn,
// lane (o, i) holds offsets o*dk*inner + j*inner + i for j in [0, dk).
// Lanes are returned in row-major order of the remaining axes.
func (t *Tensor) lanes(axis int) (lanes [][]int, reduced Shape) {
	axis = t.shape.normalizeAxis(axis)
	dim := t.shape[axis]
	outer := product(t.shape[:axis])
	inner := product(t.shape[axis+1:])
	lanes = make([][]int, 0, outer*inner)
	for o := range outer {
		for i := range inner {
			lane := make([]int, dim)
			for j := range dim {
				lane[j] = o*dim*inner + j*inner + i
			}
			lanes = append(lanes, lane)
		}
	}
	reduced = make(Shape, 0, len(t.shape)-1)
	reduced = append(reduced, t.shape[:axis]...)
	reduced = append(reduced, t.shape[axis+1:]...)
	return lanes, reduced
}

// reduceAxis collapses axis with fn; the axis is removed from the result shape.
func (t *Tensor) reduceAxis(axis int, fn func(...*autodiff.Value) *autodiff.Value) *Tensor {
	if len(t.shape) == 0 {
		exceptions.Panicf("tensor: cannot reduce an axis of a 0-dimensional tensor")
	}
	lanes, reduced := t.lanes(axis)
	values := make([]*autodiff.Value, len(lanes))
	group := make([]*autodiff.Value, 0)
	for l, lane := range lanes {
		group = group[:0]
		for _, offset := range lane {
			group = append(group, t.values[offset])
		}
		values[l] = fn(group...)
	}
	return newTensor(reduced, values)
}

// SumAxis sums along axis, removing it. Negative axes count from the end.
func (t *Tensor) SumAxis(axis int) *Tensor {
	return t.reduceAxis(axis, autodiff.Sum)
}

// MeanAxis averages along axis, removing it. Negative axes count from the end.
func (t *Tensor) MeanAxis(axis int) *Tensor {
	return t.reduceAxis(axis, autodiff.Mean)
}

// MaxAxis takes the maximum along axis, removing it. Negative axes count from the end.
func (t *Tensor) MaxAxis(axis int) *Tensor {
	return t.reduceAxis(axis, autodiff.MaxOf)
}

// ArgMaxAxis returns the index of the largest element of each lane along axis.
// Ties resolve to the first index.
func (t *Tensor) ArgMaxAxis(axis int) []int {
	lanes, _ := t.lanes(axis)
	result := make([]int, len(lanes))
	for l, lane := range lanes {
		best := 0
		for j, offset := range lane {
			if t.values[offset].Data() > t.values[lane[best]].Data() {
				best = j
			}
		}
		result[l] = best
	}
	return result
}
