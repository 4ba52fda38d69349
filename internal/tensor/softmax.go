package tensor

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/gomlx/exceptions"
)

// Softmax normalizes every lane along axis into a probability distribution.
// The result has the shape of t; each output element depends on every element of its lane.
//
// Example:
//
//	logits := must.M1(tensor.FromFloats(Shape{2, 3}, data))
//	probs := logits.Softmax(-1) // every row sums to 1
func (t *Tensor) Softmax(axis int) *Tensor {
	return t.mapLanes(axis, autodiff.Softmax)
}

// LogSoftmax computes x - logsumexp(lane) along axis, without forming the probabilities.
func (t *Tensor) LogSoftmax(axis int) *Tensor {
	return t.mapLanes(axis, func(lane []*autodiff.Value) []*autodiff.Value {
		lse := autodiff.LogSumExp(lane)
		out := make([]*autodiff.Value, len(lane))
		for i, x := range lane {
			out[i] = x.Sub(lse)
		}
		return out
	})
}

// mapLanes gathers each lane along axis, applies fn and scatters the results back to
// their source positions.
func (t *Tensor) mapLanes(axis int, fn func([]*autodiff.Value) []*autodiff.Value) *Tensor {
	if len(t.shape) == 0 {
		exceptions.Panicf("tensor: lane operation on a 0-dimensional tensor")
	}
	lanes, _ := t.lanes(axis)
	values := make([]*autodiff.Value, len(t.values))
	group := make([]*autodiff.Value, 0)
	for _, lane := range lanes {
		group = group[:0]
		for _, offset := range lane {
			group = append(group, t.values[offset])
		}
		out := fn(group)
		for j, offset := range lane {
			values[offset] = out[j]
		}
	}
	return newTensor(t.shape.Clone(), values)
}
