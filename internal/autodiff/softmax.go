package autodiff

import (
	"math"
)

// Softmax normalizes xs into a probability distribution.
//
// The maximum input is subtracted before exponentiation, so large inputs don't overflow.
// Each output depends on the whole group; its gradient rule uses the Jacobian row
// s_i * (δij - s_j) captured here.
func Softmax(xs []*Value) []*Value {
	if len(xs) == 0 {
		return nil
	}
	maxData := math.Inf(-1)
	for _, x := range xs {
		maxData = math.Max(maxData, x.data)
	}
	probs := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		probs[i] = math.Exp(x.data - maxData)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	group := make([]*Value, len(xs))
	copy(group, xs)
	outputs := make([]*Value, len(xs))
	for i, si := range probs {
		row := make([]float64, len(xs))
		for j, sj := range probs {
			if i == j {
				row[j] = si * (1 - sj)
			} else {
				row[j] = -si * sj
			}
		}
		outputs[i] = WithOp(si, SoftmaxOp(group, row))
	}
	return outputs
}

// LogSumExp returns log(Σ exp(x_i)), shifted by the maximum for stability.
func LogSumExp(xs []*Value) *Value {
	if len(xs) == 0 {
		return Const(math.Inf(-1))
	}
	shift := Const(MaxOf(xs...).data)
	exps := make([]*Value, len(xs))
	for i, x := range xs {
		exps[i] = x.Sub(shift).Exp()
	}
	return Sum(exps...).Log().Add(shift)
}
