package nn

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Reduction selects how per-element losses are combined.
type Reduction int

const (
	// ReductionMean averages the per-element losses.
	ReductionMean Reduction = iota
	// ReductionSum adds the per-element losses.
	ReductionSum
)

// String implements fmt.Stringer.
func (r Reduction) String() string {
	switch r {
	case ReductionMean:
		return "mean"
	case ReductionSum:
		return "sum"
	}
	return "unknown"
}

func (r Reduction) apply(losses *tensor.Tensor) *autodiff.Value {
	switch r {
	case ReductionMean:
		return losses.Mean()
	case ReductionSum:
		return losses.Sum()
	}
	exceptions.Panicf("nn: unknown reduction %d", int(r))
	return nil
}

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// Example:
//
//	mse := nn.NewMSELoss(nn.ReductionMean)
//	loss := mse.Forward(model.Forward(input), targets)
//	loss.Backward()
type MSELoss struct {
	reduction Reduction
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss(reduction Reduction) *MSELoss {
	return &MSELoss{reduction: reduction}
}

// Forward computes the loss; predictions and targets must have the same shape.
func (m *MSELoss) Forward(predictions, targets *tensor.Tensor) *autodiff.Value {
	if !predictions.Shape().Equal(targets.Shape()) {
		exceptions.Panicf("MSELoss: predictions %s and targets %s must have the same shape",
			predictions.Shape(), targets.Shape())
	}
	diff := predictions.Sub(targets)
	return m.reduction.apply(diff.Mul(diff))
}
