package nn

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// CrossEntropyLoss computes cross-entropy loss for multi-class classification.
//
// This implementation uses the LogSoftmax + NLLLoss decomposition for
// numerical stability.
//
// Mathematical Formulation:
//
//	Loss = -log_probs[target]
//	where log_probs = LogSoftmax(logits) over the last axis
//
// Gradient (Backward):
//
//	∂L/∂logits = Softmax(logits) - y_one_hot
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(nn.ReductionMean)
//	logits := model.Forward(input)             // [batch_size, num_classes]
//	loss := criterion.Forward(logits, targets) // targets: class index per sample
type CrossEntropyLoss struct {
	reduction Reduction
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss(reduction Reduction) *CrossEntropyLoss {
	return &CrossEntropyLoss{reduction: reduction}
}

// Forward computes cross-entropy from raw logits and class indices.
//
// logits is [num_classes] with one target, or [batch_size, num_classes] with one
// target per row.
func (c *CrossEntropyLoss) Forward(logits *tensor.Tensor, targets []int) *autodiff.Value {
	logProbs := batchLogProbs("CrossEntropyLoss", logits)
	batchSize, numClasses := logProbs.Shape()[0], logProbs.Shape()[1]
	if len(targets) != batchSize {
		exceptions.Panicf("CrossEntropyLoss: got %d targets for batch of %d", len(targets), batchSize)
	}

	losses := make([]*autodiff.Value, batchSize)
	for b, target := range targets {
		if target < 0 || target >= numClasses {
			exceptions.Panicf("CrossEntropyLoss: target index %d out of bounds [0, %d)", target, numClasses)
		}
		losses[b] = logProbs.At(b, target).Neg()
	}
	return c.reduction.apply(vector(losses))
}

// ForwardProbs computes cross-entropy against target class probabilities with the same
// shape as logits: -Σ p · log_softmax(logits) per sample.
func (c *CrossEntropyLoss) ForwardProbs(logits, probs *tensor.Tensor) *autodiff.Value {
	if !logits.Shape().Equal(probs.Shape()) {
		exceptions.Panicf("CrossEntropyLoss: logits %s and probabilities %s must have the same shape",
			logits.Shape(), probs.Shape())
	}
	logProbs := batchLogProbs("CrossEntropyLoss", logits)
	targets := probs.Reshape(logProbs.Shape())
	return c.reduction.apply(logProbs.Mul(targets).SumAxis(-1).Neg())
}

// batchLogProbs returns the log-softmax of logits as [batch, classes].
func batchLogProbs(where string, logits *tensor.Tensor) *tensor.Tensor {
	switch logits.Rank() {
	case 1:
		logits = logits.InsertAxis(0)
	case 2:
	default:
		exceptions.Panicf("%s: logits must be [num_classes] or [batch_size, num_classes], got %s", where, logits.Shape())
	}
	return logits.LogSoftmax(-1)
}

func vector(values []*autodiff.Value) *tensor.Tensor {
	t, err := tensor.FromShapeVec(tensor.Shape{len(values)}, values)
	if err != nil {
		exceptions.Panicf("nn: %v", err)
	}
	return t
}
