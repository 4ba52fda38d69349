package nn

import (
	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// TrainingModeSetter is implemented by modules that behave differently during
// training and evaluation.
type TrainingModeSetter interface {
	SetTraining(training bool)
}

// SetTraining switches m, and every module it contains, between training and
// evaluation mode. Modules without mode-dependent behavior are left untouched.
func SetTraining(m Module, training bool) {
	if s, ok := m.(TrainingModeSetter); ok {
		s.SetTraining(training)
	}
}

// BatchNorm normalizes each channel over the batch and spatial axes.
//
// Input is [batch, features, spatial...] (any number of spatial axes, including none).
//
// Formula: Y = weight * (X - mean) / sqrt(var + eps) + bias
//
// In training mode mean and (biased) variance come from the batch, and the running
// statistics are updated as
//
//	running = momentum * batch + (1 - momentum) * running
//
// using the unbiased batch variance. In evaluation mode the running statistics are
// used as constants.
//
// Example:
//
//	bn := nn.NewBatchNorm(16)
//	y := bn.Forward(x) // [N, 16, H, W] -> [N, 16, H, W]
//	bn.SetTraining(false)
type BatchNorm struct {
	Weight   *Parameter // learnable scale [features]
	Bias     *Parameter // learnable shift [features]
	Epsilon  float64
	Momentum float64

	features    int
	training    bool
	runningMean []float64
	runningVar  []float64
}

// NewBatchNorm creates a BatchNorm layer in training mode with eps 1e-5 and momentum 0.1.
//
// Weight starts at ones, bias at zeros, the running mean at zeros and the running
// variance at ones.
func NewBatchNorm(features int) *BatchNorm {
	if features <= 0 {
		exceptions.Panicf("nn.NewBatchNorm: features must be positive, got %d", features)
	}
	runningVar := make([]float64, features)
	for i := range runningVar {
		runningVar[i] = 1
	}
	return &BatchNorm{
		Weight:      NewParameter("weight", tensor.Ones(tensor.Shape{features})),
		Bias:        NewParameter("bias", tensor.Zeros(tensor.Shape{features})),
		Epsilon:     1e-5,
		Momentum:    0.1,
		features:    features,
		training:    true,
		runningMean: make([]float64, features),
		runningVar:  runningVar,
	}
}

// SetTraining switches between batch statistics (true) and running statistics (false).
func (b *BatchNorm) SetTraining(training bool) {
	b.training = training
}

// Training reports whether the layer uses batch statistics.
func (b *BatchNorm) Training() bool {
	return b.training
}

// RunningMean returns a copy of the running mean.
func (b *BatchNorm) RunningMean() []float64 {
	return append([]float64(nil), b.runningMean...)
}

// RunningVar returns a copy of the running variance.
func (b *BatchNorm) RunningVar() []float64 {
	return append([]float64(nil), b.runningVar...)
}

// Forward normalizes x and, in training mode, updates the running statistics.
func (b *BatchNorm) Forward(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	if shape.Rank() < 2 || shape[1] != b.features {
		exceptions.Panicf("BatchNorm.Forward: expected [batch, %d, ...], got %s", b.features, shape)
	}

	var mean, variance *tensor.Tensor
	if b.training {
		lanes := channelLanes(x)
		count := lanes.Shape()[1]
		mean = lanes.MeanAxis(-1)
		centered := lanes.Sub(mean.InsertAxis(1).BroadcastTo(lanes.Shape()))
		variance = centered.Mul(centered).MeanAxis(-1)
		b.updateRunningStats(mean.Data(), variance.Data(), count)
	} else {
		mean = constVector(b.runningMean)
		variance = constVector(b.runningVar)
	}

	rstd := variance.AddScalar(b.Epsilon).Pow(-0.5)
	return x.Sub(b.perChannel(mean, shape)).
		Mul(b.perChannel(rstd, shape)).
		Mul(b.perChannel(b.Weight.Tensor(), shape)).
		Add(b.perChannel(b.Bias.Tensor(), shape))
}

func (b *BatchNorm) updateRunningStats(mean, biasedVar []float64, count int) {
	correction := 1.0
	if count > 1 {
		correction = float64(count) / float64(count-1)
	}
	for c := range b.runningMean {
		b.runningMean[c] = b.Momentum*mean[c] + (1-b.Momentum)*b.runningMean[c]
		b.runningVar[c] = b.Momentum*biasedVar[c]*correction + (1-b.Momentum)*b.runningVar[c]
	}
}

// perChannel broadcasts a [features] tensor along axis 1 of shape.
func (b *BatchNorm) perChannel(stat *tensor.Tensor, shape tensor.Shape) *tensor.Tensor {
	view := make(tensor.Shape, shape.Rank())
	for i := range view {
		view[i] = 1
	}
	view[1] = b.features
	return stat.Reshape(view).BroadcastTo(shape)
}

// channelLanes rearranges [N, C, spatial...] into [C, N*spatial].
func channelLanes(x *tensor.Tensor) *tensor.Tensor {
	rank := x.Rank()
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	axes[0], axes[1] = 1, 0
	return x.Transpose(axes...).Reshape(tensor.Shape{x.Shape()[1], -1})
}

func constVector(data []float64) *tensor.Tensor {
	return tensor.FromFunc(tensor.Shape{len(data)}, func(i int) float64 { return data[i] }).Detach()
}

// Parameters returns the learnable parameters (weight and bias).
func (b *BatchNorm) Parameters() []*Parameter {
	return []*Parameter{b.Weight, b.Bias}
}

// StateDict returns "weight", "bias", "running_mean" and "running_var".
func (b *BatchNorm) StateDict() serialization.StateDict {
	stateDict := paramStateDict(b.Weight, b.Bias)
	stateDict["running_mean"] = serialization.Tensor{Shape: []int{b.features}, Data: b.RunningMean()}
	stateDict["running_var"] = serialization.Tensor{Shape: []int{b.features}, Data: b.RunningVar()}
	return stateDict
}

// LoadStateDict loads parameters and running statistics. Nothing is modified unless
// every entry is present with the right shape.
func (b *BatchNorm) LoadStateDict(stateDict serialization.StateDict) error {
	stats := make(map[string]serialization.Tensor, 2)
	for _, name := range []string{"running_mean", "running_var"} {
		entry, ok := stateDict[name]
		if !ok {
			return errors.Errorf("missing %s in state dict", name)
		}
		if !tensor.Shape(entry.Shape).Equal(tensor.Shape{b.features}) || len(entry.Data) != b.features {
			return errors.Errorf("%s shape mismatch: expected [%d], got %v", name, b.features, entry.Shape)
		}
		stats[name] = entry
	}
	if err := loadParams(stateDict, b.Weight, b.Bias); err != nil {
		return err
	}
	copy(b.runningMean, stats["running_mean"].Data)
	copy(b.runningVar, stats["running_var"].Data)
	return nil
}
