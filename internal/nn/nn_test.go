package nn

import (
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-6

func fromFloats(shape tensor.Shape, data ...float64) *tensor.Tensor {
	return must.M1(tensor.FromFloats(shape, data))
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func setParams(t *testing.T, m Module, sd serialization.StateDict) {
	t.Helper()
	require.NoError(t, m.LoadStateDict(sd))
}

func TestLinear(t *testing.T) {
	layer := NewLinear(2, 3, newRNG())
	setParams(t, layer, serialization.StateDict{
		"weight": {Shape: []int{3, 2}, Data: []float64{1, 2, 3, 4, 5, 6}},
		"bias":   {Shape: []int{3}, Data: []float64{0.5, -0.5, 1}},
	})

	t.Run("batched", func(t *testing.T) {
		x := fromFloats(tensor.Shape{2, 2}, 1, 1, 2, 0)
		y := layer.Forward(x)
		assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
		assert.InDeltaSlice(t, []float64{3.5, 6.5, 12, 2.5, 5.5, 11}, y.Data(), tolerance)
	})

	t.Run("single sample", func(t *testing.T) {
		y := layer.Forward(fromFloats(tensor.Shape{2}, 1, 1))
		assert.Equal(t, tensor.Shape{3}, y.Shape())
		assert.InDeltaSlice(t, []float64{3.5, 6.5, 12}, y.Data(), tolerance)
	})

	t.Run("gradient", func(t *testing.T) {
		ZeroGrad(layer)
		layer.Forward(fromFloats(tensor.Shape{2, 2}, 1, 1, 2, 0)).Sum().Backward()
		assert.InDeltaSlice(t, []float64{3, 1, 3, 1, 3, 1}, layer.Weight().Grad(), tolerance)
		assert.InDeltaSlice(t, []float64{2, 2, 2}, layer.Bias().Grad(), tolerance)
		ZeroGrad(layer)
		assert.Nil(t, layer.Weight().Grad())
	})

	t.Run("wrong features", func(t *testing.T) {
		assert.Panics(t, func() { layer.Forward(tensor.Zeros(tensor.Shape{2, 3})) })
	})

	assert.Equal(t, 9, NumParameters(layer))
	assert.Len(t, NewLinearWithoutBias(2, 3, nil).Parameters(), 1)
}

func TestConv(t *testing.T) {
	conv := NewConv2D(1, 1, 2, 1, 0, newRNG())
	setParams(t, conv, serialization.StateDict{
		"weight": {Shape: []int{1, 1, 2, 2}, Data: []float64{1, 1, 1, 1}},
		"bias":   {Shape: []int{1}, Data: []float64{0.5}},
	})
	input := tensor.Arange(0, 9).Reshape(tensor.Shape{1, 1, 3, 3})

	y := conv.Forward(input)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, y.Shape())
	assert.InDeltaSlice(t, []float64{8.5, 12.5, 20.5, 24.5}, y.Data(), tolerance)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, conv.OutputShape(input.Shape()))

	unbatched := conv.Forward(tensor.Arange(0, 9).Reshape(tensor.Shape{1, 3, 3}))
	assert.Equal(t, tensor.Shape{1, 2, 2}, unbatched.Shape())
	assert.Equal(t, y.Data(), unbatched.Data())

	t.Run("geometry", func(t *testing.T) {
		c := NewConv(3, 4, tensor.WindowSpec{Kernel: []int{3}, Stride: []int{2}, Padding: []int{1}}, false, newRNG())
		assert.Equal(t, tensor.Shape{4, 3, 3}, c.Weight().Shape())
		assert.Nil(t, c.Bias())
		out := c.Forward(tensor.Zeros(tensor.Shape{2, 3, 7}))
		assert.Equal(t, tensor.Shape{2, 4, 4}, out.Shape())
		assert.Equal(t, tensor.Shape{2, 4, 4}, c.OutputShape(tensor.Shape{2, 3, 7}))
	})

	t.Run("3d", func(t *testing.T) {
		c := NewConv3D(1, 2, 2, 1, 0, newRNG())
		out := c.Forward(tensor.Zeros(tensor.Shape{1, 1, 3, 3, 3}))
		assert.Equal(t, tensor.Shape{1, 2, 2, 2, 2}, out.Shape())
		assert.Equal(t, 2*8+2, NumParameters(c))
	})

	assert.Panics(t, func() { NewConv1D(0, 1, 3, 1, 0, nil) })
}

func TestPooling(t *testing.T) {
	input := tensor.Arange(0, 16).Reshape(tensor.Shape{1, 1, 4, 4})

	maxOut := NewMaxPool2D(2, 2).Forward(input)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, maxOut.Shape())
	assert.InDeltaSlice(t, []float64{5, 7, 13, 15}, maxOut.Data(), tolerance)

	avgOut := NewAvgPool2D(2, 2).Forward(input)
	assert.InDeltaSlice(t, []float64{2.5, 4.5, 10.5, 12.5}, avgOut.Data(), tolerance)

	maxOut.Sum().Backward()
	grads := input.Grads()
	assert.Equal(t, 1.0, grads[5])
	assert.Equal(t, 0.0, grads[4])

	assert.Empty(t, NewMaxPool2D(2, 2).Parameters())
	assert.Panics(t, func() { NewAvgPool(tensor.WindowSpec{Kernel: []int{0}}) })
}

func TestActivations(t *testing.T) {
	x := fromFloats(tensor.Shape{2, 2}, -1, 0, 2, -3)

	assert.Equal(t, []float64{0, 0, 2, 0}, NewReLU().Forward(x).Data())
	assert.InDelta(t, 0.5, NewSigmoid().Forward(x).Data()[1], tolerance)
	assert.InDelta(t, math.Tanh(2), NewTanh().Forward(x).Data()[2], tolerance)

	probs := NewSoftmax(-1).Forward(x).Data()
	assert.InDelta(t, 1, probs[0]+probs[1], tolerance)
	assert.InDelta(t, 1, probs[2]+probs[3], tolerance)

	logProbs := NewLogSoftmax(1).Forward(x).Data()
	for i := range probs {
		assert.InDelta(t, math.Log(probs[i]), logProbs[i], tolerance)
	}

	flat := NewFlatten().Forward(tensor.Zeros(tensor.Shape{2, 3, 4}))
	assert.Equal(t, tensor.Shape{2, 12}, flat.Shape())

	assert.NoError(t, NewReLU().LoadStateDict(nil))
	assert.Error(t, NewReLU().LoadStateDict(serialization.StateDict{"w": {}}))
}

func TestNorms(t *testing.T) {
	x := fromFloats(tensor.Shape{2, 3}, 1, 2, 3, 2, 4, 6)

	t.Run("layer norm", func(t *testing.T) {
		ln := NewLayerNorm(3, 1e-5)
		y := ln.Forward(x).Data()
		s := math.Sqrt(2.0/3.0 + 1e-5)
		assert.InDeltaSlice(t, []float64{-1 / s, 0, 1 / s}, y[:3], 1e-6)
		s = math.Sqrt(8.0/3.0 + 1e-5)
		assert.InDeltaSlice(t, []float64{-2 / s, 0, 2 / s}, y[3:], 1e-6)
		assert.Len(t, ln.Parameters(), 2)

		ln.Forward(x).Sum().Backward()
		assert.InDeltaSlice(t, []float64{2, 2, 2}, ln.Beta.Grad(), tolerance)
	})

	t.Run("rms norm", func(t *testing.T) {
		rms := NewRMSNorm(2, 0)
		y := rms.Forward(fromFloats(tensor.Shape{2}, 3, 4)).Data()
		r := math.Sqrt(12.5)
		assert.InDeltaSlice(t, []float64{3 / r, 4 / r}, y, tolerance)
	})
}

func TestBatchNorm(t *testing.T) {
	tests := []struct {
		name        string
		shape       tensor.Shape
		features    int
		want        []float64
		runningMean []float64
		runningVar  []float64
	}{
		{
			name:        "1d",
			shape:       tensor.Shape{1, 2, 3},
			features:    2,
			want:        []float64{-1.2247356, 0.0, 1.2247356, -1.2247357, 0.0, 1.2247355},
			runningMean: []float64{0.2, 0.5},
			runningVar:  []float64{1.0, 1.0},
		},
		{
			name:     "2d",
			shape:    tensor.Shape{1, 2, 2, 3},
			features: 2,
			want: []float64{
				-1.46384759, -0.87830855, -0.29276951, 0.292769519, 0.878308559, 1.463847599,
				-1.46384759, -0.87830855, -0.29276951, 0.292769519, 0.878308559, 1.463847599,
			},
			runningMean: []float64{0.35, 0.95},
			runningVar:  []float64{1.25, 1.25},
		},
		{
			name:     "3d",
			shape:    tensor.Shape{1, 1, 2, 2, 2},
			features: 1,
			want: []float64{
				-1.52752388, -1.09108853, -0.65465307, -0.21821773,
				0.21821764, 0.65465301, 1.09108841, 1.52752376,
			},
			runningMean: []float64{0.45},
			runningVar:  []float64{1.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := tensor.FromFunc(tt.shape, func(i int) float64 { return float64(i + 1) })
			bn := NewBatchNorm(tt.features)
			y := bn.Forward(x)
			assert.Equal(t, tt.shape, y.Shape())
			assert.InDeltaSlice(t, tt.want, y.Data(), tolerance)
			assert.InDeltaSlice(t, tt.runningMean, bn.RunningMean(), tolerance)
			assert.InDeltaSlice(t, tt.runningVar, bn.RunningVar(), tolerance)
		})
	}

	t.Run("gradients", func(t *testing.T) {
		bn := NewBatchNorm(2)
		x := fromFloats(tensor.Shape{2, 2}, 1, 4, 3, 8)
		bn.Forward(x).Sum().Backward()
		assert.InDeltaSlice(t, []float64{2, 2}, bn.Bias.Grad(), tolerance)
		// Normalized outputs sum to zero per channel.
		assert.InDeltaSlice(t, []float64{0, 0}, bn.Weight.Grad(), tolerance)
		assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, x.Grads(), tolerance)
	})

	t.Run("evaluation uses running statistics", func(t *testing.T) {
		bn := NewBatchNorm(2)
		model := NewSequential(bn, NewReLU())
		x := tensor.FromFunc(tensor.Shape{1, 2, 3}, func(i int) float64 { return float64(i + 1) })
		model.Forward(x)

		SetTraining(model, false)
		assert.False(t, bn.Training())
		y := bn.Forward(x).Data()
		s := math.Sqrt(1 + 1e-5)
		assert.InDeltaSlice(t, []float64{0.8 / s, 1.8 / s, 2.8 / s, 3.5 / s, 4.5 / s, 5.5 / s}, y, tolerance)
		assert.InDeltaSlice(t, []float64{0.2, 0.5}, bn.RunningMean(), tolerance)
	})

	t.Run("state dict", func(t *testing.T) {
		bn := NewBatchNorm(2)
		bn.Forward(tensor.FromFunc(tensor.Shape{1, 2, 3}, func(i int) float64 { return float64(i + 1) }))
		sd := bn.StateDict()
		assert.Equal(t, []string{"bias", "running_mean", "running_var", "weight"}, sd.Names())
		assert.Len(t, bn.Parameters(), 2)

		restored := NewBatchNorm(2)
		require.NoError(t, restored.LoadStateDict(sd))
		assert.Equal(t, bn.RunningMean(), restored.RunningMean())
		assert.Equal(t, bn.RunningVar(), restored.RunningVar())

		bad := bn.StateDict()
		bad["running_var"] = serialization.Tensor{Shape: []int{3}, Data: []float64{1, 2, 3}}
		fresh := NewBatchNorm(2)
		before := fresh.StateDict()
		assert.Error(t, fresh.LoadStateDict(bad))
		assert.Equal(t, before, fresh.StateDict())
	})

	assert.Panics(t, func() { NewBatchNorm(3).Forward(tensor.Zeros(tensor.Shape{2, 2})) })
}

func TestEmbedding(t *testing.T) {
	embed := NewEmbeddingWithWeight(fromFloats(tensor.Shape{3, 2}, 1, 2, 3, 4, 5, 6))

	out := embed.Lookup(2, 0, 2)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float64{5, 6, 1, 2, 5, 6}, out.Data())
	assert.Same(t, out.At(0, 0), out.At(2, 0))

	out.Sum().Backward()
	assert.InDeltaSlice(t, []float64{1, 1, 0, 0, 2, 2}, embed.Weight.Grad(), tolerance)

	y := embed.Forward(fromFloats(tensor.Shape{1, 3}, 2, 0, 1))
	assert.Equal(t, tensor.Shape{1, 3, 2}, y.Shape())
	assert.Equal(t, []float64{5, 6, 1, 2, 3, 4}, y.Data())

	assert.Panics(t, func() { embed.Lookup(3) })
	assert.Panics(t, func() { embed.Forward(fromFloats(tensor.Shape{1}, 0.5)) })
	assert.Equal(t, tensor.Shape{5, 4}, NewEmbedding(5, 4, newRNG()).Weight.Shape())
}

func TestMSELoss(t *testing.T) {
	pred := fromFloats(tensor.Shape{2, 2}, 1, 2, 3, 4)
	target := fromFloats(tensor.Shape{2, 2}, 1, 0, 3, 1)

	loss := NewMSELoss(ReductionMean).Forward(pred, target)
	assert.InDelta(t, (4.0+9.0)/4, loss.Data(), tolerance)
	loss.Backward()
	assert.InDeltaSlice(t, []float64{0, 1, 0, 1.5}, pred.Grads(), tolerance)

	sum := NewMSELoss(ReductionSum).Forward(pred, target)
	assert.InDelta(t, 13, sum.Data(), tolerance)

	assert.Panics(t, func() { NewMSELoss(ReductionMean).Forward(pred, tensor.Zeros(tensor.Shape{4})) })
	assert.Equal(t, "sum", ReductionSum.String())
}

func TestCrossEntropyLoss(t *testing.T) {
	logits := tensor.Zeros(tensor.Shape{2, 4})
	criterion := NewCrossEntropyLoss(ReductionMean)

	loss := criterion.Forward(logits, []int{1, 3})
	assert.InDelta(t, math.Log(4), loss.Data(), tolerance)

	loss.Backward()
	assert.InDeltaSlice(t,
		[]float64{0.125, -0.375, 0.125, 0.125, 0.125, 0.125, 0.125, -0.375},
		logits.Grads(), tolerance)

	t.Run("probabilities match indices", func(t *testing.T) {
		x := fromFloats(tensor.Shape{2, 3}, 0.5, -1, 2, 3, 0, 1)
		oneHot := fromFloats(tensor.Shape{2, 3}, 0, 0, 1, 1, 0, 0).Detach()
		byIndex := criterion.Forward(x, []int{2, 0}).Data()
		byProbs := criterion.ForwardProbs(x, oneHot).Data()
		assert.InDelta(t, byIndex, byProbs, tolerance)
	})

	t.Run("single sample", func(t *testing.T) {
		x := fromFloats(tensor.Shape{3}, 1, 2, 3)
		want := -math.Log(math.Exp(3) / (math.Exp(1) + math.Exp(2) + math.Exp(3)))
		assert.InDelta(t, want, NewCrossEntropyLoss(ReductionSum).Forward(x, []int{2}).Data(), tolerance)
	})

	assert.Panics(t, func() { criterion.Forward(logits, []int{4, 0}) })
	assert.Panics(t, func() { criterion.Forward(logits, []int{0}) })
}

func newMLP(seed int64) *Sequential {
	rng := rand.New(rand.NewSource(seed))
	return NewSequential(
		NewLinear(2, 3, rng),
		NewReLU(),
		NewLinear(3, 1, rng),
	)
}

func TestSequentialStateDict(t *testing.T) {
	model := newMLP(1)
	sd := model.StateDict()
	assert.Equal(t, []string{"0.bias", "0.weight", "2.bias", "2.weight"}, sd.Names())
	assert.Equal(t, 13, NumParameters(model))
	assert.Equal(t, 3, model.Len())

	other := newMLP(2)
	x := fromFloats(tensor.Shape{1, 2}, 0.3, -0.7)
	require.NotEqual(t, model.Forward(x).Data(), other.Forward(x).Data())
	require.NoError(t, other.LoadStateDict(sd))
	assert.Equal(t, model.Forward(x).Data(), other.Forward(x).Data())

	// Loading keeps node identity.
	before := other.Parameters()[0].Values()[0]
	require.NoError(t, other.LoadStateDict(newMLP(3).StateDict()))
	assert.Same(t, before, other.Parameters()[0].Values()[0])

	// Failed loads leave every parameter untouched.
	current := other.StateDict()
	missing := model.StateDict()
	delete(missing, "2.bias")
	assert.Error(t, other.LoadStateDict(missing))
	assert.Equal(t, current, other.StateDict())

	missing = model.StateDict()
	delete(missing, "0.bias")
	assert.Error(t, other.LoadStateDict(missing))
	assert.Equal(t, current, other.StateDict())

	wrongShape := model.StateDict()
	wrongShape["2.bias"] = serialization.Tensor{Shape: []int{2}, Data: make([]float64, 2)}
	assert.Error(t, other.LoadStateDict(wrongShape))
	assert.Equal(t, current, other.StateDict())

	wrongShape = model.StateDict()
	wrongShape["0.weight"] = serialization.Tensor{Shape: []int{2, 3}, Data: make([]float64, 6)}
	assert.Error(t, other.LoadStateDict(wrongShape))
	assert.Equal(t, current, other.StateDict())

	assert.Panics(t, func() { model.Module(3) })
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlp.grad")
	model := newMLP(1)
	require.NoError(t, Save(path, model, map[string]string{"task": "xor"}))

	restored := newMLP(7)
	header, err := Load(path, restored)
	require.NoError(t, err)
	assert.Equal(t, "Sequential", header.ModelType)
	assert.Equal(t, "xor", header.Metadata["task"])
	assert.Equal(t, model.StateDict(), restored.StateDict())

	_, err = LoadCheckpoint(path, restored, nil)
	assert.ErrorIs(t, err, serialization.ErrNotCheckpoint)
}

type fakeOptimizer struct {
	name    string
	lr      float64
	state   serialization.StateDict
	loaded  serialization.StateDict
	loadErr error
}

func (f *fakeOptimizer) Name() string                       { return f.name }
func (f *fakeOptimizer) StateDict() serialization.StateDict { return f.state }
func (f *fakeOptimizer) GetLR() float64                     { return f.lr }

func (f *fakeOptimizer) LoadStateDict(sd serialization.StateDict) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = sd
	return nil
}

func TestCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ckpt.grad")
	model := newMLP(1)
	opt := &fakeOptimizer{
		name:  "Fake",
		lr:    0.01,
		state: serialization.StateDict{"velocity.0": {Shape: []int{2}, Data: []float64{0.1, 0.2}}},
	}
	ckpt := &Checkpoint{
		Model:     model,
		Optimizer: opt,
		Epoch:     4,
		Step:      40,
		Loss:      0.25,
		Metadata:  map[string]any{"batch": 8},
	}
	require.NoError(t, ckpt.Save(path))

	restoredOpt := &fakeOptimizer{name: "Fake"}
	restored, err := LoadCheckpoint(path, newMLP(9), restoredOpt)
	require.NoError(t, err)
	assert.Equal(t, 4, restored.Epoch)
	assert.Equal(t, int64(40), restored.Step)
	assert.InDelta(t, 0.25, restored.Loss, tolerance)
	assert.InDelta(t, 8, restored.Metadata["batch"], tolerance)
	assert.False(t, restored.CreatedAt.IsZero())
	assert.Equal(t, model.StateDict(), restored.Model.StateDict())
	assert.Equal(t, opt.state, restoredOpt.loaded)

	t.Run("wrong optimizer leaves model untouched", func(t *testing.T) {
		target := newMLP(9)
		before := target.StateDict()
		other := &fakeOptimizer{name: "Other"}
		_, err := LoadCheckpoint(path, target, other)
		assert.Error(t, err)
		assert.Equal(t, before, target.StateDict())
		assert.Nil(t, other.loaded)
	})

	t.Run("failed optimizer load restores model", func(t *testing.T) {
		target := newMLP(9)
		before := target.StateDict()
		_, err := LoadCheckpoint(path, target, &fakeOptimizer{name: "Fake", loadErr: errors.New("bad state")})
		assert.Error(t, err)
		assert.Equal(t, before, target.StateDict())
	})

	require.NoError(t, SaveCheckpoint(path, model, nil, 2))
	restored, err = LoadCheckpoint(path, newMLP(9), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Epoch)
}

func TestInitializers(t *testing.T) {
	fanIn, fanOut := Fans(tensor.Shape{8, 3, 5, 5})
	assert.Equal(t, 75, fanIn)
	assert.Equal(t, 200, fanOut)
	fanIn, fanOut = Fans(tensor.Shape{4})
	assert.Equal(t, 1, fanIn)
	assert.Equal(t, 4, fanOut)

	bound := math.Sqrt(6.0 / 10.0)
	for _, v := range Xavier(tensor.Shape{4, 6}, newRNG()).Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}
	heBound := math.Sqrt(6.0 / 6.0)
	for _, v := range HeUniform(tensor.Shape{4, 6}, newRNG()).Data() {
		assert.LessOrEqual(t, math.Abs(v), heBound)
	}

	initializers := map[string]Initializer{
		"XavierNormal": XavierNormal,
		"HeNormal":     HeNormal,
		"LeCunUniform": LeCunUniform,
		"LeCunNormal":  LeCunNormal,
	}
	for name, initFn := range initializers {
		t.Run(name, func(t *testing.T) {
			a := initFn(tensor.Shape{3, 5}, newRNG())
			b := initFn(tensor.Shape{3, 5}, newRNG())
			assert.Equal(t, tensor.Shape{3, 5}, a.Shape())
			assert.Equal(t, a.Data(), b.Data(), "same seed must give same weights")
			assert.True(t, a.RequiresGrad())
		})
	}

	assert.Equal(t, []float64{0, 0}, Zeros(tensor.Shape{2}, nil).Data())
	assert.Equal(t, []float64{1, 1}, Ones(tensor.Shape{2}, nil).Data())
}
