package nn

import (
	"math"
	"math/rand"
	"time"

	"github.com/born-ml/grad/internal/tensor"
)

// Initializer creates a tensor of leaves for a weight of the given shape.
type Initializer func(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor

// Fans returns fan-in and fan-out of a weight shaped [out, in, kernel...].
//
// A 1D shape counts as [out] with fan-in 1.
func Fans(shape tensor.Shape) (fanIn, fanOut int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return 1, shape[0]
	}
	receptive := 1
	for _, k := range shape[2:] {
		receptive *= k
	}
	return shape[1] * receptive, shape[0] * receptive
}

// Xavier (Glorot) uniform initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	fanIn, fanOut := Fans(shape)
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Rand(shape, -bound, bound, rngOrDefault(rng))
}

// XavierNormal draws from N(0, 2/(fan_in + fan_out)).
func XavierNormal(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	fanIn, fanOut := Fans(shape)
	return scaledNormal(shape, math.Sqrt(2.0/float64(fanIn+fanOut)), rng)
}

// HeUniform draws from U(-sqrt(6/fan_in), sqrt(6/fan_in)), suited to ReLU networks.
func HeUniform(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	fanIn, _ := Fans(shape)
	bound := math.Sqrt(6.0 / float64(fanIn))
	return tensor.Rand(shape, -bound, bound, rngOrDefault(rng))
}

// HeNormal draws from N(0, 2/fan_in).
func HeNormal(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	fanIn, _ := Fans(shape)
	return scaledNormal(shape, math.Sqrt(2.0/float64(fanIn)), rng)
}

// LeCunUniform draws from U(-sqrt(3/fan_in), sqrt(3/fan_in)).
func LeCunUniform(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	fanIn, _ := Fans(shape)
	bound := math.Sqrt(3.0 / float64(fanIn))
	return tensor.Rand(shape, -bound, bound, rngOrDefault(rng))
}

// LeCunNormal draws from N(0, 1/fan_in).
func LeCunNormal(shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	fanIn, _ := Fans(shape)
	return scaledNormal(shape, math.Sqrt(1.0/float64(fanIn)), rng)
}

// Zeros creates a tensor of leaves filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape, _ *rand.Rand) *tensor.Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a tensor of leaves filled with ones.
func Ones(shape tensor.Shape, _ *rand.Rand) *tensor.Tensor {
	return tensor.Ones(shape)
}

func scaledNormal(shape tensor.Shape, std float64, rng *rand.Rand) *tensor.Tensor {
	rng = rngOrDefault(rng)
	return tensor.FromFunc(shape, func(int) float64 { return std * rng.NormFloat64() })
}

// rngOrDefault returns rng, or a time-seeded generator when rng is nil.
func rngOrDefault(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	//nolint:gosec // Using math/rand for weight initialization (not security-critical)
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
