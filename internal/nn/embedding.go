package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim] learnable parameter
//   - Forward: indices [...] -> embeddings [..., EmbedDim]
//   - Backward: gradients accumulate into the looked-up weight rows
//
// Example:
//
//	embed := nn.NewEmbedding(100, 16, rng)
//	out := embed.Lookup(3, 7, 3) // [3, 16]; rows 0 and 2 share nodes
type Embedding struct {
	Weight   *Parameter // Embedding weight matrix [NumEmbed, EmbedDim]
	NumEmbed int        // Number of embeddings
	EmbedDim int        // Embedding dimension (vector size)
}

// NewEmbedding creates a new Embedding layer with weights drawn from N(0, 1).
func NewEmbedding(numEmbeddings, embeddingDim int, rng *rand.Rand) *Embedding {
	return NewEmbeddingWithWeight(tensor.Randn(tensor.Shape{numEmbeddings, embeddingDim}, rngOrDefault(rng)))
}

// NewEmbeddingWithWeight creates an Embedding layer with pre-initialized weights.
func NewEmbeddingWithWeight(weight *tensor.Tensor) *Embedding {
	shape := weight.Shape()
	if len(shape) != 2 {
		exceptions.Panicf("nn.NewEmbeddingWithWeight: weight must be 2D, got shape %s", shape)
	}
	return &Embedding{
		Weight:   NewParameter("weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Lookup returns the rows for indices as a [len(indices), EmbedDim] tensor.
//
// Panics if any index is out of bounds [0, NumEmbed).
func (e *Embedding) Lookup(indices ...int) *tensor.Tensor {
	if len(indices) == 0 {
		exceptions.Panicf("Embedding.Lookup: no indices")
	}
	rows := make([]*tensor.Tensor, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= e.NumEmbed {
			exceptions.Panicf("Embedding.Lookup: index %d out of bounds [0, %d)", idx, e.NumEmbed)
		}
		rows[i] = e.Weight.Tensor().Outer(idx)
	}
	return tensor.Stack(rows...)
}

// Forward treats every element of input as an integer index.
//
// Panics if an element is not a whole number.
func (e *Embedding) Forward(input *tensor.Tensor) *tensor.Tensor {
	data := input.Data()
	indices := make([]int, len(data))
	for i, x := range data {
		if x != math.Trunc(x) {
			exceptions.Panicf("Embedding.Forward: index %g is not an integer", x)
		}
		indices[i] = int(x)
	}
	shape := append(input.Shape().Clone(), e.EmbedDim)
	return e.Lookup(indices...).Reshape(shape)
}

// Parameters returns the list of trainable parameters.
func (e *Embedding) Parameters() []*Parameter {
	return []*Parameter{e.Weight}
}

// StateDict returns "weight".
func (e *Embedding) StateDict() serialization.StateDict {
	return paramStateDict(e.Weight)
}

// LoadStateDict loads parameters from a state dictionary.
func (e *Embedding) LoadStateDict(stateDict serialization.StateDict) error {
	return loadParams(stateDict, e.Weight)
}
