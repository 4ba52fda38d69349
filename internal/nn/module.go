// Package nn implements neural network modules on top of the tensor package.
//
// This package provides building blocks for constructing neural networks:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable tensor of autodiff leaves
//   - Linear, Conv, MaxPool, AvgPool, LayerNorm, RMSNorm, BatchNorm, Embedding
//   - Activations: ReLU, Sigmoid, Tanh, Softmax, LogSoftmax, Flatten
//   - Loss functions: MSE, CrossEntropy
//   - Sequential: Container for stacking layers
//   - Save, Load and Checkpoint for .grad files
//
// Gradients live on the parameter nodes themselves: call Backward on the loss and read
// Parameter.Grad.
package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/pkg/errors"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	//
	// Returns an empty slice for modules without trainable parameters
	// (e.g., activation functions).
	Parameters() []*Parameter

	// StateDict returns the parameter values keyed by name.
	StateDict() serialization.StateDict

	// LoadStateDict overwrites parameter values in place.
	LoadStateDict(stateDict serialization.StateDict) error
}

// NumParameters returns the total number of scalar parameters of m.
func NumParameters(m Module) int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.NumElements()
	}
	return n
}

// ZeroGrad clears the gradients of every parameter of m.
func ZeroGrad(m Module) {
	for _, p := range m.Parameters() {
		p.ZeroGrad()
	}
}

// stateless provides the Module bookkeeping for modules without parameters.
type stateless struct{}

// Parameters returns nil.
func (stateless) Parameters() []*Parameter { return nil }

// StateDict returns an empty state dictionary.
func (stateless) StateDict() serialization.StateDict { return serialization.StateDict{} }

// LoadStateDict accepts only an empty state dictionary.
func (stateless) LoadStateDict(stateDict serialization.StateDict) error {
	if len(stateDict) > 0 {
		return errors.Errorf("module has no parameters, got %d entries", len(stateDict))
	}
	return nil
}

// paramStateDict collects params into a state dictionary keyed by parameter name.
func paramStateDict(params ...*Parameter) serialization.StateDict {
	stateDict := make(serialization.StateDict, len(params))
	for _, p := range params {
		if p == nil {
			continue
		}
		stateDict[p.Name()] = serialization.Tensor{
			Shape: p.Shape(),
			Data:  p.Data(),
		}
	}
	return stateDict
}

// loadParams copies state dictionary entries into params, checking shapes.
// Every entry is checked before any parameter is written.
func loadParams(stateDict serialization.StateDict, params ...*Parameter) error {
	entries := make([]serialization.Tensor, len(params))
	for i, p := range params {
		if p == nil {
			continue
		}
		entry, ok := stateDict[p.Name()]
		if !ok {
			return errors.Errorf("missing %s in state dict", p.Name())
		}
		if !tensor.Shape(entry.Shape).Equal(p.Shape()) {
			return errors.Errorf("%s shape mismatch: expected %v, got %v", p.Name(), p.Shape(), entry.Shape)
		}
		if len(entry.Data) != p.NumElements() {
			return errors.Errorf("%s has %d values, expected %d", p.Name(), len(entry.Data), p.NumElements())
		}
		entries[i] = entry
	}
	for i, p := range params {
		if p != nil {
			p.SetData(entries[i].Data)
		}
	}
	return nil
}

// moduleType names m for file headers, e.g. "Sequential".
func moduleType(m Module) string {
	name := fmt.Sprintf("%T", m)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
