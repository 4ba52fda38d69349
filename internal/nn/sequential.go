package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/grad/internal/serialization"
	"github.com/born-ml/grad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, rng),
//	    nn.NewReLU(),
//	    nn.NewLinear(128, 10, rng),
//	)
//
//	output := model.Forward(input)
type Sequential struct {
	modules []Module
}

// NewSequential creates a new Sequential container.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all trainable parameters from all modules, in module order.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Add appends a module to the sequence.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential) Module(index int) Module {
	if index < 0 || index >= len(s.modules) {
		exceptions.Panicf("Sequential.Module: index %d out of bounds [0, %d)", index, len(s.modules))
	}
	return s.modules[index]
}

// StateDict returns all parameters prefixed with their module index
// (e.g., "0.weight", "0.bias", "2.weight").
func (s *Sequential) StateDict() serialization.StateDict {
	stateDict := make(serialization.StateDict)
	for i, module := range s.modules {
		for name, t := range module.StateDict() {
			stateDict[fmt.Sprintf("%d.%s", i, name)] = t
		}
	}
	return stateDict
}

// LoadStateDict loads parameters from a state dictionary keyed like StateDict.
// If any module fails to load, modules loaded before it are restored.
func (s *Sequential) LoadStateDict(stateDict serialization.StateDict) error {
	snapshots := make([]serialization.StateDict, 0, len(s.modules))
	for i, module := range s.modules {
		prefix := fmt.Sprintf("%d.", i)
		moduleStateDict := make(serialization.StateDict)
		for key, t := range stateDict {
			if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
				moduleStateDict[name] = t
			}
		}
		snapshot := module.StateDict()
		if len(moduleStateDict) == 0 && len(snapshot) == 0 {
			snapshots = append(snapshots, snapshot)
			continue
		}
		if err := module.LoadStateDict(moduleStateDict); err != nil {
			err = errors.Wrapf(err, "failed to load module %d", i)
			for j, previous := range snapshots {
				if len(previous) == 0 {
					continue
				}
				if restoreErr := s.modules[j].LoadStateDict(previous); restoreErr != nil {
					return errors.Wrapf(err, "restoring module %d also failed: %v", j, restoreErr)
				}
			}
			return err
		}
		snapshots = append(snapshots, snapshot)
	}
	return nil
}

// SetTraining switches every contained module between training and evaluation mode.
func (s *Sequential) SetTraining(training bool) {
	for _, module := range s.modules {
		SetTraining(module, training)
	}
}
