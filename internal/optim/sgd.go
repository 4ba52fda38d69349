package optim

import (
	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/serialization"
	"github.com/gomlx/exceptions"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + (1 - dampening) * gradient
//	param = param - lr * velocity
//
// With Nesterov momentum the step uses gradient + momentum * velocity instead.
// The first step initializes velocity to the gradient itself.
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	params     []*nn.Parameter
	config     SGDConfig
	velocities map[*nn.Parameter][]float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0.0, range: [0, 1))
	Dampening   float64 // Dampening for momentum (default: 0.0)
	WeightDecay float64 // L2 penalty (default: 0.0)
	Nesterov    bool    // Use Nesterov momentum (requires Momentum > 0 and Dampening == 0)
	Maximize    bool    // Maximize the objective instead of minimizing
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	checkNonNegative("optim.NewSGD", map[string]float64{
		"learning rate": config.LR,
		"momentum":      config.Momentum,
		"dampening":     config.Dampening,
		"weight decay":  config.WeightDecay,
	})
	if config.Nesterov && (config.Momentum == 0 || config.Dampening != 0) {
		exceptions.Panicf("optim.NewSGD: Nesterov momentum requires a momentum and zero dampening")
	}

	return &SGD{
		params:     params,
		config:     config,
		velocities: make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	c := s.config
	for _, param := range s.params {
		grad := gradient(param, c.WeightDecay, c.Maximize)
		if grad == nil {
			continue
		}

		if c.Momentum != 0 {
			velocity, exists := s.velocities[param]
			if !exists {
				velocity = append([]float64(nil), grad...)
				s.velocities[param] = velocity
			} else {
				for i, g := range grad {
					velocity[i] = c.Momentum*velocity[i] + (1-c.Dampening)*g
				}
			}
			for i := range grad {
				if c.Nesterov {
					grad[i] += c.Momentum * velocity[i]
				} else {
					grad[i] = velocity[i]
				}
			}
		}

		data := param.Data()
		for i, g := range grad {
			data[i] -= c.LR * g
		}
		param.SetData(data)
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// Name returns "SGD".
func (s *SGD) Name() string {
	return "SGD"
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.config.LR
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float64) {
	s.config.LR = lr
}

// Config returns the hyperparameters for checkpoint headers.
func (s *SGD) Config() map[string]any {
	return map[string]any{
		"momentum":     s.config.Momentum,
		"dampening":    s.config.Dampening,
		"weight_decay": s.config.WeightDecay,
		"nesterov":     s.config.Nesterov,
		"maximize":     s.config.Maximize,
	}
}

// StateDict returns the optimizer state for serialization.
//
// State keys: "velocity.{param_index}" -> velocity buffer.
func (s *SGD) StateDict() serialization.StateDict {
	stateDict := make(serialization.StateDict)
	saveBuffers(stateDict, "velocity", s.params, s.velocities)
	return stateDict
}

// LoadStateDict restores velocity buffers.
//
// Returns an error if velocity shapes don't match parameter shapes.
func (s *SGD) LoadStateDict(stateDict serialization.StateDict) error {
	velocities, err := loadBuffers(stateDict, "velocity", s.params)
	if err != nil {
		return err
	}
	s.velocities = velocities
	return nil
}
