package optim

import (
	"math"

	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/serialization"
	"github.com/gomlx/exceptions"
)

// RMSProp divides the gradient by a running root mean square of recent gradients.
//
// Update rule:
//
//	square_avg = alpha * square_avg + (1-alpha) * gradient²
//	avg = sqrt(square_avg) + eps                     // centered: sqrt(square_avg - grad_avg²) + eps
//	param = param - lr * gradient / avg              // with momentum: buf = momentum*buf + gradient/avg
type RMSProp struct {
	params    []*nn.Parameter
	config    RMSPropConfig
	squareAvg map[*nn.Parameter][]float64
	gradAvg   map[*nn.Parameter][]float64
	momentum  map[*nn.Parameter][]float64
}

// RMSPropConfig holds configuration for RMSProp optimizer.
type RMSPropConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Alpha       float64 // Smoothing constant (default: 0.99)
	Eps         float64 // Term for numerical stability (default: 1e-8)
	Momentum    float64 // Momentum factor (default: 0)
	Centered    bool    // Normalize by the estimated variance of the gradient
	WeightDecay float64 // L2 penalty (default: 0)
	Maximize    bool    // Maximize the objective instead of minimizing
}

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp(params []*nn.Parameter, config RMSPropConfig) *RMSProp {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Alpha == 0 {
		config.Alpha = 0.99
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	checkNonNegative("optim.NewRMSProp", map[string]float64{
		"learning rate": config.LR,
		"epsilon":       config.Eps,
		"momentum":      config.Momentum,
		"weight decay":  config.WeightDecay,
	})
	if config.Alpha < 0 || config.Alpha >= 1 {
		exceptions.Panicf("optim.NewRMSProp: invalid alpha %g, must be in [0, 1)", config.Alpha)
	}

	return &RMSProp{
		params:    params,
		config:    config,
		squareAvg: make(map[*nn.Parameter][]float64),
		gradAvg:   make(map[*nn.Parameter][]float64),
		momentum:  make(map[*nn.Parameter][]float64),
	}
}

// Step performs a single optimization step.
func (r *RMSProp) Step() {
	c := r.config
	for _, param := range r.params {
		grad := gradient(param, c.WeightDecay, c.Maximize)
		if grad == nil {
			continue
		}
		squareAvg := buffer(r.squareAvg, param)
		data := param.Data()

		for i, g := range grad {
			squareAvg[i] = c.Alpha*squareAvg[i] + (1-c.Alpha)*g*g
			variance := squareAvg[i]
			if c.Centered {
				gradAvg := buffer(r.gradAvg, param)
				gradAvg[i] = c.Alpha*gradAvg[i] + (1-c.Alpha)*g
				variance -= gradAvg[i] * gradAvg[i]
			}
			avg := math.Sqrt(variance) + c.Eps

			if c.Momentum > 0 {
				buf := buffer(r.momentum, param)
				buf[i] = c.Momentum*buf[i] + g/avg
				data[i] -= c.LR * buf[i]
			} else {
				data[i] -= c.LR * g / avg
			}
		}
		param.SetData(data)
	}
}

// ZeroGrad clears gradients for all parameters.
func (r *RMSProp) ZeroGrad() {
	zeroGrad(r.params)
}

// Name returns "RMSProp".
func (r *RMSProp) Name() string {
	return "RMSProp"
}

// GetLR returns the current learning rate.
func (r *RMSProp) GetLR() float64 {
	return r.config.LR
}

// SetLR updates the learning rate.
func (r *RMSProp) SetLR(lr float64) {
	r.config.LR = lr
}

// Config returns the hyperparameters for checkpoint headers.
func (r *RMSProp) Config() map[string]any {
	return map[string]any{
		"alpha":        r.config.Alpha,
		"eps":          r.config.Eps,
		"momentum":     r.config.Momentum,
		"centered":     r.config.Centered,
		"weight_decay": r.config.WeightDecay,
	}
}

// StateDict returns "square_avg.{i}", "grad_avg.{i}" and "momentum.{i}" buffers.
func (r *RMSProp) StateDict() serialization.StateDict {
	stateDict := make(serialization.StateDict)
	saveBuffers(stateDict, "square_avg", r.params, r.squareAvg)
	saveBuffers(stateDict, "grad_avg", r.params, r.gradAvg)
	saveBuffers(stateDict, "momentum", r.params, r.momentum)
	return stateDict
}

// LoadStateDict restores the running averages.
func (r *RMSProp) LoadStateDict(stateDict serialization.StateDict) error {
	squareAvg, err := loadBuffers(stateDict, "square_avg", r.params)
	if err != nil {
		return err
	}
	gradAvg, err := loadBuffers(stateDict, "grad_avg", r.params)
	if err != nil {
		return err
	}
	momentum, err := loadBuffers(stateDict, "momentum", r.params)
	if err != nil {
		return err
	}
	r.squareAvg, r.gradAvg, r.momentum = squareAvg, gradAvg, momentum
	return nil
}
