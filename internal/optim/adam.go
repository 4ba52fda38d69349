package optim

import (
	"math"

	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/serialization"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// With AMSGrad, v_hat uses the running maximum of v_t. With DecoupledWeightDecay
// (AdamW) the weight decay shrinks the parameter directly instead of being added to
// the gradient.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	})
type Adam struct {
	params []*nn.Parameter
	config AdamConfig
	t      int                         // Timestep for bias correction
	m      map[*nn.Parameter][]float64 // First moment estimates
	v      map[*nn.Parameter][]float64 // Second moment estimates
	vMax   map[*nn.Parameter][]float64 // Running max of v (AMSGrad)
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR                   float64    // Learning rate (default: 0.001)
	Betas                [2]float64 // Coefficients for computing running averages (default when both are zero: [0.9, 0.999])
	Eps                  float64    // Term for numerical stability (default when zero: 1e-8)
	WeightDecay          float64    // Weight decay (default: 0)
	DecoupledWeightDecay bool       // Apply weight decay AdamW-style
	AMSGrad              bool       // Use the AMSGrad variant
	Maximize             bool       // Maximize the objective instead of minimizing
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Betas: [0.9, 0.999], used only when both betas are zero, so Betas: {0, 0.999}
//     configures beta1 = 0 (no first-moment averaging)
//   - Eps: 1e-8
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas == [2]float64{} {
		config.Betas = [2]float64{0.9, 0.999}
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	checkNonNegative("optim.NewAdam", map[string]float64{
		"learning rate": config.LR,
		"epsilon":       config.Eps,
		"weight decay":  config.WeightDecay,
	})
	for i, beta := range config.Betas {
		if beta < 0 || beta >= 1 {
			exceptions.Panicf("optim.NewAdam: invalid beta%d %g, must be in [0, 1)", i+1, beta)
		}
	}

	return &Adam{
		params: params,
		config: config,
		m:      make(map[*nn.Parameter][]float64),
		v:      make(map[*nn.Parameter][]float64),
		vMax:   make(map[*nn.Parameter][]float64),
	}
}

// NewAdamW creates Adam with decoupled weight decay (default 0.01).
func NewAdamW(params []*nn.Parameter, config AdamConfig) *Adam {
	config.DecoupledWeightDecay = true
	if config.WeightDecay == 0 {
		config.WeightDecay = 0.01
	}
	return NewAdam(params, config)
}

// Step performs a single optimization step using Adam algorithm.
//
// Parameters with no gradient are skipped.
func (a *Adam) Step() {
	a.t++
	c := a.config
	beta1, beta2 := c.Betas[0], c.Betas[1]
	biasCorrection1 := 1.0 - math.Pow(beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(beta2, float64(a.t))

	coupledDecay := c.WeightDecay
	if c.DecoupledWeightDecay {
		coupledDecay = 0
	}

	for _, param := range a.params {
		grad := gradient(param, coupledDecay, c.Maximize)
		if grad == nil {
			continue
		}
		m := buffer(a.m, param)
		v := buffer(a.v, param)
		data := param.Data()

		for i, g := range grad {
			if c.DecoupledWeightDecay {
				data[i] *= 1 - c.LR*c.WeightDecay
			}
			m[i] = beta1*m[i] + (1-beta1)*g
			v[i] = beta2*v[i] + (1-beta2)*g*g

			second := v[i]
			if c.AMSGrad {
				vMax := buffer(a.vMax, param)
				vMax[i] = math.Max(vMax[i], v[i])
				second = vMax[i]
			}
			mHat := m[i] / biasCorrection1
			vHat := second / biasCorrection2
			data[i] -= c.LR * mHat / (math.Sqrt(vHat) + c.Eps)
		}
		param.SetData(data)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// Name returns "Adam" or "AdamW".
func (a *Adam) Name() string {
	if a.config.DecoupledWeightDecay {
		return "AdamW"
	}
	return "Adam"
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.config.LR
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.config.LR = lr
}

// GetTimestep returns the current timestep.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Config returns the hyperparameters for checkpoint headers.
func (a *Adam) Config() map[string]any {
	return map[string]any{
		"beta1":        a.config.Betas[0],
		"beta2":        a.config.Betas[1],
		"eps":          a.config.Eps,
		"weight_decay": a.config.WeightDecay,
		"amsgrad":      a.config.AMSGrad,
	}
}

// StateDict returns the timestep and moment buffers.
//
// State keys: "step", "m.{i}", "v.{i}" and, with AMSGrad, "v_max.{i}".
func (a *Adam) StateDict() serialization.StateDict {
	stateDict := serialization.StateDict{
		"step": {Shape: []int{}, Data: []float64{float64(a.t)}},
	}
	saveBuffers(stateDict, "m", a.params, a.m)
	saveBuffers(stateDict, "v", a.params, a.v)
	saveBuffers(stateDict, "v_max", a.params, a.vMax)
	return stateDict
}

// LoadStateDict restores the timestep and moment buffers.
func (a *Adam) LoadStateDict(stateDict serialization.StateDict) error {
	step, ok := stateDict["step"]
	if !ok || len(step.Data) != 1 {
		return errors.New("adam state dict: missing step")
	}
	m, err := loadBuffers(stateDict, "m", a.params)
	if err != nil {
		return err
	}
	v, err := loadBuffers(stateDict, "v", a.params)
	if err != nil {
		return err
	}
	vMax, err := loadBuffers(stateDict, "v_max", a.params)
	if err != nil {
		return err
	}
	a.t = int(step.Data[0])
	a.m, a.v, a.vMax = m, v, vMax
	return nil
}
