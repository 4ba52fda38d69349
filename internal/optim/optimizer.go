// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum, dampening and Nesterov
//   - Adam / AdamW: Adaptive Moment Estimation, optionally AMSGrad
//   - RMSProp: running average of squared gradients, optionally centered
//   - Schedulers: closed-form learning rate schedules
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 0.001,
//	})
//
//	for epoch := range epochs {
//	    optimizer.ZeroGrad()
//	    loss := criterion.Forward(model.Forward(input), targets)
//	    loss.Backward()
//	    optimizer.Step()
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/serialization"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers read the gradients accumulated on the parameter nodes by Backward
// and write updated values back through Parameter.SetData.
type Optimizer interface {
	nn.OptimizerState

	// Step applies gradient updates to all parameters.
	//
	// Parameters without a gradient (not part of the last backward pass) are skipped.
	Step()

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// SetLR updates the learning rate.
	SetLR(lr float64)
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// gradient returns the gradient of param, negated when maximizing, plus weight decay.
//
// Returns nil if the parameter received no gradient.
func gradient(param *nn.Parameter, weightDecay float64, maximize bool) []float64 {
	grad := param.Grad()
	if grad == nil {
		klog.V(2).Infof("optim: parameter %q has no gradient, skipping", param.Name())
		return nil
	}
	if !maximize && weightDecay == 0 {
		return grad
	}
	data := param.Data()
	for i := range grad {
		if maximize {
			grad[i] = -grad[i]
		}
		grad[i] += weightDecay * data[i]
	}
	return grad
}

// buffer returns the buffer of param in buffers, creating a zero one if needed.
func buffer(buffers map[*nn.Parameter][]float64, param *nn.Parameter) []float64 {
	buf, ok := buffers[param]
	if !ok {
		buf = make([]float64, param.NumElements())
		buffers[param] = buf
	}
	return buf
}

// saveBuffers exports buffers as "<prefix>.<param index>" entries.
func saveBuffers(stateDict serialization.StateDict, prefix string, params []*nn.Parameter, buffers map[*nn.Parameter][]float64) {
	for i, param := range params {
		buf, ok := buffers[param]
		if !ok {
			continue
		}
		stateDict[fmt.Sprintf("%s.%d", prefix, i)] = serialization.Tensor{
			Shape: param.Shape(),
			Data:  append([]float64(nil), buf...),
		}
	}
}

// loadBuffers restores buffers saved by saveBuffers, validating shapes.
// Parameters without an entry start from zero on their next step.
func loadBuffers(stateDict serialization.StateDict, prefix string, params []*nn.Parameter) (map[*nn.Parameter][]float64, error) {
	buffers := make(map[*nn.Parameter][]float64)
	for i, param := range params {
		key := fmt.Sprintf("%s.%d", prefix, i)
		entry, ok := stateDict[key]
		if !ok {
			continue
		}
		if !param.Shape().Equal(entry.Shape) || len(entry.Data) != param.NumElements() {
			return nil, errors.Errorf("%s shape mismatch for parameter %d: expected %v, got %v",
				prefix, i, param.Shape(), entry.Shape)
		}
		buffers[param] = append([]float64(nil), entry.Data...)
	}
	return buffers, nil
}

// zeroGrad clears gradients for all params.
func zeroGrad(params []*nn.Parameter) {
	for _, param := range params {
		param.ZeroGrad()
	}
}

func checkNonNegative(where string, values map[string]float64) {
	for name, v := range values {
		if v < 0 {
			exceptions.Panicf("%s: invalid %s %g", where, name, v)
		}
	}
}
