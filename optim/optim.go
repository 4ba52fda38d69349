// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/grad/internal/nn"
	"github.com/born-ml/grad/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	model := nn.NewLinear(784, 10, rng)
//	optimizer := optim.NewSGD(
//	    model.Parameters(),
//	    optim.SGDConfig{
//	        LR:       0.01,
//	        Momentum: 0.9,
//	    },
//	)
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	optimizer := optim.NewAdam(
//	    model.Parameters(),
//	    optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	    },
//	)
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// NewAdamW creates Adam with decoupled weight decay.
func NewAdamW(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdamW(params, config)
}

// RMSProp

// RMSProp represents the RMSProp optimizer.
type RMSProp = optim.RMSProp

// RMSPropConfig contains configuration for RMSProp optimizer.
type RMSPropConfig = optim.RMSPropConfig

// NewRMSProp creates a new RMSProp optimizer.
func NewRMSProp(params []*nn.Parameter, config RMSPropConfig) *RMSProp {
	return optim.NewRMSProp(params, config)
}

// Learning rate schedules

// Scheduler adjusts an optimizer's learning rate once per epoch.
type Scheduler = optim.Scheduler

// LRSetter is the part of an optimizer a scheduler drives.
type LRSetter = optim.LRSetter

// NewConstantLR scales the learning rate by factor for the first totalIters epochs.
func NewConstantLR(optimizer LRSetter, factor float64, totalIters int) *Scheduler {
	return optim.NewConstantLR(optimizer, factor, totalIters)
}

// NewStepLR decays the learning rate by gamma every stepSize epochs.
func NewStepLR(optimizer LRSetter, stepSize int, gamma float64) *Scheduler {
	return optim.NewStepLR(optimizer, stepSize, gamma)
}

// NewMultiStepLR decays the learning rate by gamma at each milestone.
func NewMultiStepLR(optimizer LRSetter, milestones []int, gamma float64) *Scheduler {
	return optim.NewMultiStepLR(optimizer, milestones, gamma)
}

// NewExponentialLR decays the learning rate by gamma every epoch.
func NewExponentialLR(optimizer LRSetter, gamma float64) *Scheduler {
	return optim.NewExponentialLR(optimizer, gamma)
}

// NewLinearLR interpolates the learning rate factor from startFactor to endFactor.
func NewLinearLR(optimizer LRSetter, startFactor, endFactor float64, totalIters int) *Scheduler {
	return optim.NewLinearLR(optimizer, startFactor, endFactor, totalIters)
}

// NewCosineAnnealingLR anneals the learning rate to etaMin over tMax epochs.
func NewCosineAnnealingLR(optimizer LRSetter, tMax int, etaMin float64) *Scheduler {
	return optim.NewCosineAnnealingLR(optimizer, tMax, etaMin)
}

// NewPolynomialLR decays the learning rate polynomially to zero.
func NewPolynomialLR(optimizer LRSetter, totalIters int, power float64) *Scheduler {
	return optim.NewPolynomialLR(optimizer, totalIters, power)
}

// NewLambdaLR sets the learning rate to base * fn(epoch).
func NewLambdaLR(optimizer LRSetter, fn func(epoch int) float64) *Scheduler {
	return optim.NewLambdaLR(optimizer, fn)
}

// NewMultiplicativeLR multiplies the learning rate by fn(epoch) every epoch.
func NewMultiplicativeLR(optimizer LRSetter, fn func(epoch int) float64) *Scheduler {
	return optim.NewMultiplicativeLR(optimizer, fn)
}
