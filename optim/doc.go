// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum, dampening and Nesterov
//   - Adam / AdamW: Adaptive Moment Estimation, optionally AMSGrad
//   - RMSProp: running average of squared gradients, optionally centered
//   - Schedulers: StepLR, MultiStepLR, ExponentialLR, CosineAnnealingLR and more
//   - Optimizer interface for custom optimizers
//
// # Basic Usage
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.01})
//	scheduler := optim.NewCosineAnnealingLR(optimizer, epochs, 0)
//
//	for range epochs {
//	    optimizer.ZeroGrad()
//	    loss := criterion.Forward(model.Forward(x), y)
//	    loss.Backward()
//	    optimizer.Step()
//	    scheduler.Step()
//	}
package optim
