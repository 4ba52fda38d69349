// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, Conv (1D/2D/3D), MaxPool, AvgPool, Embedding
//   - Normalization: LayerNorm, RMSNorm, BatchNorm (SetTraining switches to running statistics)
//   - Activations: ReLU, Sigmoid, Tanh, Softmax, LogSoftmax, Flatten
//   - Loss functions: MSELoss, CrossEntropyLoss
//   - Utilities: Sequential, Module interface, Parameter
//   - Initialization: Xavier, He, LeCun, Zeros, Ones
//   - Persistence: Save, Load and training checkpoints in the .grad format
//
// # Basic Usage
//
//	rng := rand.New(rand.NewSource(42))
//	model := nn.NewSequential(
//	    nn.NewLinear(2, 8, rng),
//	    nn.NewTanh(),
//	    nn.NewLinear(8, 1, rng),
//	)
//	criterion := nn.NewMSELoss(nn.ReductionMean)
//	loss := criterion.Forward(model.Forward(x), y)
//	loss.Backward()
//
// # Saving
//
//	err := nn.Save("model.grad", model, map[string]string{"task": "xor"})
//	header, err := nn.Load("model.grad", model)
package nn
