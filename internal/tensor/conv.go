package tensor

import (
	"github.com/born-ml/grad/internal/autodiff"
	"github.com/born-ml/grad/internal/parallel"
	"github.com/gomlx/exceptions"
)

// Conv computes an N-dimensional cross-correlation.
//
// Shapes, with n = spec.Rank() spatial axes:
//
//	input  [batch, C_in, spatial...]
//	weight [C_out, C_in, kernel...]
//	bias   [C_out] (may be nil)
//	output [batch, C_out, out...], out[i] = OutputSize(spatial[i], ...)
//
// Each output element is Σ(weight[o] ⊙ window) + bias[o], where window is the dilated
// receptive field sampled every dilation elements of the zero-padded input.
func Conv(input, weight, bias *Tensor, spec WindowSpec) *Tensor {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		exceptions.Panicf("tensor.Conv: %v", err)
	}
	n := spec.Rank()
	if input.Rank() != n+2 {
		exceptions.Panicf("tensor.Conv: input must be [batch, channels, %d spatial axes], got %s", n, input.shape)
	}
	inChannels := input.shape[1]
	if weight.Rank() != n+2 || weight.shape[1] != inChannels || !Shape(weight.shape[2:]).Equal(spec.Kernel) {
		exceptions.Panicf("tensor.Conv: weight shape %s does not match input %s and kernel %v",
			weight.shape, input.shape, spec.Kernel)
	}
	outChannels := weight.shape[0]
	if bias != nil && !bias.shape.Equal(Shape{outChannels}) {
		exceptions.Panicf("tensor.Conv: bias shape %s, expected [%d]", bias.shape, outChannels)
	}
	outSpatial := spec.OutputShape(input.shape[2:])

	filters := weight.Unstack()
	window := append(Shape{inChannels}, spec.Extent()...)
	stride := append([]int{1}, spec.Stride...)
	steps := append([]int{1}, spec.Dilation...)

	batch := input.shape[0]
	windows := make([]*Windows, batch)
	for b := range windows {
		windows[b] = input.Outer(b).Pad(spec.Padding).WindowsWithStride(window, stride)
	}
	positions := outSpatial.NumElements()
	values := make([][]*autodiff.Value, batch)
	for b := range values {
		values[b] = make([]*autodiff.Value, outChannels*positions)
	}

	parallel.RunBatch(batch, positions, func(b, i int) {
		field := windows[b].At(i).StepSlice(steps)
		for o, filter := range filters {
			out := field.Mul(filter).Sum()
			if bias != nil {
				out = out.Add(bias.values[o])
			}
			values[b][o*positions+i] = out
		}
	})

	samples := make([]*Tensor, batch)
	for b := range samples {
		samples[b] = newTensor(append(Shape{outChannels}, outSpatial...), values[b])
	}
	return Stack(samples...)
}

// MaxPool takes the maximum of each window over the trailing spec.Rank() axes; every
// leading axis (batch, channels) is pooled independently.
func MaxPool(input *Tensor, spec WindowSpec) *Tensor {
	return pool(input, spec, "MaxPool", (*Tensor).Max)
}

// AvgPool averages each window over the trailing spec.Rank() axes; every leading axis is
// pooled independently. Padding zeros count towards the average.
func AvgPool(input *Tensor, spec WindowSpec) *Tensor {
	return pool(input, spec, "AvgPool", (*Tensor).Mean)
}

func pool(input *Tensor, spec WindowSpec, name string, reduce func(*Tensor) *autodiff.Value) *Tensor {
	spec = spec.Normalize()
	if err := spec.Validate(); err != nil {
		exceptions.Panicf("tensor.%s: %v", name, err)
	}
	n := spec.Rank()
	if input.Rank() < n {
		exceptions.Panicf("tensor.%s: input %s has fewer than %d spatial axes", name, input.shape, n)
	}
	lead := input.Rank() - n
	outSpatial := spec.OutputShape(input.shape[lead:])

	window := append(repeat(1, lead), spec.Extent()...)
	stride := append(repeat(1, lead), spec.Stride...)
	steps := append(repeat(1, lead), spec.Dilation...)

	windows := input.Pad(spec.Padding).WindowsWithStride(window, stride)
	values := make([]*autodiff.Value, windows.Len())
	parallel.Run(len(values), func(i int) {
		values[i] = reduce(windows.At(i).StepSlice(steps))
	})
	shape := append(input.shape[:lead].Clone(), outSpatial...)
	return newTensor(shape, values)
}
