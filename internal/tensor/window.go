package tensor

import (
	"fmt"
	"iter"

	"github.com/gomlx/exceptions"
)

// WindowSpec describes sliding-window geometry over the spatial axes of a tensor.
//
// All slices have one entry per spatial axis. Nil Stride and Dilation default to 1 and
// nil Padding to 0 (see Normalize).
type WindowSpec struct {
	Kernel   []int
	Stride   []int
	Padding  []int
	Dilation []int
}

// NewWindowSpec creates a spec with the same kernel, stride, padding and dilation on
// each of rank spatial axes.
func NewWindowSpec(rank, kernel, stride, padding, dilation int) WindowSpec {
	return WindowSpec{
		Kernel:   repeat(kernel, rank),
		Stride:   repeat(stride, rank),
		Padding:  repeat(padding, rank),
		Dilation: repeat(dilation, rank),
	}
}

func repeat(x, n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = x
	}
	return s
}

// Rank returns the number of spatial axes.
func (s WindowSpec) Rank() int {
	return len(s.Kernel)
}

// Normalize returns a copy with nil Stride/Dilation set to 1 and nil Padding set to 0.
func (s WindowSpec) Normalize() WindowSpec {
	n := len(s.Kernel)
	out := WindowSpec{Kernel: append([]int(nil), s.Kernel...)}
	out.Stride = defaulted(s.Stride, n, 1)
	out.Padding = defaulted(s.Padding, n, 0)
	out.Dilation = defaulted(s.Dilation, n, 1)
	return out
}

func defaulted(values []int, n, def int) []int {
	if values == nil {
		return repeat(def, n)
	}
	return append([]int(nil), values...)
}

// Validate checks that every field has one entry per spatial axis and sane values.
func (s WindowSpec) Validate() error {
	n := len(s.Kernel)
	if n == 0 {
		return fmt.Errorf("window spec: empty kernel")
	}
	if len(s.Stride) != n || len(s.Padding) != n || len(s.Dilation) != n {
		return fmt.Errorf("window spec: kernel has %d axes but stride/padding/dilation have %d/%d/%d",
			n, len(s.Stride), len(s.Padding), len(s.Dilation))
	}
	for i := range n {
		switch {
		case s.Kernel[i] <= 0:
			return fmt.Errorf("window spec: kernel[%d] = %d must be positive", i, s.Kernel[i])
		case s.Stride[i] <= 0:
			return fmt.Errorf("window spec: stride[%d] = %d must be positive", i, s.Stride[i])
		case s.Dilation[i] <= 0:
			return fmt.Errorf("window spec: dilation[%d] = %d must be positive", i, s.Dilation[i])
		case s.Padding[i] < 0:
			return fmt.Errorf("window spec: padding[%d] = %d must not be negative", i, s.Padding[i])
		}
	}
	return nil
}

// Extent returns the dilated kernel footprint d*(k-1)+1 on each axis.
func (s WindowSpec) Extent() []int {
	extent := make([]int, len(s.Kernel))
	for i, k := range s.Kernel {
		extent[i] = s.Dilation[i]*(k-1) + 1
	}
	return extent
}

// OutputSize returns the number of window positions along one axis:
//
//	floor((input + 2*padding - dilation*(kernel-1) - 1) / stride) + 1
//
// Panics if the dilated kernel does not fit into the padded input.
func OutputSize(input, kernel, stride, padding, dilation int) int {
	span := input + 2*padding - dilation*(kernel-1) - 1
	if span < 0 {
		exceptions.Panicf("tensor.OutputSize: kernel %d (dilation %d) does not fit input %d with padding %d",
			kernel, dilation, input, padding)
	}
	return span/stride + 1
}

// OutputShape returns the output extent of each spatial axis for the given input extents.
func (s WindowSpec) OutputShape(spatial Shape) Shape {
	if len(spatial) != len(s.Kernel) {
		exceptions.Panicf("tensor.WindowSpec: %d spatial axes but kernel has %d", len(spatial), len(s.Kernel))
	}
	out := make(Shape, len(spatial))
	for i, in := range spatial {
		out[i] = OutputSize(in, s.Kernel[i], s.Stride[i], s.Padding[i], s.Dilation[i])
	}
	return out
}

// Windows is a lazy sequence of equally shaped views over a tensor, one per window
// position, in row-major order of the positions.
//
// Views share nodes with the source tensor. Iterating again restarts from the first window.
type Windows struct {
	source *Tensor
	window Shape
	stride []int
	counts Shape
}

// WindowsWithStride places a window of the given shape at every position reachable with
// stride along each axis, independently. Every window lies fully inside the tensor.
//
// Example:
//
//	x := tensor.Arange(0, 5)
//	for _, w := range x.WindowsWithStride(Shape{3}, []int{2}).All() {
//		fmt.Println(w.Data()) // [0 1 2], then [2 3 4]
//	}
func (t *Tensor) WindowsWithStride(window Shape, stride []int) *Windows {
	if len(window) != len(t.shape) || len(stride) != len(t.shape) {
		exceptions.Panicf("tensor.WindowsWithStride: window %s / stride %v do not match shape %s", window, stride, t.shape)
	}
	counts := make(Shape, len(t.shape))
	for axis, dim := range t.shape {
		w, s := window[axis], stride[axis]
		if w <= 0 || s <= 0 {
			exceptions.Panicf("tensor.WindowsWithStride: window %d and stride %d on axis %d must be positive", w, s, axis)
		}
		if w > dim {
			exceptions.Panicf("tensor.WindowsWithStride: window %d exceeds dimension %d on axis %d", w, dim, axis)
		}
		counts[axis] = (dim-w)/s + 1
	}
	return &Windows{
		source: t,
		window: window.Clone(),
		stride: append([]int(nil), stride...),
		counts: counts,
	}
}

// Len returns the number of windows.
func (w *Windows) Len() int {
	return w.counts.NumElements()
}

// Counts returns the number of window positions along each axis.
func (w *Windows) Counts() Shape {
	return w.counts.Clone()
}

// At returns the i-th window.
func (w *Windows) At(i int) *Tensor {
	if i < 0 || i >= w.Len() {
		exceptions.Panicf("tensor.Windows.At: index %d out of range [0, %d)", i, w.Len())
	}
	position := make([]int, len(w.counts))
	w.counts.Unflatten(i, position)
	for axis := range position {
		position[axis] *= w.stride[axis]
	}
	return w.source.Slice(position, w.window)
}

// All iterates over the windows with their index.
func (w *Windows) All() iter.Seq2[int, *Tensor] {
	return func(yield func(int, *Tensor) bool) {
		for i := range w.Len() {
			if !yield(i, w.At(i)) {
				return
			}
		}
	}
}
