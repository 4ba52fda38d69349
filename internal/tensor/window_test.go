package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/grad/internal/autodiff"
	"github.com/born-ml/grad/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSize(t *testing.T) {
	tests := []struct {
		name                                      string
		input, kernel, stride, padding, dilation int
		want                                      int
	}{
		{"strided padded", 13, 3, 2, 2, 1, 8},
		{"valid", 5, 3, 1, 0, 1, 3},
		{"same", 5, 3, 1, 1, 1, 5},
		{"dilated", 7, 3, 1, 0, 2, 3},
		{"truncating", 6, 3, 2, 0, 1, 2},
		{"kernel equals input", 4, 4, 3, 0, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputSize(tt.input, tt.kernel, tt.stride, tt.padding, tt.dilation))
		})
	}
	assert.Panics(t, func() { OutputSize(2, 3, 1, 0, 1) })
	assert.Panics(t, func() { OutputSize(5, 3, 1, 0, 3) })
}

func TestWindowSpec(t *testing.T) {
	spec := WindowSpec{Kernel: []int{3, 2}}.Normalize()
	require.NoError(t, spec.Validate())
	assert.Equal(t, []int{1, 1}, spec.Stride)
	assert.Equal(t, []int{0, 0}, spec.Padding)
	assert.Equal(t, []int{3, 2}, spec.Extent())

	spec = NewWindowSpec(2, 3, 2, 1, 2)
	assert.Equal(t, []int{5, 5}, spec.Extent())
	assertEqualShape(t, Shape{3, 2}, spec.OutputShape(Shape{7, 5}))

	assert.Error(t, WindowSpec{}.Validate())
	assert.Error(t, WindowSpec{Kernel: []int{2}, Stride: []int{0}, Padding: []int{0}, Dilation: []int{1}}.Validate())
	assert.Error(t, WindowSpec{Kernel: []int{2, 2}, Stride: []int{1}, Padding: []int{0}, Dilation: []int{1}}.Validate())
}

func TestWindowsWithStride(t *testing.T) {
	x := Arange(0, 5)
	windows := x.WindowsWithStride(Shape{3}, []int{2})
	require.Equal(t, 2, windows.Len())

	var got [][]float64
	for i, w := range windows.All() {
		assert.Equal(t, len(got), i)
		got = append(got, w.Data())
	}
	assert.Equal(t, [][]float64{{0, 1, 2}, {2, 3, 4}}, got)

	// Restartable, and stops when the consumer breaks.
	count := 0
	for range windows.All() {
		count++
		break
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, []float64{2, 3, 4}, windows.At(1).Data())

	// Views share nodes with the source.
	assert.Same(t, x.Values()[2], windows.At(0).Values()[2])
	assert.Same(t, x.Values()[2], windows.At(1).Values()[0])

	assert.Panics(t, func() { x.WindowsWithStride(Shape{6}, []int{1}) })
	assert.Panics(t, func() { windows.At(2) })
}

func TestWindows2D(t *testing.T) {
	x := Arange(0, 12).Reshape(Shape{3, 4})
	windows := x.WindowsWithStride(Shape{2, 2}, []int{1, 2})
	assertEqualShape(t, Shape{2, 2}, windows.Counts())
	assert.Equal(t, []float64{0, 1, 4, 5}, windows.At(0).Data())
	assert.Equal(t, []float64{2, 3, 6, 7}, windows.At(1).Data())
	assert.Equal(t, []float64{4, 5, 8, 9}, windows.At(2).Data())
	assert.Equal(t, []float64{6, 7, 10, 11}, windows.At(3).Data())
}

func TestManipulation(t *testing.T) {
	x := fromFloats(Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	t.Run("reshape", func(t *testing.T) {
		y := x.Reshape(Shape{3, -1})
		assertEqualShape(t, Shape{3, 2}, y.Shape())
		assert.Equal(t, x.Data(), y.Data())
		assert.Panics(t, func() { x.Reshape(Shape{4}) })
		assert.Panics(t, func() { x.Reshape(Shape{-1, -1}) })
	})

	t.Run("insert and remove axis", func(t *testing.T) {
		y := x.InsertAxis(1)
		assertEqualShape(t, Shape{2, 1, 3}, y.Shape())
		assertEqualShape(t, Shape{2, 3}, y.RemoveAxis(1).Shape())
		assertEqualShape(t, Shape{2, 3, 1}, x.InsertAxis(2).Shape())
		assert.Panics(t, func() { x.RemoveAxis(0) })
	})

	t.Run("transpose", func(t *testing.T) {
		y := x.Transpose()
		assertEqualShape(t, Shape{3, 2}, y.Shape())
		assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, y.Data())

		z := Arange(0, 24).Reshape(Shape{2, 3, 4}).Transpose(1, 0, 2)
		assertEqualShape(t, Shape{3, 2, 4}, z.Shape())
		assert.Equal(t, 12.0, z.At(0, 1, 0).Data())
		assert.Panics(t, func() { x.Transpose(0, 0) })
	})

	t.Run("stack and unstack", func(t *testing.T) {
		rows := x.Unstack()
		require.Len(t, rows, 2)
		assert.Equal(t, []float64{4, 5, 6}, rows[1].Data())
		assert.True(t, Stack(rows...).Equal(x))
		assert.Panics(t, func() { Stack(rows[0], Zeros(Shape{2})) })
	})

	t.Run("concat", func(t *testing.T) {
		a := fromFloats(Shape{2, 2}, 1, 2, 3, 4)
		b := fromFloats(Shape{2, 1}, 5, 6)
		c := Concat(1, a, b)
		assertEqualShape(t, Shape{2, 3}, c.Shape())
		assert.Equal(t, []float64{1, 2, 5, 3, 4, 6}, c.Data())

		d := Concat(0, a, fromFloats(Shape{1, 2}, 7, 8))
		assert.Equal(t, []float64{1, 2, 3, 4, 7, 8}, d.Data())
		assert.Panics(t, func() { Concat(0, a, b) })
	})

	t.Run("step slice", func(t *testing.T) {
		assert.Equal(t, []float64{0, 3, 6}, Arange(0, 7).StepSlice([]int{3}).Data())
		y := Arange(0, 12).Reshape(Shape{3, 4}).StepSlice([]int{2, 2})
		assertEqualShape(t, Shape{2, 2}, y.Shape())
		assert.Equal(t, []float64{0, 2, 8, 10}, y.Data())
	})

	t.Run("broadcast", func(t *testing.T) {
		row := fromFloats(Shape{3}, 1, 2, 3)
		y := row.BroadcastTo(Shape{2, 3})
		assert.Equal(t, []float64{1, 2, 3, 1, 2, 3}, y.Data())
		y.Sum().Backward()
		assert.Equal(t, []float64{2, 2, 2}, row.Grads())
		assert.Panics(t, func() { row.BroadcastTo(Shape{2, 4}) })
	})
}

func TestPad(t *testing.T) {
	x := Ones(Shape{3})
	padded := x.Pad([]int{2})
	assert.Equal(t, []float64{0, 0, 1, 1, 1, 0, 0}, padded.Data())
	assert.False(t, padded.Values()[0].RequiresGrad())

	y := fromFloats(Shape{2, 2}, 1, 2, 3, 4).Pad([]int{1, 1})
	assertEqualShape(t, Shape{4, 4}, y.Shape())
	assert.Equal(t, []float64{
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
		0, 0, 0, 0,
	}, y.Data())

	// Only trailing axes are padded.
	z := Ones(Shape{2, 1}).Pad([]int{1})
	assertEqualShape(t, Shape{2, 3}, z.Shape())
	assert.Equal(t, []float64{0, 1, 0, 0, 1, 0}, z.Data())
}

func TestPooling(t *testing.T) {
	tests := []struct {
		name     string
		input    *Tensor
		spec     WindowSpec
		shape    Shape
		max, avg []float64
	}{
		{
			name:  "1d",
			input: Arange(0, 6).Reshape(Shape{2, 3}),
			spec:  WindowSpec{Kernel: []int{2}, Stride: []int{1}},
			shape: Shape{2, 2},
			max:   []float64{1, 2, 4, 5},
			avg:   []float64{0.5, 1.5, 3.5, 4.5},
		},
		{
			name:  "2d",
			input: Arange(0, 36).Reshape(Shape{3, 4, 3}),
			spec:  WindowSpec{Kernel: []int{2, 2}, Stride: []int{2, 1}},
			shape: Shape{3, 2, 2},
			max:   []float64{4, 5, 10, 11, 16, 17, 22, 23, 28, 29, 34, 35},
			avg:   []float64{2, 3, 8, 9, 14, 15, 20, 21, 26, 27, 32, 33},
		},
		{
			name:  "3d",
			input: Arange(0, 72).Reshape(Shape{3, 2, 4, 3}),
			spec:  WindowSpec{Kernel: []int{2, 2, 2}, Stride: []int{1, 2, 1}},
			shape: Shape{3, 1, 2, 2},
			max:   []float64{16, 17, 22, 23, 40, 41, 46, 47, 64, 65, 70, 71},
			avg:   []float64{8, 9, 14, 15, 32, 33, 38, 39, 56, 57, 62, 63},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxOut := MaxPool(tt.input, tt.spec)
			assertEqualShape(t, tt.shape, maxOut.Shape())
			assert.Equal(t, tt.max, maxOut.Data())

			avgOut := AvgPool(tt.input, tt.spec)
			assertEqualShape(t, tt.shape, avgOut.Shape())
			assert.InDeltaSlice(t, tt.avg, avgOut.Data(), tolerance)
		})
	}
}

func TestMaxPoolGradient(t *testing.T) {
	x := fromFloats(Shape{1, 4}, 3, 1, 2, 5)
	out := MaxPool(x, WindowSpec{Kernel: []int{2}, Stride: []int{2}})
	assert.Equal(t, []float64{3, 5}, out.Data())
	out.Sum().Backward()
	assert.Equal(t, []float64{1, 0, 0, 1}, x.Grads())
}

func TestConv(t *testing.T) {
	input := fromFloats(Shape{1, 1, 5, 4},
		-1.5237, 0.9591, -2.0597, 0.8249,
		-0.4506, -0.6975, 1.0153, -0.2838,
		-0.5344, -0.5019, -0.4378, 0.3062,
		0.0597, 1.4820, 0.4158, 1.4295,
		0.0612, -0.4898, -0.2115, -0.4827,
	)
	weight := fromFloats(Shape{1, 1, 2, 2}, 0.3954, -0.1740, -0.1890, 0.4909)
	bias := fromFloats(Shape{1}, -0.1188)

	out := Conv(input, weight, bias, WindowSpec{Kernel: []int{2, 2}})
	assertEqualShape(t, Shape{1, 1, 4, 3}, out.Shape())
	assert.InDeltaSlice(t, []float64{
		-1.14539373, 1.24905421, -1.40794710,
		-0.32098335, -0.69131062, 0.56508859,
		0.47345934, -0.31705584, 0.27797043,
		-0.60507223, 0.38358044, -0.40010961,
	}, out.Data(), 1e-4)

	out.Sum().Backward()
	assert.InDelta(t, 12.0, bias.Grads()[0], tolerance)
	// The top-left input element only meets the top-left kernel element.
	assert.InDelta(t, 0.3954, input.Grads()[0], tolerance)
}

func TestConvIdentity(t *testing.T) {
	shapes := []Shape{
		{2, 1, 5},
		{2, 1, 4, 3},
		{1, 1, 3, 2, 4},
	}
	for _, shape := range shapes {
		n := len(shape) - 2
		input := FromFunc(shape, func(i int) float64 { return float64(i)*0.5 - 3 })
		weight := Ones(append(Shape{1, 1}, repeat(1, n)...))
		bias := Zeros(Shape{1})
		out := Conv(input, weight, bias, NewWindowSpec(n, 1, 1, 0, 1))
		assertEqualShape(t, shape, out.Shape())
		assert.Equal(t, input.Data(), out.Data(), "rank %d", n)
	}
}

func TestConvGeometry(t *testing.T) {
	input := Zeros(Shape{2, 3, 13})
	weight := Zeros(Shape{4, 3, 3})
	out := Conv(input, weight, nil, WindowSpec{
		Kernel:   []int{3},
		Stride:   []int{2},
		Padding:  []int{2},
		Dilation: []int{1},
	})
	assertEqualShape(t, Shape{2, 4, 8}, out.Shape())

	dilated := Conv(Arange(0, 7).Reshape(Shape{1, 1, 7}), Ones(Shape{1, 1, 2}), nil,
		WindowSpec{Kernel: []int{2}, Dilation: []int{3}})
	assert.Equal(t, []float64{3, 5, 7, 9}, dilated.Data())

	assert.Panics(t, func() { Conv(input, Zeros(Shape{4, 2, 3}), nil, WindowSpec{Kernel: []int{3}}) })
	assert.Panics(t, func() { Conv(input, weight, Zeros(Shape{3}), WindowSpec{Kernel: []int{3}}) })
}

func TestConvGradient(t *testing.T) {
	weight := fromFloats(Shape{2, 2, 2, 2},
		0.1, -0.2, 0.3, 0.4,
		-0.5, 0.6, 0.7, -0.8,
		0.9, 0.1, -0.2, 0.3,
		0.2, 0.2, -0.1, 0.5,
	)
	spec := WindowSpec{Kernel: []int{2, 2}, Stride: []int{1, 2}, Padding: []int{1, 0}, Dilation: []int{1, 1}}
	data := []float64{
		0.5, -1.0, 2.0, 0.1,
		1.5, 0.3, -0.7, 0.8,
		-0.2, 0.9, 1.1, -1.3,

		0.4, 0.6, -0.5, 1.2,
		-0.9, 0.2, 0.7, 0.0,
		1.0, -0.4, 0.3, 0.6,
	}
	checkGradient(t, func(x *Tensor) *autodiff.Value {
		return Conv(x, weight, nil, spec).Tanh().Sum()
	}, Shape{1, 2, 3, 4}, data)
}

func TestConvParallelMatchesSequential(t *testing.T) {
	spec := NewWindowSpec(2, 3, 1, 1, 1)
	run := func(cfg parallel.Config) (out, inputGrads, weightGrads []float64) {
		previous := parallel.SetDefault(cfg)
		defer parallel.SetDefault(previous)
		input := Randn(Shape{2, 2, 6, 6}, rand.New(rand.NewSource(1)))
		weight := Randn(Shape{3, 2, 3, 3}, rand.New(rand.NewSource(2)))
		y := MaxPool(Conv(input, weight, nil, spec).Tanh(), NewWindowSpec(2, 2, 2, 0, 1))
		y.Sum().Backward()
		return y.Data(), input.Grads(), weight.Grads()
	}

	seqOut, seqInput, seqWeight := run(parallel.Config{Enabled: false})
	parOut, parInput, parWeight := run(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	assert.Equal(t, seqOut, parOut)
	assert.InDeltaSlice(t, seqInput, parInput, 1e-12)
	assert.InDeltaSlice(t, seqWeight, parWeight, 1e-12)
}

func TestConvPanicsInWorkersReachCaller(t *testing.T) {
	previous := parallel.SetDefault(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	defer parallel.SetDefault(previous)
	input := Full(Shape{1, 1, 6, 6}, math.Inf(1))
	weight := Full(Shape{1, 1, 2, 2}, 0)
	// inf * 0 = NaN in every window.
	assert.Panics(t, func() { Conv(input, weight, nil, NewWindowSpec(2, 2, 1, 0, 1)) })
}

func TestSoftmax(t *testing.T) {
	t.Run("1d", func(t *testing.T) {
		x := fromFloats(Shape{4}, 11.02, 10.26, 8.7, 12.4)
		s := x.Softmax(0)
		assert.InDeltaSlice(t, []float64{0.18047813, 0.08440353, 0.01773622, 0.71738213}, s.Data(), tolerance)
		assert.InDelta(t, 1.0, s.Sum().Data(), tolerance)
	})

	matrix := []float64{
		11.02, 10.26, 8.7, 12.4,
		8.21, 9.1, 4.6, 7.67,
	}

	t.Run("2d axis 1", func(t *testing.T) {
		s := fromFloats(Shape{2, 4}, matrix...).Softmax(1)
		assert.InDeltaSlice(t, []float64{
			0.18047813, 0.08440353, 0.01773622, 0.71738213,
			0.24722308, 0.60202025, 0.00668784, 0.14406881,
		}, s.Data(), tolerance)
	})

	t.Run("2d axis 0", func(t *testing.T) {
		s := fromFloats(Shape{2, 4}, matrix...).Softmax(0)
		assert.InDeltaSlice(t, []float64{
			0.94321381, 0.761332714, 0.98369750, 0.99125075,
			0.05678618, 0.23866728, 0.01630249, 0.00874924,
		}, s.Data(), tolerance)
	})

	t.Run("3d axis 0", func(t *testing.T) {
		data := append(append([]float64(nil), matrix...),
			3.82, 4.05, 0.21, 4.55,
			5.61, 8.91, 10.41, 18.4,
		)
		s := fromFloats(Shape{2, 2, 4}, data...).Softmax(0)
		assert.InDeltaSlice(t, []float64{
			0.99925397, 0.99799479, 0.99979452, 0.99961039,
			0.93086157, 0.54735761, 0.00298847, 0.00002187,
			0.00074602, 0.00200520, 0.00020547, 0.00038960,
			0.06913842, 0.45264238, 0.99701152, 0.99997812,
		}, s.Data(), tolerance)
	})

	t.Run("lanes sum to one", func(t *testing.T) {
		x := Arange(0, 24).Reshape(Shape{2, 3, 4}).MulScalar(0.3)
		s := x.Softmax(1)
		sums := s.SumAxis(1)
		for _, v := range sums.Data() {
			assert.InDelta(t, 1.0, v, tolerance)
		}
	})

	t.Run("gradient", func(t *testing.T) {
		target := fromFloats(Shape{2, 3}, 1, 0, 0, 0, 0, 1).Detach()
		checkGradient(t, func(x *Tensor) *autodiff.Value {
			return x.Softmax(-1).Sub(target).Pow(2).Sum()
		}, Shape{2, 3}, []float64{0.2, -1.0, 0.5, 1.5, 0.0, -0.3})
	})

	t.Run("log softmax", func(t *testing.T) {
		x := fromFloats(Shape{4}, 11.02, 10.26, 8.7, 12.4)
		ls := x.LogSoftmax(0).Exp()
		assert.InDeltaSlice(t, x.Softmax(0).Data(), ls.Data(), tolerance)
		checkGradient(t, func(x *Tensor) *autodiff.Value {
			return x.LogSoftmax(0).At(1)
		}, Shape{3}, []float64{0.1, 0.7, -0.4})
	})
}
