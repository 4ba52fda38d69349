package parallel

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parallelConfig() Config {
	return Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}
}

func TestFor(t *testing.T) {
	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, parallelConfig())

	assert.Equal(t, int64(n), counter)
}

func TestForVisitsEveryIndexOnce(t *testing.T) {
	n := 257
	seen := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, parallelConfig())
	for i, count := range seen {
		require.Equal(t, int32(1), count, "index %d", i)
	}
}

func TestForBatch(t *testing.T) {
	batch, items := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, items)
	}

	ForBatch(batch, items, func(b, i int) {
		results[b][i] = true
	}, Config{Enabled: true, NumWorkers: 4, MinChunkSize: 2})

	for b := range batch {
		for i := range items {
			assert.True(t, results[b][i], "missing result at [%d][%d]", b, i)
		}
	}
	ForBatch(3, 0, func(int, int) { t.Fatal("called with no items") }, parallelConfig())
}

func TestForSequential(t *testing.T) {
	var order []int
	For(100, func(i int) {
		order = append(order, i)
	}, Config{Enabled: false})

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestForSmallChunk(t *testing.T) {
	cfg := parallelConfig()
	var counter int64
	n := cfg.MinChunkSize - 1

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForPropagatesPanics(t *testing.T) {
	sentinel := errors.New("bad window")
	assert.PanicsWithError(t, "bad window", func() {
		For(1000, func(i int) {
			if i == 700 {
				panic(sentinel)
			}
		}, parallelConfig())
	})
	assert.PanicsWithValue(t, "index 3", func() {
		For(1000, func(i int) {
			if i == 3 {
				panic("index 3")
			}
		}, parallelConfig())
	})
}

func TestSetDefault(t *testing.T) {
	previous := SetDefault(Config{Enabled: false})
	defer SetDefault(previous)

	assert.False(t, Default().Enabled)
	var counter int64
	Run(10, func(int) { atomic.AddInt64(&counter, 1) })
	RunBatch(2, 5, func(int, int) { atomic.AddInt64(&counter, 1) })
	assert.Equal(t, int64(20), counter)
}

func TestDefaultIsSequential(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Positive(t, cfg.NumWorkers)

	cfg = WithWorkers(4)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, DefaultConfig().MinChunkSize, cfg.MinChunkSize)

	cfg = WithWorkers(0)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.NumWorkers)
}

func BenchmarkFor(b *testing.B) {
	cfg := WithWorkers(runtime.NumCPU())
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for b.Loop() {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for b.Loop() {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}
