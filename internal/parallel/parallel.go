// Package parallel splits independent graph-building work across goroutines.
//
// Building autodiff nodes only reads the operands, so disjoint output elements can be
// constructed concurrently. Backward and ZeroGrad mutate nodes and must stay sequential.
//
// Graph construction is sequential unless a caller opts in with SetDefault.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns the sequential configuration, sized for the CPU count once
// enabled.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		NumWorkers:   runtime.NumCPU(),
		MinChunkSize: 16, // Each item builds a whole window reduction.
	}
}

// WithWorkers returns DefaultConfig enabled for the given number of workers.
// Zero or one worker keeps execution sequential.
func WithWorkers(workers int) Config {
	cfg := DefaultConfig()
	cfg.Enabled = workers > 1
	cfg.NumWorkers = max(workers, 1)
	return cfg
}

var (
	mu      sync.RWMutex
	current = DefaultConfig()
)

// SetDefault replaces the configuration used by Run and RunBatch.
// It returns the previous configuration.
func SetDefault(cfg Config) Config {
	mu.Lock()
	defer mu.Unlock()
	previous := current
	current = cfg
	return previous
}

// Default returns the configuration used by Run and RunBatch.
func Default() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Run is For with the default configuration.
func Run(n int, f func(i int)) {
	For(n, f, Default())
}

// RunBatch is ForBatch with the default configuration.
func RunBatch(batch, items int, f func(b, i int)) {
	ForBatch(batch, items, f, Default())
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
//
// If f panics in a worker, For waits for the other workers and re-panics in the
// calling goroutine with the first value recovered.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunkSize {
		for i := range n {
			f(i)
		}
		return
	}

	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		recovered any
	)
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { recovered = r })
				}
			}()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()

	if recovered != nil {
		panic(recovered)
	}
}

// ForBatch iterates over batch*items pairs, the pattern of per-sample window loops
// in convolution and pooling.
func ForBatch(batch, items int, f func(b, i int), cfg Config) {
	if items == 0 {
		return
	}
	For(batch*items, func(k int) {
		f(k/items, k%items)
	}, cfg)
}
