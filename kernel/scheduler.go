// Package kernel implements the five data-parallel fusion kernels —
// Integrate, ExtractSurfacePoints, ExtractSurfaceMesh, EstimateRange and
// RayCast — as bulk parallel maps over a workload index space [0,N). Each
// kernel enumerates (block,voxel) or (pixel) work, resolves cross-block
// neighbors via blockmap, and uses atomic counters for output compaction.
package kernel

import (
	"runtime"
	"sync"

	"github.com/alitto/pond/v2"
)

// chunkSize bounds how much workload a single pool task covers, following
// the chunked-submission pattern used to fan a flat index space out across
// a bounded goroutine pool.
const chunkSize = 4096

// bulkParallelMap runs fn(i) for every i in [0,n), split into contiguous
// chunks submitted to a worker pool sized to the host's CPUs. It is the
// scheduling primitive every kernel in this package is built from: kernels
// never spawn goroutines directly, they call bulkParallelMap.
func bulkParallelMap(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	numWorkers := runtime.NumCPU()
	if numWorkers > n {
		numWorkers = n
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	pool := pond.NewPool(numWorkers)
	defer pool.StopAndWait()

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		start, end := start, end
		pool.Submit(func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		})
	}
	wg.Wait()
}
