package kernel

import (
	"sync/atomic"
	"testing"
)

func TestBulkParallelMapVisitsEveryIndexExactlyOnce(t *testing.T) {
	const n = 50000
	var counts [n]int32
	bulkParallelMap(n, func(i int) {
		atomic.AddInt32(&counts[i], 1)
	})
	for i, c := range counts {
		if c != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, c)
		}
	}
}

func TestBulkParallelMapZeroIsNoOp(t *testing.T) {
	called := false
	bulkParallelMap(0, func(i int) { called = true })
	if called {
		t.Fatal("bulkParallelMap(0, ...) should never call fn")
	}
}

func TestBulkParallelMapSmallerThanChunk(t *testing.T) {
	var sum int64
	bulkParallelMap(3, func(i int) {
		atomic.AddInt64(&sum, int64(i))
	})
	if sum != 0+1+2 {
		t.Fatalf("sum = %d, want 3", sum)
	}
}
