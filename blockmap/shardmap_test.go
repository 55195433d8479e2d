package blockmap

import (
	"sync"
	"testing"

	"github.com/soypat/tsdfusion/voxel"
)

func TestMapSetFindRoundTrip(t *testing.T) {
	m := New()
	k := voxel.Key{X: 1, Y: -2, Z: 3}
	if _, ok := m.Find(k); ok {
		t.Fatal("empty map should not find any key")
	}
	m.Set(k, 42)
	slot, ok := m.Find(k)
	if !ok || slot != 42 {
		t.Fatalf("Find(%v) = (%d,%v), want (42,true)", k, slot, ok)
	}
}

func TestBuildFromKeysPreservesOrder(t *testing.T) {
	keys := []voxel.Key{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	m := BuildFromKeys(keys)
	for i, k := range keys {
		slot, ok := m.Find(k)
		if !ok || slot != int64(i) {
			t.Fatalf("Find(%v) = (%d,%v), want (%d,true)", k, slot, ok, i)
		}
	}
}

func TestMapConcurrentFind(t *testing.T) {
	const n = 1000
	keys := make([]voxel.Key, n)
	for i := range keys {
		keys[i] = voxel.Key{X: int32(i), Y: int32(i) * 2, Z: int32(i) * 3}
	}
	m := BuildFromKeys(keys)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, k := range keys {
				slot, ok := m.Find(k)
				if !ok || slot != int64(i) {
					t.Errorf("concurrent Find(%v) = (%d,%v), want (%d,true)", k, slot, ok, i)
				}
			}
		}()
	}
	wg.Wait()
}
