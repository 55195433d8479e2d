package voxel

import "testing"

func TestVoxelIndexCoordRoundTrip(t *testing.T) {
	const r = 8
	for xv := int32(0); xv < r; xv++ {
		for yv := int32(0); yv < r; yv++ {
			for zv := int32(0); zv < r; zv++ {
				idx := VoxelIndex(r, xv, yv, zv)
				if idx < 0 || idx >= r*r*r {
					t.Fatalf("index out of range: %d", idx)
				}
				gx, gy, gz := VoxelCoord(r, idx)
				if gx != xv || gy != yv || gz != zv {
					t.Fatalf("round trip (%d,%d,%d) -> %d -> (%d,%d,%d)", xv, yv, zv, idx, gx, gy, gz)
				}
			}
		}
	}
}

func TestVoxelIndexIsBijective(t *testing.T) {
	const r = 4
	seen := make(map[int32]bool)
	for xv := int32(0); xv < r; xv++ {
		for yv := int32(0); yv < r; yv++ {
			for zv := int32(0); zv < r; zv++ {
				idx := VoxelIndex(r, xv, yv, zv)
				if seen[idx] {
					t.Fatalf("duplicate index %d for (%d,%d,%d)", idx, xv, yv, zv)
				}
				seen[idx] = true
			}
		}
	}
	if len(seen) != r*r*r {
		t.Fatalf("got %d distinct indices, want %d", len(seen), r*r*r)
	}
}

func TestWorldVoxelCoord(t *testing.T) {
	x, y, z := WorldVoxelCoord(Key{X: 2, Y: -1, Z: 0}, 8, 3, 7, 0)
	if x != 19 || y != -1 || z != 0 {
		t.Fatalf("got (%d,%d,%d), want (19,-1,0)", x, y, z)
	}
}

func TestFloorDiv(t *testing.T) {
	cases := []struct{ coord, r, block, wrapped int32 }{
		{0, 8, 0, 0},
		{7, 8, 0, 7},
		{8, 8, 1, 0},
		{-1, 8, -1, 7},
		{-8, 8, -1, 0},
		{-9, 8, -2, 7},
	}
	for _, c := range cases {
		block, wrapped := FloorDiv(c.coord, c.r)
		if block != c.block || wrapped != c.wrapped {
			t.Errorf("FloorDiv(%d,%d) = (%d,%d), want (%d,%d)", c.coord, c.r, block, wrapped, c.block, c.wrapped)
		}
	}
}

func TestNeighborIndexBijective(t *testing.T) {
	seen := make(map[int32]bool)
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				idx := NeighborIndex(dx, dy, dz)
				if idx < 0 || idx >= 27 {
					t.Fatalf("index %d out of [0,27) for (%d,%d,%d)", idx, dx, dy, dz)
				}
				if seen[idx] {
					t.Fatalf("duplicate neighbor index %d", idx)
				}
				seen[idx] = true
			}
		}
	}
	if mid := NeighborIndex(0, 0, 0); mid != 13 {
		t.Fatalf("self neighbor index = %d, want 13", mid)
	}
}

func TestLogR2Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two resolution")
		}
	}()
	VoxelIndex(6, 0, 0, 0)
}
