package blockmap

import "github.com/soypat/tsdfusion/voxel"

// NeighborTables is the precomputed 27-entry neighbor index per active
// block (nb_indices/nb_masks in the active-set tables): for active block i,
// Indices[i][nb] is the block slot of the neighbor at the 3x3x3 offset
// identified by nb = voxel.NeighborIndex(dx,dy,dz), and Masks[i][nb]
// reports whether that neighbor exists.
//
// Precomputing this is an O(27*n_blocks) hash-map build cost, amortizing
// per-voxel neighbor resolution inside the extraction kernels to O(1).
type NeighborTables struct {
	Indices [][27]int64
	Masks   [][27]bool
}

// BuildNeighborTables builds NeighborTables for every block in keys (dense
// block slots [0,len(keys))), by hashing each block's 26 neighbors plus
// itself against a map built from keys.
func BuildNeighborTables(keys []voxel.Key) *NeighborTables {
	m := BuildFromKeys(keys)
	nt := &NeighborTables{
		Indices: make([][27]int64, len(keys)),
		Masks:   make([][27]bool, len(keys)),
	}
	for i, k := range keys {
		for dz := int32(-1); dz <= 1; dz++ {
			for dy := int32(-1); dy <= 1; dy++ {
				for dx := int32(-1); dx <= 1; dx++ {
					nb := voxel.NeighborIndex(dx, dy, dz)
					neighborKey := voxel.Key{X: k.X + dx, Y: k.Y + dy, Z: k.Z + dz}
					slot, ok := m.Find(neighborKey)
					nt.Indices[i][nb] = slot
					nt.Masks[i][nb] = ok
				}
			}
		}
	}
	return nt
}

// BuildInvIndices builds the inverse permutation mapping a raw block slot
// back to its position in indices (the subset of block slots a kernel
// invocation actually processes). Slots not present in indices map to -1.
func BuildInvIndices(nBlocks int, indices []int64) []int64 {
	inv := make([]int64, nBlocks)
	for i := range inv {
		inv[i] = -1
	}
	for pos, slot := range indices {
		inv[slot] = int64(pos)
	}
	return inv
}

// Lookup resolves a voxel coordinate that may fall outside the owning
// block's [0,R) range to its owning (neighbor block slot, wrapped local
// coordinate), using the Indexed addressing mode: it never touches the hash
// map, only the precomputed tables for active block k.
func (nt *NeighborTables) Lookup(k int, r, xo, yo, zo int32) (slot int64, xv, yv, zv int32, ok bool) {
	dxb, xv := voxel.FloorDiv(xo, r)
	dyb, yv := voxel.FloorDiv(yo, r)
	dzb, zv := voxel.FloorDiv(zo, r)
	nb := voxel.NeighborIndex(dxb, dyb, dzb)
	if !nt.Masks[k][nb] {
		return 0, 0, 0, 0, false
	}
	return nt.Indices[k][nb], xv, yv, zv, true
}
