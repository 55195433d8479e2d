package kernel

import (
	"github.com/soypat/tsdfusion/blockmap"
	"github.com/soypat/tsdfusion/voxel"
)

// MonoActiveSet bundles the active-set tables (§3.3) for a monochrome grid:
// the allocator-provided block_keys/block_values/indices, plus the derived
// neighbor-index and inverse-index tables every extraction kernel needs.
// Built once per allocation change and reused across many kernel calls.
type MonoActiveSet struct {
	Keys       []voxel.Key
	Blocks     []voxel.MonoBlock
	Indices    []int64
	Neighbors  *blockmap.NeighborTables
	InvIndices []int64
}

// NewMonoActiveSet derives Neighbors and InvIndices from keys/indices; Blocks
// must already be populated by the caller (one MonoBlock per key, in the
// same order).
func NewMonoActiveSet(keys []voxel.Key, blocks []voxel.MonoBlock, indices []int64) *MonoActiveSet {
	return &MonoActiveSet{
		Keys:       keys,
		Blocks:     blocks,
		Indices:    indices,
		Neighbors:  blockmap.BuildNeighborTables(keys),
		InvIndices: blockmap.BuildInvIndices(len(keys), indices),
	}
}

// ColorActiveSet is MonoActiveSet's color-voxel counterpart.
type ColorActiveSet struct {
	Keys       []voxel.Key
	Blocks     []voxel.ColorBlock
	Indices    []int64
	Neighbors  *blockmap.NeighborTables
	InvIndices []int64
}

func NewColorActiveSet(keys []voxel.Key, blocks []voxel.ColorBlock, indices []int64) *ColorActiveSet {
	return &ColorActiveSet{
		Keys:       keys,
		Blocks:     blocks,
		Indices:    indices,
		Neighbors:  blockmap.BuildNeighborTables(keys),
		InvIndices: blockmap.BuildInvIndices(len(keys), indices),
	}
}

// HashedMonoBlocks is the ray-casting addressing mode (§3.5, §4.3 "Hashed"): a
// concurrent map from block key to block slot, consulted on demand as rays
// traverse arbitrary blocks.
type HashedMonoBlocks struct {
	Map    *blockmap.Map
	Blocks []voxel.MonoBlock
}

func NewHashedMonoBlocks(keys []voxel.Key, blocks []voxel.MonoBlock) *HashedMonoBlocks {
	return &HashedMonoBlocks{Map: blockmap.BuildFromKeys(keys), Blocks: blocks}
}

type HashedColorBlocks struct {
	Map    *blockmap.Map
	Blocks []voxel.ColorBlock
}

func NewHashedColorBlocks(keys []voxel.Key, blocks []voxel.ColorBlock) *HashedColorBlocks {
	return &HashedColorBlocks{Map: blockmap.BuildFromKeys(keys), Blocks: blocks}
}
