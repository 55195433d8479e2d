package kernel

import (
	"sync/atomic"

	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/blockmap"
	"github.com/soypat/tsdfusion/mctables"
	"github.com/soypat/tsdfusion/voxel"
)

// meshEntry is one voxel's slot in the mesh-structure tensor (§3.4): the
// three outgoing +x/+y/+z edge vertex indices (0 = untouched, -1 = vertex
// required but not yet allocated, >=0 = allocated global index) and the
// voxel's Marching Cubes table index.
type meshEntry struct {
	Edges    [3]int32
	TableIdx int32
}

// MeshResult holds ExtractSurfaceMesh's output buffers.
type MeshResult struct {
	Vertices  []ms3.Vec
	Normals   []ms3.Vec
	Colors    []ms3.Vec // only populated when requested on a color active set
	Triangles [][3]int32
}

// cornerAccessor resolves the TSDF+weight of the voxel offset by
// (dxv,dyv,dzv) from (slot,xv,yv,zv), via the indexed neighbor lookup.
// Shared by both voxel kinds since Pass 0 only reasons about sign/weight.
type cornerAccessor func(slot int64, xv, yv, zv int32) (tsdf, weight float32, ok bool)

func monoCorner(set *MonoActiveSet) cornerAccessor {
	return func(slot int64, xv, yv, zv int32) (float32, float32, bool) {
		r := set.Blocks[slot].R
		nbSlot, lx, ly, lz, ok := set.Neighbors.Lookup(int(slot), r, xv, yv, zv)
		if !ok {
			return 0, 0, false
		}
		v := &set.Blocks[nbSlot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)]
		return v.TSDF, v.Weight, true
	}
}

func colorCorner(set *ColorActiveSet) cornerAccessor {
	return func(slot int64, xv, yv, zv int32) (float32, float32, bool) {
		r := set.Blocks[slot].R
		nbSlot, lx, ly, lz, ok := set.Neighbors.Lookup(int(slot), r, xv, yv, zv)
		if !ok {
			return 0, 0, false
		}
		v := &set.Blocks[nbSlot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)]
		return v.TSDF, v.Weight, true
	}
}

// meshPass0 builds the mesh-structure tensor (Pass 0, §4.5): one entry per
// voxel of every block in indices, with table index and -1 edge markers.
func meshPass0(indices []int64, r int32, neighbors *blockmap.NeighborTables, invIndices []int64, corner cornerAccessor, weightThreshold float32) []meshEntry {
	r3 := int(r) * int(r) * int(r)
	entries := make([]meshEntry, len(indices)*r3)

	bulkParallelMap(len(indices)*r3, func(w int) {
		pos := w / r3
		slot := indices[pos]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)

		var tableIdx int32
		for c := 0; c < 8; c++ {
			shift := mctables.VtxShifts[c]
			tsdf, weight, ok := corner(slot, xv+int32(shift[0]), yv+int32(shift[1]), zv+int32(shift[2]))
			if !ok || weight <= weightThreshold {
				return
			}
			if tsdf < 0 {
				tableIdx |= 1 << uint(c)
			}
		}
		entries[w].TableIdx = tableIdx
		if tableIdx == 0 || tableIdx == 255 {
			return
		}
		edgeMask := mctables.EdgeTable[tableIdx]
		for e := 0; e < 12; e++ {
			if edgeMask&(1<<uint(e)) == 0 {
				continue
			}
			shift := mctables.EdgeShifts[e]
			ownerSlot, oxv, oyv, ozv, ok := neighbors.Lookup(int(slot), r, xv+int32(shift[0]), yv+int32(shift[1]), zv+int32(shift[2]))
			if !ok {
				continue
			}
			ownerPos := invIndices[ownerSlot]
			if ownerPos < 0 {
				continue
			}
			axis := shift[3]
			entryIdx := int(ownerPos)*r3 + int(voxel.VoxelIndex(r, oxv, oyv, ozv))
			entries[entryIdx].Edges[axis] = -1
		}
	})
	return entries
}

// meshPass1 counts required vertices (Pass 1, §4.5).
func meshPass1(entries []meshEntry) int {
	var count int64
	bulkParallelMap(len(entries), func(w int) {
		for axis := 0; axis < 3; axis++ {
			if entries[w].Edges[axis] == -1 {
				atomic.AddInt64(&count, 1)
			}
		}
	})
	return int(count)
}

// meshPass3 builds the triangle list from the fully-allocated mesh
// structure (Pass 3, §4.5), reversing winding per edge triple.
func meshPass3(indices []int64, r int32, entries []meshEntry, neighbors *blockmap.NeighborTables, invIndices []int64) [][3]int32 {
	r3 := int(r) * int(r) * int(r)
	var triCount int64

	// First pass: count triangles to size the output precisely.
	bulkParallelMap(len(indices)*r3, func(w int) {
		tableIdx := entries[w].TableIdx
		n := int(mctables.TriCount[tableIdx])
		if n > 0 {
			atomic.AddInt64(&triCount, int64(n))
		}
	})
	triangles := make([][3]int32, triCount)
	var triIdx int64

	bulkParallelMap(len(indices)*r3, func(w int) {
		pos := w / r3
		slot := indices[pos]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)
		tableIdx := entries[w].TableIdx
		n := int(mctables.TriCount[tableIdx])
		for t := 0; t < n; t++ {
			idx := atomic.AddInt64(&triIdx, 1) - 1
			var tri [3]int32
			for vslot := 0; vslot < 3; vslot++ {
				e := mctables.TriTable[tableIdx][3*t+vslot]
				shift := mctables.EdgeShifts[e]
				ownerSlot, oxv, oyv, ozv, ok := neighbors.Lookup(int(slot), r, xv+int32(shift[0]), yv+int32(shift[1]), zv+int32(shift[2]))
				if !ok {
					continue
				}
				ownerPos := invIndices[ownerSlot]
				if ownerPos < 0 {
					continue
				}
				entryIdx := int(ownerPos)*r3 + int(voxel.VoxelIndex(r, oxv, oyv, ozv))
				vtx := entries[entryIdx].Edges[shift[3]]
				tri[2-vslot] = vtx
			}
			triangles[idx] = tri
		}
	})
	return triangles
}

// ExtractSurfaceMeshMono runs the three-pass Marching Cubes extraction of
// §4.5 over a monochrome active set.
func ExtractSurfaceMeshMono(set *MonoActiveSet, p ExtractMeshParams) (*MeshResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	entries := meshPass0(set.Indices, r, set.Neighbors, set.InvIndices, monoCorner(set), p.WeightThreshold)
	totalVtx := meshPass1(entries)

	vertices := make([]ms3.Vec, totalVtx)
	var normals []ms3.Vec
	if p.WithNormals {
		normals = make([]ms3.Vec, totalVtx)
	}
	var vtxCounter int64

	bulkParallelMap(len(set.Indices)*r3, func(w int) {
		pos := w / r3
		slot := set.Indices[pos]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)
		for axis := int32(0); axis < 3; axis++ {
			if entries[w].Edges[axis] != -1 {
				continue
			}
			idx := atomic.AddInt64(&vtxCounter, 1) - 1
			entries[w].Edges[axis] = int32(idx)

			tsdfO, tsdfI, ok := crossingMono(set, slot, xv, yv, zv, axis, p.WeightThreshold)
			if !ok {
				continue // structurally required by Pass 0's corner test; defensive only.
			}
			ratio := crossingRatio(tsdfO, tsdfI)
			x, y, z := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
			vertices[idx] = crossingPoint(p.VoxelSize, x, y, z, axis, ratio)
			if p.WithNormals {
				dx, dy, dz := edgeAxisOffset(axis)
				nbSlot, lx, ly, lz, _ := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
				gO := monoGradient(set, slot, xv, yv, zv, p.VoxelSize)
				gI := monoGradient(set, nbSlot, lx, ly, lz, p.VoxelSize)
				normals[idx] = normalize(ms3.Add(ms3.Scale(1-ratio, gO), ms3.Scale(ratio, gI)))
			}
		}
	})

	triangles := meshPass3(set.Indices, r, entries, set.Neighbors, set.InvIndices)
	return &MeshResult{Vertices: vertices, Normals: normals, Triangles: triangles}, nil
}

// ExtractSurfaceMeshColor is ExtractSurfaceMeshMono's color-voxel
// counterpart, additionally populating MeshResult.Colors when requested.
func ExtractSurfaceMeshColor(set *ColorActiveSet, p ExtractMeshParams) (*MeshResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	entries := meshPass0(set.Indices, r, set.Neighbors, set.InvIndices, colorCorner(set), p.WeightThreshold)
	totalVtx := meshPass1(entries)

	vertices := make([]ms3.Vec, totalVtx)
	var normals, colors []ms3.Vec
	if p.WithNormals {
		normals = make([]ms3.Vec, totalVtx)
	}
	if p.WithColors {
		colors = make([]ms3.Vec, totalVtx)
	}
	var vtxCounter int64

	bulkParallelMap(len(set.Indices)*r3, func(w int) {
		pos := w / r3
		slot := set.Indices[pos]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)
		for axis := int32(0); axis < 3; axis++ {
			if entries[w].Edges[axis] != -1 {
				continue
			}
			idx := atomic.AddInt64(&vtxCounter, 1) - 1
			entries[w].Edges[axis] = int32(idx)

			tsdfO, tsdfI, ok := crossingColor(set, slot, xv, yv, zv, axis, p.WeightThreshold)
			if !ok {
				continue
			}
			ratio := crossingRatio(tsdfO, tsdfI)
			x, y, z := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
			vertices[idx] = crossingPoint(p.VoxelSize, x, y, z, axis, ratio)

			dx, dy, dz := edgeAxisOffset(axis)
			nbSlot, lx, ly, lz, _ := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
			if p.WithColors {
				vo := &set.Blocks[slot].Voxels[voxel.VoxelIndex(r, xv, yv, zv)]
				vi := &set.Blocks[nbSlot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)]
				colors[idx] = ms3.Vec{
					X: (vo.R + ratio*(vi.R-vo.R)) / 255,
					Y: (vo.G + ratio*(vi.G-vo.G)) / 255,
					Z: (vo.B + ratio*(vi.B-vo.B)) / 255,
				}
			}
			if p.WithNormals {
				gO := colorGradient(set, slot, xv, yv, zv, p.VoxelSize)
				gI := colorGradient(set, nbSlot, lx, ly, lz, p.VoxelSize)
				normals[idx] = normalize(ms3.Add(ms3.Scale(1-ratio, gO), ms3.Scale(ratio, gI)))
			}
		}
	})

	triangles := meshPass3(set.Indices, r, entries, set.Neighbors, set.InvIndices)
	return &MeshResult{Vertices: vertices, Normals: normals, Colors: colors, Triangles: triangles}, nil
}
