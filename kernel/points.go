package kernel

import (
	"sync/atomic"

	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/voxel"
)

// edgeAxisOffset is the (dx,dy,dz) step for axis a in {0,1,2}, the +x/+y/+z
// neighbor used by both ExtractSurfacePoints and ExtractSurfaceMesh for
// zero-crossing detection.
func edgeAxisOffset(axis int32) (dx, dy, dz int32) {
	switch axis {
	case 0:
		return 1, 0, 0
	case 1:
		return 0, 1, 0
	default:
		return 0, 0, 1
	}
}

func crossingRatio(tsdfO, tsdfI float32) float32 {
	return -tsdfO / (tsdfI - tsdfO)
}

func crossingPoint(voxelSize float32, x, y, z int32, axis int32, ratio float32) ms3.Vec {
	p := ms3.Vec{X: float32(x), Y: float32(y), Z: float32(z)}
	switch axis {
	case 0:
		p.X += ratio
	case 1:
		p.Y += ratio
	default:
		p.Z += ratio
	}
	return ms3.Scale(voxelSize, p)
}

// monoGradient computes a central-difference TSDF gradient at local voxel
// (xv,yv,zv) of block slot, falling back to a one-sided difference (or a
// zero term) on any axis whose neighbor is missing at a block boundary —
// the original algorithm assumes dense interior access; this is the
// defensive extension for sparse active sets.
func monoGradient(set *MonoActiveSet, slot int64, xv, yv, zv int32, voxelSize float32) ms3.Vec {
	r := set.Blocks[slot].R
	get := func(dx, dy, dz int32) (float32, bool) {
		nbSlot, lx, ly, lz, ok := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
		if !ok {
			return 0, false
		}
		idx := voxel.VoxelIndex(r, lx, ly, lz)
		v := &set.Blocks[nbSlot].Voxels[idx]
		if v.Weight <= 0 {
			return 0, false
		}
		return v.TSDF, true
	}
	self := set.Blocks[slot].Voxels[voxel.VoxelIndex(r, xv, yv, zv)].TSDF
	axisGrad := func(dx, dy, dz int32) float32 {
		plus, okP := get(dx, dy, dz)
		minus, okM := get(-dx, -dy, -dz)
		switch {
		case okP && okM:
			return (plus - minus) / (2 * voxelSize)
		case okP:
			return (plus - self) / voxelSize
		case okM:
			return (self - minus) / voxelSize
		default:
			return 0
		}
	}
	return ms3.Vec{
		X: axisGrad(1, 0, 0),
		Y: axisGrad(0, 1, 0),
		Z: axisGrad(0, 0, 1),
	}
}

func colorGradient(set *ColorActiveSet, slot int64, xv, yv, zv int32, voxelSize float32) ms3.Vec {
	r := set.Blocks[slot].R
	get := func(dx, dy, dz int32) (float32, bool) {
		nbSlot, lx, ly, lz, ok := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
		if !ok {
			return 0, false
		}
		idx := voxel.VoxelIndex(r, lx, ly, lz)
		v := &set.Blocks[nbSlot].Voxels[idx]
		if v.Weight <= 0 {
			return 0, false
		}
		return v.TSDF, true
	}
	self := set.Blocks[slot].Voxels[voxel.VoxelIndex(r, xv, yv, zv)].TSDF
	axisGrad := func(dx, dy, dz int32) float32 {
		plus, okP := get(dx, dy, dz)
		minus, okM := get(-dx, -dy, -dz)
		switch {
		case okP && okM:
			return (plus - minus) / (2 * voxelSize)
		case okP:
			return (plus - self) / voxelSize
		case okM:
			return (self - minus) / voxelSize
		default:
			return 0
		}
	}
	return ms3.Vec{
		X: axisGrad(1, 0, 0),
		Y: axisGrad(0, 1, 0),
		Z: axisGrad(0, 0, 1),
	}
}

func normalize(v ms3.Vec) ms3.Vec {
	n := ms3.Norm(v) + 1e-5
	return ms3.Scale(1/n, v)
}

// ExtractSurfacePointsMono runs the two-pass zero-crossing point extraction
// of §4.4 over a monochrome active set. If valid_size (len of a
// pre-sized points slice) is 0, pass A counts crossings first; otherwise
// the caller's buffers are filled directly and overflow is reported via
// validSize without growing the slices.
func ExtractSurfacePointsMono(set *MonoActiveSet, p ExtractPointsParams, points, normals []ms3.Vec) (out []ms3.Vec, outNormals []ms3.Vec, validSize int, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, 0, err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	n := len(set.Indices) * r3 * 3

	counter := int64(0)
	countingOnly := len(points) == 0
	if countingOnly {
		bulkParallelMap(n, func(w int) {
			slot, xv, yv, zv, axis := decodeEdgeWorkload(set.Indices, r, r3, w)
			if !trustedCrossingMono(set, slot, xv, yv, zv, axis, p.WeightThreshold) {
				return
			}
			atomic.AddInt64(&counter, 1)
		})
		validSize = int(counter)
		out = make([]ms3.Vec, validSize)
		if p.WithNormals {
			outNormals = make([]ms3.Vec, validSize)
		}
	} else {
		out = points
		outNormals = normals
	}

	counter = 0
	overflowed := int32(0)
	bulkParallelMap(n, func(w int) {
		slot, xv, yv, zv, axis := decodeEdgeWorkload(set.Indices, r, r3, w)
		tsdfO, tsdfI, ok := crossingMono(set, slot, xv, yv, zv, axis, p.WeightThreshold)
		if !ok {
			return
		}
		idx := atomic.AddInt64(&counter, 1) - 1
		if int(idx) >= len(out) {
			if atomic.CompareAndSwapInt32(&overflowed, 0, 1) {
				p.Logger.Printf("kernel: ExtractSurfacePoints exceeded caller buffer size %d, dropping remaining points", len(out))
			}
			return
		}
		ratio := crossingRatio(tsdfO, tsdfI)
		x, y, z := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
		out[idx] = crossingPoint(p.VoxelSize, x, y, z, axis, ratio)
		if p.WithNormals && len(outNormals) > 0 {
			gO := monoGradient(set, slot, xv, yv, zv, p.VoxelSize)
			dx, dy, dz := edgeAxisOffset(axis)
			nbSlot, lx, ly, lz, _ := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
			gI := monoGradient(set, nbSlot, lx, ly, lz, p.VoxelSize)
			outNormals[idx] = normalize(ms3.Add(ms3.Scale(1-ratio, gO), ms3.Scale(ratio, gI)))
		}
	})
	validSize = int(counter)
	if validSize > len(out) {
		validSize = len(out)
	}
	return out, outNormals, validSize, nil
}

// ExtractSurfacePointsColor is ExtractSurfacePointsMono's color-voxel
// counterpart; colors is filled in lockstep with out when p.WithColors.
func ExtractSurfacePointsColor(set *ColorActiveSet, p ExtractPointsParams, points, normals, colors []ms3.Vec) (out, outNormals, outColors []ms3.Vec, validSize int, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, nil, 0, err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	n := len(set.Indices) * r3 * 3

	counter := int64(0)
	countingOnly := len(points) == 0
	if countingOnly {
		bulkParallelMap(n, func(w int) {
			slot, xv, yv, zv, axis := decodeEdgeWorkload(set.Indices, r, r3, w)
			if !trustedCrossingColor(set, slot, xv, yv, zv, axis, p.WeightThreshold) {
				return
			}
			atomic.AddInt64(&counter, 1)
		})
		validSize = int(counter)
		out = make([]ms3.Vec, validSize)
		if p.WithNormals {
			outNormals = make([]ms3.Vec, validSize)
		}
		if p.WithColors {
			outColors = make([]ms3.Vec, validSize)
		}
	} else {
		out, outNormals, outColors = points, normals, colors
	}

	counter = 0
	overflowed := int32(0)
	bulkParallelMap(n, func(w int) {
		slot, xv, yv, zv, axis := decodeEdgeWorkload(set.Indices, r, r3, w)
		tsdfO, tsdfI, ok := crossingColor(set, slot, xv, yv, zv, axis, p.WeightThreshold)
		if !ok {
			return
		}
		idx := atomic.AddInt64(&counter, 1) - 1
		if int(idx) >= len(out) {
			if atomic.CompareAndSwapInt32(&overflowed, 0, 1) {
				p.Logger.Printf("kernel: ExtractSurfacePoints exceeded caller buffer size %d, dropping remaining points", len(out))
			}
			return
		}
		ratio := crossingRatio(tsdfO, tsdfI)
		x, y, z := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
		out[idx] = crossingPoint(p.VoxelSize, x, y, z, axis, ratio)

		dx, dy, dz := edgeAxisOffset(axis)
		r2 := set.Blocks[slot].R
		nbSlot, lx, ly, lz, _ := set.Neighbors.Lookup(int(slot), r2, xv+dx, yv+dy, zv+dz)

		if p.WithColors && len(outColors) > 0 {
			vo := &set.Blocks[slot].Voxels[voxel.VoxelIndex(r2, xv, yv, zv)]
			vi := &set.Blocks[nbSlot].Voxels[voxel.VoxelIndex(r2, lx, ly, lz)]
			c := ms3.Vec{
				X: (vo.R + ratio*(vi.R-vo.R)) / 255,
				Y: (vo.G + ratio*(vi.G-vo.G)) / 255,
				Z: (vo.B + ratio*(vi.B-vo.B)) / 255,
			}
			outColors[idx] = c
		}
		if p.WithNormals && len(outNormals) > 0 {
			gO := colorGradient(set, slot, xv, yv, zv, p.VoxelSize)
			gI := colorGradient(set, nbSlot, lx, ly, lz, p.VoxelSize)
			outNormals[idx] = normalize(ms3.Add(ms3.Scale(1-ratio, gO), ms3.Scale(ratio, gI)))
		}
	})
	validSize = int(counter)
	if validSize > len(out) {
		validSize = len(out)
	}
	return out, outNormals, outColors, validSize, nil
}

// decodeEdgeWorkload turns a flat workload index into (block slot, local
// voxel coord, edge axis). Axis varies fastest, matching the row-major
// convention used elsewhere in this package.
func decodeEdgeWorkload(indices []int64, r int32, r3 int, w int) (slot int64, xv, yv, zv int32, axis int32) {
	voxelWorkload := w / 3
	axis = int32(w % 3)
	slot = indices[voxelWorkload/r3]
	local := int32(voxelWorkload % r3)
	xv, yv, zv = voxel.VoxelCoord(r, local)
	return slot, xv, yv, zv, axis
}

func trustedCrossingMono(set *MonoActiveSet, slot int64, xv, yv, zv, axis int32, weightThreshold float32) bool {
	_, _, ok := crossingMono(set, slot, xv, yv, zv, axis, weightThreshold)
	return ok
}

func crossingMono(set *MonoActiveSet, slot int64, xv, yv, zv, axis int32, weightThreshold float32) (tsdfO, tsdfI float32, ok bool) {
	r := set.Blocks[slot].R
	vo := &set.Blocks[slot].Voxels[voxel.VoxelIndex(r, xv, yv, zv)]
	if !vo.Trusted(weightThreshold) {
		return 0, 0, false
	}
	dx, dy, dz := edgeAxisOffset(axis)
	nbSlot, lx, ly, lz, found := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
	if !found {
		return 0, 0, false
	}
	vi := &set.Blocks[nbSlot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)]
	if !vi.Trusted(weightThreshold) {
		return 0, 0, false
	}
	if vo.TSDF*vi.TSDF >= 0 {
		return 0, 0, false
	}
	return vo.TSDF, vi.TSDF, true
}

func trustedCrossingColor(set *ColorActiveSet, slot int64, xv, yv, zv, axis int32, weightThreshold float32) bool {
	_, _, ok := crossingColor(set, slot, xv, yv, zv, axis, weightThreshold)
	return ok
}

func crossingColor(set *ColorActiveSet, slot int64, xv, yv, zv, axis int32, weightThreshold float32) (tsdfO, tsdfI float32, ok bool) {
	r := set.Blocks[slot].R
	vo := &set.Blocks[slot].Voxels[voxel.VoxelIndex(r, xv, yv, zv)]
	if !vo.Trusted(weightThreshold) {
		return 0, 0, false
	}
	dx, dy, dz := edgeAxisOffset(axis)
	nbSlot, lx, ly, lz, found := set.Neighbors.Lookup(int(slot), r, xv+dx, yv+dy, zv+dz)
	if !found {
		return 0, 0, false
	}
	vi := &set.Blocks[nbSlot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)]
	if !vi.Trusted(weightThreshold) {
		return 0, 0, false
	}
	if vo.TSDF*vi.TSDF >= 0 {
		return 0, 0, false
	}
	return vo.TSDF, vi.TSDF, true
}
