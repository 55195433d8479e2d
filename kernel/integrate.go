package kernel

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/voxel"
)

// IntegrateMono fuses a depth frame into a monochrome active set (§4.2).
// Workload is |indices|*R^3: each (block_slot, voxel_local) pair is unique
// across the whole workload, so voxel writes need no synchronization.
func IntegrateMono(set *MonoActiveSet, depth DepthImage, intr voxel.Intrinsics, extr voxel.Extrinsics, p IntegrateParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	n := len(set.Indices) * r3

	bulkParallelMap(n, func(w int) {
		slot := set.Indices[w/r3]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)
		wx, wy, wz := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
		world := worldPoint(p.VoxelSize, wx, wy, wz)

		pc := extr.ToCamera(world)
		if pc.Z <= 0 {
			return
		}
		u, v := intr.Project(pc)
		x, y, ok := voxel.InBounds(u, v, depth.W, depth.H)
		if !ok {
			return
		}
		d := depth.At(x, y) / p.DepthScale
		if d <= 0 || d > p.DepthMax {
			return
		}
		sdf := d - pc.Z
		if sdf < -p.SDFTrunc {
			return
		}
		sdf = math32.Min(sdf, p.SDFTrunc) / p.SDFTrunc

		vox := &set.Blocks[slot].Voxels[local]
		vox.Fuse(sdf, p.MaxWeight)
	})
	return nil
}

// IntegrateColor is IntegrateMono's color-voxel counterpart: identical
// acceptance test, plus a nearest-neighbor color sample fused alongside the
// TSDF update.
func IntegrateColor(set *ColorActiveSet, depth DepthImage, color ColorImage, intr voxel.Intrinsics, extr voxel.Extrinsics, p IntegrateParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	n := len(set.Indices) * r3

	bulkParallelMap(n, func(w int) {
		slot := set.Indices[w/r3]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)
		wx, wy, wz := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
		world := worldPoint(p.VoxelSize, wx, wy, wz)

		pc := extr.ToCamera(world)
		if pc.Z <= 0 {
			return
		}
		u, v := intr.Project(pc)
		x, y, ok := voxel.InBounds(u, v, depth.W, depth.H)
		if !ok {
			return
		}
		d := depth.At(x, y) / p.DepthScale
		if d <= 0 || d > p.DepthMax {
			return
		}
		sdf := d - pc.Z
		if sdf < -p.SDFTrunc {
			return
		}
		sdf = math32.Min(sdf, p.SDFTrunc) / p.SDFTrunc

		cr, cg, cb := color.At(x, y)
		vox := &set.Blocks[slot].Voxels[local]
		vox.Fuse(sdf, cr, cg, cb, p.MaxWeight)
	})
	return nil
}

// worldPoint is the voxel-block addressing primitive p = voxel_size*(x,y,z)
// from §3.2, shared by every kernel that turns an integer world-voxel
// coordinate into a world-space point.
func worldPoint(voxelSize float32, x, y, z int32) ms3.Vec {
	return ms3.Vec{X: voxelSize * float32(x), Y: voxelSize * float32(y), Z: voxelSize * float32(z)}
}
