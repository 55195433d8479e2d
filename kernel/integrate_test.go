package kernel

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/voxel"
)

func flatDepthImage(w, h int32, value float32) DepthImage {
	data := make([]float32, int(w)*int(h))
	for i := range data {
		data[i] = value
	}
	return DepthImage{W: w, H: h, Data: data}
}

func singleMonoBlock(r int32) *MonoActiveSet {
	keys := []voxel.Key{{X: 0, Y: 0, Z: 0}}
	blocks := []voxel.MonoBlock{{Voxels: make([]voxel.Mono, r*r*r), R: r}}
	return NewMonoActiveSet(keys, blocks, []int64{0})
}

func TestIntegrateMonoFusesFlatPlane(t *testing.T) {
	const r = 8
	const voxelSize = 0.1
	const sdfTrunc = 0.5
	const depthVal = 0.4

	set := singleMonoBlock(r)
	depth := flatDepthImage(640, 480, depthVal)
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	extr := voxel.Extrinsics{Rot: voxel.Identity}
	p := IntegrateParams{
		GridParams: GridParams{Resolution: r, VoxelSize: voxelSize, SDFTrunc: sdfTrunc},
		DepthScale: 1, DepthMax: 2,
	}

	if err := IntegrateMono(set, depth, intr, extr, p); err != nil {
		t.Fatalf("IntegrateMono: %v", err)
	}

	at := func(z int32) voxel.Mono {
		return set.Blocks[0].Voxels[voxel.VoxelIndex(r, 0, 0, z)]
	}

	// z=4: world z = 0.4 == depthVal, sdf == 0.
	v4 := at(4)
	if v4.Weight != 1 {
		t.Fatalf("z=4 weight = %v, want 1", v4.Weight)
	}
	if math.Abs(float64(v4.TSDF)) > 1e-4 {
		t.Fatalf("z=4 tsdf = %v, want ~0", v4.TSDF)
	}

	// z=1: world z = 0.1, sdf = 0.3, normalized 0.6.
	v1 := at(1)
	if math.Abs(float64(v1.TSDF-0.6)) > 1e-4 {
		t.Fatalf("z=1 tsdf = %v, want ~0.6", v1.TSDF)
	}

	// z=7: world z = 0.7, sdf = -0.3, normalized -0.6.
	v7 := at(7)
	if math.Abs(float64(v7.TSDF-(-0.6))) > 1e-4 {
		t.Fatalf("z=7 tsdf = %v, want ~-0.6", v7.TSDF)
	}
}

func TestIntegrateMonoRejectsBehindCamera(t *testing.T) {
	const r = 8
	set := singleMonoBlock(r)
	depth := flatDepthImage(640, 480, 0.4)
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	// Translate the camera far along +Z so every voxel in the block has
	// pc.Z = world.Z - 10 < 0.
	extr := voxel.Extrinsics{Rot: voxel.Identity, Trans: ms3.Vec{Z: -10}}
	p := IntegrateParams{
		GridParams: GridParams{Resolution: r, VoxelSize: 0.1, SDFTrunc: 0.5},
		DepthScale: 1, DepthMax: 2,
	}
	if err := IntegrateMono(set, depth, intr, extr, p); err != nil {
		t.Fatalf("IntegrateMono: %v", err)
	}
	for i := range set.Blocks[0].Voxels {
		if set.Blocks[0].Voxels[i].Weight != 0 {
			t.Fatalf("voxel %d fused despite being behind the camera", i)
		}
	}
}

func TestIntegrateMonoRejectsBeyondTruncationBand(t *testing.T) {
	const r = 8
	set := singleMonoBlock(r)
	// depth far closer than any voxel in the block: sdf = d - pc.Z very
	// negative, beyond -sdf_trunc, so every voxel should be rejected.
	depth := flatDepthImage(640, 480, 0.01)
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	extr := voxel.Extrinsics{Rot: voxel.Identity}
	p := IntegrateParams{
		GridParams: GridParams{Resolution: r, VoxelSize: 0.5, SDFTrunc: 0.05},
		DepthScale: 1, DepthMax: 5,
	}
	if err := IntegrateMono(set, depth, intr, extr, p); err != nil {
		t.Fatalf("IntegrateMono: %v", err)
	}
	// voxel at z=7 (world z=3.5) is far beyond the truncation band behind
	// the depth reading at 0.01m.
	v := set.Blocks[0].Voxels[voxel.VoxelIndex(r, 0, 0, 7)]
	if v.Weight != 0 {
		t.Fatalf("voxel beyond -sdf_trunc should be rejected, got weight %v", v.Weight)
	}
}
