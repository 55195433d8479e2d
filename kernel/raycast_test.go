package kernel

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/tsdfusion/voxel"
)

func sphereHashedMonoBlocks(r int32, cx, cy, cz, radius float32) *HashedMonoBlocks {
	set := sphereMonoBlock(r, cx, cy, cz, radius)
	return NewHashedMonoBlocks(set.Keys, set.Blocks)
}

func TestRayCastMonoHitsSphereFrontFace(t *testing.T) {
	const r = 8
	const cx, cy, cz, radius = 4, 4, 4, 2.5
	hb := sphereHashedMonoBlocks(r, cx, cy, cz, radius)

	// Camera center at world (4,4,-10) looking down +Z (identity rotation).
	// The march skips absent blocks a whole block at a time, so it starts at
	// DepthMin = 10.6, just inside the block's front face (world z = 0.6),
	// rather than at the camera, whose 8-unit steps would jump past the
	// sphere's front surface at z = 1.5.
	extr := voxel.Extrinsics{Rot: voxel.Identity, Trans: ms3.Vec{X: -cx, Y: -cy, Z: 10}}
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 32, Cy: 32}
	p := RayCastParams{
		GridParams: GridParams{Resolution: r, VoxelSize: 1, SDFTrunc: 1},
		Width:      64, Height: 64,
		DepthScale: 1, DepthMin: 10.6, DepthMax: 20,
		MaxSteps:   500,
		WithDepth:  true, WithVertex: true, WithNormal: true,
	}

	res, err := RayCastMono(hb, r, intr, extr, p)
	if err != nil {
		t.Fatalf("RayCastMono: %v", err)
	}

	const pix = 32*64 + 32
	wantDepth := float32(cz - radius - (-10)) // 11.5
	if math.Abs(float64(res.Depth[pix]-wantDepth)) > 0.5 {
		t.Fatalf("center pixel depth = %v, want ~%v", res.Depth[pix], wantDepth)
	}
	v := res.Vertex[pix]
	if math.Abs(float64(v.Z-(cz-radius))) > 0.5 {
		t.Fatalf("center pixel vertex Z = %v, want ~%v", v.Z, cz-radius)
	}
	n := res.Normal[pix]
	if n.Z >= 0 {
		t.Fatalf("center pixel normal %+v should point back toward the camera (negative Z)", n)
	}
}

func TestRayCastMonoMissRayStaysZero(t *testing.T) {
	const r = 8
	hb := sphereHashedMonoBlocks(r, 4, 4, 4, 2.5)

	// Camera center moved to world x = -100, still looking down +Z, so its
	// rays never pass through the single block registered at the origin key.
	extr := voxel.Extrinsics{Rot: voxel.Identity, Trans: ms3.Vec{X: 100, Y: -4, Z: -4}}
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 32, Cy: 32}
	p := RayCastParams{
		GridParams: GridParams{Resolution: r, VoxelSize: 1, SDFTrunc: 1},
		Width:      64, Height: 64,
		DepthScale: 1, DepthMin: 0, DepthMax: 20,
		MaxSteps:  500,
		WithDepth: true,
	}

	res, err := RayCastMono(hb, r, intr, extr, p)
	if err != nil {
		t.Fatalf("RayCastMono: %v", err)
	}
	const pix = 32*64 + 32
	if res.Depth[pix] != 0 {
		t.Fatalf("missed ray should leave depth at its zero value, got %v", res.Depth[pix])
	}
}

func TestRayCastMonoNoOutputsReturnsEmptyResult(t *testing.T) {
	const r = 8
	hb := sphereHashedMonoBlocks(r, 4, 4, 4, 2.5)
	extr := voxel.Extrinsics{Rot: voxel.Identity, Trans: ms3.Vec{X: -4, Y: -4, Z: 10}}
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 32, Cy: 32}
	p := RayCastParams{
		GridParams: GridParams{Resolution: r, VoxelSize: 1, SDFTrunc: 1},
		Width:      64, Height: 64,
		DepthScale: 1, DepthMin: 0, DepthMax: 20,
		MaxSteps: 500,
	}

	res, err := RayCastMono(hb, r, intr, extr, p)
	if err != nil {
		t.Fatalf("RayCastMono: %v", err)
	}
	if res.Depth != nil || res.Vertex != nil || res.Color != nil || res.Normal != nil {
		t.Fatalf("expected all-nil result when no outputs requested, got %+v", res)
	}
}

func colorSphereHashedBlocks(r int32, cx, cy, cz, radius float32) *HashedColorBlocks {
	voxels := make([]voxel.Color, r*r*r)
	for xv := int32(0); xv < r; xv++ {
		for yv := int32(0); yv < r; yv++ {
			for zv := int32(0); zv < r; zv++ {
				dx, dy, dz := float32(xv)-cx, float32(yv)-cy, float32(zv)-cz
				dist := float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
				voxels[voxel.VoxelIndex(r, xv, yv, zv)] = voxel.Color{Mono: voxel.Mono{TSDF: dist - radius, Weight: 2}, R: 255, G: 0, B: 0}
			}
		}
	}
	keys := []voxel.Key{{X: 0, Y: 0, Z: 0}}
	blocks := []voxel.ColorBlock{{Voxels: voxels, R: r}}
	return NewHashedColorBlocks(keys, blocks)
}

func TestRayCastColorSamplesColorAtHit(t *testing.T) {
	const r = 8
	const cx, cy, cz, radius = 4, 4, 4, 2.5
	hb := colorSphereHashedBlocks(r, cx, cy, cz, radius)

	extr := voxel.Extrinsics{Rot: voxel.Identity, Trans: ms3.Vec{X: -cx, Y: -cy, Z: 10}}
	intr := voxel.Intrinsics{Fx: 500, Fy: 500, Cx: 32, Cy: 32}
	p := RayCastParams{
		GridParams: GridParams{Resolution: r, VoxelSize: 1, SDFTrunc: 1},
		Width:      64, Height: 64,
		DepthScale: 1, DepthMin: 10.6, DepthMax: 20, // see TestRayCastMonoHitsSphereFrontFace
		MaxSteps:  500,
		WithColor: true,
	}

	res, err := RayCastColor(hb, r, intr, extr, p)
	if err != nil {
		t.Fatalf("RayCastColor: %v", err)
	}
	const pix = 32*64 + 32
	c := res.Color[pix]
	if c.X < 0.5 {
		t.Fatalf("center pixel color = %+v, want red-dominant near (1,0,0)", c)
	}
}
