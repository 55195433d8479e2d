package kernel

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/voxel"
)

// RayCastResult holds RayCast's optional output buffers; any buffer the
// caller did not request stays nil, per §4.7's "silently skipped" rule.
type RayCastResult struct {
	Depth  []float32
	Vertex []ms3.Vec
	Color  []ms3.Vec
	Normal []ms3.Vec
}

func monoVoxelAt(hb *HashedMonoBlocks, r int32, xw, yw, zw int32) (tsdf, weight float32, ok bool) {
	bx, lx := voxel.FloorDiv(xw, r)
	by, ly := voxel.FloorDiv(yw, r)
	bz, lz := voxel.FloorDiv(zw, r)
	slot, found := hb.Map.Find(voxel.Key{X: bx, Y: by, Z: bz})
	if !found {
		return 0, 0, false
	}
	v := &hb.Blocks[slot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)]
	return v.TSDF, v.Weight, true
}

func colorVoxelAt(hb *HashedColorBlocks, r int32, xw, yw, zw int32) (*voxel.Color, bool) {
	bx, lx := voxel.FloorDiv(xw, r)
	by, ly := voxel.FloorDiv(yw, r)
	bz, lz := voxel.FloorDiv(zw, r)
	slot, found := hb.Map.Find(voxel.Key{X: bx, Y: by, Z: bz})
	if !found {
		return nil, false
	}
	return &hb.Blocks[slot].Voxels[voxel.VoxelIndex(r, lx, ly, lz)], true
}

func floorVoxelCoord(g ms3.Vec, voxelSize float32) (x, y, z int32) {
	return int32(math32.Floor(g.X / voxelSize)), int32(math32.Floor(g.Y / voxelSize)), int32(math32.Floor(g.Z / voxelSize))
}

// trilinearWeights returns the 8 corner weights for fractional offsets
// (rx,ry,rz) in [0,1), corner index dx+2*dy+4*dz.
func trilinearWeights(rx, ry, rz float32) [8]float32 {
	var w [8]float32
	for dz := 0; dz < 2; dz++ {
		wz := rz
		if dz == 0 {
			wz = 1 - rz
		}
		for dy := 0; dy < 2; dy++ {
			wy := ry
			if dy == 0 {
				wy = 1 - ry
			}
			for dx := 0; dx < 2; dx++ {
				wx := rx
				if dx == 0 {
					wx = 1 - rx
				}
				w[dx+2*dy+4*dz] = wx * wy * wz
			}
		}
	}
	return w
}

// cameraRayDir returns the normalized world-space direction of the ray
// through pixel (x,y)'s center.
func cameraRayDir(intr voxel.Intrinsics, extr voxel.Extrinsics, x, y int32) ms3.Vec {
	camDir := intr.Unproject(float32(x)+0.5, float32(y)+0.5, 1)
	world := extr.RotateToWorld(camDir)
	return ms3.Scale(1/ms3.Norm(world), world)
}

// monoTrilinearNormal implements §4.7's trilinear normal interpolation: for
// each of the 8 corners around g, accumulate central-difference TSDF
// gradients per axis into a single running sum_weight_normal shared across
// all three axes (kept exactly as the original does it — see the
// per-axis-validity design note — rather than normalizing each axis by its
// own weight).
func monoTrilinearNormal(hb *HashedMonoBlocks, r int32, g ms3.Vec, voxelSize float32) ms3.Vec {
	fx, fy, fz := g.X/voxelSize, g.Y/voxelSize, g.Z/voxelSize
	xw, yw, zw := int32(math32.Floor(fx)), int32(math32.Floor(fy)), int32(math32.Floor(fz))
	weights := trilinearWeights(fx-float32(xw), fy-float32(yw), fz-float32(zw))

	var normal ms3.Vec
	var sumWeightNormal float32
	for dz := int32(0); dz < 2; dz++ {
		for dy := int32(0); dy < 2; dy++ {
			for dx := int32(0); dx < 2; dx++ {
				ratio := weights[dx+2*dy+4*dz]
				if ratio <= 0 {
					continue
				}
				cx, cy, cz := xw+dx, yw+dy, zw+dz
				if _, w0, ok := monoVoxelAt(hb, r, cx, cy, cz); !ok || w0 <= 0 {
					continue
				}
				if t, _, ok := monoVoxelAt(hb, r, cx+1, cy, cz); ok {
					normal.X += ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, _, ok := monoVoxelAt(hb, r, cx-1, cy, cz); ok {
					normal.X -= ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, _, ok := monoVoxelAt(hb, r, cx, cy+1, cz); ok {
					normal.Y += ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, _, ok := monoVoxelAt(hb, r, cx, cy-1, cz); ok {
					normal.Y -= ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, _, ok := monoVoxelAt(hb, r, cx, cy, cz+1); ok {
					normal.Z += ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, _, ok := monoVoxelAt(hb, r, cx, cy, cz-1); ok {
					normal.Z -= ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
			}
		}
	}
	if sumWeightNormal > 0 {
		normal = ms3.Scale(1/sumWeightNormal, normal)
	}
	return normalize(normal)
}

// colorTrilinearNormal is monoTrilinearNormal's color-active-set
// counterpart; duplicated rather than shared because the two hash-map
// block containers hold different voxel slice types.
func colorTrilinearNormal(hb *HashedColorBlocks, r int32, g ms3.Vec, voxelSize float32) ms3.Vec {
	fx, fy, fz := g.X/voxelSize, g.Y/voxelSize, g.Z/voxelSize
	xw, yw, zw := int32(math32.Floor(fx)), int32(math32.Floor(fy)), int32(math32.Floor(fz))
	weights := trilinearWeights(fx-float32(xw), fy-float32(yw), fz-float32(zw))

	var normal ms3.Vec
	var sumWeightNormal float32
	sample := func(cx, cy, cz int32) (float32, bool) {
		v, ok := colorVoxelAt(hb, r, cx, cy, cz)
		if !ok {
			return 0, false
		}
		return v.TSDF, true
	}
	for dz := int32(0); dz < 2; dz++ {
		for dy := int32(0); dy < 2; dy++ {
			for dx := int32(0); dx < 2; dx++ {
				ratio := weights[dx+2*dy+4*dz]
				if ratio <= 0 {
					continue
				}
				cx, cy, cz := xw+dx, yw+dy, zw+dz
				if v, ok := colorVoxelAt(hb, r, cx, cy, cz); !ok || v.Weight <= 0 {
					continue
				}
				if t, ok := sample(cx+1, cy, cz); ok {
					normal.X += ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, ok := sample(cx-1, cy, cz); ok {
					normal.X -= ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, ok := sample(cx, cy+1, cz); ok {
					normal.Y += ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, ok := sample(cx, cy-1, cz); ok {
					normal.Y -= ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, ok := sample(cx, cy, cz+1); ok {
					normal.Z += ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
				if t, ok := sample(cx, cy, cz-1); ok {
					normal.Z -= ratio * t / (2 * voxelSize)
					sumWeightNormal += ratio
				}
			}
		}
	}
	if sumWeightNormal > 0 {
		normal = ms3.Scale(1/sumWeightNormal, normal)
	}
	return normalize(normal)
}

func colorTrilinear(hb *HashedColorBlocks, r int32, g ms3.Vec, voxelSize float32) ms3.Vec {
	fx, fy, fz := g.X/voxelSize, g.Y/voxelSize, g.Z/voxelSize
	xw, yw, zw := int32(math32.Floor(fx)), int32(math32.Floor(fy)), int32(math32.Floor(fz))
	weights := trilinearWeights(fx-float32(xw), fy-float32(yw), fz-float32(zw))

	var color ms3.Vec
	var sumWeight float32
	for dz := int32(0); dz < 2; dz++ {
		for dy := int32(0); dy < 2; dy++ {
			for dx := int32(0); dx < 2; dx++ {
				ratio := weights[dx+2*dy+4*dz]
				if ratio <= 0 {
					continue
				}
				v, ok := colorVoxelAt(hb, r, xw+dx, yw+dy, zw+dz)
				if !ok || v.Weight <= 0 {
					continue
				}
				color.X += ratio * v.R
				color.Y += ratio * v.G
				color.Z += ratio * v.B
				sumWeight += ratio
			}
		}
	}
	if sumWeight > 0 {
		color = ms3.Scale(1/(sumWeight*255), color)
	}
	return color
}

// RayCastMono runs the sphere-tracing ray caster of §4.7 over a
// hash-addressed monochrome grid.
func RayCastMono(hb *HashedMonoBlocks, r int32, intr voxel.Intrinsics, extr voxel.Extrinsics, p RayCastParams) (*RayCastResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	res := &RayCastResult{}
	if !p.WithDepth && !p.WithVertex && !p.WithColor && !p.WithNormal {
		return res, nil
	}
	n := int(p.Width) * int(p.Height)
	if p.WithDepth {
		res.Depth = make([]float32, n)
	}
	if p.WithVertex {
		res.Vertex = make([]ms3.Vec, n)
	}
	if p.WithNormal {
		res.Normal = make([]ms3.Vec, n)
	}
	origin := extr.CameraCenter()
	blockSize := p.BlockSize()

	bulkParallelMap(n, func(i int) {
		x, y := int32(i)%p.Width, int32(i)/p.Width
		dirWorld := cameraRayDir(intr, extr, x, y)

		t := p.DepthMin
		var tsdfPrev, tPrev float32
		havePrev := false
		for step := int32(0); step < p.MaxSteps && t < p.DepthMax; step++ {
			g := ms3.Add(origin, ms3.Scale(t, dirWorld))
			xw, yw, zw := floorVoxelCoord(g, p.VoxelSize)
			tsdf, weight, ok := monoVoxelAt(hb, r, xw, yw, zw)
			if !ok {
				t += blockSize
				havePrev = false
				continue
			}
			if havePrev && tsdfPrev > 0 && weight >= p.WeightThreshold && tsdf <= 0 {
				tIntersect := (t*tsdfPrev - tPrev*tsdf) / (tsdfPrev - tsdf)
				gHit := ms3.Add(origin, ms3.Scale(tIntersect, dirWorld))
				if p.WithDepth {
					res.Depth[i] = tIntersect * p.DepthScale
				}
				if p.WithVertex {
					res.Vertex[i] = gHit
				}
				if p.WithNormal {
					normalVec := monoTrilinearNormal(hb, r, gHit, p.VoxelSize)
					res.Normal[i] = extr.RotateToCamera(normalVec)
				}
				return
			}
			stepSize := math32.Max(p.VoxelSize, tsdf*p.SDFTrunc)
			tPrev, tsdfPrev, havePrev = t, tsdf, true
			t += stepSize
		}
	})
	return res, nil
}

// RayCastColor is RayCastMono's color-voxel counterpart, additionally
// trilinearly interpolating color at the crossing point.
func RayCastColor(hb *HashedColorBlocks, r int32, intr voxel.Intrinsics, extr voxel.Extrinsics, p RayCastParams) (*RayCastResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	res := &RayCastResult{}
	if !p.WithDepth && !p.WithVertex && !p.WithColor && !p.WithNormal {
		return res, nil
	}
	n := int(p.Width) * int(p.Height)
	if p.WithDepth {
		res.Depth = make([]float32, n)
	}
	if p.WithVertex {
		res.Vertex = make([]ms3.Vec, n)
	}
	if p.WithColor {
		res.Color = make([]ms3.Vec, n)
	}
	if p.WithNormal {
		res.Normal = make([]ms3.Vec, n)
	}
	origin := extr.CameraCenter()
	blockSize := p.BlockSize()

	bulkParallelMap(n, func(i int) {
		x, y := int32(i)%p.Width, int32(i)/p.Width
		dirWorld := cameraRayDir(intr, extr, x, y)

		t := p.DepthMin
		var tsdfPrev, tPrev float32
		havePrev := false
		for step := int32(0); step < p.MaxSteps && t < p.DepthMax; step++ {
			g := ms3.Add(origin, ms3.Scale(t, dirWorld))
			xw, yw, zw := floorVoxelCoord(g, p.VoxelSize)
			v, ok := colorVoxelAt(hb, r, xw, yw, zw)
			if !ok {
				t += blockSize
				havePrev = false
				continue
			}
			tsdf, weight := v.TSDF, v.Weight
			if havePrev && tsdfPrev > 0 && weight >= p.WeightThreshold && tsdf <= 0 {
				tIntersect := (t*tsdfPrev - tPrev*tsdf) / (tsdfPrev - tsdf)
				gHit := ms3.Add(origin, ms3.Scale(tIntersect, dirWorld))
				if p.WithDepth {
					res.Depth[i] = tIntersect * p.DepthScale
				}
				if p.WithVertex {
					res.Vertex[i] = gHit
				}
				if p.WithColor {
					res.Color[i] = colorTrilinear(hb, r, gHit, p.VoxelSize)
				}
				if p.WithNormal {
					normalVec := colorTrilinearNormal(hb, r, gHit, p.VoxelSize)
					res.Normal[i] = extr.RotateToCamera(normalVec)
				}
				return
			}
			stepSize := math32.Max(p.VoxelSize, tsdf*p.SDFTrunc)
			tPrev, tsdfPrev, havePrev = t, tsdf, true
			t += stepSize
		}
	})
	return res, nil
}
