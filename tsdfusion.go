// Package tsdfusion implements a sparse volumetric TSDF fusion engine:
// posed depth (and optional color) frames are integrated into a hash-indexed
// grid of fixed-size voxel blocks, which can then be queried for surface
// points, a triangle mesh, a per-pixel visibility range, or ray-cast
// renderings. See the voxel, mctables, blockmap and kernel packages for the
// underlying data model and data-parallel kernels; Grid and ColorGrid below
// are a convenience façade over them for callers who don't want to manage
// block storage and active-set tables by hand.
package tsdfusion

import (
	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/kernel"
	"github.com/soypat/tsdfusion/voxel"
)

// Grid owns block storage for a monochrome (TSDF+weight only) voxel grid.
// It does not decide which blocks should exist for a given frame — that
// allocation policy (frustum culling, streaming, etc.) is a caller concern;
// Grid only tracks whatever blocks EnsureBlocks has added and runs kernels
// over all of them.
type Grid struct {
	params kernel.GridParams
	keys   []voxel.Key
	blocks []voxel.MonoBlock
	slotOf map[voxel.Key]int
}

// NewGrid creates an empty monochrome grid with the given voxel geometry.
func NewGrid(params kernel.GridParams) *Grid {
	return &Grid{params: params, slotOf: make(map[voxel.Key]int)}
}

// EnsureBlocks allocates storage for any key not already present and
// returns the subset that was newly added, freshly zeroed.
func (g *Grid) EnsureBlocks(keys []voxel.Key) []voxel.Key {
	added := make([]voxel.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := g.slotOf[k]; ok {
			continue
		}
		g.slotOf[k] = len(g.keys)
		g.keys = append(g.keys, k)
		g.blocks = append(g.blocks, voxel.MonoBlock{
			Voxels: make([]voxel.Mono, g.params.Resolution*g.params.Resolution*g.params.Resolution),
			R:      g.params.Resolution,
		})
		added = append(added, k)
	}
	return added
}

// NumBlocks returns the number of currently-allocated blocks.
func (g *Grid) NumBlocks() int { return len(g.keys) }

func (g *Grid) activeSet() *kernel.MonoActiveSet {
	indices := make([]int64, len(g.keys))
	for i := range indices {
		indices[i] = int64(i)
	}
	return kernel.NewMonoActiveSet(g.keys, g.blocks, indices)
}

// Integrate fuses a depth frame into every currently-allocated block.
func (g *Grid) Integrate(depth kernel.DepthImage, intr voxel.Intrinsics, extr voxel.Extrinsics, p kernel.IntegrateParams) error {
	p.GridParams = g.params
	return kernel.IntegrateMono(g.activeSet(), depth, intr, extr, p)
}

// ExtractSurfacePoints returns the zero-crossing point cloud of the grid.
func (g *Grid) ExtractSurfacePoints(p kernel.ExtractPointsParams) (points, normals []ms3.Vec, n int, err error) {
	p.GridParams = g.params
	return kernel.ExtractSurfacePointsMono(g.activeSet(), p, nil, nil)
}

// ExtractSurfaceMesh runs Marching Cubes over the grid.
func (g *Grid) ExtractSurfaceMesh(p kernel.ExtractMeshParams) (*kernel.MeshResult, error) {
	p.GridParams = g.params
	return kernel.ExtractSurfaceMeshMono(g.activeSet(), p)
}

// EstimateRange computes the per-pixel visibility range for a candidate pose,
// typically used to bound the next frame's block allocation.
func (g *Grid) EstimateRange(intr voxel.Intrinsics, extr voxel.Extrinsics, p kernel.RangeParams) (*kernel.RangeMap, error) {
	p.GridParams = g.params
	return kernel.EstimateRange(g.keys, intr, extr, p)
}

// RayCast renders the grid from a pose. Unlike Integrate/Extract*, which
// run over the active set's block indices (Extract* resolving neighbors
// through the indexed neighbor table), ray casting walks
// arbitrary blocks along each ray and so needs the hashed addressing mode;
// the lookup map is built fresh from the current block set on every call.
func (g *Grid) RayCast(intr voxel.Intrinsics, extr voxel.Extrinsics, p kernel.RayCastParams) (*kernel.RayCastResult, error) {
	p.GridParams = g.params
	hb := kernel.NewHashedMonoBlocks(g.keys, g.blocks)
	return kernel.RayCastMono(hb, g.params.Resolution, intr, extr, p)
}

// ColorGrid is Grid's counterpart carrying an RGB running average per voxel.
type ColorGrid struct {
	params kernel.GridParams
	keys   []voxel.Key
	blocks []voxel.ColorBlock
	slotOf map[voxel.Key]int
}

// NewColorGrid creates an empty color grid with the given voxel geometry.
func NewColorGrid(params kernel.GridParams) *ColorGrid {
	return &ColorGrid{params: params, slotOf: make(map[voxel.Key]int)}
}

// EnsureBlocks is Grid.EnsureBlocks's color-voxel counterpart.
func (g *ColorGrid) EnsureBlocks(keys []voxel.Key) []voxel.Key {
	added := make([]voxel.Key, 0, len(keys))
	for _, k := range keys {
		if _, ok := g.slotOf[k]; ok {
			continue
		}
		g.slotOf[k] = len(g.keys)
		g.keys = append(g.keys, k)
		g.blocks = append(g.blocks, voxel.ColorBlock{
			Voxels: make([]voxel.Color, g.params.Resolution*g.params.Resolution*g.params.Resolution),
			R:      g.params.Resolution,
		})
		added = append(added, k)
	}
	return added
}

// NumBlocks returns the number of currently-allocated blocks.
func (g *ColorGrid) NumBlocks() int { return len(g.keys) }

func (g *ColorGrid) activeSet() *kernel.ColorActiveSet {
	indices := make([]int64, len(g.keys))
	for i := range indices {
		indices[i] = int64(i)
	}
	return kernel.NewColorActiveSet(g.keys, g.blocks, indices)
}

// Integrate fuses a posed depth+color frame into every currently-allocated
// block.
func (g *ColorGrid) Integrate(depth kernel.DepthImage, color kernel.ColorImage, intr voxel.Intrinsics, extr voxel.Extrinsics, p kernel.IntegrateParams) error {
	p.GridParams = g.params
	return kernel.IntegrateColor(g.activeSet(), depth, color, intr, extr, p)
}

// ExtractSurfacePoints returns the zero-crossing point cloud of the grid.
func (g *ColorGrid) ExtractSurfacePoints(p kernel.ExtractPointsParams) (points, normals, colors []ms3.Vec, n int, err error) {
	p.GridParams = g.params
	return kernel.ExtractSurfacePointsColor(g.activeSet(), p, nil, nil, nil)
}

// ExtractSurfaceMesh runs Marching Cubes over the grid.
func (g *ColorGrid) ExtractSurfaceMesh(p kernel.ExtractMeshParams) (*kernel.MeshResult, error) {
	p.GridParams = g.params
	return kernel.ExtractSurfaceMeshColor(g.activeSet(), p)
}

// EstimateRange computes the per-pixel visibility range for a candidate pose.
func (g *ColorGrid) EstimateRange(intr voxel.Intrinsics, extr voxel.Extrinsics, p kernel.RangeParams) (*kernel.RangeMap, error) {
	p.GridParams = g.params
	return kernel.EstimateRange(g.keys, intr, extr, p)
}

// RayCast renders the grid from a pose using the hashed addressing mode.
func (g *ColorGrid) RayCast(intr voxel.Intrinsics, extr voxel.Extrinsics, p kernel.RayCastParams) (*kernel.RayCastResult, error) {
	p.GridParams = g.params
	hb := kernel.NewHashedColorBlocks(g.keys, g.blocks)
	return kernel.RayCastColor(hb, g.params.Resolution, intr, extr, p)
}

// keysOf is a small helper used by tests to build a solid cube of block
// keys around the origin.
func keysOf(n int32) []voxel.Key {
	keys := make([]voxel.Key, 0, (2*n+1)*(2*n+1)*(2*n+1))
	for x := -n; x <= n; x++ {
		for y := -n; y <= n; y++ {
			for z := -n; z <= n; z++ {
				keys = append(keys, voxel.Key{X: x, Y: y, Z: z})
			}
		}
	}
	return keys
}
