package kernel

import (
	"fmt"
	"log"
)

// GridParams are the scalar parameters shared by every kernel in this
// package: the active-set geometry and voxel sizing.
type GridParams struct {
	Resolution int32   // R: block edge length in voxels, power of two.
	VoxelSize  float32 // voxel edge length, meters.
	SDFTrunc   float32 // truncation band, meters.
}

func (g GridParams) Validate() error {
	if g.Resolution <= 0 || g.Resolution&(g.Resolution-1) != 0 {
		return fmt.Errorf("kernel: resolution %d must be a positive power of two", g.Resolution)
	}
	if g.VoxelSize <= 0 {
		return fmt.Errorf("kernel: voxel_size must be positive, got %g", g.VoxelSize)
	}
	if g.SDFTrunc <= 0 {
		return fmt.Errorf("kernel: sdf_trunc must be positive, got %g", g.SDFTrunc)
	}
	return nil
}

// IntegrateParams configures Integrate. Logger defaults to log.Default()
// when nil.
type IntegrateParams struct {
	GridParams
	DepthScale float32 // raw-to-meters divisor for depth samples.
	DepthMax   float32 // per-ray far clip, meters.
	MaxWeight  float32 // optional voxel weight cap; 0 = unbounded.
	Logger     *log.Logger
}

func (p *IntegrateParams) Validate() error {
	if err := p.GridParams.Validate(); err != nil {
		return err
	}
	if p.DepthScale <= 0 {
		return fmt.Errorf("kernel: depth_scale must be positive, got %g", p.DepthScale)
	}
	if p.DepthMax <= 0 {
		return fmt.Errorf("kernel: depth_max must be positive, got %g", p.DepthMax)
	}
	if p.MaxWeight < 0 {
		return fmt.Errorf("kernel: max_weight must be >= 0, got %g", p.MaxWeight)
	}
	if p.Logger == nil {
		p.Logger = log.Default()
	}
	return nil
}

// ExtractPointsParams configures ExtractSurfacePoints.
type ExtractPointsParams struct {
	GridParams
	WeightThreshold float32
	WithColors      bool
	WithNormals     bool
	Logger          *log.Logger
}

func (p *ExtractPointsParams) Validate() error {
	if err := p.GridParams.Validate(); err != nil {
		return err
	}
	if p.Logger == nil {
		p.Logger = log.Default()
	}
	return nil
}

// ExtractMeshParams configures ExtractSurfaceMesh.
type ExtractMeshParams struct {
	GridParams
	WeightThreshold float32
	WithColors      bool
	WithNormals     bool
	Logger          *log.Logger
}

func (p *ExtractMeshParams) Validate() error {
	if err := p.GridParams.Validate(); err != nil {
		return err
	}
	if p.Logger == nil {
		p.Logger = log.Default()
	}
	return nil
}

// RangeParams configures EstimateRange.
type RangeParams struct {
	GridParams
	Width, Height      int32
	DownFactor         int32
	DepthMin, DepthMax float32
	Logger             *log.Logger
}

func (p *RangeParams) Validate() error {
	if err := p.GridParams.Validate(); err != nil {
		return err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("kernel: width/height must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.DownFactor <= 0 {
		return fmt.Errorf("kernel: down_factor must be positive, got %d", p.DownFactor)
	}
	if p.DepthMax <= p.DepthMin {
		return fmt.Errorf("kernel: depth_max (%g) must exceed depth_min (%g)", p.DepthMax, p.DepthMin)
	}
	if p.Logger == nil {
		p.Logger = log.Default()
	}
	return nil
}

// RayCastParams configures RayCast.
type RayCastParams struct {
	GridParams
	Width, Height      int32
	DepthScale         float32
	DepthMin, DepthMax float32
	WeightThreshold    float32
	MaxSteps           int32
	WithDepth          bool
	WithVertex         bool
	WithColor          bool
	WithNormal         bool
	Logger             *log.Logger
}

func (p *RayCastParams) Validate() error {
	if err := p.GridParams.Validate(); err != nil {
		return err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("kernel: width/height must be positive, got %dx%d", p.Width, p.Height)
	}
	if p.DepthScale <= 0 {
		return fmt.Errorf("kernel: depth_scale must be positive, got %g", p.DepthScale)
	}
	if p.DepthMax <= p.DepthMin {
		return fmt.Errorf("kernel: depth_max (%g) must exceed depth_min (%g)", p.DepthMax, p.DepthMin)
	}
	if p.MaxSteps <= 0 {
		return fmt.Errorf("kernel: max_steps must be positive, got %d", p.MaxSteps)
	}
	if p.Logger == nil {
		p.Logger = log.Default()
	}
	if !p.WithDepth && !p.WithVertex && !p.WithColor && !p.WithNormal {
		p.Logger.Println("kernel: RayCast called with no outputs selected, returning without tracing")
	}
	return nil
}

// BlockSize returns R*voxel_size, the world-space edge length of a block.
func (g GridParams) BlockSize() float32 {
	return float32(g.Resolution) * g.VoxelSize
}
