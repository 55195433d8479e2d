//go:build tinygo || !cgo

package kernel

import (
	"errors"

	"github.com/soypat/tsdfusion/voxel"
)

// errNoCGO mirrors gleval's no-cgo fallback: GPU dispatch needs cgo bindings
// to OpenGL, which TinyGo and cgo-disabled builds do not provide.
var errNoCGO = errors.New("kernel: GPU Integrate backend requires CGo and is not supported on this build")

// InitGPU mirrors gpu_cgo.go's InitGPU; on this build it always fails.
func InitGPU() (terminate func(), err error) {
	return nil, errNoCGO
}

// GPUIntegrator would run IntegrateMono on a compute shader; on this build
// it always reports errNoCGO. Exported API stays build-tag independent.
type GPUIntegrator struct{}

func NewGPUIntegrator() (*GPUIntegrator, error) {
	return nil, errNoCGO
}

func (g *GPUIntegrator) IntegrateMono(set *MonoActiveSet, depth DepthImage, intr voxel.Intrinsics, extr voxel.Extrinsics, p IntegrateParams) error {
	return errNoCGO
}

func (g *GPUIntegrator) Close() {}
