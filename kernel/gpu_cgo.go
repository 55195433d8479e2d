//go:build !tinygo && cgo

package kernel

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/soypat/glgl/v4.1-core/glgl"

	"github.com/soypat/tsdfusion/voxel"
)

// integrateComputeShader is IntegrateMono's acceptance test and fusion
// update (§4.2) restated as a GLSL compute kernel: one invocation per
// (block_slot, voxel_local) pair, exactly the workload bulkParallelMap
// drives on CPU.
const integrateComputeShader = `
#version 430
layout(local_size_x = 256) in;

layout(std430, binding=0) buffer WorldX { int worldX[]; };
layout(std430, binding=1) buffer WorldY { int worldY[]; };
layout(std430, binding=2) buffer WorldZ { int worldZ[]; };
layout(std430, binding=3) buffer Depth  { float depthData[]; };
layout(std430, binding=4) buffer Tsdf   { float tsdf[]; };
layout(std430, binding=5) buffer Weight { float weight[]; };

uniform mat3 uRot;
uniform vec3 uTrans;
uniform vec4 uIntrinsics; // fx,fy,cx,cy
uniform ivec2 uDepthSize; // w,h
uniform vec4 uParams;     // voxelSize, depthScale, depthMax, sdfTrunc
uniform float uMaxWeight;

void main() {
	uint i = gl_GlobalInvocationID.x;
	if (i >= tsdf.length()) return;

	vec3 world = vec3(worldX[i], worldY[i], worldZ[i]) * uParams.x;
	vec3 pc = uRot * world + uTrans;
	if (pc.z <= 0.0) return;

	float u = uIntrinsics.x * pc.x / pc.z + uIntrinsics.z;
	float v = uIntrinsics.y * pc.y / pc.z + uIntrinsics.w;
	int x = int(floor(u));
	int y = int(floor(v));
	if (x < 0 || y < 0 || x >= uDepthSize.x || y >= uDepthSize.y) return;

	float d = depthData[y * uDepthSize.x + x] / uParams.y;
	float depthMax = uParams.z;
	float sdfTrunc = uParams.w;
	if (d <= 0.0 || d > depthMax) return;

	float sdf = d - pc.z;
	if (sdf < -sdfTrunc) return;
	sdf = min(sdf, sdfTrunc) / sdfTrunc;

	float w = weight[i];
	float nw = w + 1.0;
	if (uMaxWeight > 0.0 && nw > uMaxWeight) nw = uMaxWeight;
	tsdf[i] = (w * tsdf[i] + sdf) / (w + 1.0);
	weight[i] = nw;
}
` + "\x00"

// InitGPU opens a 1x1 hidden window to obtain a current GL context, exactly
// as gleval.Init1x1GLFW does, and must be called once before NewGPUIntegrator.
// The returned terminate func should run when the caller is done with the GPU.
func InitGPU() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "tsdfusion-compute",
		Version: [2]int{4, 3},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// GPUIntegrator runs IntegrateMono on the GPU via a compute shader,
// mirroring gleval's Batcher compute dispatch (SSBO load/dispatch/readback).
type GPUIntegrator struct {
	prog glgl.Program
}

func NewGPUIntegrator() (*GPUIntegrator, error) {
	prog, err := glgl.CompileProgram(glgl.ShaderSource{Compute: integrateComputeShader})
	if err != nil {
		return nil, err
	}
	return &GPUIntegrator{prog: prog}, nil
}

func (g *GPUIntegrator) Close() {
	g.prog.Delete()
}

// IntegrateMono marshals the active set's voxel payload and world
// coordinates into SSBOs, dispatches the compute shader, then copies the
// updated tsdf/weight arrays back into set.Blocks. Semantically identical
// to kernel.IntegrateMono; only the execution device differs.
func (g *GPUIntegrator) IntegrateMono(set *MonoActiveSet, depth DepthImage, intr voxel.Intrinsics, extr voxel.Extrinsics, p IntegrateParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r := p.Resolution
	r3 := int(r) * int(r) * int(r)
	n := len(set.Indices) * r3
	if n == 0 {
		return nil
	}

	worldX := make([]int32, n)
	worldY := make([]int32, n)
	worldZ := make([]int32, n)
	tsdf := make([]float32, n)
	weight := make([]float32, n)
	for w := 0; w < n; w++ {
		slot := set.Indices[w/r3]
		local := int32(w % r3)
		xv, yv, zv := voxel.VoxelCoord(r, local)
		wx, wy, wz := voxel.WorldVoxelCoord(set.Keys[slot], r, xv, yv, zv)
		worldX[w], worldY[w], worldZ[w] = wx, wy, wz
		vox := &set.Blocks[slot].Voxels[local]
		tsdf[w], weight[w] = vox.TSDF, vox.Weight
	}

	g.prog.Bind()
	defer g.prog.Unbind()

	if err := setMat3Uniform(g.prog, "uRot\x00", extr.Rot); err != nil {
		return err
	}
	if err := setVec3Uniform(g.prog, "uTrans\x00", extr.Trans.X, extr.Trans.Y, extr.Trans.Z); err != nil {
		return err
	}
	if err := setVec4Uniform(g.prog, "uIntrinsics\x00", intr.Fx, intr.Fy, intr.Cx, intr.Cy); err != nil {
		return err
	}
	if err := setIVec2Uniform(g.prog, "uDepthSize\x00", depth.W, depth.H); err != nil {
		return err
	}
	if err := setVec4Uniform(g.prog, "uParams\x00", p.VoxelSize, p.DepthScale, p.DepthMax, p.SDFTrunc); err != nil {
		return err
	}
	if err := setFloatUniform(g.prog, "uMaxWeight\x00", p.MaxWeight); err != nil {
		return err
	}

	var pin runtime.Pinner
	ssboWX := loadSSBO(worldX, 0, gl.STATIC_DRAW)
	ssboWY := loadSSBO(worldY, 1, gl.STATIC_DRAW)
	ssboWZ := loadSSBO(worldZ, 2, gl.STATIC_DRAW)
	ssboDepth := loadSSBO(depth.Data, 3, gl.STATIC_DRAW)
	ssboTsdf := loadSSBO(tsdf, 4, gl.DYNAMIC_READ)
	ssboWeight := loadSSBO(weight, 5, gl.DYNAMIC_READ)
	pin.Pin(&ssboWX)
	pin.Pin(&ssboWY)
	pin.Pin(&ssboWZ)
	pin.Pin(&ssboDepth)
	pin.Pin(&ssboTsdf)
	pin.Pin(&ssboWeight)
	defer pin.Unpin()
	defer gl.DeleteBuffers(1, &ssboWX)
	defer gl.DeleteBuffers(1, &ssboWY)
	defer gl.DeleteBuffers(1, &ssboWZ)
	defer gl.DeleteBuffers(1, &ssboDepth)
	defer gl.DeleteBuffers(1, &ssboTsdf)
	defer gl.DeleteBuffers(1, &ssboWeight)

	if err := glgl.Err(); err != nil {
		return err
	}
	nWorkX := (n + 255) / 256
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	if err := glgl.Err(); err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	if err := glgl.Err(); err != nil {
		return err
	}

	if err := copySSBO(tsdf, ssboTsdf); err != nil {
		return err
	}
	if err := copySSBO(weight, ssboWeight); err != nil {
		return err
	}

	for w := 0; w < n; w++ {
		slot := set.Indices[w/r3]
		local := int32(w % r3)
		vox := &set.Blocks[slot].Voxels[local]
		vox.TSDF, vox.Weight = tsdf[w], weight[w]
	}
	return nil
}

func setFloatUniform(prog glgl.Program, name string, v float32) error {
	loc, err := prog.UniformLocation(name)
	if err != nil {
		return err
	}
	return prog.SetUniformf(loc, v)
}

func setVec3Uniform(prog glgl.Program, name string, x, y, z float32) error {
	loc, err := prog.UniformLocation(name)
	if err != nil {
		return err
	}
	gl.Uniform3f(loc, x, y, z)
	return glErrOrMessage("setting vec3 uniform " + name)
}

func setVec4Uniform(prog glgl.Program, name string, x, y, z, w float32) error {
	loc, err := prog.UniformLocation(name)
	if err != nil {
		return err
	}
	gl.Uniform4f(loc, x, y, z, w)
	return glErrOrMessage("setting vec4 uniform " + name)
}

func setIVec2Uniform(prog glgl.Program, name string, x, y int32) error {
	loc, err := prog.UniformLocation(name)
	if err != nil {
		return err
	}
	gl.Uniform2i(loc, x, y)
	return glErrOrMessage("setting ivec2 uniform " + name)
}

// setMat3Uniform uploads a voxel.Rotation column-major, matching GLSL's
// mat3 layout.
func setMat3Uniform(prog glgl.Program, name string, rot voxel.Rotation) error {
	loc, err := prog.UniformLocation(name)
	if err != nil {
		return err
	}
	m := [9]float32{
		rot[0][0], rot[1][0], rot[2][0],
		rot[0][1], rot[1][1], rot[2][1],
		rot[0][2], rot[1][2], rot[2][2],
	}
	gl.UniformMatrix3fv(loc, 1, false, &m[0])
	return glErrOrMessage("setting mat3 uniform " + name)
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	singleSize := elemSize[T]()
	bufSize := singleSize * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		if err := glErrOrMessage("mapping SSBO buffer during copy"); err != nil {
			return err
		}
		return errors.New("mapping SSBO buffer during copy: gl.MapBufferRange returned nil")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

// glErrOrMessage wraps glgl.Err() with context, returning nil when there is
// no pending GL error.
func glErrOrMessage(context string) error {
	if err := glgl.Err(); err != nil {
		return fmt.Errorf("%s: %w", context, err)
	}
	return nil
}
