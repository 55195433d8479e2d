package kernel

import (
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"

	"github.com/soypat/tsdfusion/voxel"
)

// fragmentSize and fragmentCapacity are the fixed tiling parameters of
// §4.6's phase 2: blocks are tiled into 16x16 screen-space fragments to
// parallelize the per-pixel atomic update in phase 3.
const (
	fragmentSize     = 16
	fragmentCapacity = 65535
)

// RangeMap is EstimateRange's output: per-downsampled-pixel (z_min,z_max)
// pairs, row-major, z_min then z_max per pixel.
type RangeMap struct {
	W, H int32
	Data []float32 // len == W*H*2
}

func (m *RangeMap) at(x, y int32) (zMinIdx, zMaxIdx int32) {
	base := (y*m.W + x) * 2
	return base, base + 1
}

type fragment struct {
	zMin, zMax           float32
	uMin, vMin, uMax, vMax int32
}

type blockRect struct {
	uMin, vMin, uMax, vMax int32
	zMin, zMax             float32
}

// EstimateRange runs the three-phase per-block projection + fragment
// rasterization of §4.6. It only needs block_keys, not voxel payloads.
func EstimateRange(keys []voxel.Key, intr voxel.Intrinsics, extr voxel.Extrinsics, p RangeParams) (*RangeMap, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	dw := p.Width / p.DownFactor
	dh := p.Height / p.DownFactor
	dintr := voxel.Intrinsics{Fx: intr.Fx / float32(p.DownFactor), Fy: intr.Fy / float32(p.DownFactor), Cx: intr.Cx / float32(p.DownFactor), Cy: intr.Cy / float32(p.DownFactor)}

	// Phase 1: per-block bounding.
	rects := make([]blockRect, len(keys))
	valid := make([]bool, len(keys))
	blockSize := p.BlockSize()
	bulkParallelMap(len(keys), func(i int) {
		r, ok := projectBlockBounds(keys[i], blockSize, dintr, extr, dw, dh)
		if !ok {
			return
		}
		rects[i] = r
		valid[i] = true
	})

	// Phase 2: fragment emission.
	fragments := make([]fragment, fragmentCapacity)
	var fragCount int64
	overflowed := int32(0)
	for i := range rects {
		if !valid[i] {
			continue
		}
		rect := rects[i]
		for v := rect.vMin; v < rect.vMax; v += fragmentSize {
			for u := rect.uMin; u < rect.uMax; u += fragmentSize {
				vEnd := minInt32(v+fragmentSize, rect.vMax)
				uEnd := minInt32(u+fragmentSize, rect.uMax)
				slot := atomic.AddInt64(&fragCount, 1) - 1
				if int(slot) >= fragmentCapacity {
					if atomic.CompareAndSwapInt32(&overflowed, 0, 1) {
						p.Logger.Printf("kernel: EstimateRange fragment buffer overflowed capacity %d, dropping remaining blocks", fragmentCapacity)
					}
					goto done
				}
				fragments[slot] = fragment{zMin: rect.zMin, zMax: rect.zMax, uMin: u, vMin: v, uMax: uEnd, vMax: vEnd}
			}
		}
	}
done:
	if fragCount > fragmentCapacity {
		fragCount = fragmentCapacity
	}
	fragments = fragments[:fragCount]

	// Phase 3: pre-fill (inverted) then rasterize.
	out := &RangeMap{W: dw, H: dh, Data: make([]float32, int(dw)*int(dh)*2)}
	bulkParallelMap(int(dw)*int(dh), func(i int) {
		out.Data[2*i] = p.DepthMax
		out.Data[2*i+1] = p.DepthMin
	})

	bulkParallelMap(len(fragments)*fragmentSize*fragmentSize, func(w int) {
		fi := w / (fragmentSize * fragmentSize)
		local := int32(w % (fragmentSize * fragmentSize))
		f := fragments[fi]
		du, dv := local%fragmentSize, local/fragmentSize
		u, v := f.uMin+du, f.vMin+dv
		if u >= f.uMax || v >= f.vMax {
			return
		}
		zMinIdx, zMaxIdx := out.at(u, v)
		atomicMinFloat32(&out.Data[zMinIdx], f.zMin)
		atomicMaxFloat32(&out.Data[zMaxIdx], f.zMax)
	})
	return out, nil
}

// projectBlockBounds implements phase 1: project a block's 8 world corners
// and derive its screen-space integer rectangle and z envelope.
func projectBlockBounds(key voxel.Key, blockSize float32, intr voxel.Intrinsics, extr voxel.Extrinsics, w, h int32) (blockRect, bool) {
	var rect blockRect
	rect.uMin, rect.vMin = w, h
	rect.uMax, rect.vMax = -1, -1
	rect.zMin, rect.zMax = math.MaxFloat32, -math.MaxFloat32
	any := false

	for bx := 0; bx < 2; bx++ {
		for by := 0; by < 2; by++ {
			for bz := 0; bz < 2; bz++ {
				corner := ms3.Vec{
					X: (float32(key.X) + float32(bx)) * blockSize,
					Y: (float32(key.Y) + float32(by)) * blockSize,
					Z: (float32(key.Z) + float32(bz)) * blockSize,
				}
				pc := extr.ToCamera(corner)
				if pc.Z <= 0 {
					continue
				}
				u, v := intr.Project(pc)
				ui, vi := int32(math32.Floor(u)), int32(math32.Floor(v))
				if ui < rect.uMin {
					rect.uMin = ui
				}
				if vi < rect.vMin {
					rect.vMin = vi
				}
				if ui+1 > rect.uMax {
					rect.uMax = ui + 1
				}
				if vi+1 > rect.vMax {
					rect.vMax = vi + 1
				}
				rect.zMin = math32.Min(rect.zMin, pc.Z)
				rect.zMax = math32.Max(rect.zMax, pc.Z)
				any = true
			}
		}
	}
	if !any {
		return rect, false
	}
	if rect.uMin < 0 {
		rect.uMin = 0
	}
	if rect.vMin < 0 {
		rect.vMin = 0
	}
	if rect.uMax > w {
		rect.uMax = w
	}
	if rect.vMax > h {
		rect.vMax = h
	}
	if rect.uMin >= rect.uMax || rect.vMin >= rect.vMax {
		return rect, false
	}
	return rect, true
}

func minInt32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// atomicMinFloat32 and atomicMaxFloat32 implement the atomicMinf/atomicMaxf
// primitive of §4.6 via compare-and-swap on the IEEE-754 bit pattern, since
// float atomics are not a Go language primitive (§9 design note).
func atomicMinFloat32(addr *float32, v float32) {
	bits := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(bits)
		oldF := math.Float32frombits(old)
		if v >= oldF {
			return
		}
		if atomic.CompareAndSwapUint32(bits, old, math.Float32bits(v)) {
			return
		}
	}
}

func atomicMaxFloat32(addr *float32, v float32) {
	bits := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(bits)
		oldF := math.Float32frombits(old)
		if v <= oldF {
			return
		}
		if atomic.CompareAndSwapUint32(bits, old, math.Float32bits(v)) {
			return
		}
	}
}
