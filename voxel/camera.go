package voxel

import "github.com/soypat/geometry/ms3"

// Intrinsics is a pinhole camera's 3x3 intrinsic matrix
// [[fx,0,cx],[0,fy,cy],[0,0,1]]. No distortion model.
type Intrinsics struct {
	Fx, Fy float32
	Cx, Cy float32
}

// Project maps a camera-space point to pixel coordinates (u,v) =
// (fx*x/z + cx, fy*y/z + cy). Callers must check pc.Z > 0 first.
func (k Intrinsics) Project(pc ms3.Vec) (u, v float32) {
	u = k.Fx*pc.X/pc.Z + k.Cx
	v = k.Fy*pc.Y/pc.Z + k.Cy
	return u, v
}

// Unproject is Project's inverse given a depth (camera-space z): recovers
// the camera-space point that projects to (u,v) at that depth.
func (k Intrinsics) Unproject(u, v, depth float32) ms3.Vec {
	return ms3.Vec{
		X: (u - k.Cx) / k.Fx * depth,
		Y: (v - k.Cy) / k.Fy * depth,
		Z: depth,
	}
}

// InBounds is the half-open [0,W)x[0,H) in-image test after truncating
// (u,v) to integers, used by every kernel that reprojects a world point.
func InBounds(u, v float32, w, h int32) (x, y int32, ok bool) {
	x, y = int32(u), int32(v)
	if u < 0 || v < 0 {
		return x, y, false
	}
	return x, y, x < w && y < h
}

// Rotation is a 3x3 rotation matrix stored row-major. Kept as a small
// self-contained type (rather than relying on a general linear-algebra
// matrix type) since the only operations this module needs are
// vector/transpose-vector products and composition with a translation.
type Rotation [3][3]float32

// Identity is the identity rotation.
var Identity = Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Apply computes R*v.
func (r Rotation) Apply(v ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// ApplyTranspose computes R^T*v, i.e. the inverse rotation since R is
// orthonormal.
func (r Rotation) ApplyTranspose(v ms3.Vec) ms3.Vec {
	return ms3.Vec{
		X: r[0][0]*v.X + r[1][0]*v.Y + r[2][0]*v.Z,
		Y: r[0][1]*v.X + r[1][1]*v.Y + r[2][1]*v.Z,
		Z: r[0][2]*v.X + r[1][2]*v.Y + r[2][2]*v.Z,
	}
}

// Extrinsics is the world-to-camera rigid transform E = (R|t): pc = R*pw + t.
type Extrinsics struct {
	Rot   Rotation
	Trans ms3.Vec
}

// ToCamera applies the rigid transform to a world point.
func (e Extrinsics) ToCamera(world ms3.Vec) ms3.Vec {
	return ms3.Add(e.Rot.Apply(world), e.Trans)
}

// ToWorld applies the inverse rigid transform (camera-to-world pose) to a
// camera-space point: pw = R^T*(pc - t).
func (e Extrinsics) ToWorld(camera ms3.Vec) ms3.Vec {
	return e.Rot.ApplyTranspose(ms3.Sub(camera, e.Trans))
}

// RotateToWorld rotates a camera-frame direction (e.g. a surface normal)
// into world frame without translating it.
func (e Extrinsics) RotateToWorld(dir ms3.Vec) ms3.Vec {
	return e.Rot.ApplyTranspose(dir)
}

// RotateToCamera rotates a world-frame direction into camera frame without
// translating it.
func (e Extrinsics) RotateToCamera(dir ms3.Vec) ms3.Vec {
	return e.Rot.Apply(dir)
}

// CameraCenter returns the camera's world-space origin, i.e. the
// camera-to-world pose's translation: -R^T*t.
func (e Extrinsics) CameraCenter() ms3.Vec {
	return e.Rot.ApplyTranspose(ms3.Scale(-1, e.Trans))
}
