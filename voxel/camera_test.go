package voxel

import (
	"math"
	"testing"

	"github.com/soypat/geometry/ms3"
)

func almostEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestProjectUnprojectRoundTrip(t *testing.T) {
	k := Intrinsics{Fx: 525, Fy: 525, Cx: 319.5, Cy: 239.5}
	pc := ms3.Vec{X: 0.3, Y: -0.2, Z: 1.5}
	u, v := k.Project(pc)
	back := k.Unproject(u, v, pc.Z)
	if !almostEqual(back.X, pc.X, 1e-3) || !almostEqual(back.Y, pc.Y, 1e-3) || back.Z != pc.Z {
		t.Fatalf("round trip got %+v, want %+v", back, pc)
	}
}

func TestInBounds(t *testing.T) {
	if _, _, ok := InBounds(-0.5, 10, 640, 480); ok {
		t.Fatal("negative u should be out of bounds")
	}
	if x, y, ok := InBounds(639.9, 479.9, 640, 480); !ok || x != 639 || y != 479 {
		t.Fatalf("got (%d,%d,%v), want (639,479,true)", x, y, ok)
	}
	if _, _, ok := InBounds(640, 0, 640, 480); ok {
		t.Fatal("u==w should be out of bounds (half-open)")
	}
}

func TestRotationApplyTransposeIsInverse(t *testing.T) {
	// 90 degree rotation about Z.
	rot := Rotation{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	v := ms3.Vec{X: 1, Y: 2, Z: 3}
	rotated := rot.Apply(v)
	back := rot.ApplyTranspose(rotated)
	if !almostEqual(back.X, v.X, 1e-5) || !almostEqual(back.Y, v.Y, 1e-5) || !almostEqual(back.Z, v.Z, 1e-5) {
		t.Fatalf("ApplyTranspose(Apply(v)) = %+v, want %+v", back, v)
	}
}

func TestIdentityRotationIsNoOp(t *testing.T) {
	v := ms3.Vec{X: 1, Y: -2, Z: 3.5}
	got := Identity.Apply(v)
	if got != v {
		t.Fatalf("Identity.Apply(v) = %+v, want %+v", got, v)
	}
}

func TestExtrinsicsToCameraToWorldRoundTrip(t *testing.T) {
	e := Extrinsics{
		Rot:   Rotation{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}}, // 90 deg about X
		Trans: ms3.Vec{X: 0.1, Y: 0.2, Z: 0.3},
	}
	world := ms3.Vec{X: 1, Y: 2, Z: 3}
	camera := e.ToCamera(world)
	back := e.ToWorld(camera)
	if !almostEqual(back.X, world.X, 1e-5) || !almostEqual(back.Y, world.Y, 1e-5) || !almostEqual(back.Z, world.Z, 1e-5) {
		t.Fatalf("ToWorld(ToCamera(world)) = %+v, want %+v", back, world)
	}
}

func TestCameraCenterProjectsToOriginInCameraFrame(t *testing.T) {
	e := Extrinsics{
		Rot:   Rotation{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
		Trans: ms3.Vec{X: 0.1, Y: 0.2, Z: 0.3},
	}
	center := e.CameraCenter()
	pc := e.ToCamera(center)
	if math.Abs(float64(pc.X)) > 1e-4 || math.Abs(float64(pc.Y)) > 1e-4 || math.Abs(float64(pc.Z)) > 1e-4 {
		t.Fatalf("ToCamera(CameraCenter()) = %+v, want ~0", pc)
	}
}
