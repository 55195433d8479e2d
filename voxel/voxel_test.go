package voxel

import "testing"

func TestMonoFuseWeightedAverage(t *testing.T) {
	var v Mono
	v.Fuse(0.5, 0)
	if v.Weight != 1 {
		t.Fatalf("weight after first fuse = %v, want 1", v.Weight)
	}
	if v.TSDF != 0.5 {
		t.Fatalf("tsdf after first fuse = %v, want 0.5", v.TSDF)
	}
	v.Fuse(-0.5, 0)
	if v.Weight != 2 {
		t.Fatalf("weight after second fuse = %v, want 2", v.Weight)
	}
	if v.TSDF != 0 {
		t.Fatalf("tsdf after averaging 0.5 and -0.5 = %v, want 0", v.TSDF)
	}
}

func TestMonoFuseMaxWeightCap(t *testing.T) {
	var v Mono
	for i := 0; i < 10; i++ {
		v.Fuse(1, 3)
	}
	if v.Weight != 3 {
		t.Fatalf("weight = %v, want capped at 3", v.Weight)
	}
}

func TestMonoFuseUnboundedWhenMaxWeightZero(t *testing.T) {
	var v Mono
	for i := 0; i < 10; i++ {
		v.Fuse(1, 0)
	}
	if v.Weight != 10 {
		t.Fatalf("weight = %v, want unbounded 10", v.Weight)
	}
}

func TestColorFuseUsesPreUpdateWeight(t *testing.T) {
	var c Color
	c.Fuse(1, 10, 20, 30, 0)
	c.Fuse(1, 30, 40, 50, 0)
	// second fuse: w=1 pre-update, so R = (1*10+30)/2 = 20.
	if c.R != 20 || c.G != 30 || c.B != 40 {
		t.Fatalf("color = (%v,%v,%v), want (20,30,40)", c.R, c.G, c.B)
	}
	if c.Weight != 2 {
		t.Fatalf("weight = %v, want 2", c.Weight)
	}
}

func TestTrusted(t *testing.T) {
	v := Mono{Weight: 1}
	if !v.Trusted(0.5) {
		t.Fatal("weight 1 should be trusted at threshold 0.5")
	}
	if v.Trusted(1) {
		t.Fatal("weight 1 should not be trusted at threshold 1 (strict >)")
	}
}
