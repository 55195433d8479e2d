package kernel

import "testing"

func TestGridParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		p       GridParams
		wantErr bool
	}{
		{"ok", GridParams{Resolution: 8, VoxelSize: 0.01, SDFTrunc: 0.04}, false},
		{"non power of two", GridParams{Resolution: 6, VoxelSize: 0.01, SDFTrunc: 0.04}, true},
		{"zero resolution", GridParams{Resolution: 0, VoxelSize: 0.01, SDFTrunc: 0.04}, true},
		{"negative voxel size", GridParams{Resolution: 8, VoxelSize: -1, SDFTrunc: 0.04}, true},
		{"zero sdf trunc", GridParams{Resolution: 8, VoxelSize: 0.01, SDFTrunc: 0}, true},
	}
	for _, c := range cases {
		err := c.p.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: Validate() err = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestGridParamsBlockSize(t *testing.T) {
	g := GridParams{Resolution: 8, VoxelSize: 0.02}
	if got := g.BlockSize(); got != 0.16 {
		t.Fatalf("BlockSize() = %v, want 0.16", got)
	}
}

func TestIntegrateParamsValidateDefaultsLogger(t *testing.T) {
	p := IntegrateParams{
		GridParams: GridParams{Resolution: 8, VoxelSize: 0.01, SDFTrunc: 0.04},
		DepthScale: 1000,
		DepthMax:   4,
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if p.Logger == nil {
		t.Fatal("Validate() should default Logger when nil")
	}
}

func TestIntegrateParamsRejectsNegativeMaxWeight(t *testing.T) {
	p := IntegrateParams{
		GridParams: GridParams{Resolution: 8, VoxelSize: 0.01, SDFTrunc: 0.04},
		DepthScale: 1000,
		DepthMax:   4,
		MaxWeight:  -1,
	}
	if err := p.Validate(); err == nil {
		t.Fatal("Validate() should reject negative MaxWeight")
	}
}

func TestRayCastParamsNoOutputsLogsNotErrors(t *testing.T) {
	p := RayCastParams{
		GridParams: GridParams{Resolution: 8, VoxelSize: 0.01, SDFTrunc: 0.04},
		Width:      4, Height: 4,
		DepthScale: 1000,
		DepthMin:   0.1, DepthMax: 4,
		MaxSteps: 100,
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil (no-outputs is a logged no-op, not an error)", err)
	}
}

func TestRangeParamsRejectsInvertedDepthRange(t *testing.T) {
	p := RangeParams{
		GridParams: GridParams{Resolution: 8, VoxelSize: 0.01, SDFTrunc: 0.04},
		Width:      4, Height: 4, DownFactor: 1,
		DepthMin: 4, DepthMax: 1,
	}
	if err := p.Validate(); err == nil {
		t.Fatal("Validate() should reject depth_max <= depth_min")
	}
}
