package mctables

import "testing"

func TestEdgeTableSymmetricUnderComplement(t *testing.T) {
	for i := 0; i < 256; i++ {
		if EdgeTable[i] != EdgeTable[255-i] {
			t.Fatalf("EdgeTable[%d] = %#x, EdgeTable[%d] = %#x, want equal", i, EdgeTable[i], 255-i, EdgeTable[255-i])
		}
	}
}

func TestAllZeroAndAllOneConfigsHaveNoCrossings(t *testing.T) {
	if EdgeTable[0] != 0 {
		t.Fatalf("EdgeTable[0] = %#x, want 0 (no corners below the surface)", EdgeTable[0])
	}
	if EdgeTable[255] != 0 {
		t.Fatalf("EdgeTable[255] = %#x, want 0 (all corners below the surface)", EdgeTable[255])
	}
	if TriCount[0] != 0 || TriCount[255] != 0 {
		t.Fatalf("TriCount[0]=%d TriCount[255]=%d, want 0,0", TriCount[0], TriCount[255])
	}
}

func TestTriCountMatchesTriTableTerminator(t *testing.T) {
	for i := 0; i < 256; i++ {
		n := int(TriCount[i])
		if n < 0 || n > 5 {
			t.Fatalf("TriCount[%d] = %d, out of [0,5]", i, n)
		}
		for t_ := 0; t_ < n; t_++ {
			for v := 0; v < 3; v++ {
				e := TriTable[i][3*t_+v]
				if e < 0 || e > 11 {
					t.Fatalf("TriTable[%d][%d] = %d, out of [0,11] within counted triangles", i, 3*t_+v, e)
				}
			}
		}
		if 3*n < 16 && TriTable[i][3*n] != -1 {
			t.Errorf("TriTable[%d] entry %d = %d right after TriCount*3, want -1 terminator", i, 3*n, TriTable[i][3*n])
		}
	}
}

func TestTriTableEdgesMatchEdgeMask(t *testing.T) {
	for i := 0; i < 256; i++ {
		mask := EdgeTable[i]
		n := int(TriCount[i])
		for k := 0; k < 3*n; k++ {
			e := TriTable[i][k]
			if mask&(1<<uint(e)) == 0 {
				t.Fatalf("config %d uses edge %d not present in EdgeTable mask %#x", i, e, mask)
			}
		}
	}
}

func TestVtxShiftsAreUnitCube(t *testing.T) {
	seen := make(map[[3]int8]bool)
	for _, s := range VtxShifts {
		for _, c := range s {
			if c != 0 && c != 1 {
				t.Fatalf("VtxShifts entry %v has component outside {0,1}", s)
			}
		}
		seen[s] = true
	}
	if len(seen) != 8 {
		t.Fatalf("VtxShifts has %d distinct corners, want 8", len(seen))
	}
}

func TestEdgeShiftsAxisInRange(t *testing.T) {
	for i, e := range EdgeShifts {
		if e[3] < 0 || e[3] > 2 {
			t.Fatalf("EdgeShifts[%d] axis = %d, want in [0,2]", i, e[3])
		}
	}
}
