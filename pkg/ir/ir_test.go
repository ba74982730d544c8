package ir_test

import (
	"testing"

	"occ.dev/compiler/pkg/ir"
)

func TestVRegStringNamesEveryPoolMember(t *testing.T) {
	cases := map[ir.VReg]string{
		ir.VREG0: "vreg0", ir.VREG1: "vreg1", ir.VREG2: "vreg2", ir.VREG3: "vreg3",
		ir.SP: "sp", ir.BP: "bp", ir.IP: "ip", ir.RETURN_VALUE: "ret", ir.ANY: "any",
	}
	for reg, want := range cases {
		if got := reg.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", reg, got, want)
		}
	}
}

func TestReturnValueIsDistinctFromVREG0(t *testing.T) {
	// Both map to the same physical register via the backend's physReg,
	// but the driver's pool bookkeeping (regIndex) must tell them apart:
	// RETURN_VALUE is never a pool member, VREG0 always is.
	if ir.RETURN_VALUE == ir.VREG0 {
		t.Fatal("RETURN_VALUE and VREG0 must be distinct VReg values")
	}
}

func TestRelocKindValuesAreDistinct(t *testing.T) {
	kinds := []ir.RelocKind{ir.RelocCode, ir.RelocData, ir.RelocImport}
	seen := map[ir.RelocKind]bool{}
	for _, k := range kinds {
		if seen[k] {
			t.Fatalf("duplicate RelocKind value %d", k)
		}
		seen[k] = true
	}
}
