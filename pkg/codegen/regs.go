package codegen

import "occ.dev/compiler/pkg/ir"

// The four-member register pool named in spec.md §4.2: VREG_0..VREG_3.
// acquire(ANY) picks the least-used member; if it is already in use the
// driver saves its current value with a push before claiming it, and
// restores it with a pop on release. This is the whole of register
// allocation: spill-on-collision, no liveness analysis.
var pool = [4]ir.VReg{ir.VREG0, ir.VREG1, ir.VREG2, ir.VREG3}

func (d *Driver) acquire(want ir.VReg) ir.VReg {
	reg := want
	if want == ir.ANY {
		best, bestCount := pool[0], d.regUse[0]
		for i := 1; i < len(pool); i++ {
			if d.regUse[i] < bestCount {
				best, bestCount = pool[i], d.regUse[i]
			}
		}
		reg = best
	}
	idx := regIndex(reg)
	if idx >= 0 {
		if d.regUse[idx] > 0 {
			d.backend.Push(reg)
		}
		d.regUse[idx]++
	}
	return reg
}

func (d *Driver) release(reg ir.VReg) {
	idx := regIndex(reg)
	if idx < 0 {
		return
	}
	d.regUse[idx]--
	if d.regUse[idx] > 0 {
		d.backend.Pop(reg)
	}
}

func regIndex(reg ir.VReg) int {
	switch reg {
	case ir.VREG0:
		return 0
	case ir.VREG1:
		return 1
	case ir.VREG2:
		return 2
	case ir.VREG3:
		return 3
	default:
		return -1
	}
}
