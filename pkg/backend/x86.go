package backend

// X86 targets IA-32: 4-byte pointers, the `int 0x80` syscall gate.
type X86 struct {
	encoder
}

func NewX86() *X86 { return &X86{} }

func (x *X86) WordSize() int { return 4 }

// InvokeSyscall follows the classic Linux int-0x80 convention: number in
// EAX (already VREG0's physical register), first three arguments in EBX,
// ECX, EDX. VREG1/VREG2/VREG3 already occupy ECX/EDX/EBX, one permutation
// away from the int-0x80 slots, so argument registers are rotated into
// place with a 3-cycle xchg sequence rather than routed through scratch
// registers the 32-bit register file doesn't spare.
func (x *X86) InvokeSyscall(argCount int) {
	if argCount >= 1 {
		// xchg ebx, ecx -- EBX <- arg1 (VREG1), ECX <- arg3 (VREG3)
		x.buf.db(0x87)
		x.buf.db(modrm(3, 1, 3))
	}
	if argCount >= 2 {
		// xchg ecx, edx -- ECX <- arg2 (VREG2), EDX <- arg3
		x.buf.db(0x87)
		x.buf.db(modrm(3, 1, 2))
	}
	x.buf.db(0xCD) // int
	x.buf.db(0x80)
}
