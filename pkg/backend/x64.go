package backend

import "occ.dev/compiler/pkg/ir"

// X64 targets AMD64/System V: 8-byte pointers, the `syscall` instruction.
// Every general-purpose operation is inherited from encoder unchanged —
// operating on the 32-bit sub-registers needs no REX prefix in long mode
// either, so the opcode bytes are identical to X86's.
type X64 struct {
	encoder
}

func NewX64() *X64 { return &X64{} }

func (x *X64) WordSize() int { return 8 }

// InvokeSyscall follows the System V AMD64 syscall convention: number in
// RAX (VREG0's physical register, already in place by construction),
// arguments in RDI, RSI, RDX for the first three — the pool's remaining
// three virtual registers (VREG1..VREG3, arguments 1..3 in order) are
// moved into them before the `syscall` opcode. Beyond three arguments is
// out of scope: the vreg pool only has four slots total including the
// syscall number.
func (x *X64) InvokeSyscall(argCount int) {
	// RDI=7 and RSI=6 are outside the vreg pool's physical set
	// (RAX/RCX/RDX/RBX), so they are written directly. EDX (VREG2) is
	// copied into RSI before EBX (VREG3) overwrites it as the third
	// argument.
	if argCount >= 1 {
		x.buf.db(0x89) // mov r/m32, r32 : RDI <- ECX (VREG1)
		x.buf.db(modrm(3, physReg(ir.VREG1), 7))
	}
	if argCount >= 2 {
		x.buf.db(0x89) // RSI <- EDX (VREG2)
		x.buf.db(modrm(3, physReg(ir.VREG2), 6))
	}
	if argCount >= 3 {
		x.buf.db(0x89) // RDX <- EBX (VREG3)
		x.buf.db(modrm(3, physReg(ir.VREG3), physReg(ir.VREG2)))
	}
	x.buf.db(0x0F)
	x.buf.db(0x05) // syscall
}
