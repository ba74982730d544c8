// Package backend implements the target backend named in spec.md §4.3:
// the ~40-operation codegen interface, as a Go interface with one
// implementation per target architecture, plus the shared byte-buffer
// helper both implementations emit through.
package backend

import "occ.dev/compiler/pkg/ir"

// JumpSlot is the bookkeeping a Backend hands back from JumpBegin and
// expects back in JumpEnd, implementing spec.md §4.3's two-phase
// forward-jump protocol.
type JumpSlot struct {
	Kind       ir.JumpKind
	PatchOffset int // offset of the 32-bit displacement placeholder; for a Reverse slot, the jump target
	InstrEnd    int // offset immediately after the jump instruction
	Reverse     bool
}

// Backend is spec.md §4.3's codegen interface: the abstract instruction
// set the driver (pkg/codegen) invokes, one call per logical machine
// operation, each encoding directly into the current function's buffer.
type Backend interface {
	WordSize() int

	// arithmetic, spec.md §4.3's first group
	Add(dst, src ir.VReg)
	Sub(dst, src ir.VReg)
	Mod(dst, src ir.VReg)
	Div(dst, src ir.VReg)
	IMul(reg ir.VReg)
	IDiv(reg ir.VReg)
	AddImm8ToR32(reg ir.VReg, value uint8)
	AddImm32ToR32(reg ir.VReg, value uint32)
	Inc(reg ir.VReg)
	Neg(reg ir.VReg)
	SubRegImm32(reg ir.VReg, imm int32)

	// bitwise
	Xor(dst, src ir.VReg)
	And(dst, src ir.VReg)
	Or(dst, src ir.VReg)
	Not(reg ir.VReg)
	Shl(dst, src ir.VReg)
	Shr(dst, src ir.VReg)
	Xchg(a, b ir.VReg)

	// control / misc
	Int3()
	Nop()
	InvokeSyscall(argCount int)
	ExitInstr(reg ir.VReg)

	// stack / moves
	Push(reg ir.VReg)
	Pop(reg ir.VReg)
	LoadReg(dst, src ir.VReg)
	StoreReg(dst, src ir.VReg)
	LoadBaseOffsetImm32(reg ir.VReg, imm int32)
	StoreBaseOffsetImm32(imm int32, reg ir.VReg)

	// calls / return
	Ret()
	CallImm32(targetPlaceholder bool) int // returns patch offset of the call's rel32
	CallR32(reg ir.VReg)
	IndirectCallImm32() int // returns patch offset of the absolute target slot

	// immediates / data
	MovRImm32(reg ir.VReg, imm uint32) int // returns patch offset if imm is a relocation target
	MovRString(reg ir.VReg) int            // returns patch offset for the DATA relocation
	Mov(dst, src ir.VReg)

	// comparisons / branches
	Cmp(a, b ir.VReg)
	Test(a, b ir.VReg)
	JumpBegin(kind ir.JumpKind) JumpSlot
	JumpEnd(slot JumpSlot)
	ReverseJumpBegin(kind ir.JumpKind, target int) JumpSlot
	ReverseJumpEnd(slot JumpSlot)

	// function framing
	Prologue(frameSize int)
	Epilogue()

	// current code buffer (one per function; merged by the driver)
	Code() *Buffer
	Reset()
}
