package backend

import "occ.dev/compiler/pkg/ir"

// physReg returns the ModRM register-field encoding for a virtual
// register. VREG0..VREG3 map onto RAX/RCX/RDX/RBX, SP/BP onto RSP/RBP,
// and RETURN_VALUE aliases VREG0 (RAX), matching both the System V and
// cdecl return-value convention. IP has no physical encoding: the driver
// never asks a backend to move through it directly, it is bookkeeping
// for relocation offsets only.
func physReg(r ir.VReg) byte {
	switch r {
	case ir.VREG0, ir.RETURN_VALUE:
		return 0 // RAX / EAX
	case ir.VREG1:
		return 1 // RCX / ECX
	case ir.VREG2:
		return 2 // RDX / EDX
	case ir.VREG3:
		return 3 // RBX / EBX
	case ir.SP:
		return 4 // RSP / ESP
	case ir.BP:
		return 5 // RBP / EBP
	default:
		panic("backend: virtual register has no physical encoding")
	}
}

func modrm(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

// encoder implements every Backend method whose encoding is identical in
// 32-bit and 64-bit mode: operating on the 32-bit sub-registers (EAX,
// ECX, EDX, EBX, ESP, EBP) needs no REX prefix in either mode, and every
// opcode below is defined the same way in both. x86.go and x64.go each
// embed this and add only what differs: syscall sequence and WordSize.
type encoder struct {
	buf Buffer
}

func (e *encoder) Code() *Buffer { return &e.buf }
func (e *encoder) Reset()        { e.buf = Buffer{} }

func (e *encoder) regOp(opcode byte, dst, src ir.VReg) {
	e.buf.db(opcode)
	e.buf.db(modrm(3, physReg(src), physReg(dst)))
}

func (e *encoder) Add(dst, src ir.VReg) { e.regOp(0x01, dst, src) }
func (e *encoder) Sub(dst, src ir.VReg) { e.regOp(0x29, dst, src) }
func (e *encoder) Xor(dst, src ir.VReg) { e.regOp(0x31, dst, src) }
func (e *encoder) And(dst, src ir.VReg) { e.regOp(0x21, dst, src) }
func (e *encoder) Or(dst, src ir.VReg)  { e.regOp(0x09, dst, src) }
func (e *encoder) Cmp(a, b ir.VReg)     { e.regOp(0x39, a, b) }
func (e *encoder) Test(a, b ir.VReg)    { e.regOp(0x85, b, a) }

// Mod divides VREG0 (EAX, always the dividend) by src with cdq + IDIV and
// moves the remainder, which IDIV leaves in EDX (VREG2), into dst when dst
// is a different register.
func (e *encoder) Mod(dst, src ir.VReg) {
	e.buf.db(0x99) // cdq: sign-extend EAX into EDX:EAX
	e.IDiv(src)
	if dst != ir.VREG2 {
		e.Mov(dst, ir.VREG2)
	}
}

// Div divides VREG0 (EAX) by src like Mod and moves the quotient, which
// IDIV leaves in EAX, into dst when dst is not VREG0.
func (e *encoder) Div(dst, src ir.VReg) {
	e.buf.db(0x99) // cdq
	e.IDiv(src)
	if dst != ir.VREG0 {
		e.Mov(dst, ir.VREG0)
	}
}

func (e *encoder) IMul(reg ir.VReg) {
	e.buf.db(0xF7)
	e.buf.db(modrm(3, 5, physReg(reg)))
}

func (e *encoder) IDiv(reg ir.VReg) {
	e.buf.db(0xF7)
	e.buf.db(modrm(3, 7, physReg(reg)))
}

func (e *encoder) Neg(reg ir.VReg) {
	e.buf.db(0xF7)
	e.buf.db(modrm(3, 3, physReg(reg)))
}

func (e *encoder) Not(reg ir.VReg) {
	e.buf.db(0xF7)
	e.buf.db(modrm(3, 2, physReg(reg)))
}

func (e *encoder) Xchg(a, b ir.VReg) {
	e.buf.db(0x87)
	e.buf.db(modrm(3, physReg(a), physReg(b)))
}

// shiftOp emits shl/shr r/m32, cl. The shift amount must be in CL (ECX,
// VREG1's physical register); when dst is VREG1 itself the two values are
// swapped into place and back out again rather than routed through a
// spare register the pool doesn't have.
func (e *encoder) shiftOp(regField byte, dst, src ir.VReg) {
	if dst == ir.VREG1 {
		e.Xchg(dst, src)
		e.buf.db(0xD3)
		e.buf.db(modrm(3, regField, physReg(src)))
		e.Xchg(dst, src)
		return
	}
	if src != ir.VREG1 {
		e.Push(ir.VREG1)
		e.Mov(ir.VREG1, src)
	}
	e.buf.db(0xD3)
	e.buf.db(modrm(3, regField, physReg(dst)))
	if src != ir.VREG1 {
		e.Pop(ir.VREG1)
	}
}

func (e *encoder) Shl(dst, src ir.VReg) { e.shiftOp(4, dst, src) }
func (e *encoder) Shr(dst, src ir.VReg) { e.shiftOp(5, dst, src) }

func (e *encoder) Inc(reg ir.VReg) {
	e.buf.db(0xFF)
	e.buf.db(modrm(3, 0, physReg(reg)))
}

func (e *encoder) AddImm8ToR32(reg ir.VReg, value uint8) {
	e.buf.db(0x83)
	e.buf.db(modrm(3, 0, physReg(reg)))
	e.buf.db(value)
}

func (e *encoder) AddImm32ToR32(reg ir.VReg, value uint32) {
	e.buf.db(0x81)
	e.buf.db(modrm(3, 0, physReg(reg)))
	e.buf.dd(value)
}

func (e *encoder) SubRegImm32(reg ir.VReg, imm int32) {
	e.buf.db(0x81)
	e.buf.db(modrm(3, 5, physReg(reg)))
	e.buf.dd(uint32(imm))
}

func (e *encoder) Int3() { e.buf.db(0xCC) }
func (e *encoder) Nop()  { e.buf.db(0x90) }

func (e *encoder) ExitInstr(reg ir.VReg) {
	if reg != ir.VREG0 {
		e.Mov(ir.VREG0, reg)
	}
}

func (e *encoder) Push(reg ir.VReg) { e.buf.db(0x50 + physReg(reg)) }
func (e *encoder) Pop(reg ir.VReg)  { e.buf.db(0x58 + physReg(reg)) }

func (e *encoder) Mov(dst, src ir.VReg) {
	if dst == src {
		return
	}
	e.regOp(0x89, dst, src)
}

func (e *encoder) LoadReg(dst, src ir.VReg) {
	// [src] -> dst, zero displacement
	e.buf.db(0x8B)
	e.buf.db(modrm(0, physReg(dst), physReg(src)))
}

func (e *encoder) StoreReg(dst, src ir.VReg) {
	// src -> [dst], zero displacement
	e.buf.db(0x89)
	e.buf.db(modrm(0, physReg(src), physReg(dst)))
}

// LoadBaseOffsetImm32 loads [BP + imm] into reg: BP is always used as the
// frame base, so rm=5 with mod=10 never collides with the SIB-required
// encoding of RSP (register 4).
func (e *encoder) LoadBaseOffsetImm32(reg ir.VReg, imm int32) {
	e.buf.db(0x8B)
	e.buf.db(modrm(2, physReg(reg), physReg(ir.BP)))
	e.buf.dd(uint32(imm))
}

func (e *encoder) StoreBaseOffsetImm32(imm int32, reg ir.VReg) {
	e.buf.db(0x89)
	e.buf.db(modrm(2, physReg(reg), physReg(ir.BP)))
	e.buf.dd(uint32(imm))
}

func (e *encoder) Ret() { e.buf.db(0xC3) }

func (e *encoder) CallImm32(targetPlaceholder bool) int {
	e.buf.db(0xE8)
	off := e.buf.Len()
	e.buf.dd(0)
	_ = targetPlaceholder
	return off
}

func (e *encoder) CallR32(reg ir.VReg) {
	e.buf.db(0xFF)
	e.buf.db(modrm(3, 2, physReg(reg)))
}

// IndirectCallImm32 emits `call [disp32]` against an absolute address
// patched later by an IMPORT relocation (an offset-0 base-less indirect
// call; spec.md's image emitter patches this as an absolute address).
func (e *encoder) IndirectCallImm32() int {
	e.buf.db(0xFF)
	e.buf.db(modrm(0, 2, 5)) // mod=00 rm=101 -> disp32-only addressing
	off := e.buf.Len()
	e.buf.dd(0)
	return off
}

func (e *encoder) MovRImm32(reg ir.VReg, imm uint32) int {
	e.buf.db(0xB8 + physReg(reg))
	off := e.buf.Len()
	e.buf.dd(imm)
	return off
}

func (e *encoder) MovRString(reg ir.VReg) int {
	return e.MovRImm32(reg, 0)
}

var jccOpcode = map[ir.JumpKind]byte{
	ir.JZ: 0x84, ir.JNZ: 0x85, ir.JG: 0x8F, ir.JGE: 0x8D, ir.JL: 0x8C, ir.JLE: 0x8E,
}

func (e *encoder) JumpBegin(kind ir.JumpKind) JumpSlot {
	if kind == ir.JMP {
		e.buf.db(0xE9)
	} else {
		e.buf.db(0x0F)
		e.buf.db(jccOpcode[kind])
	}
	patch := e.buf.Len()
	e.buf.dd(0)
	return JumpSlot{Kind: kind, PatchOffset: patch, InstrEnd: e.buf.Len()}
}

func (e *encoder) JumpEnd(slot JumpSlot) {
	disp := int32(e.buf.Len() - slot.InstrEnd)
	e.buf.setU32(slot.PatchOffset, uint32(disp))
}

// ReverseJumpBegin records target (a loop-head offset the caller captured
// earlier) without emitting anything; ReverseJumpEnd then emits the
// backward jump whose displacement is computed against that head, implementing
// spec.md §4.3's RJ_REVERSE variant of the two-phase protocol.
func (e *encoder) ReverseJumpBegin(kind ir.JumpKind, target int) JumpSlot {
	return JumpSlot{Kind: kind, PatchOffset: target, Reverse: true}
}

func (e *encoder) ReverseJumpEnd(slot JumpSlot) {
	if slot.Kind == ir.JMP {
		e.buf.db(0xE9)
	} else {
		e.buf.db(0x0F)
		e.buf.db(jccOpcode[slot.Kind])
	}
	instrEnd := e.buf.Len() + 4
	disp := int32(slot.PatchOffset - instrEnd)
	e.buf.dd(uint32(disp))
}

func (e *encoder) Prologue(frameSize int) {
	e.Push(ir.BP)
	e.Mov(ir.BP, ir.SP)
	if frameSize > 0 {
		e.SubRegImm32(ir.SP, int32(frameSize))
	}
}

func (e *encoder) Epilogue() {
	e.Mov(ir.SP, ir.BP)
	e.Pop(ir.BP)
	e.Ret()
}
