package backend_test

import (
	"bytes"
	"testing"

	"occ.dev/compiler/pkg/backend"
	"occ.dev/compiler/pkg/ir"
)

func TestWordSize(t *testing.T) {
	if got := backend.NewX86().WordSize(); got != 4 {
		t.Errorf("X86.WordSize() = %d, want 4", got)
	}
	if got := backend.NewX64().WordSize(); got != 8 {
		t.Errorf("X64.WordSize() = %d, want 8", got)
	}
}

func TestDivReusesIDivAndMovesResultOutOfAccumulator(t *testing.T) {
	x := backend.NewX64()
	x.Div(ir.VREG3, ir.VREG1)
	got := x.Code().Bytes()

	// cdq; idiv ecx; mov ebx, eax
	want := []byte{0x99, 0xF7, 0xF9, 0x89, 0xC3}
	if !bytes.Equal(got, want) {
		t.Errorf("Div(VREG3, VREG1) = % x, want % x", got, want)
	}
}

func TestDivIntoAccumulatorSkipsTrailingMov(t *testing.T) {
	x := backend.NewX64()
	x.Div(ir.VREG0, ir.VREG1)
	got := x.Code().Bytes()

	want := []byte{0x99, 0xF7, 0xF9} // cdq; idiv ecx
	if !bytes.Equal(got, want) {
		t.Errorf("Div(VREG0, VREG1) = % x, want % x", got, want)
	}
}

func TestNotEncodesF7Slash2(t *testing.T) {
	x := backend.NewX64()
	x.Not(ir.VREG2)
	got := x.Code().Bytes()
	want := []byte{0xF7, 0xD2} // modrm(3, 2, 2)
	if !bytes.Equal(got, want) {
		t.Errorf("Not(VREG2) = % x, want % x", got, want)
	}
}

func TestXchgEncodesRegisterPair(t *testing.T) {
	x := backend.NewX64()
	x.Xchg(ir.VREG0, ir.VREG3)
	got := x.Code().Bytes()
	want := []byte{0x87, 0xC3} // modrm(3, 0, 3)
	if !bytes.Equal(got, want) {
		t.Errorf("Xchg(VREG0, VREG3) = % x, want % x", got, want)
	}
}

func TestShiftByNonCLRegisterSpillsAndRestoresVREG1(t *testing.T) {
	x := backend.NewX64()
	x.Shl(ir.VREG0, ir.VREG2)
	got := x.Code().Bytes()

	// push ecx; mov ecx, edx; shl eax, cl; pop ecx
	want := []byte{0x51, 0x89, 0xD1, 0xD3, 0xE0, 0x59}
	if !bytes.Equal(got, want) {
		t.Errorf("Shl(VREG0, VREG2) = % x, want % x", got, want)
	}
}

func TestShiftWhenDestinationIsVREG1Swaps(t *testing.T) {
	x := backend.NewX64()
	x.Shr(ir.VREG1, ir.VREG2)
	got := x.Code().Bytes()

	// xchg ecx, edx; shr edx, cl; xchg ecx, edx
	want := []byte{0x87, 0xCA, 0xD3, 0xEA, 0x87, 0xCA}
	if !bytes.Equal(got, want) {
		t.Errorf("Shr(VREG1, VREG2) = % x, want % x", got, want)
	}
}

func TestX86SyscallRotatesThreeArgsViaXchg(t *testing.T) {
	x := backend.NewX86()
	x.InvokeSyscall(3)
	got := x.Code().Bytes()
	want := []byte{0x87, 0xCB, 0x87, 0xCA, 0xCD, 0x80}
	if !bytes.Equal(got, want) {
		t.Errorf("X86.InvokeSyscall(3) = % x, want % x", got, want)
	}
}

func TestX64SyscallMovesArgsIntoABIRegisters(t *testing.T) {
	x := backend.NewX64()
	x.InvokeSyscall(2)
	got := x.Code().Bytes()
	want := []byte{0x89, 0xCF, 0x89, 0xD6, 0x0F, 0x05}
	if !bytes.Equal(got, want) {
		t.Errorf("X64.InvokeSyscall(2) = % x, want % x", got, want)
	}
}

func TestResetClearsCodeBuffer(t *testing.T) {
	x := backend.NewX64()
	x.Nop()
	if x.Code().Len() == 0 {
		t.Fatal("expected Nop to emit at least one byte")
	}
	x.Reset()
	if x.Code().Len() != 0 {
		t.Errorf("Reset() left %d bytes in the buffer, want 0", x.Code().Len())
	}
}
