package codegen

import (
	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/ir"
)

// compileCall implements spec.md §4.2's four call targets: syscall,
// int3, a user function, or a resolver-matched import.
func (d *Driver) compileCall(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	callee := d.arena.Get(n.Callee)
	if callee == nil || callee.Kind != cast.Identifier {
		return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "indirect calls are unsupported"}
	}
	name := callee.Ident

	switch name {
	case "syscall":
		return d.compileSyscall(n, want)
	case "int3":
		if d.debug {
			d.backend.Int3()
		}
		reg := d.acquire(want)
		d.backend.MovRImm32(reg, 0)
		return reg, nil
	}

	if _, ok := d.functionDecls[name]; ok {
		return d.compileUserCall(name, n.Args, want)
	}

	if d.resolver != nil {
		if sym, ok := d.resolver.Resolve(name); ok {
			return d.compileImportCall(sym.Name, n.Args, want)
		}
	}

	return 0, &CodegenError{Kind: UnknownFunction, Line: n.Line, Message: name}
}

// compileSyscall places the syscall number and up to three arguments in
// the architecture's fixed syscall registers (VREG0..VREG3) and invokes
// the target's syscall sequence.
func (d *Driver) compileSyscall(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	if len(n.Args) == 0 || len(n.Args) > 4 {
		return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "syscall takes a number plus up to 3 arguments"}
	}
	slots := [4]ir.VReg{ir.VREG0, ir.VREG1, ir.VREG2, ir.VREG3}
	placed := make([]ir.VReg, len(n.Args))

	for i, argH := range n.Args {
		v, err := d.rvalue(argH, slots[i])
		if err != nil {
			return 0, err
		}
		if v != slots[i] {
			pinned := d.acquire(slots[i])
			d.backend.Mov(pinned, v)
			d.release(v)
			v = pinned
		}
		placed[i] = v
	}

	d.backend.InvokeSyscall(len(n.Args) - 1)

	for i := len(placed) - 1; i >= 1; i-- {
		d.release(placed[i])
	}
	result := placed[0]
	if want != ir.ANY && want != result {
		moved := d.acquire(want)
		d.backend.Mov(moved, result)
		d.release(result)
		return moved, nil
	}
	return result, nil
}

// compileUserCall pushes arguments right-to-left, emits a near-call
// relocated against the callee's eventual code offset, and adjusts the
// stack by numargs * word-size afterward.
func (d *Driver) compileUserCall(name string, args []cast.Handle, want ir.VReg) (ir.VReg, error) {
	for i := len(args) - 1; i >= 0; i-- {
		v, err := d.rvalue(args[i], ir.ANY)
		if err != nil {
			return 0, err
		}
		d.backend.Push(v)
		d.release(v)
	}

	patch := d.backend.CallImm32(true)
	d.recordReloc(ir.Reloc{Kind: ir.RelocCode, SourceOffset: patch, Symbol: name, Width: 4})

	if len(args) > 0 {
		d.backend.AddImm32ToR32(ir.SP, uint32(len(args)*d.backend.WordSize()))
	}

	return d.claimReturnValue(want)
}

// compileImportCall emits an indirect call against a slot the image
// emitter fills with the resolved symbol's absolute address (memory
// target only), recorded as an IMPORT relocation.
func (d *Driver) compileImportCall(symbol string, args []cast.Handle, want ir.VReg) (ir.VReg, error) {
	for i := len(args) - 1; i >= 0; i-- {
		v, err := d.rvalue(args[i], ir.ANY)
		if err != nil {
			return 0, err
		}
		d.backend.Push(v)
		d.release(v)
	}

	patch := d.backend.IndirectCallImm32()
	d.recordReloc(ir.Reloc{Kind: ir.RelocImport, SourceOffset: patch, Symbol: symbol, Width: 4})

	if len(args) > 0 {
		d.backend.AddImm32ToR32(ir.SP, uint32(len(args)*d.backend.WordSize()))
	}

	return d.claimReturnValue(want)
}

// claimReturnValue registers the accumulator as in-use after a call: the
// call already clobbered it unconditionally, so this brings the pool's
// bookkeeping back in sync rather than emitting a redundant save.
func (d *Driver) claimReturnValue(want ir.VReg) (ir.VReg, error) {
	reg := d.acquire(ir.VREG0)
	if want == ir.ANY || want == ir.VREG0 || want == ir.RETURN_VALUE {
		return reg, nil
	}
	dst := d.acquire(want)
	d.backend.Mov(dst, reg)
	d.release(reg)
	return dst, nil
}
