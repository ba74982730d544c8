package codegen

import (
	"occ.dev/compiler/pkg/backend"
	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/ir"
)

type loopScope struct {
	breakSlots []backend.JumpSlot
	headOffset int
}

func (d *Driver) compileStmt(h cast.Handle) error {
	n := d.arena.Get(h)
	d.curLine = n.Line

	switch n.Kind {
	case cast.BlockStmt:
		for _, child := range n.Children {
			if err := d.compileStmt(child); err != nil {
				return err
			}
		}
		return nil

	case cast.EmptyStmt:
		return nil

	case cast.VariableDecl:
		return d.compileVariableDecl(n)

	case cast.ExprStmt:
		reg, err := d.rvalue(n.Operand, ir.ANY)
		if err != nil {
			return err
		}
		d.release(reg)
		return nil

	case cast.IfStmt:
		return d.compileIf(n)

	case cast.WhileStmt:
		return d.compileWhile(n)

	case cast.DoWhileStmt:
		return d.compileDoWhile(n)

	case cast.ForStmt:
		return d.compileFor(n)

	case cast.BreakStmt:
		return d.compileBreak(n)

	case cast.ReturnStmt:
		return d.compileReturn(n)

	default:
		return &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "not a statement"}
	}
}

func (d *Driver) compileVariableDecl(n *cast.Node) error {
	if n.DeclInit == cast.NoHandle {
		return nil
	}
	lv, ok := d.locals.Get(n.Name)
	if !ok {
		return &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: n.Name}
	}
	reg, err := d.rvalue(n.DeclInit, ir.ANY)
	if err != nil {
		return err
	}
	d.backend.StoreBaseOffsetImm32(lv.offset, reg)
	d.release(reg)
	return nil
}

func (d *Driver) compileIf(n *cast.Node) error {
	reg, err := d.rvalue(n.Cond, ir.ANY)
	if err != nil {
		return err
	}
	d.backend.Test(reg, reg)
	d.release(reg)
	skipThen := d.backend.JumpBegin(ir.JZ)

	if err := d.compileStmt(n.Then); err != nil {
		return err
	}

	if n.Else == cast.NoHandle {
		d.backend.JumpEnd(skipThen)
		return nil
	}

	skipElse := d.backend.JumpBegin(ir.JMP)
	d.backend.JumpEnd(skipThen)
	if err := d.compileStmt(n.Else); err != nil {
		return err
	}
	d.backend.JumpEnd(skipElse)
	return nil
}

func (d *Driver) compileWhile(n *cast.Node) error {
	head := d.backend.Code().Len()
	scope := &loopScope{headOffset: head}
	d.loops.Push(scope)

	reg, err := d.rvalue(n.Cond, ir.ANY)
	if err != nil {
		return err
	}
	d.backend.Test(reg, reg)
	d.release(reg)
	exit := d.backend.JumpBegin(ir.JZ)
	scope.breakSlots = append(scope.breakSlots, exit)

	if err := d.compileStmt(n.Then); err != nil {
		return err
	}

	back := d.backend.ReverseJumpBegin(ir.JMP, head)
	d.backend.ReverseJumpEnd(back)

	if _, err := d.loops.Pop(); err != nil {
		return err
	}
	for _, slot := range scope.breakSlots {
		d.backend.JumpEnd(slot)
	}
	return nil
}

func (d *Driver) compileDoWhile(n *cast.Node) error {
	head := d.backend.Code().Len()
	scope := &loopScope{headOffset: head}
	d.loops.Push(scope)

	if err := d.compileStmt(n.Then); err != nil {
		return err
	}

	reg, err := d.rvalue(n.Cond, ir.ANY)
	if err != nil {
		return err
	}
	d.backend.Test(reg, reg)
	d.release(reg)
	back := d.backend.ReverseJumpBegin(ir.JNZ, head)
	d.backend.ReverseJumpEnd(back)

	if _, err := d.loops.Pop(); err != nil {
		return err
	}
	for _, slot := range scope.breakSlots {
		d.backend.JumpEnd(slot)
	}
	return nil
}

func (d *Driver) compileFor(n *cast.Node) error {
	if n.Init != cast.NoHandle {
		if err := d.compileStmt(n.Init); err != nil {
			return err
		}
	}

	head := d.backend.Code().Len()
	scope := &loopScope{headOffset: head}
	d.loops.Push(scope)

	if n.Test != cast.NoHandle {
		reg, err := d.rvalue(n.Test, ir.ANY)
		if err != nil {
			return err
		}
		d.backend.Test(reg, reg)
		d.release(reg)
		exit := d.backend.JumpBegin(ir.JZ)
		scope.breakSlots = append(scope.breakSlots, exit)
	}

	if err := d.compileStmt(n.Body); err != nil {
		return err
	}

	if n.Update != cast.NoHandle {
		reg, err := d.rvalue(n.Update, ir.ANY)
		if err != nil {
			return err
		}
		d.release(reg)
	}

	back := d.backend.ReverseJumpBegin(ir.JMP, head)
	d.backend.ReverseJumpEnd(back)

	if _, err := d.loops.Pop(); err != nil {
		return err
	}
	for _, slot := range scope.breakSlots {
		d.backend.JumpEnd(slot)
	}
	return nil
}

func (d *Driver) compileBreak(n *cast.Node) error {
	top, err := d.loops.Top()
	if err != nil {
		return &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "break outside of a loop"}
	}
	slot := d.backend.JumpBegin(ir.JMP)
	top.breakSlots = append(top.breakSlots, slot)
	return nil
}

func (d *Driver) compileReturn(n *cast.Node) error {
	if n.Operand != cast.NoHandle {
		reg, err := d.rvalue(n.Operand, ir.ANY)
		if err != nil {
			return err
		}
		if reg != ir.VREG0 {
			d.backend.Mov(ir.VREG0, reg)
		}
		d.release(reg)
	}
	d.backend.Epilogue()
	return nil
}
