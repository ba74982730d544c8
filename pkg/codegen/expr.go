package codegen

import (
	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/ir"
)

// rvalue implements spec.md §4.2's rvalue half of the lvalue/rvalue
// protocol: produce the expression's value in a register, returning
// whichever register it ended up in (want may be ir.ANY). The caller
// owns releasing the returned register once done with it.
func (d *Driver) rvalue(h cast.Handle, want ir.VReg) (ir.VReg, error) {
	n := d.arena.Get(h)
	d.curLine = n.Line

	switch n.Kind {
	case cast.Identifier:
		lv, ok := d.locals.Get(n.Ident)
		if !ok {
			return 0, &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: n.Ident}
		}
		reg := d.acquire(want)
		d.backend.LoadBaseOffsetImm32(reg, lv.offset)
		return reg, nil

	case cast.Literal:
		reg := d.acquire(want)
		if n.LitIsString {
			dataOff := d.addData([]byte(n.LitString + "\x00"))
			patch := d.backend.MovRString(reg)
			d.recordReloc(ir.Reloc{Kind: ir.RelocData, SourceOffset: patch, TargetOffset: dataOff, Width: 4})
		} else {
			d.backend.MovRImm32(reg, uint32(n.LitInt))
		}
		return reg, nil

	case cast.Dereference:
		addr, err := d.rvalue(n.Operand, want)
		if err != nil {
			return 0, err
		}
		d.backend.LoadReg(addr, addr)
		return addr, nil

	case cast.AddressOf:
		return d.lvalue(n.Operand, want)

	case cast.MemberExpr:
		addr, err := d.lvalue(h, want)
		if err != nil {
			return 0, err
		}
		d.backend.LoadReg(addr, addr)
		return addr, nil

	case cast.BinExpr:
		return d.rvalueBinExpr(n, want)

	case cast.UnaryExpr:
		return d.rvalueUnary(n, want)

	case cast.AssignmentExpr:
		return d.rvalueAssignment(n, want)

	case cast.TernaryExpr:
		return d.rvalueTernary(n, want)

	case cast.FunctionCallExpr:
		return d.compileCall(n, want)

	case cast.Sizeof:
		reg := d.acquire(want)
		var sz int
		var err error
		if n.SizeofType != cast.NoHandle {
			sz, err = DataTypeSize(d.arena, d.backend.WordSize(), n.SizeofType)
		} else {
			sz, err = d.sizeofExpr(n.SizeofExpr)
		}
		if err != nil {
			return 0, err
		}
		d.backend.MovRImm32(reg, uint32(sz))
		return reg, nil

	case cast.SeqExpr:
		var last ir.VReg
		for i, e := range n.Exprs {
			reg, err := d.rvalue(e, ir.ANY)
			if err != nil {
				return 0, err
			}
			if i < len(n.Exprs)-1 {
				d.release(reg)
			} else {
				last = reg
			}
		}
		return last, nil

	case cast.Cast:
		if isFloatingType(d.arena, n.DeclType) {
			return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "float/double casts are only supported inside sizeof"}
		}
		return d.rvalue(n.Operand, want)

	default:
		return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "not an expression"}
	}
}

// lvalue implements spec.md §4.2's lvalue half: produce the address at
// which the value lives, in a register.
func (d *Driver) lvalue(h cast.Handle, want ir.VReg) (ir.VReg, error) {
	n := d.arena.Get(h)
	d.curLine = n.Line

	switch n.Kind {
	case cast.Identifier:
		lv, ok := d.locals.Get(n.Ident)
		if !ok {
			return 0, &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: n.Ident}
		}
		reg := d.acquire(want)
		d.backend.Mov(reg, ir.BP)
		d.backend.AddImm32ToR32(reg, uint32(int32(lv.offset)))
		return reg, nil

	case cast.Dereference:
		return d.rvalue(n.Operand, want)

	case cast.MemberExpr:
		return d.lvalueMember(n, want)

	default:
		return 0, &CodegenError{Kind: TypeMismatch, Line: n.Line, Message: "expression is not an lvalue"}
	}
}

func (d *Driver) lvalueMember(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	if n.Computed {
		base, err := d.lvalue(n.Object, want)
		if err != nil {
			return 0, err
		}
		index, err := d.rvalue(n.Property, ir.ANY)
		if err != nil {
			return 0, err
		}
		elemType, elemSize, err := d.elementType(n.Object)
		if err != nil {
			return 0, err
		}
		_ = elemType
		d.scaleAndAdd(base, index, elemSize)
		d.release(index)
		return base, nil
	}

	structDecl, err := d.structDeclOf(n.Object, n.Arrow)
	if err != nil {
		return 0, err
	}
	field := d.arena.Get(n.Property)
	offset, _, err := fieldOffset(d.arena, d.backend.WordSize(), structDecl, field.Ident)
	if err != nil {
		return 0, err
	}

	var base ir.VReg
	if n.Arrow {
		base, err = d.rvalue(n.Object, want)
	} else {
		base, err = d.lvalue(n.Object, want)
	}
	if err != nil {
		return 0, err
	}
	if offset != 0 {
		d.backend.AddImm32ToR32(base, uint32(int32(offset)))
	}
	return base, nil
}

// scaleAndAdd computes base += index * elemSize, per the a[b] row of the
// lvalue table (address = lvalue(a) + rvalue(b)*sizeof(elem)).
func (d *Driver) scaleAndAdd(base, index ir.VReg, elemSize int) {
	switch elemSize {
	case 0:
		return
	case 1:
		d.backend.Add(base, index)
		return
	}
	factor := d.acquire(ir.ANY)
	d.backend.MovRImm32(factor, uint32(elemSize))
	product := d.applyAccumulatorOp(cast.OpMul, index, factor)
	d.release(factor)
	d.backend.Add(base, product)
}

func (d *Driver) structDeclOf(objHandle cast.Handle, arrow bool) (cast.Handle, error) {
	n := d.arena.Get(objHandle)
	var typeHandle cast.Handle
	switch n.Kind {
	case cast.Identifier:
		lv, ok := d.locals.Get(n.Ident)
		if !ok {
			return cast.NoHandle, &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: n.Ident}
		}
		typeHandle = lv.typ
	default:
		return cast.NoHandle, &CodegenError{Kind: TypeMismatch, Line: n.Line, Message: "member access on a non-identifier base is unsupported"}
	}
	typeNode := d.arena.Get(typeHandle)
	if arrow && typeNode.Kind == cast.PointerDataType {
		typeNode = d.arena.Get(typeNode.Elem)
	}
	if typeNode.Kind != cast.StructDataType {
		return cast.NoHandle, &CodegenError{Kind: TypeMismatch, Line: typeNode.Line, Message: "member access on a non-struct type"}
	}
	return typeNode.StructDef, nil
}

func (d *Driver) elementType(arrayExprHandle cast.Handle) (cast.Handle, int, error) {
	n := d.arena.Get(arrayExprHandle)
	if n.Kind != cast.Identifier {
		return cast.NoHandle, 0, &CodegenError{Kind: TypeMismatch, Line: n.Line, Message: "subscript base must be an identifier"}
	}
	lv, ok := d.locals.Get(n.Ident)
	if !ok {
		return cast.NoHandle, 0, &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: n.Ident}
	}
	typeNode := d.arena.Get(lv.typ)
	var elem cast.Handle
	switch typeNode.Kind {
	case cast.ArrayDataType, cast.PointerDataType:
		elem = typeNode.Elem
	default:
		return cast.NoHandle, 0, &CodegenError{Kind: TypeMismatch, Line: typeNode.Line, Message: "subscript on a non-array, non-pointer type"}
	}
	sz, err := DataTypeSize(d.arena, d.backend.WordSize(), elem)
	return elem, sz, err
}

func (d *Driver) sizeofExpr(h cast.Handle) (int, error) {
	n := d.arena.Get(h)
	if n.Kind == cast.Identifier {
		lv, ok := d.locals.Get(n.Ident)
		if !ok {
			return 0, &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: n.Ident}
		}
		return DataTypeSize(d.arena, d.backend.WordSize(), lv.typ)
	}
	return 0, &CodegenError{Kind: OperandSizeUnknown, Line: n.Line, Message: "sizeof of a non-identifier expression is unsupported"}
}

func (d *Driver) addData(bytes []byte) int {
	off := len(d.data)
	d.data = append(d.data, bytes...)
	return off
}
