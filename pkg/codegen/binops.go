package codegen

import (
	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/ir"
)

var condForOp = map[cast.Op]ir.JumpKind{
	cast.OpEq:  ir.JZ,
	cast.OpNeq: ir.JNZ,
	cast.OpLt:  ir.JL,
	cast.OpGt:  ir.JG,
	cast.OpLeq: ir.JLE,
	cast.OpGeq: ir.JGE,
}

var compoundBinOp = map[cast.Op]cast.Op{
	cast.OpAddAssign: cast.OpAdd,
	cast.OpSubAssign: cast.OpSub,
	cast.OpMulAssign: cast.OpMul,
	cast.OpDivAssign: cast.OpDiv,
	cast.OpModAssign: cast.OpMod,
	cast.OpAndAssign: cast.OpAnd,
	cast.OpOrAssign:  cast.OpOr,
	cast.OpXorAssign: cast.OpXor,
}

// rvalueBinExpr implements the "x op y (arith/bit/rel)" row of spec.md
// §4.2's lvalue/rvalue table: evaluate both sides, apply the backend op.
func (d *Driver) rvalueBinExpr(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	accumulator := n.Op == cast.OpMul || n.Op == cast.OpDiv || n.Op == cast.OpMod
	lhsWant := want
	if accumulator {
		lhsWant = ir.VREG0
	}

	lhs, err := d.rvalue(n.Lhs, lhsWant)
	if err != nil {
		return 0, err
	}
	rhs, err := d.rvalue(n.Rhs, ir.ANY)
	if err != nil {
		d.release(lhs)
		return 0, err
	}
	defer d.release(rhs)

	switch n.Op {
	case cast.OpAdd:
		d.backend.Add(lhs, rhs)
	case cast.OpSub:
		d.backend.Sub(lhs, rhs)
	case cast.OpMul:
		d.backend.IMul(rhs)
	case cast.OpDiv:
		d.backend.Div(lhs, rhs)
	case cast.OpMod:
		d.backend.Mod(lhs, rhs)
	case cast.OpAnd:
		d.backend.And(lhs, rhs)
	case cast.OpOr:
		d.backend.Or(lhs, rhs)
	case cast.OpXor:
		d.backend.Xor(lhs, rhs)
	case cast.OpShl:
		d.backend.Shl(lhs, rhs)
	case cast.OpShr:
		d.backend.Shr(lhs, rhs)
	case cast.OpEq, cast.OpNeq, cast.OpLt, cast.OpGt, cast.OpLeq, cast.OpGeq:
		return d.compareToBool(lhs, rhs, n.Op), nil
	default:
		return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "unsupported binary operator " + string(n.Op)}
	}
	return lhs, nil
}

// compareToBool implements relational/equality ops: the backend has no
// SETcc, so the result is built by setting 1 then skipping the zeroing
// branch when the condition holds.
func (d *Driver) compareToBool(lhs, rhs ir.VReg, op cast.Op) ir.VReg {
	d.backend.Cmp(lhs, rhs)
	d.backend.MovRImm32(lhs, 1)
	skip := d.backend.JumpBegin(condForOp[op])
	d.backend.MovRImm32(lhs, 0)
	d.backend.JumpEnd(skip)
	return lhs
}

// applyAccumulatorOp performs a mul/div/mod compound-assignment step when
// dst isn't already VREG0, by swapping dst into the accumulator for the
// duration of the operation.
func (d *Driver) applyAccumulatorOp(op cast.Op, dst, src ir.VReg) ir.VReg {
	swapped := dst != ir.VREG0
	if swapped {
		d.backend.Xchg(dst, ir.VREG0)
		if src == dst {
			src = ir.VREG0
		} else if src == ir.VREG0 {
			src = dst
		}
	}
	switch op {
	case cast.OpMul:
		d.backend.IMul(src)
	case cast.OpDiv:
		d.backend.Div(ir.VREG0, src)
	case cast.OpMod:
		d.backend.Mod(ir.VREG0, src)
	}
	if swapped {
		d.backend.Xchg(dst, ir.VREG0)
	}
	return dst
}

func (d *Driver) applyArith(op cast.Op, dst, src ir.VReg) ir.VReg {
	switch op {
	case cast.OpAdd:
		d.backend.Add(dst, src)
	case cast.OpSub:
		d.backend.Sub(dst, src)
	case cast.OpAnd:
		d.backend.And(dst, src)
	case cast.OpOr:
		d.backend.Or(dst, src)
	case cast.OpXor:
		d.backend.Xor(dst, src)
	case cast.OpShl:
		d.backend.Shl(dst, src)
	case cast.OpShr:
		d.backend.Shr(dst, src)
	case cast.OpMul, cast.OpDiv, cast.OpMod:
		return d.applyAccumulatorOp(op, dst, src)
	}
	return dst
}

// rvalueUnary covers the unary prefix/postfix operators: arithmetic and
// bitwise negation produce a value directly; the increment/decrement
// forms route through the lvalue of their operand.
func (d *Driver) rvalueUnary(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	switch n.Op {
	case cast.OpNeg:
		reg, err := d.rvalue(n.Operand, want)
		if err != nil {
			return 0, err
		}
		d.backend.Neg(reg)
		return reg, nil

	case cast.OpPlus:
		return d.rvalue(n.Operand, want)

	case cast.OpBitNot:
		reg, err := d.rvalue(n.Operand, want)
		if err != nil {
			return 0, err
		}
		d.backend.Not(reg)
		return reg, nil

	case cast.OpNot:
		reg, err := d.rvalue(n.Operand, want)
		if err != nil {
			return 0, err
		}
		d.backend.Test(reg, reg)
		d.backend.MovRImm32(reg, 0)
		skip := d.backend.JumpBegin(ir.JNZ)
		d.backend.MovRImm32(reg, 1)
		d.backend.JumpEnd(skip)
		return reg, nil

	case cast.OpPreInc, cast.OpPreDec:
		addr, err := d.lvalue(n.Operand, ir.ANY)
		if err != nil {
			return 0, err
		}
		val := d.acquire(want)
		d.backend.LoadReg(val, addr)
		d.stepByOne(val, n.Op == cast.OpPreInc)
		d.backend.StoreReg(addr, val)
		d.release(addr)
		return val, nil

	case cast.OpPostInc, cast.OpPostDec:
		addr, err := d.lvalue(n.Operand, ir.ANY)
		if err != nil {
			return 0, err
		}
		old := d.acquire(want)
		d.backend.LoadReg(old, addr)
		tmp := d.acquire(ir.ANY)
		d.backend.Mov(tmp, old)
		d.stepByOne(tmp, n.Op == cast.OpPostInc)
		d.backend.StoreReg(addr, tmp)
		d.release(tmp)
		d.release(addr)
		return old, nil

	default:
		return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "unsupported unary operator " + string(n.Op)}
	}
}

func (d *Driver) stepByOne(reg ir.VReg, up bool) {
	if up {
		d.backend.AddImm8ToR32(reg, 1)
		return
	}
	d.backend.AddImm8ToR32(reg, 0xFF) // sign-extended -1
}

// rvalueAssignment implements "x = y" and the compound forms per spec.md
// §4.2's compound-assignment note: the address is evaluated exactly once.
func (d *Driver) rvalueAssignment(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	addr, err := d.lvalue(n.Lhs, ir.ANY)
	if err != nil {
		return 0, err
	}

	if n.Op == cast.OpAssign {
		val, err := d.rvalue(n.Rhs, want)
		if err != nil {
			d.release(addr)
			return 0, err
		}
		d.backend.StoreReg(addr, val)
		d.release(addr)
		return val, nil
	}

	op, ok := compoundBinOp[n.Op]
	if !ok {
		d.release(addr)
		return 0, &CodegenError{Kind: UnsupportedConstruct, Line: n.Line, Message: "unsupported compound assignment " + string(n.Op)}
	}

	cur := d.acquire(ir.ANY)
	d.backend.LoadReg(cur, addr)
	rhs, err := d.rvalue(n.Rhs, ir.ANY)
	if err != nil {
		d.release(cur)
		d.release(addr)
		return 0, err
	}
	cur = d.applyArith(op, cur, rhs)
	d.release(rhs)
	d.backend.StoreReg(addr, cur)
	d.release(addr)
	return cur, nil
}

// rvalueTernary implements "c ? t : e": like if/else but both arms
// converge their value into the same destination register.
func (d *Driver) rvalueTernary(n *cast.Node, want ir.VReg) (ir.VReg, error) {
	cond, err := d.rvalue(n.Cond, ir.ANY)
	if err != nil {
		return 0, err
	}
	d.backend.Test(cond, cond)
	d.release(cond)
	toElse := d.backend.JumpBegin(ir.JZ)

	result := d.acquire(want)
	thenVal, err := d.rvalue(n.Then, result)
	if err != nil {
		return 0, err
	}
	if thenVal != result {
		d.backend.Mov(result, thenVal)
		d.release(thenVal)
	}
	toEnd := d.backend.JumpBegin(ir.JMP)
	d.backend.JumpEnd(toElse)

	elseVal, err := d.rvalue(n.Else, result)
	if err != nil {
		return 0, err
	}
	if elseVal != result {
		d.backend.Mov(result, elseVal)
		d.release(elseVal)
	}
	d.backend.JumpEnd(toEnd)
	return result, nil
}
