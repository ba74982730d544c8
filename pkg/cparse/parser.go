// Package cparse implements the parser named in the core spec: recursive
// descent over the token stream with the fixed precedence ladder from the
// spec's grammar table, producing a cast.Arena and a PROGRAM root.
//
// Parsing is fail-fast, mirroring the source's long-jump-style unwinding:
// the first expectation failure returns a *ParseError and the partial
// arena is simply discarded by the caller (Go's GC plays the role the
// spec's "guaranteed arena release" does in a manually managed runtime).
package cparse

import (
	"fmt"

	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/ctoken"
)

type ParseError struct {
	Line    int
	Token   ctoken.Token
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s (got %s)", e.Line, e.Message, e.Token)
}

type Parser struct {
	toks  []ctoken.Token
	pos   int
	arena *cast.Arena
	fn    cast.Handle // FunctionDecl currently being parsed, NoHandle at top level
}

func NewParser(tokens []ctoken.Token) *Parser {
	return &Parser{toks: tokens, arena: cast.NewArena()}
}

// Parse consumes the whole token stream and returns a PROGRAM root with one
// child per top-level function declaration.
func (p *Parser) Parse() (cast.Handle, *cast.Arena, error) {
	root := p.arena.New(cast.Program, p.cur().Line)
	for p.cur().Kind != ctoken.EOF {
		decl, err := p.parseFunctionDecl()
		if err != nil {
			return cast.NoHandle, nil, err
		}
		p.arena.Get(root).Children = append(p.arena.Get(root).Children, decl)
		p.arena.Link(root, decl)
	}
	return root, p.arena, nil
}

// ----------------------------------------------------------------------------
// Token cursor helpers

func (p *Parser) cur() ctoken.Token { return p.toks[p.pos] }

func (p *Parser) advance() ctoken.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(k ctoken.Kind) bool { return p.cur().Kind == k }

func (p *Parser) match(k ctoken.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k ctoken.Kind, what string) (ctoken.Token, error) {
	if !p.check(k) {
		return ctoken.Token{}, &ParseError{Line: p.cur().Line, Token: p.cur(), Message: "expected " + what}
	}
	return p.advance(), nil
}

// ----------------------------------------------------------------------------
// Top level: function declarations

func (p *Parser) parseFunctionDecl() (cast.Handle, error) {
	line := p.cur().Line
	retType, err := p.parseTypeDeclarator()
	if err != nil {
		return cast.NoHandle, err
	}
	name, err := p.expect(ctoken.IDENT, "function name")
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind('('), "'('"); err != nil {
		return cast.NoHandle, err
	}

	decl := p.arena.New(cast.FunctionDecl, line)
	node := p.arena.Get(decl)
	node.Name = name.Lexeme
	node.ReturnType = retType
	p.arena.Link(decl, retType)

	prevFn := p.fn
	p.fn = decl

	for !p.check(ctoken.Kind(')')) {
		if p.match(ctoken.ELLIPSIS) {
			node.Variadic = true
			break
		}
		paramType, err := p.parseTypeDeclarator()
		if err != nil {
			return cast.NoHandle, err
		}
		paramName, err := p.expect(ctoken.IDENT, "parameter name")
		if err != nil {
			return cast.NoHandle, err
		}
		p.arena.Link(decl, paramType)
		node.Params = append(node.Params, cast.Param{Name: paramName.Lexeme, Type: paramType})
		if !p.match(ctoken.Kind(',')) {
			break
		}
	}
	if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
		return cast.NoHandle, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return cast.NoHandle, err
	}
	node.Body = body
	p.arena.Link(decl, body)

	p.fn = prevFn
	return decl, nil
}

// ----------------------------------------------------------------------------
// Type declarators

var primitiveKinds = map[ctoken.Kind]cast.Primitive{
	ctoken.CHAR: cast.Char, ctoken.SHORT: cast.Short, ctoken.INT: cast.Int,
	ctoken.FLOAT: cast.Float, ctoken.DOUBLE: cast.Double, ctoken.VOID: cast.Void,
	ctoken.UNSIGNED: cast.Unsigned,
}

// parseTypeDeclarator parses: optional leading 'const', one primitive
// keyword (or a struct/union tag), optional trailing 'const', then
// zero-or-more '*' each wrapping the running type in a pointer layer.
func (p *Parser) parseTypeDeclarator() (cast.Handle, error) {
	line := p.cur().Line
	isConst := p.match(ctoken.CONST)

	var base cast.Handle
	switch {
	case p.check(ctoken.STRUCT) || p.check(ctoken.UNION):
		structDecl, err := p.parseStructDecl()
		if err != nil {
			return cast.NoHandle, err
		}
		base = p.arena.New(cast.StructDataType, line)
		n := p.arena.Get(base)
		n.StructDef = structDecl
		p.arena.Link(base, structDecl)
	default:
		prim, ok := primitiveKinds[p.cur().Kind]
		if !ok {
			return cast.NoHandle, &ParseError{Line: line, Token: p.cur(), Message: "expected type specifier"}
		}
		p.advance()
		base = p.arena.New(cast.PrimitiveDataType, line)
		p.arena.Get(base).Prim = prim
	}
	p.arena.Get(base).Const = isConst

	if p.match(ctoken.CONST) {
		p.arena.Get(base).Const = true
	}

	for p.match(ctoken.Kind('*')) {
		ptr := p.arena.New(cast.PointerDataType, line)
		p.arena.Get(ptr).Elem = base
		p.arena.Link(ptr, base)
		base = ptr
	}
	return base, nil
}

// parseArraySuffix wraps typ in zero-or-more ARRAY_DATA_TYPE layers, one per
// '[N]' declarator following an identifier.
func (p *Parser) parseArraySuffix(typ cast.Handle) (cast.Handle, error) {
	for p.match(ctoken.Kind('[')) {
		line := p.cur().Line
		size, err := p.expect(ctoken.INTEGER, "array size")
		if err != nil {
			return cast.NoHandle, err
		}
		if size.Integer <= 0 {
			return cast.NoHandle, &ParseError{Line: line, Token: size, Message: "array size must be > 0"}
		}
		if _, err := p.expect(ctoken.Kind(']'), "']'"); err != nil {
			return cast.NoHandle, err
		}
		arr := p.arena.New(cast.ArrayDataType, line)
		n := p.arena.Get(arr)
		n.Elem = typ
		n.ArrayLength = int(size.Integer)
		p.arena.Link(arr, typ)
		typ = arr
	}
	return typ, nil
}

func (p *Parser) parseStructDecl() (cast.Handle, error) {
	line := p.cur().Line
	p.advance() // 'struct' or 'union'
	decl := p.arena.New(cast.StructDecl, line)
	node := p.arena.Get(decl)
	if p.check(ctoken.IDENT) {
		node.Name = p.advance().Lexeme
	}
	if !p.match(ctoken.Kind('{')) {
		// reference to a previously declared struct tag
		if node.Name != "" {
			for h := decl - 1; h > cast.NoHandle; h-- {
				if prev := p.arena.Get(h); prev.Kind == cast.StructDecl && prev.Name == node.Name && prev.Fields != nil {
					return h, nil
				}
			}
		}
		return decl, nil
	}
	for !p.check(ctoken.Kind('}')) {
		fieldType, err := p.parseTypeDeclarator()
		if err != nil {
			return cast.NoHandle, err
		}
		fieldName, err := p.expect(ctoken.IDENT, "field name")
		if err != nil {
			return cast.NoHandle, err
		}
		fieldType, err = p.parseArraySuffix(fieldType)
		if err != nil {
			return cast.NoHandle, err
		}
		if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
			return cast.NoHandle, err
		}
		p.arena.Link(decl, fieldType)
		node.Fields = append(node.Fields, cast.Param{Name: fieldName.Lexeme, Type: fieldType})
	}
	if _, err := p.expect(ctoken.Kind('}'), "'}'"); err != nil {
		return cast.NoHandle, err
	}
	return decl, nil
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) parseBlock() (cast.Handle, error) {
	line := p.cur().Line
	if _, err := p.expect(ctoken.Kind('{'), "'{'"); err != nil {
		return cast.NoHandle, err
	}
	block := p.arena.New(cast.BlockStmt, line)
	for !p.check(ctoken.Kind('}')) {
		stmt, err := p.parseStatement()
		if err != nil {
			return cast.NoHandle, err
		}
		p.arena.Get(block).Children = append(p.arena.Get(block).Children, stmt)
		p.arena.Link(block, stmt)
	}
	if _, err := p.expect(ctoken.Kind('}'), "'}'"); err != nil {
		return cast.NoHandle, err
	}
	return block, nil
}

func (p *Parser) parseStatement() (cast.Handle, error) {
	switch p.cur().Kind {
	case ctoken.Kind('{'):
		return p.parseBlock()
	case ctoken.IF:
		return p.parseIf()
	case ctoken.WHILE:
		return p.parseWhile()
	case ctoken.DO:
		return p.parseDoWhile()
	case ctoken.FOR:
		return p.parseFor()
	case ctoken.RETURN:
		return p.parseReturn()
	case ctoken.BREAK:
		return p.parseBreak()
	case ctoken.Kind(';'):
		line := p.advance().Line
		return p.arena.New(cast.EmptyStmt, line), nil
	default:
		return p.parseInitStatement(true)
	}
}

// parseInitStatement parses either a variable declaration or an expression
// statement, consuming a trailing ';' when requireSemi is set (the for-loop
// init clause parses the same grammar but its semicolon is consumed by the
// caller).
func (p *Parser) parseInitStatement(requireSemi bool) (cast.Handle, error) {
	if p.isTypeStart() {
		decl, err := p.parseVariableDecl()
		if err != nil {
			return cast.NoHandle, err
		}
		if requireSemi {
			if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
				return cast.NoHandle, err
			}
		}
		return decl, nil
	}

	line := p.cur().Line
	expr, err := p.parseExpr()
	if err != nil {
		return cast.NoHandle, err
	}
	stmt := p.arena.New(cast.ExprStmt, line)
	p.arena.Get(stmt).Operand = expr
	p.arena.Link(stmt, expr)
	if requireSemi {
		if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
			return cast.NoHandle, err
		}
	}
	return stmt, nil
}

func (p *Parser) isTypeStart() bool {
	if p.check(ctoken.CONST) || p.check(ctoken.STRUCT) || p.check(ctoken.UNION) {
		return true
	}
	_, ok := primitiveKinds[p.cur().Kind]
	return ok
}

// parseVariableDecl parses a type-declarator followed by one or more
// comma-separated declarators (each its own identifier, array suffix, and
// optional initializer), all sharing the base type. A single declarator
// returns its VARIABLE_DECL node directly; more than one are wrapped in a
// BLOCK_STMT purely for grouping, since codegen compiles a block's children
// in place without introducing a new scope.
func (p *Parser) parseVariableDecl() (cast.Handle, error) {
	line := p.cur().Line
	baseType, err := p.parseTypeDeclarator()
	if err != nil {
		return cast.NoHandle, err
	}

	decls := []cast.Handle{}
	for {
		decl, err := p.parseDeclarator(baseType)
		if err != nil {
			return cast.NoHandle, err
		}
		decls = append(decls, decl)
		if !p.match(ctoken.Kind(',')) {
			break
		}
	}

	if len(decls) == 1 {
		return decls[0], nil
	}

	group := p.arena.New(cast.BlockStmt, line)
	node := p.arena.Get(group)
	node.Children = decls
	for _, d := range decls {
		p.arena.Link(group, d)
	}
	return group, nil
}

// parseDeclarator parses one identifier, its array suffix, and optional
// initializer against an already-parsed base type.
func (p *Parser) parseDeclarator(baseType cast.Handle) (cast.Handle, error) {
	line := p.cur().Line
	name, err := p.expect(ctoken.IDENT, "variable name")
	if err != nil {
		return cast.NoHandle, err
	}
	typ, err := p.parseArraySuffix(baseType)
	if err != nil {
		return cast.NoHandle, err
	}

	decl := p.arena.New(cast.VariableDecl, line)
	node := p.arena.Get(decl)
	node.Name = name.Lexeme
	node.DeclType = typ
	p.arena.Link(decl, typ)

	if p.match(ctoken.Kind('=')) {
		init, err := p.parseAssign()
		if err != nil {
			return cast.NoHandle, err
		}
		node.DeclInit = init
		p.arena.Link(decl, init)
	}

	if p.fn != cast.NoHandle {
		fnNode := p.arena.Get(p.fn)
		fnNode.Locals = append(fnNode.Locals, decl)
	}
	return decl, nil
}

func (p *Parser) parseIf() (cast.Handle, error) {
	line := p.advance().Line // 'if'
	if _, err := p.expect(ctoken.Kind('('), "'('"); err != nil {
		return cast.NoHandle, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
		return cast.NoHandle, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return cast.NoHandle, err
	}

	node := p.arena.New(cast.IfStmt, line)
	n := p.arena.Get(node)
	n.Cond, n.Then = cond, then
	p.arena.Link(node, cond)
	p.arena.Link(node, then)

	if p.match(ctoken.ELSE) {
		elseStmt, err := p.parseStatement()
		if err != nil {
			return cast.NoHandle, err
		}
		n.Else = elseStmt
		p.arena.Link(node, elseStmt)
	}
	return node, nil
}

func (p *Parser) parseWhile() (cast.Handle, error) {
	line := p.advance().Line
	if _, err := p.expect(ctoken.Kind('('), "'('"); err != nil {
		return cast.NoHandle, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
		return cast.NoHandle, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return cast.NoHandle, err
	}
	node := p.arena.New(cast.WhileStmt, line)
	n := p.arena.Get(node)
	n.Cond, n.Then = cond, body
	p.arena.Link(node, cond)
	p.arena.Link(node, body)
	return node, nil
}

func (p *Parser) parseDoWhile() (cast.Handle, error) {
	line := p.advance().Line // 'do'
	body, err := p.parseStatement()
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.WHILE, "'while'"); err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind('('), "'('"); err != nil {
		return cast.NoHandle, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
		return cast.NoHandle, err
	}
	node := p.arena.New(cast.DoWhileStmt, line)
	n := p.arena.Get(node)
	n.Cond, n.Then = cond, body
	p.arena.Link(node, cond)
	p.arena.Link(node, body)
	return node, nil
}

func (p *Parser) parseFor() (cast.Handle, error) {
	line := p.advance().Line // 'for'
	if _, err := p.expect(ctoken.Kind('('), "'('"); err != nil {
		return cast.NoHandle, err
	}

	node := p.arena.New(cast.ForStmt, line)
	n := p.arena.Get(node)

	if !p.check(ctoken.Kind(';')) {
		init, err := p.parseInitStatement(false)
		if err != nil {
			return cast.NoHandle, err
		}
		n.Init = init
		p.arena.Link(node, init)
	}
	if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
		return cast.NoHandle, err
	}

	if !p.check(ctoken.Kind(';')) {
		test, err := p.parseExpr()
		if err != nil {
			return cast.NoHandle, err
		}
		n.Test = test
		p.arena.Link(node, test)
	}
	if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
		return cast.NoHandle, err
	}

	if !p.check(ctoken.Kind(')')) {
		update, err := p.parseExpr()
		if err != nil {
			return cast.NoHandle, err
		}
		n.Update = update
		p.arena.Link(node, update)
	}
	if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
		return cast.NoHandle, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return cast.NoHandle, err
	}
	n.Body = body
	p.arena.Link(node, body)
	return node, nil
}

func (p *Parser) parseReturn() (cast.Handle, error) {
	line := p.advance().Line
	node := p.arena.New(cast.ReturnStmt, line)
	if !p.check(ctoken.Kind(';')) {
		expr, err := p.parseExpr()
		if err != nil {
			return cast.NoHandle, err
		}
		p.arena.Get(node).Operand = expr
		p.arena.Link(node, expr)
	}
	if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
		return cast.NoHandle, err
	}
	return node, nil
}

func (p *Parser) parseBreak() (cast.Handle, error) {
	line := p.advance().Line
	if _, err := p.expect(ctoken.Kind(';'), "';'"); err != nil {
		return cast.NoHandle, err
	}
	return p.arena.New(cast.BreakStmt, line), nil
}

// ----------------------------------------------------------------------------
// Expressions
//
// The ladder below implements the grammar's precedence table top to bottom,
// loosest binding first: sequence, assignment (right-assoc), ternary,
// bitwise or/xor/and, relational, shift, additive, multiplicative, postfix
// subscript/member, postfix inc/dec, unary, primary. Logical && and || are
// not part of the supported subset; bitwise | ^ & fill those table slots.

func (p *Parser) parseExpr() (cast.Handle, error) {
	first, err := p.parseAssign()
	if err != nil {
		return cast.NoHandle, err
	}
	if !p.check(ctoken.Kind(',')) {
		return first, nil
	}
	line := p.cur().Line
	exprs := []cast.Handle{first}
	for p.match(ctoken.Kind(',')) {
		next, err := p.parseAssign()
		if err != nil {
			return cast.NoHandle, err
		}
		exprs = append(exprs, next)
	}
	node := p.arena.New(cast.SeqExpr, line)
	p.arena.Get(node).Exprs = exprs
	for _, e := range exprs {
		p.arena.Link(node, e)
	}
	return node, nil
}

var assignOps = map[ctoken.Kind]cast.Op{
	ctoken.Kind('='): cast.OpAssign, ctoken.ADDEQ: cast.OpAddAssign, ctoken.SUBEQ: cast.OpSubAssign,
	ctoken.MULEQ: cast.OpMulAssign, ctoken.DIVEQ: cast.OpDivAssign, ctoken.MODEQ: cast.OpModAssign,
	ctoken.ANDEQ: cast.OpAndAssign, ctoken.OREQ: cast.OpOrAssign, ctoken.XOREQ: cast.OpXorAssign,
}

func (p *Parser) parseAssign() (cast.Handle, error) {
	lhs, err := p.parseTernary()
	if err != nil {
		return cast.NoHandle, err
	}
	op, ok := assignOps[p.cur().Kind]
	if !ok {
		return lhs, nil
	}
	line := p.advance().Line
	rhs, err := p.parseAssign() // right-associative
	if err != nil {
		return cast.NoHandle, err
	}
	node := p.arena.New(cast.AssignmentExpr, line)
	n := p.arena.Get(node)
	n.Op, n.Lhs, n.Rhs = op, lhs, rhs
	p.arena.Link(node, lhs)
	p.arena.Link(node, rhs)
	return node, nil
}

func (p *Parser) parseTernary() (cast.Handle, error) {
	cond, err := p.parseBitOr()
	if err != nil {
		return cast.NoHandle, err
	}
	if !p.match(ctoken.Kind('?')) {
		return cond, nil
	}
	line := p.toks[p.pos-1].Line
	then, err := p.parseAssign()
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind(':'), "':'"); err != nil {
		return cast.NoHandle, err
	}
	els, err := p.parseAssign()
	if err != nil {
		return cast.NoHandle, err
	}
	node := p.arena.New(cast.TernaryExpr, line)
	n := p.arena.Get(node)
	n.Cond, n.Then, n.Else = cond, then, els
	p.arena.Link(node, cond)
	p.arena.Link(node, then)
	p.arena.Link(node, els)
	return node, nil
}

// binLevel implements one level of a binary-operator precedence ladder: parse
// one operand via next, then while the current token is one of ops, consume
// it and fold in another operand, left-associatively.
func (p *Parser) binLevel(ops map[ctoken.Kind]cast.Op, next func() (cast.Handle, error)) (cast.Handle, error) {
	left, err := next()
	if err != nil {
		return cast.NoHandle, err
	}
	for {
		op, ok := ops[p.cur().Kind]
		if !ok {
			return left, nil
		}
		line := p.advance().Line
		right, err := next()
		if err != nil {
			return cast.NoHandle, err
		}
		node := p.arena.New(cast.BinExpr, line)
		n := p.arena.Get(node)
		n.Op, n.Lhs, n.Rhs = op, left, right
		p.arena.Link(node, left)
		p.arena.Link(node, right)
		left = node
	}
}

var bitOrOps = map[ctoken.Kind]cast.Op{ctoken.Kind('|'): cast.OpOr}
var bitXorOps = map[ctoken.Kind]cast.Op{ctoken.Kind('^'): cast.OpXor}
var bitAndOps = map[ctoken.Kind]cast.Op{ctoken.Kind('&'): cast.OpAnd}
var relOps = map[ctoken.Kind]cast.Op{
	ctoken.EQ: cast.OpEq, ctoken.NEQ: cast.OpNeq, ctoken.Kind('<'): cast.OpLt,
	ctoken.Kind('>'): cast.OpGt, ctoken.LEQ: cast.OpLeq, ctoken.GEQ: cast.OpGeq,
}
var shiftOps = map[ctoken.Kind]cast.Op{ctoken.SHL: cast.OpShl, ctoken.SHR: cast.OpShr}
var addOps = map[ctoken.Kind]cast.Op{ctoken.Kind('+'): cast.OpAdd, ctoken.Kind('-'): cast.OpSub}
var mulOps = map[ctoken.Kind]cast.Op{ctoken.Kind('*'): cast.OpMul, ctoken.Kind('/'): cast.OpDiv, ctoken.Kind('%'): cast.OpMod}

func (p *Parser) parseBitOr() (cast.Handle, error)  { return p.binLevel(bitOrOps, p.parseBitXor) }
func (p *Parser) parseBitXor() (cast.Handle, error) { return p.binLevel(bitXorOps, p.parseBitAnd) }
func (p *Parser) parseBitAnd() (cast.Handle, error) { return p.binLevel(bitAndOps, p.parseRelational) }
func (p *Parser) parseRelational() (cast.Handle, error) {
	return p.binLevel(relOps, p.parseShift)
}
func (p *Parser) parseShift() (cast.Handle, error) { return p.binLevel(shiftOps, p.parseAdd) }
func (p *Parser) parseAdd() (cast.Handle, error)   { return p.binLevel(addOps, p.parseMul) }
func (p *Parser) parseMul() (cast.Handle, error)   { return p.binLevel(mulOps, p.parseUnary) }

var unaryPrefixOps = map[ctoken.Kind]cast.Op{
	ctoken.Kind('-'): cast.OpNeg, ctoken.Kind('+'): cast.OpPlus,
	ctoken.Kind('!'): cast.OpNot, ctoken.Kind('~'): cast.OpBitNot,
}

func (p *Parser) parseUnary() (cast.Handle, error) {
	line := p.cur().Line
	switch p.cur().Kind {
	case ctoken.INC, ctoken.DEC:
		op := cast.OpPreInc
		if p.cur().Kind == ctoken.DEC {
			op = cast.OpPreDec
		}
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return cast.NoHandle, err
		}
		node := p.arena.New(cast.UnaryExpr, line)
		n := p.arena.Get(node)
		n.Op, n.Operand = op, operand
		p.arena.Link(node, operand)
		return node, nil

	case ctoken.Kind('&'):
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return cast.NoHandle, err
		}
		node := p.arena.New(cast.AddressOf, line)
		p.arena.Get(node).Operand = operand
		p.arena.Link(node, operand)
		return node, nil

	case ctoken.Kind('*'):
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return cast.NoHandle, err
		}
		node := p.arena.New(cast.Dereference, line)
		p.arena.Get(node).Operand = operand
		p.arena.Link(node, operand)
		return node, nil

	case ctoken.SIZEOF:
		return p.parseSizeof()

	case ctoken.Kind('('):
		if p.isCastAhead() {
			return p.parseCast()
		}
	}

	if op, ok := unaryPrefixOps[p.cur().Kind]; ok {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return cast.NoHandle, err
		}
		node := p.arena.New(cast.UnaryExpr, line)
		n := p.arena.Get(node)
		n.Op, n.Operand = op, operand
		p.arena.Link(node, operand)
		return node, nil
	}

	return p.parsePostfixIncDec()
}

// isCastAhead reports whether the '(' at the cursor opens a cast expression
// ("(" type ")") rather than a parenthesized expression; it looks one token
// past the '(' without consuming anything.
func (p *Parser) isCastAhead() bool {
	next := p.toks[p.pos+1]
	if next.Kind == ctoken.CONST || next.Kind == ctoken.STRUCT || next.Kind == ctoken.UNION {
		return true
	}
	_, ok := primitiveKinds[next.Kind]
	return ok
}

func (p *Parser) parseCast() (cast.Handle, error) {
	line := p.cur().Line
	p.advance() // '('
	typ, err := p.parseTypeDeclarator()
	if err != nil {
		return cast.NoHandle, err
	}
	if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
		return cast.NoHandle, err
	}
	operand, err := p.parseUnary()
	if err != nil {
		return cast.NoHandle, err
	}
	node := p.arena.New(cast.Cast, line)
	n := p.arena.Get(node)
	n.DeclType, n.Operand = typ, operand
	p.arena.Link(node, typ)
	p.arena.Link(node, operand)
	return node, nil
}

func (p *Parser) parseSizeof() (cast.Handle, error) {
	line := p.advance().Line // 'sizeof'
	node := p.arena.New(cast.Sizeof, line)
	n := p.arena.Get(node)

	if p.check(ctoken.Kind('(')) && p.isTypeAt(p.pos+1) {
		p.advance()
		typ, err := p.parseTypeDeclarator()
		if err != nil {
			return cast.NoHandle, err
		}
		typ, err = p.parseArraySuffix(typ)
		if err != nil {
			return cast.NoHandle, err
		}
		if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
			return cast.NoHandle, err
		}
		n.SizeofType = typ
		p.arena.Link(node, typ)
		return node, nil
	}

	operand, err := p.parseUnary()
	if err != nil {
		return cast.NoHandle, err
	}
	n.SizeofExpr = operand
	p.arena.Link(node, operand)
	return node, nil
}

func (p *Parser) isTypeAt(idx int) bool {
	k := p.toks[idx].Kind
	if k == ctoken.CONST || k == ctoken.STRUCT || k == ctoken.UNION {
		return true
	}
	_, ok := primitiveKinds[k]
	return ok
}

var postIncDecOps = map[ctoken.Kind]cast.Op{ctoken.INC: cast.OpPostInc, ctoken.DEC: cast.OpPostDec}

func (p *Parser) parsePostfixIncDec() (cast.Handle, error) {
	left, err := p.parsePostfixIndex()
	if err != nil {
		return cast.NoHandle, err
	}
	for {
		op, ok := postIncDecOps[p.cur().Kind]
		if !ok {
			return left, nil
		}
		line := p.advance().Line
		node := p.arena.New(cast.UnaryExpr, line)
		n := p.arena.Get(node)
		n.Op, n.Operand = op, left
		p.arena.Link(node, left)
		left = node
	}
}

func (p *Parser) parsePostfixIndex() (cast.Handle, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return cast.NoHandle, err
	}
	for {
		switch p.cur().Kind {
		case ctoken.Kind('['):
			line := p.advance().Line
			index, err := p.parseExpr()
			if err != nil {
				return cast.NoHandle, err
			}
			if _, err := p.expect(ctoken.Kind(']'), "']'"); err != nil {
				return cast.NoHandle, err
			}
			node := p.arena.New(cast.MemberExpr, line)
			n := p.arena.Get(node)
			n.Object, n.Property, n.Computed = left, index, true
			p.arena.Link(node, left)
			p.arena.Link(node, index)
			left = node

		case ctoken.Kind('.'), ctoken.ARROW:
			arrow := p.cur().Kind == ctoken.ARROW
			line := p.advance().Line
			fieldTok, err := p.expect(ctoken.IDENT, "field name")
			if err != nil {
				return cast.NoHandle, err
			}
			field := p.arena.New(cast.Identifier, fieldTok.Line)
			p.arena.Get(field).Ident = fieldTok.Lexeme
			node := p.arena.New(cast.MemberExpr, line)
			n := p.arena.Get(node)
			n.Object, n.Property, n.Arrow = left, field, arrow
			p.arena.Link(node, left)
			p.arena.Link(node, field)
			left = node

		default:
			return left, nil
		}
	}
}

// parsePrimary parses an identifier (optionally followed by a call's
// argument list), a parenthesized expression, an integer or string
// literal; a floating-point literal is a ParseError. Function calls live here rather than in the postfix ladder: the
// grammar only allows calling a bare name, never an arbitrary postfix
// expression.
func (p *Parser) parsePrimary() (cast.Handle, error) {
	tok := p.cur()
	switch tok.Kind {
	case ctoken.Kind('('):
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return cast.NoHandle, err
		}
		if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
			return cast.NoHandle, err
		}
		return expr, nil

	case ctoken.INTEGER:
		p.advance()
		node := p.arena.New(cast.Literal, tok.Line)
		n := p.arena.Get(node)
		n.LitIsInt, n.LitInt = true, tok.Integer
		return node, nil

	case ctoken.NUMBER:
		p.advance()
		return cast.NoHandle, &ParseError{Line: tok.Line, Token: tok, Message: "floating-point literals are not supported"}

	case ctoken.STRING:
		p.advance()
		node := p.arena.New(cast.Literal, tok.Line)
		n := p.arena.Get(node)
		n.LitIsString, n.LitString = true, tok.Str
		return node, nil

	case ctoken.IDENT:
		p.advance()
		if p.match(ctoken.Kind('(')) {
			node := p.arena.New(cast.FunctionCallExpr, tok.Line)
			n := p.arena.Get(node)
			callee := p.arena.New(cast.Identifier, tok.Line)
			p.arena.Get(callee).Ident = tok.Lexeme
			n.Callee = callee
			p.arena.Link(node, callee)
			for !p.check(ctoken.Kind(')')) {
				arg, err := p.parseAssign()
				if err != nil {
					return cast.NoHandle, err
				}
				n.Args = append(n.Args, arg)
				p.arena.Link(node, arg)
				if !p.match(ctoken.Kind(',')) {
					break
				}
			}
			if _, err := p.expect(ctoken.Kind(')'), "')'"); err != nil {
				return cast.NoHandle, err
			}
			return node, nil
		}
		node := p.arena.New(cast.Identifier, tok.Line)
		p.arena.Get(node).Ident = tok.Lexeme
		return node, nil

	default:
		return cast.NoHandle, &ParseError{Line: tok.Line, Token: tok, Message: "expected expression"}
	}
}
