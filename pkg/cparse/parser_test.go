package cparse_test

import (
	"testing"

	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/clex"
	"occ.dev/compiler/pkg/cparse"
)

func parse(t *testing.T, src string) (cast.Handle, *cast.Arena) {
	t.Helper()
	toks, err := clex.Lex(src, 0)
	if err != nil {
		t.Fatalf("Lex(%q): %s", src, err)
	}
	root, arena, err := cparse.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse(%q): %s", src, err)
	}
	return root, arena
}

func firstExprOfMain(t *testing.T, arena *cast.Arena, root cast.Handle) *cast.Node {
	t.Helper()
	prog := arena.Get(root)
	if len(prog.Children) != 1 {
		t.Fatalf("expected exactly one top-level function, got %d", len(prog.Children))
	}
	fn := arena.Get(prog.Children[0])
	body := arena.Get(fn.Body)
	if len(body.Children) == 0 {
		t.Fatal("expected at least one statement in the function body")
	}
	for _, h := range body.Children {
		if stmt := arena.Get(h); stmt.Kind != cast.VariableDecl {
			return arena.Get(stmt.Operand) // return and expression statements both use Operand
		}
	}
	t.Fatal("expected a non-declaration statement in the function body")
	return nil
}

func TestArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 must bind as 1 + (2 * 3), i.e. the root BinExpr is '+'
	// with a '*' BinExpr on its right, not the other way around.
	root, arena := parse(t, "int main() { return 1 + 2 * 3; }")
	expr := firstExprOfMain(t, arena, root)

	if expr.Kind != cast.BinExpr || expr.Op != cast.OpAdd {
		t.Fatalf("root expression = %v %v, want BinExpr(+)", expr.Kind, expr.Op)
	}
	rhs := arena.Get(expr.Rhs)
	if rhs.Kind != cast.BinExpr || rhs.Op != cast.OpMul {
		t.Fatalf("rhs = %v %v, want BinExpr(*)", rhs.Kind, rhs.Op)
	}
}

func TestAssignmentIsRightAssociative(t *testing.T) {
	// a = b = 1 must parse as a = (b = 1).
	root, arena := parse(t, "int main() { int a; int b; a = b = 1; return a; }")
	prog := arena.Get(root)
	fn := arena.Get(prog.Children[0])
	body := arena.Get(fn.Body)

	var assign *cast.Node
	for _, h := range body.Children {
		n := arena.Get(h)
		if n.Kind == cast.ExprStmt {
			assign = arena.Get(n.Operand)
		}
	}
	if assign == nil || assign.Kind != cast.AssignmentExpr {
		t.Fatalf("expected an assignment expression statement, got %v", assign)
	}
	rhs := arena.Get(assign.Rhs)
	if rhs.Kind != cast.AssignmentExpr {
		t.Fatalf("rhs of outer assignment = %v, want nested AssignmentExpr", rhs.Kind)
	}
}

func TestTernaryAndArrow(t *testing.T) {
	root, arena := parse(t, "int main() { struct P { int x; } *p; return p->x ? 1 : 2; }")
	expr := firstExprOfMain(t, arena, root)
	if expr.Kind != cast.TernaryExpr {
		t.Fatalf("expected TernaryExpr, got %v", expr.Kind)
	}
	cond := arena.Get(expr.Cond)
	if cond.Kind != cast.MemberExpr || !cond.Arrow {
		t.Fatalf("expected an arrow MemberExpr condition, got %v arrow=%v", cond.Kind, cond.Arrow)
	}
}

func TestMissingSemicolonIsAParseError(t *testing.T) {
	toks, err := clex.Lex("int main() { return 1 }", 0)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if _, _, err := cparse.NewParser(toks).Parse(); err == nil {
		t.Fatal("expected a parse error for the missing semicolon")
	}
}
