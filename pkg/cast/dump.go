package cast

import (
	"fmt"
	"io"
	"strings"
)

// Dump implements the `-a` CLI flag: a readable, indented walk of the
// tree rooted at h, one node per line. It is a debugging aid, not a
// serialization format — no parser ever reads this output back.
func (a *Arena) Dump(w io.Writer, h Handle) {
	a.dump(w, h, 0)
}

func (a *Arena) dump(w io.Writer, h Handle, depth int) {
	if h == NoHandle {
		return
	}
	n := a.Get(h)
	if n == nil {
		return
	}
	indent := strings.Repeat("  ", depth)

	switch n.Kind {
	case Identifier:
		fmt.Fprintf(w, "%sIDENTIFIER %s\n", indent, n.Ident)
	case Literal:
		if n.LitIsString {
			fmt.Fprintf(w, "%sLITERAL %q\n", indent, n.LitString)
		} else {
			fmt.Fprintf(w, "%sLITERAL %d\n", indent, n.LitInt)
		}
	case FunctionDecl:
		fmt.Fprintf(w, "%sFUNCTION_DECL %s (variadic=%v)\n", indent, n.Name, n.Variadic)
		a.dump(w, n.ReturnType, depth+1)
		a.dump(w, n.Body, depth+1)
	case VariableDecl:
		fmt.Fprintf(w, "%sVARIABLE_DECL %s\n", indent, n.Name)
		a.dump(w, n.DeclType, depth+1)
		a.dump(w, n.DeclInit, depth+1)
	case BinExpr, AssignmentExpr:
		fmt.Fprintf(w, "%s%s %s\n", indent, kindLabel(n.Kind), n.Op)
		a.dump(w, n.Lhs, depth+1)
		a.dump(w, n.Rhs, depth+1)
	case UnaryExpr:
		fmt.Fprintf(w, "%sUNARY_EXPR %s\n", indent, n.Op)
		a.dump(w, n.Operand, depth+1)
	case TernaryExpr, IfStmt:
		fmt.Fprintf(w, "%s%s\n", indent, kindLabel(n.Kind))
		a.dump(w, n.Cond, depth+1)
		a.dump(w, n.Then, depth+1)
		a.dump(w, n.Else, depth+1)
	case MemberExpr:
		fmt.Fprintf(w, "%sMEMBER_EXPR computed=%v arrow=%v\n", indent, n.Computed, n.Arrow)
		a.dump(w, n.Object, depth+1)
		a.dump(w, n.Property, depth+1)
	case FunctionCallExpr:
		fmt.Fprintf(w, "%sFUNCTION_CALL_EXPR\n", indent)
		a.dump(w, n.Callee, depth+1)
		for _, arg := range n.Args {
			a.dump(w, arg, depth+1)
		}
	default:
		fmt.Fprintf(w, "%s%s\n", indent, kindLabel(n.Kind))
		for _, child := range n.Children {
			a.dump(w, child, depth+1)
		}
		a.dump(w, n.Cond, depth+1)
		a.dump(w, n.Init, depth+1)
		a.dump(w, n.Test, depth+1)
		a.dump(w, n.Update, depth+1)
		a.dump(w, n.Body, depth+1)
		a.dump(w, n.Then, depth+1)
		a.dump(w, n.Else, depth+1)
		a.dump(w, n.Operand, depth+1)
		for _, e := range n.Exprs {
			a.dump(w, e, depth+1)
		}
	}
}

var kindNames = map[Kind]string{
	Program: "PROGRAM", BlockStmt: "BLOCK_STMT", IfStmt: "IF_STMT",
	WhileStmt: "WHILE_STMT", DoWhileStmt: "DO_WHILE_STMT", ForStmt: "FOR_STMT",
	BreakStmt: "BREAK_STMT", ReturnStmt: "RETURN_STMT", ExprStmt: "EXPR_STMT",
	EmptyStmt: "EMPTY_STMT", FunctionDecl: "FUNCTION_DECL", VariableDecl: "VARIABLE_DECL",
	StructDecl: "STRUCT_DECL", Identifier: "IDENTIFIER", Literal: "LITERAL",
	BinExpr: "BIN_EXPR", AssignmentExpr: "ASSIGNMENT_EXPR", UnaryExpr: "UNARY_EXPR",
	TernaryExpr: "TERNARY_EXPR", MemberExpr: "MEMBER_EXPR", FunctionCallExpr: "FUNCTION_CALL_EXPR",
	Sizeof: "SIZEOF", AddressOf: "ADDRESS_OF", Dereference: "DEREFERENCE",
	SeqExpr: "SEQ_EXPR", Cast: "CAST", PrimitiveDataType: "PRIMITIVE_DATA_TYPE",
	PointerDataType: "POINTER_DATA_TYPE", ArrayDataType: "ARRAY_DATA_TYPE",
	StructDataType: "STRUCT_DATA_TYPE",
}

func kindLabel(k Kind) string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}
