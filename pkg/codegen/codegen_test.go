package codegen_test

import (
	"testing"

	"occ.dev/compiler/pkg/backend"
	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/clex"
	"occ.dev/compiler/pkg/codegen"
	"occ.dev/compiler/pkg/cparse"
	"occ.dev/compiler/pkg/ir"
	"occ.dev/compiler/pkg/resolver"
)

func compile(t *testing.T, src string) ir.CompiledModule {
	t.Helper()
	toks, err := clex.Lex(src, 0)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	root, arena, err := cparse.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	driver := codegen.New(arena, backend.NewX64(), resolver.NewStatic(), false)
	mod, err := driver.Codegen(root)
	if err != nil {
		t.Fatalf("Codegen: %s", err)
	}
	return mod
}

func TestCodegenConstantReturn(t *testing.T) {
	mod := compile(t, "int main() { return 42; }")
	if len(mod.Code) == 0 {
		t.Fatal("expected non-empty code buffer")
	}
	if mod.EntryOffset != 0 {
		t.Errorf("EntryOffset = %d, want 0 for a single-function module", mod.EntryOffset)
	}
}

func TestCodegenArithmeticAndCompoundAssignment(t *testing.T) {
	mod := compile(t, `
		int main() {
			int x;
			x = 10;
			x += 5;
			x *= 2;
			return x;
		}
	`)
	if len(mod.Code) == 0 {
		t.Fatal("expected non-empty code buffer")
	}
}

func TestCodegenUserFunctionCallRecordsRelocation(t *testing.T) {
	mod := compile(t, `
		int add(int a, int b) { return a + b; }
		int main() { return add(1, 2); }
	`)
	found := false
	for _, r := range mod.Relocs {
		if r.Kind == ir.RelocCode && r.Symbol == "add" {
			found = true
		}
	}
	if !found {
		t.Error("expected a RelocCode relocation targeting 'add'")
	}
}

func TestCodegenUnknownFunctionFails(t *testing.T) {
	src := "int main() { return ghost(); }"
	toks, err := clex.Lex(src, 0)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	root, arena, err := cparse.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	driver := codegen.New(arena, backend.NewX64(), resolver.NewStatic(), false)
	if _, err := driver.Codegen(root); err == nil {
		t.Fatal("expected UnknownFunction error calling an unresolved name")
	}
}

func TestCodegenSyscallPlacesArgsAndInvokes(t *testing.T) {
	mod := compile(t, "int main() { return syscall(60, 0); }")
	if len(mod.Code) == 0 {
		t.Fatal("expected non-empty code buffer")
	}
}

func TestCodegenDuplicateFunctionFails(t *testing.T) {
	src := `
		int main() { return 1; }
		int main() { return 2; }
	`
	toks, _ := clex.Lex(src, 0)
	root, arena, err := cparse.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	driver := codegen.New(arena, backend.NewX64(), resolver.NewStatic(), false)
	if _, err := driver.Codegen(root); err == nil {
		t.Fatal("expected DuplicateFunction error")
	}
}

func TestDataTypeSizePrimitivesAndArray(t *testing.T) {
	arena := cast.NewArena()
	i := arena.New(cast.PrimitiveDataType, 1)
	arena.Get(i).Prim = cast.Int

	arr := arena.New(cast.ArrayDataType, 1)
	arena.Get(arr).Elem = i
	arena.Get(arr).ArrayLength = 10

	sz, err := codegen.DataTypeSize(arena, 8, i)
	if err != nil || sz != 4 {
		t.Errorf("sizeof(int) = %d, %v, want 4, nil", sz, err)
	}
	sz, err = codegen.DataTypeSize(arena, 8, arr)
	if err != nil || sz != 40 {
		t.Errorf("sizeof(int[10]) = %d, %v, want 40, nil", sz, err)
	}

	ptr := arena.New(cast.PointerDataType, 1)
	arena.Get(ptr).Elem = i
	sz, err = codegen.DataTypeSize(arena, 8, ptr)
	if err != nil || sz != 8 {
		t.Errorf("sizeof(int*) on a 64-bit target = %d, %v, want 8, nil", sz, err)
	}
}

func TestCodegenWhileLoopWithBreak(t *testing.T) {
	mod := compile(t, `
		int main() {
			int i;
			i = 0;
			while (1) {
				i += 1;
				if (i == 10) break;
			}
			return i;
		}
	`)
	if len(mod.Code) == 0 {
		t.Fatal("expected non-empty code buffer")
	}
}

func TestCodegenStructFieldAccess(t *testing.T) {
	mod := compile(t, `
		int main() {
			struct Point { int x; int y; } p;
			p.x = 3;
			p.y = 4;
			return p.x + p.y;
		}
	`)
	if len(mod.Code) == 0 {
		t.Fatal("expected non-empty code buffer")
	}
}

func TestCodegenPointerArithmeticAndDereference(t *testing.T) {
	mod := compile(t, `
		int main() {
			int x;
			int *p;
			x = 7;
			p = &x;
			*p = 9;
			return *p;
		}
	`)
	if len(mod.Code) == 0 {
		t.Fatal("expected non-empty code buffer")
	}
}

func TestCodegenBreakOutsideLoopFails(t *testing.T) {
	src := "int main() { break; return 0; }"
	toks, _ := clex.Lex(src, 0)
	root, arena, err := cparse.NewParser(toks).Parse()
	if err != nil {
		t.Fatalf("Parse: %s", err)
	}
	driver := codegen.New(arena, backend.NewX64(), resolver.NewStatic(), false)
	if _, err := driver.Codegen(root); err == nil {
		t.Fatal("expected an error for break outside any loop")
	}
}
