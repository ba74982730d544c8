package codegen_test

import (
	"testing"

	"occ.dev/compiler/pkg/backend"
	"occ.dev/compiler/pkg/clex"
	"occ.dev/compiler/pkg/codegen"
	"occ.dev/compiler/pkg/cparse"
	"occ.dev/compiler/pkg/image"
	"occ.dev/compiler/pkg/resolver"
)

// run compiles src for x86-64 and executes it through the memory target,
// the only way to observe the actual computed value rather than just the
// presence of generated bytes.
func run(t *testing.T, src string) int {
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
	status, err := image.Run(mod, resolver.NewStatic())
	if err != nil {
		t.Fatalf("image.Run: %s", err)
	}
	return status
}

func TestScenarioConstantReturn(t *testing.T) {
	if got := run(t, "int main(){return 7;}"); got != 7 {
		t.Errorf("status = %d, want 7", got)
	}
}

func TestScenarioMultiDeclaratorArithmetic(t *testing.T) {
	if got := run(t, "int main(){int a=2,b=3;return a*b+1;}"); got != 7 {
		t.Errorf("status = %d, want 7", got)
	}
}

func TestScenarioForLoopSumRequiresSignedLeqComparison(t *testing.T) {
	src := `
		int sum(int n){int s=0;for(int i=1;i<=n;i=i+1)s=s+i;return s;}
		int main(){return sum(10);}
	`
	if got := run(t, src); got != 55 {
		t.Errorf("status = %d, want 55 (1..10 summed) — a mis-signed Cmp inverts the i<=n test", got)
	}
}

func TestScenarioRecursiveFactorialRequiresSignedLtComparison(t *testing.T) {
	src := `
		int fact(int n){if(n<2)return 1;return n*fact(n-1);}
		int main(){return fact(5);}
	`
	if got := run(t, src); got != 120 {
		t.Errorf("status = %d, want 120 — a mis-signed Cmp inverts the n<2 base case", got)
	}
}

func TestScenarioArraySum(t *testing.T) {
	src := `
		int main(){
			int a[4];
			a[0]=1;a[1]=2;a[2]=4;a[3]=8;
			int s=0;
			for(int i=0;i<4;i=i+1)s=s+a[i];
			return s;
		}
	`
	if got := run(t, src); got != 15 {
		t.Errorf("status = %d, want 15", got)
	}
}

func TestScenarioWhileTrueWithBreak(t *testing.T) {
	src := "int main(){int i=0;while(1){if(i==3)break;i=i+1;}return i;}"
	if got := run(t, src); got != 3 {
		t.Errorf("status = %d, want 3", got)
	}
}
