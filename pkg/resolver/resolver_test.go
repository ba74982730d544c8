package resolver_test

import (
	"testing"

	"occ.dev/compiler/pkg/resolver"
)

func TestStaticResolve(t *testing.T) {
	st := resolver.NewStatic()
	st.Add(resolver.Symbol{Library: "libc.so.6", Name: "write", Address: 0x1234})

	sym, ok := st.Resolve("write")
	if !ok {
		t.Fatal("expected write to resolve")
	}
	if sym.Address != 0x1234 {
		t.Errorf("Address = %#x, want 0x1234", sym.Address)
	}

	if _, ok := st.Resolve("does_not_exist"); ok {
		t.Error("expected an unknown symbol to fail resolution")
	}
}

func TestStaticAddOverwritesSameName(t *testing.T) {
	st := resolver.NewStatic()
	st.Add(resolver.Symbol{Name: "exit", Address: 1})
	st.Add(resolver.Symbol{Name: "exit", Address: 2})

	sym, ok := st.Resolve("exit")
	if !ok || sym.Address != 2 {
		t.Errorf("Resolve(exit) = %+v, %v, want Address=2", sym, ok)
	}
}
