// Package resolver implements the dynamic-symbol resolver named as an
// external collaborator in spec.md §6: given a symbol name, answer with
// enough information for the codegen driver to record an IMPORT
// relocation, or for the memory target to patch in an absolute address
// directly.
package resolver

// Symbol is what spec.md §3 calls the "Dynamic symbol" record.
type Symbol struct {
	Library string
	Name    string
	Address uint64 // populated once resolution against a loaded image succeeds
	Hash    uint32
}

// Resolver answers resolve(name) -> symbol | none (spec.md §6).
type Resolver interface {
	Resolve(name string) (Symbol, bool)
}

// Static is a Resolver backed by a fixed table, built ahead of time by
// scanning the libraries named with -l<name> (see library.go). It is the
// only Resolver implementation in the module; the CLI and the codegen
// unit tests both construct it with NewStatic.
type Static struct {
	symbols map[string]Symbol
}

func NewStatic() *Static { return &Static{symbols: map[string]Symbol{}} }

func (s *Static) Add(sym Symbol) { s.symbols[sym.Name] = sym }

func (s *Static) Resolve(name string) (Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

func fnv1a32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
