package resolver

import (
	"debug/elf"
	"debug/pe"
	"fmt"
)

// LoadLibrary populates st with every exported dynamic symbol found in
// the shared object or DLL at path, answering the `-l<name>` CLI option
// (spec.md §6). This reads an already-built host library's symbol table,
// a different concern from pkg/image's from-scratch ELF/PE writer: no
// library in the retrieved example pack parses binary symbol tables, so
// the standard library's own readers are used here.
func LoadLibrary(st *Static, path string) error {
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		return loadELF(st, path, f)
	}
	if f, err := pe.Open(path); err == nil {
		defer f.Close()
		return loadPE(st, path, f)
	}
	return fmt.Errorf("resolver: %s is neither a recognizable ELF nor PE image", path)
}

func loadELF(st *Static, libPath string, f *elf.File) error {
	syms, err := f.DynamicSymbols()
	if err != nil {
		return fmt.Errorf("resolver: reading dynamic symbols from %s: %w", libPath, err)
	}
	for _, sym := range syms {
		if sym.Name == "" {
			continue
		}
		st.Add(Symbol{Library: libPath, Name: sym.Name, Address: sym.Value, Hash: fnv1a32(sym.Name)})
	}
	return nil
}

func loadPE(st *Static, libPath string, f *pe.File) error {
	for _, sym := range f.Symbols {
		if sym.Name == "" {
			continue
		}
		st.Add(Symbol{Library: libPath, Name: sym.Name, Address: uint64(sym.Value), Hash: fnv1a32(sym.Name)})
	}
	return nil
}
