// Package image implements spec.md §4.4's image emitter: given a
// CompiledModule it produces an ELF32 file, an ELF64 file, a PE file, or
// runs the module directly out of executable memory.
package image

import (
	"fmt"

	"occ.dev/compiler/pkg/ir"
)

// PageSize is the alignment spec.md §4.4 requires for every segment.
const PageSize = 0x1000

// Virtual base addresses named in spec.md §4.4.
const (
	ELF32Base uint64 = 0x08048000
	ELF64Base uint64 = 0x00040000
)

func alignUp(n int, align int) int {
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

// applyFileRelocs patches CODE and DATA relocations directly into a copy
// of the module's code buffer ahead of writing a file image (spec.md
// §4.4's relocation pass). IMPORT relocations are not resolvable against
// a file target — only the memory target has a live resolver — so they
// are reported as an error rather than silently left as zero.
func applyFileRelocs(code []byte, relocs []ir.Reloc, codeVaddr, dataVaddr uint64) ([]byte, error) {
	patched := make([]byte, len(code))
	copy(patched, code)

	for _, r := range relocs {
		var target uint64
		switch r.Kind {
		case ir.RelocCode:
			target = uint64(r.TargetOffset) + codeVaddr
		case ir.RelocData:
			target = uint64(r.TargetOffset) + dataVaddr
		case ir.RelocImport:
			return nil, fmt.Errorf("image: import symbol %q cannot be resolved in a file target, only -bmemory", r.Symbol)
		default:
			continue
		}
		if r.SourceOffset < 0 || r.SourceOffset+4 > len(patched) {
			return nil, fmt.Errorf("image: relocation source offset %d out of range", r.SourceOffset)
		}
		patched[r.SourceOffset] = byte(target)
		patched[r.SourceOffset+1] = byte(target >> 8)
		patched[r.SourceOffset+2] = byte(target >> 16)
		patched[r.SourceOffset+3] = byte(target >> 24)
	}
	return patched, nil
}
