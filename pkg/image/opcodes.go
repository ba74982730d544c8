package image

import (
	"fmt"
	"io"

	"occ.dev/compiler/pkg/ir"
)

// WriteOpcodes implements the `-bopcodes`/`-i` raw dump mode from
// spec.md §6: emit the module's machine code bytes with CODE/DATA
// relocations already patched against a nominal base of zero, with no
// container format around them. IMPORT relocations have nothing to
// patch against without a loaded library, so they are left as zero
// bytes and flagged with a one-line notice on stderr rather than
// failing the dump outright — a raw dump is for inspection, not for
// producing something runnable.
func WriteOpcodes(w io.Writer, mod ir.CompiledModule, warn io.Writer) error {
	patched := make([]byte, len(mod.Code))
	copy(patched, mod.Code)

	for _, r := range mod.Relocs {
		var target uint64
		switch r.Kind {
		case ir.RelocCode:
			target = uint64(r.TargetOffset)
		case ir.RelocData:
			target = uint64(len(mod.Code)) + uint64(r.TargetOffset)
		case ir.RelocImport:
			if warn != nil {
				fmt.Fprintf(warn, "occ: import symbol %q left unresolved in opcode dump\n", r.Symbol)
			}
			continue
		default:
			continue
		}
		if r.SourceOffset < 0 || r.SourceOffset+4 > len(patched) {
			return fmt.Errorf("image: relocation source offset %d out of range", r.SourceOffset)
		}
		patched[r.SourceOffset] = byte(target)
		patched[r.SourceOffset+1] = byte(target >> 8)
		patched[r.SourceOffset+2] = byte(target >> 16)
		patched[r.SourceOffset+3] = byte(target >> 24)
	}

	if _, err := w.Write(patched); err != nil {
		return err
	}
	_, err := w.Write(mod.Data)
	return err
}
