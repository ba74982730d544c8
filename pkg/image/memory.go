package image

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"occ.dev/compiler/pkg/ir"
	"occ.dev/compiler/pkg/resolver"
)

// Run implements spec.md §4.4's memory target: allocate one
// page-aligned executable region sized to code+data, copy both in,
// apply relocations against the region's actual runtime base (including
// IMPORT relocations resolved against res), flip the page to
// read+execute, and invoke the entry offset as a function. The callee's
// return value becomes the process exit status.
func Run(mod ir.CompiledModule, res resolver.Resolver) (int, error) {
	total := alignUp(len(mod.Code)+len(mod.Data), PageSize)
	if total == 0 {
		total = PageSize
	}

	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("image: mmap failed: %w", err)
	}
	defer unix.Munmap(region)

	copy(region, mod.Code)
	copy(region[len(mod.Code):], mod.Data)

	base := uintptr(unsafe.Pointer(&region[0]))
	codeVaddr := uint64(base)
	dataVaddr := uint64(base) + uint64(len(mod.Code))

	if err := applyMemoryRelocs(region, mod.Relocs, codeVaddr, dataVaddr, res); err != nil {
		return 0, err
	}

	if err := unix.Mprotect(region, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return 0, fmt.Errorf("image: mprotect failed: %w", err)
	}

	entry := uintptr(base) + uintptr(mod.EntryOffset)
	entryPtr := &entry // a Go func value points at a word holding the code address
	fn := *(*func() int32)(unsafe.Pointer(&entryPtr))
	return int(fn()), nil
}

// applyMemoryRelocs mirrors applyFileRelocs but writes in place against
// the mmap'd region's live runtime addresses, and additionally resolves
// IMPORT relocations through the caller's resolver — the one relocation
// kind a file target can never satisfy.
func applyMemoryRelocs(region []byte, relocs []ir.Reloc, codeVaddr, dataVaddr uint64, res resolver.Resolver) error {
	for _, r := range relocs {
		var target uint64
		switch r.Kind {
		case ir.RelocCode:
			target = uint64(r.TargetOffset) + codeVaddr
		case ir.RelocData:
			target = uint64(r.TargetOffset) + dataVaddr
		case ir.RelocImport:
			if res == nil {
				return fmt.Errorf("image: import symbol %q requires -l<name> to load a resolver", r.Symbol)
			}
			sym, ok := res.Resolve(r.Symbol)
			if !ok {
				return fmt.Errorf("image: unresolved import symbol %q", r.Symbol)
			}
			target = sym.Address
		default:
			continue
		}
		if r.SourceOffset < 0 || r.SourceOffset+4 > len(region) {
			return fmt.Errorf("image: relocation source offset %d out of range", r.SourceOffset)
		}
		region[r.SourceOffset] = byte(target)
		region[r.SourceOffset+1] = byte(target >> 8)
		region[r.SourceOffset+2] = byte(target >> 16)
		region[r.SourceOffset+3] = byte(target >> 24)
	}
	return nil
}
