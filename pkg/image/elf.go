package image

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"occ.dev/compiler/pkg/ir"
)

// elf32Header/elf32Phdr mirror Elf32_Ehdr/Elf32_Phdr; debug/elf only
// offers a reader, so the writer side is hand-rolled against the same
// named constants it exports (elf.ET_EXEC, elf.PT_LOAD, ...).
type elf32Header struct {
	Ident                              [16]byte
	Type, Machine                      uint16
	Version                            uint32
	Entry, Phoff, Shoff                uint32
	Flags                              uint32
	Ehsize, Phentsize, Phnum           uint16
	Shentsize, Shnum, Shstrndx         uint16
}

type elf32Phdr struct {
	Type                        uint32
	Offset, Vaddr, Paddr        uint32
	Filesz, Memsz, Flags, Align uint32
}

type elf64Header struct {
	Ident                      [16]byte
	Type, Machine              uint16
	Version                    uint32
	Entry, Phoff, Shoff        uint64
	Flags                      uint32
	Ehsize, Phentsize, Phnum   uint16
	Shentsize, Shnum, Shstrndx uint16
}

type elf64Phdr struct {
	Type, Flags          uint32
	Offset, Vaddr, Paddr uint64
	Filesz, Memsz, Align uint64
}

func identBytes(class byte) [16]byte {
	var ident [16]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = class
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)
	return ident
}

// WriteELF32 implements spec.md §4.4's Tiny-ELF layout for a 32-bit
// (machine EM_386) target: a read-only segment covering the headers, a
// read+execute .text segment at ELF32Base+PageSize, and (when the module
// has a data buffer) a read+write .data segment after it.
func WriteELF32(w io.Writer, mod ir.CompiledModule) error {
	const ehdrSize, phdrSize = 52, 32
	numPhdrs := 2
	if len(mod.Data) > 0 {
		numPhdrs = 3
	}
	headerTotal := ehdrSize + numPhdrs*phdrSize

	codeVaddr := ELF32Base + PageSize
	dataFileOff := PageSize + alignUp(len(mod.Code), PageSize)
	dataVaddr := ELF32Base + uint64(dataFileOff)

	code, err := applyFileRelocs(mod.Code, mod.Relocs, codeVaddr, dataVaddr)
	if err != nil {
		return err
	}

	hdr := elf32Header{
		Ident:     identBytes(byte(elf.ELFCLASS32)),
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_386),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     uint32(codeVaddr) + uint32(mod.EntryOffset),
		Phoff:     ehdrSize,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(numPhdrs),
	}

	phdrs := []elf32Phdr{
		{
			Type: uint32(elf.PT_LOAD), Offset: 0, Vaddr: uint32(ELF32Base), Paddr: uint32(ELF32Base),
			Filesz: uint32(headerTotal), Memsz: uint32(headerTotal),
			Flags: uint32(elf.PF_R), Align: PageSize,
		},
		{
			Type: uint32(elf.PT_LOAD), Offset: PageSize, Vaddr: uint32(codeVaddr), Paddr: uint32(codeVaddr),
			Filesz: uint32(len(code)), Memsz: uint32(len(code)),
			Flags: uint32(elf.PF_R | elf.PF_X), Align: PageSize,
		},
	}
	if len(mod.Data) > 0 {
		phdrs = append(phdrs, elf32Phdr{
			Type: uint32(elf.PT_LOAD), Offset: uint32(dataFileOff), Vaddr: uint32(dataVaddr), Paddr: uint32(dataVaddr),
			Filesz: uint32(len(mod.Data)), Memsz: uint32(len(mod.Data)),
			Flags: uint32(elf.PF_R | elf.PF_W), Align: PageSize,
		})
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	for i := range phdrs {
		binary.Write(&buf, binary.LittleEndian, &phdrs[i])
	}
	buf.Write(make([]byte, PageSize-buf.Len()))
	buf.Write(code)
	if len(mod.Data) > 0 {
		buf.Write(make([]byte, dataFileOff-buf.Len()))
		buf.Write(mod.Data)
	}

	_, err = w.Write(buf.Bytes())
	return err
}

// WriteELF64 mirrors WriteELF32 with 64-bit header fields and EM_X86_64.
func WriteELF64(w io.Writer, mod ir.CompiledModule) error {
	const ehdrSize, phdrSize = 64, 56
	numPhdrs := 2
	if len(mod.Data) > 0 {
		numPhdrs = 3
	}
	headerTotal := ehdrSize + numPhdrs*phdrSize

	codeVaddr := ELF64Base + PageSize
	dataFileOff := PageSize + alignUp(len(mod.Code), PageSize)
	dataVaddr := ELF64Base + uint64(dataFileOff)

	code, err := applyFileRelocs(mod.Code, mod.Relocs, codeVaddr, dataVaddr)
	if err != nil {
		return err
	}

	hdr := elf64Header{
		Ident:     identBytes(byte(elf.ELFCLASS64)),
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     codeVaddr + uint64(mod.EntryOffset),
		Phoff:     ehdrSize,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(numPhdrs),
	}

	phdrs := []elf64Phdr{
		{
			Type: uint32(elf.PT_LOAD), Offset: 0, Vaddr: ELF64Base, Paddr: ELF64Base,
			Filesz: uint64(headerTotal), Memsz: uint64(headerTotal),
			Flags: uint32(elf.PF_R), Align: PageSize,
		},
		{
			Type: uint32(elf.PT_LOAD), Offset: PageSize, Vaddr: codeVaddr, Paddr: codeVaddr,
			Filesz: uint64(len(code)), Memsz: uint64(len(code)),
			Flags: uint32(elf.PF_R | elf.PF_X), Align: PageSize,
		},
	}
	if len(mod.Data) > 0 {
		phdrs = append(phdrs, elf64Phdr{
			Type: uint32(elf.PT_LOAD), Offset: uint64(dataFileOff), Vaddr: dataVaddr, Paddr: dataVaddr,
			Filesz: uint64(len(mod.Data)), Memsz: uint64(len(mod.Data)),
			Flags: uint32(elf.PF_R | elf.PF_W), Align: PageSize,
		})
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	for i := range phdrs {
		binary.Write(&buf, binary.LittleEndian, &phdrs[i])
	}
	buf.Write(make([]byte, PageSize-buf.Len()))
	buf.Write(code)
	if len(mod.Data) > 0 {
		buf.Write(make([]byte, dataFileOff-buf.Len()))
		buf.Write(mod.Data)
	}

	_, err = w.Write(buf.Bytes())
	return err
}
