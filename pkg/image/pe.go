package image

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"io"

	"occ.dev/compiler/pkg/ir"
)

// PEImageBase is the default load address for the PE target; pe.exe
// loaders relocate freely, but a fixed base keeps the relocation math
// identical in shape to the ELF writers.
const PEImageBase uint32 = 0x00400000

const peSectionAlign = PageSize
const peFileAlign = 0x200

const dosStubSize = 0x40 // e_lfanew lives at offset 0x3C, PE header starts at 0x40

// WritePE implements spec.md §4.4's PE target: a DOS stub, a PE header,
// and a single `.text` section holding both code and data with IAT
// disabled — imports only resolve for the memory target in this
// implementation, so there is no import directory to build here.
func WritePE(w io.Writer, mod ir.CompiledModule) error {
	sectionRVA := uint32(peSectionAlign)
	sectionSize := uint32(alignUp(len(mod.Code)+len(mod.Data), peFileAlign))

	code, err := applyFileRelocs(mod.Code, mod.Relocs, uint64(PEImageBase+sectionRVA), uint64(PEImageBase+sectionRVA+uint32(len(mod.Code))))
	if err != nil {
		return err
	}
	section := make([]byte, sectionSize)
	copy(section, code)
	copy(section[len(code):], mod.Data)

	fileHdr := pe.FileHeader{
		Machine:              uint16(pe.IMAGE_FILE_MACHINE_I386),
		NumberOfSections:     1,
		SizeOfOptionalHeader: 224, // fixed OptionalHeader32 fields (96) + 16 data directories (128)
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE | pe.IMAGE_FILE_RELOCS_STRIPPED,
	}

	headersSize := uint32(dosStubSize) + 4 + 20 + uint32(fileHdr.SizeOfOptionalHeader) + 40 // sig + coff + optional + one section header
	optHdr := pe.OptionalHeader32{
		Magic:                       0x10b,
		SizeOfCode:                  uint32(len(code)),
		SizeOfInitializedData:       uint32(len(mod.Data)),
		AddressOfEntryPoint:         sectionRVA + uint32(mod.EntryOffset),
		BaseOfCode:                  sectionRVA,
		BaseOfData:                  sectionRVA,
		ImageBase:                   PEImageBase,
		SectionAlignment:            peSectionAlign,
		FileAlignment:               peFileAlign,
		MajorSubsystemVersion:       4,
		SizeOfImage:                 alignUp32(sectionRVA+sectionSize, peSectionAlign),
		SizeOfHeaders:               alignUp32(headersSize, peFileAlign),
		Subsystem:                   uint16(pe.IMAGE_SUBSYSTEM_WINDOWS_CUI),
		SizeOfStackReserve:          0x100000,
		SizeOfStackCommit:           0x1000,
		SizeOfHeapReserve:           0x100000,
		SizeOfHeapCommit:            0x1000,
		NumberOfRvaAndSizes:         16,
	}

	var name [8]byte
	copy(name[:], ".text")
	sectionHdr := pe.SectionHeader32{
		Name:             name,
		VirtualSize:      uint32(len(code) + len(mod.Data)),
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    sectionSize,
		PointerToRawData: optHdr.SizeOfHeaders,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE,
	}

	var buf bytes.Buffer
	buf.Write(dosStub())
	buf.WriteString("PE\x00\x00")
	binary.Write(&buf, binary.LittleEndian, &fileHdr)
	binary.Write(&buf, binary.LittleEndian, &optHdr)
	binary.Write(&buf, binary.LittleEndian, &sectionHdr)
	buf.Write(make([]byte, int(optHdr.SizeOfHeaders)-buf.Len()))
	buf.Write(section)

	_, err = w.Write(buf.Bytes())
	return err
}

func alignUp32(n, align uint32) uint32 {
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}

// dosStub is the minimal 64-byte MZ header: magic, zeroed fields, and
// e_lfanew at offset 0x3C pointing straight past the stub to the PE
// signature (no real real-mode stub program is emitted).
func dosStub() []byte {
	stub := make([]byte, dosStubSize)
	stub[0], stub[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(stub[0x3C:], dosStubSize)
	return stub
}
