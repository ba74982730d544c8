package image_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"occ.dev/compiler/pkg/image"
	"occ.dev/compiler/pkg/ir"
)

func moduleReturning(entry int) ir.CompiledModule {
	// mov eax, 42; ret
	code := []byte{0xB8, 42, 0, 0, 0, 0xC3}
	return ir.CompiledModule{Code: code, EntryOffset: entry}
}

func TestWriteELF32HeaderFields(t *testing.T) {
	var buf bytes.Buffer
	if err := image.WriteELF32(&buf, moduleReturning(0)); err != nil {
		t.Fatalf("WriteELF32: %s", err)
	}
	b := buf.Bytes()

	if !bytes.Equal(b[0:4], []byte{0x7f, 'E', 'L', 'F'}) {
		t.Fatalf("missing ELF magic, got % x", b[0:4])
	}
	if b[4] != 1 { // ELFCLASS32
		t.Errorf("EI_CLASS = %d, want 1", b[4])
	}
	machine := binary.LittleEndian.Uint16(b[18:20])
	if machine != 3 { // EM_386
		t.Errorf("e_machine = %d, want 3", machine)
	}
	etype := binary.LittleEndian.Uint16(b[16:18])
	if etype != 2 { // ET_EXEC
		t.Errorf("e_type = %d, want 2", etype)
	}
	entry := binary.LittleEndian.Uint32(b[24:28])
	if entry != uint32(image.ELF32Base)+image.PageSize {
		t.Errorf("e_entry = %#x, want %#x", entry, uint32(image.ELF32Base)+image.PageSize)
	}
	if len(b) < image.PageSize {
		t.Fatalf("file too short to contain the text segment: %d bytes", len(b))
	}
	if !bytes.Equal(b[image.PageSize:image.PageSize+6], moduleReturning(0).Code) {
		t.Errorf("code not found at page-aligned offset %#x", image.PageSize)
	}
}

func TestWriteELF64UsesEMX8664(t *testing.T) {
	var buf bytes.Buffer
	if err := image.WriteELF64(&buf, moduleReturning(0)); err != nil {
		t.Fatalf("WriteELF64: %s", err)
	}
	b := buf.Bytes()
	if b[4] != 2 { // ELFCLASS64
		t.Errorf("EI_CLASS = %d, want 2", b[4])
	}
	machine := binary.LittleEndian.Uint16(b[18:20])
	if machine != 0x3e {
		t.Errorf("e_machine = %#x, want 0x3e", machine)
	}
}

func TestWriteELF32EmitsThirdSegmentWhenDataPresent(t *testing.T) {
	mod := moduleReturning(0)
	mod.Data = []byte{1, 2, 3, 4}

	var buf bytes.Buffer
	if err := image.WriteELF32(&buf, mod); err != nil {
		t.Fatalf("WriteELF32: %s", err)
	}
	b := buf.Bytes()
	phnum := binary.LittleEndian.Uint16(b[44:46])
	if phnum != 3 {
		t.Errorf("e_phnum = %d, want 3 when Data is non-empty", phnum)
	}
}

func TestWriteELF32OmitsDataSegmentWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := image.WriteELF32(&buf, moduleReturning(0)); err != nil {
		t.Fatalf("WriteELF32: %s", err)
	}
	phnum := binary.LittleEndian.Uint16(buf.Bytes()[44:46])
	if phnum != 2 {
		t.Errorf("e_phnum = %d, want 2 when Data is empty", phnum)
	}
}

func TestWritePEHeaderFields(t *testing.T) {
	var buf bytes.Buffer
	if err := image.WritePE(&buf, moduleReturning(0)); err != nil {
		t.Fatalf("WritePE: %s", err)
	}
	b := buf.Bytes()

	if b[0] != 'M' || b[1] != 'Z' {
		t.Fatalf("missing MZ magic, got %q", b[0:2])
	}
	lfanew := binary.LittleEndian.Uint32(b[0x3C:0x40])
	if int(lfanew) != 0x40 {
		t.Errorf("e_lfanew = %#x, want 0x40", lfanew)
	}
	if !bytes.Equal(b[lfanew:lfanew+4], []byte("PE\x00\x00")) {
		t.Fatalf("missing PE signature at e_lfanew, got % x", b[lfanew:lfanew+4])
	}
	machine := binary.LittleEndian.Uint16(b[lfanew+4 : lfanew+6])
	if machine != 0x14c {
		t.Errorf("Machine = %#x, want 0x14c", machine)
	}
	magic := binary.LittleEndian.Uint16(b[lfanew+4+20 : lfanew+4+22])
	if magic != 0x10b {
		t.Errorf("OptionalHeader Magic = %#x, want 0x10b (PE32)", magic)
	}
}

func TestApplyFileRelocsPatchesCodeAndRejectsImport(t *testing.T) {
	mod := ir.CompiledModule{
		Code: []byte{0xB8, 0, 0, 0, 0, 0xC3},
		Relocs: []ir.Reloc{
			{Kind: ir.RelocCode, SourceOffset: 1, TargetOffset: 5},
		},
	}
	var buf bytes.Buffer
	if err := image.WriteELF32(&buf, mod); err != nil {
		t.Fatalf("WriteELF32: %s", err)
	}
	patched := buf.Bytes()[image.PageSize : image.PageSize+6]
	got := binary.LittleEndian.Uint32(patched[1:5])
	want := uint32(image.ELF32Base) + image.PageSize + 5
	if got != want {
		t.Errorf("patched immediate = %#x, want %#x", got, want)
	}

	mod.Relocs = []ir.Reloc{{Kind: ir.RelocImport, Symbol: "write"}}
	var buf2 bytes.Buffer
	if err := image.WriteELF32(&buf2, mod); err == nil {
		t.Error("expected an error writing a file image with an unresolved IMPORT relocation")
	}
}

func TestWriteOpcodesPatchesDataRelocRelativeToCodeLength(t *testing.T) {
	mod := ir.CompiledModule{
		Code: []byte{0xB8, 0, 0, 0, 0, 0xC3},
		Data: []byte{'h', 'i', 0},
		Relocs: []ir.Reloc{
			{Kind: ir.RelocData, SourceOffset: 1, TargetOffset: 0},
		},
	}
	var buf bytes.Buffer
	if err := image.WriteOpcodes(&buf, mod, nil); err != nil {
		t.Fatalf("WriteOpcodes: %s", err)
	}
	out := buf.Bytes()
	if len(out) != len(mod.Code)+len(mod.Data) {
		t.Fatalf("output length = %d, want %d", len(out), len(mod.Code)+len(mod.Data))
	}
	got := binary.LittleEndian.Uint32(out[1:5])
	if got != uint32(len(mod.Code)) {
		t.Errorf("patched data reloc = %d, want %d (start of data)", got, len(mod.Code))
	}
}
