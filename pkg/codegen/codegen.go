// Package codegen implements the codegen driver named in spec.md §4.2:
// it walks the AST and drives a pkg/backend.Backend through the
// lvalue/rvalue protocol, managing per-function frame layout, a
// virtual-register pool with spill-on-reuse, and relocations.
package codegen

import (
	"sort"

	"occ.dev/compiler/pkg/backend"
	"occ.dev/compiler/pkg/cast"
	"occ.dev/compiler/pkg/ir"
	"occ.dev/compiler/pkg/resolver"
	"occ.dev/compiler/pkg/utils"
)

// localVar is spec.md §3's Variable record.
type localVar struct {
	typ     cast.Handle
	offset  int32
	isParam bool
}

// pendingCall is a forward-or-backward user-function call site whose
// target code offset is only known once every function has been placed
// (spec.md §4.2's relocation model, specialized for intra-module calls).
type pendingCall struct {
	relocIndex int
	callee     string
}

type Driver struct {
	arena    *cast.Arena
	backend  backend.Backend
	resolver resolver.Resolver
	debug    bool

	functionDecls map[string]cast.Handle
	functionOrder []string
	functionOffs  map[string]int

	data   []byte
	code   []byte
	relocs []ir.Reloc
	fns    []ir.Function

	pending []pendingCall

	// reset per function
	locals    utils.OrderedMap[string, localVar]
	loops     utils.Stack[*loopScope]
	regUse    [4]int
	curLine   int
	curRelocs []ir.Reloc
}

func New(arena *cast.Arena, be backend.Backend, res resolver.Resolver, debug bool) *Driver {
	return &Driver{
		arena:         arena,
		backend:       be,
		resolver:      res,
		debug:         debug,
		functionDecls: map[string]cast.Handle{},
		functionOffs:  map[string]int{},
	}
}

// Codegen implements spec.md §4.2's public contract: codegen(ast_root,
// target_backend, resolver) -> Result<CompiledModule, CodegenError>.
func (d *Driver) Codegen(root cast.Handle) (ir.CompiledModule, error) {
	prog := d.arena.Get(root)
	if prog == nil || prog.Kind != cast.Program {
		return ir.CompiledModule{}, &CodegenError{Kind: UnsupportedConstruct, Message: "codegen root is not a PROGRAM node"}
	}

	for _, child := range prog.Children {
		fn := d.arena.Get(child)
		if fn.Kind != cast.FunctionDecl {
			return ir.CompiledModule{}, &CodegenError{Kind: UnsupportedConstruct, Line: fn.Line, Message: "top-level declaration is not a function"}
		}
		if _, dup := d.functionDecls[fn.Name]; dup {
			return ir.CompiledModule{}, &CodegenError{Kind: DuplicateFunction, Line: fn.Line, Message: fn.Name}
		}
		d.functionDecls[fn.Name] = child
		d.functionOrder = append(d.functionOrder, fn.Name)
	}

	for _, name := range d.functionOrder {
		if err := d.compileFunction(d.functionDecls[name]); err != nil {
			return ir.CompiledModule{}, err
		}
	}

	for _, p := range d.pending {
		off, ok := d.functionOffs[p.callee]
		if !ok {
			return ir.CompiledModule{}, &CodegenError{Kind: UnknownFunction, Message: p.callee}
		}
		d.relocs[p.relocIndex].TargetOffset = off
	}

	entry, ok := d.functionOffs["main"]
	if !ok {
		return ir.CompiledModule{}, &CodegenError{Kind: UnknownFunction, Message: "main"}
	}

	names := make([]string, 0, len(d.functionOffs))
	for n := range d.functionOffs {
		names = append(names, n)
	}
	sort.Strings(names)

	return ir.CompiledModule{
		Code:        d.code,
		Data:        d.data,
		EntryOffset: entry,
		Relocs:      d.relocs,
		Functions:   d.fns,
	}, nil
}

func (d *Driver) compileFunction(h cast.Handle) error {
	fn := d.arena.Get(h)
	d.curLine = fn.Line

	if err := d.checkFloatingNotBareUse(fn.ReturnType); err != nil {
		return err
	}

	d.locals = utils.NewOrderedMap[string, localVar]()
	d.loops = utils.NewStack[*loopScope]()
	d.regUse = [4]int{}
	d.curRelocs = nil

	wordSize := d.backend.WordSize()

	for i, p := range fn.Params {
		if err := d.checkFloatingNotBareUse(p.Type); err != nil {
			return err
		}
		off := int32(2*wordSize + i*wordSize)
		if err := d.locals.Add(p.Name, localVar{typ: p.Type, offset: off, isParam: true}); err != nil {
			return &CodegenError{Kind: DuplicateVariable, Line: fn.Line, Message: p.Name}
		}
	}

	frameSize := 0
	var localOffset int32
	for _, declHandle := range fn.Locals {
		decl := d.arena.Get(declHandle)
		if err := d.checkFloatingNotBareUse(decl.DeclType); err != nil {
			return err
		}
		sz, err := DataTypeSize(d.arena, wordSize, decl.DeclType)
		if err != nil {
			return err
		}
		if sz == 0 {
			return &CodegenError{Kind: OperandSizeUnknown, Line: decl.Line, Message: decl.Name}
		}
		localOffset -= int32(sz)
		decl.Offset = int(localOffset)
		if err := d.locals.Add(decl.Name, localVar{typ: decl.DeclType, offset: localOffset}); err != nil {
			return &CodegenError{Kind: DuplicateVariable, Line: decl.Line, Message: decl.Name}
		}
		frameSize += sz
	}
	if frameSize < 32 {
		frameSize = 32
	}
	if rem := frameSize % wordSize; rem != 0 {
		frameSize += wordSize - rem
	}

	d.backend.Reset()
	d.backend.Prologue(frameSize)

	body := d.arena.Get(fn.Body)
	for _, stmtHandle := range body.Children {
		if err := d.compileStmt(stmtHandle); err != nil {
			return err
		}
	}

	d.backend.Epilogue()

	baseOffset := len(d.code)
	d.functionOffs[fn.Name] = baseOffset
	localRelocs := d.takeLocalRelocs()
	for i := range localRelocs {
		localRelocs[i].SourceOffset += baseOffset
		d.relocs = append(d.relocs, localRelocs[i])
		if localRelocs[i].Symbol != "" && localRelocs[i].Kind == ir.RelocCode {
			d.pending = append(d.pending, pendingCall{relocIndex: len(d.relocs) - 1, callee: localRelocs[i].Symbol})
		}
	}
	d.code = append(d.code, d.backend.Code().Bytes()...)
	d.fns = append(d.fns, ir.Function{Name: fn.Name, CodeOffset: baseOffset})
	return nil
}

// recordReloc buffers a relocation recorded while the current function's
// backend buffer is still function-local; offsets are rebased into the
// module-wide code stream once that function's final base is known (see
// compileFunction's use of takeLocalRelocs).
func (d *Driver) recordReloc(r ir.Reloc) int {
	d.curRelocs = append(d.curRelocs, r)
	return len(d.curRelocs) - 1
}

func (d *Driver) takeLocalRelocs() []ir.Reloc {
	out := d.curRelocs
	d.curRelocs = nil
	return out
}

func (d *Driver) checkFloatingNotBareUse(typ cast.Handle) error {
	if isFloatingType(d.arena, typ) {
		return &CodegenError{Kind: UnsupportedConstruct, Line: d.arena.Get(typ).Line, Message: "float/double are only supported inside sizeof expressions"}
	}
	return nil
}
