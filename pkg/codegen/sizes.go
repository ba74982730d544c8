package codegen

import "occ.dev/compiler/pkg/cast"

// DataTypeSize implements spec.md §4.2's data_type_size table. It is
// implemented exactly once, here in the driver, per the spec's Design
// Note flagging the source's three near-duplicate copies as a defect to
// eliminate; backends never see typed AST, only already-sized operations.
func DataTypeSize(arena *cast.Arena, wordSize int, h cast.Handle) (int, error) {
	n := arena.Get(h)
	if n == nil {
		return 0, &CodegenError{Kind: OperandSizeUnknown, Message: "size of a nil type"}
	}
	switch n.Kind {
	case cast.PrimitiveDataType:
		switch n.Prim {
		case cast.Char:
			return 1, nil
		case cast.Short:
			return 2, nil
		case cast.Int, cast.Float, cast.Long:
			return 4, nil
		case cast.Double:
			return 8, nil
		case cast.Void:
			return 0, nil
		case cast.Unsigned:
			return 4, nil
		default:
			return 0, &CodegenError{Kind: OperandSizeUnknown, Line: n.Line, Message: "unrecognized primitive type"}
		}

	case cast.PointerDataType:
		return wordSize, nil

	case cast.ArrayDataType:
		elemSize, err := DataTypeSize(arena, wordSize, n.Elem)
		if err != nil {
			return 0, err
		}
		return elemSize * n.ArrayLength, nil

	case cast.StructDataType:
		return DataTypeSize(arena, wordSize, n.StructDef)

	case cast.StructDecl:
		total := 0
		for _, f := range n.Fields {
			sz, err := DataTypeSize(arena, wordSize, f.Type)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil

	case cast.Identifier:
		return 0, &CodegenError{Kind: OperandSizeUnknown, Line: n.Line, Message: "sizeof an identifier requires its declared type, not its node"}

	default:
		return 0, &CodegenError{Kind: OperandSizeUnknown, Line: n.Line, Message: "not a type node"}
	}
}

// fieldOffset returns the byte offset and type handle of field name
// within the struct whose declaration node is structDecl (sequential,
// no padding, per spec.md §4.2's data_type_size table).
func fieldOffset(arena *cast.Arena, wordSize int, structDecl cast.Handle, name string) (int, cast.Handle, error) {
	n := arena.Get(structDecl)
	offset := 0
	for _, f := range n.Fields {
		if f.Name == name {
			return offset, f.Type, nil
		}
		sz, err := DataTypeSize(arena, wordSize, f.Type)
		if err != nil {
			return 0, cast.NoHandle, err
		}
		offset += sz
	}
	return 0, cast.NoHandle, &CodegenError{Kind: UnknownIdentifier, Line: n.Line, Message: "no field named " + name}
}

func isFloatingType(arena *cast.Arena, h cast.Handle) bool {
	n := arena.Get(h)
	return n != nil && n.Kind == cast.PrimitiveDataType && (n.Prim == cast.Float || n.Prim == cast.Double)
}
