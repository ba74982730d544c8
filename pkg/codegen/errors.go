package codegen

import "fmt"

type ErrorKind int

const (
	UnknownIdentifier ErrorKind = iota
	UnknownFunction
	TypeMismatch
	OperandSizeUnknown
	DuplicateVariable
	DuplicateFunction
	UnsupportedConstruct
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownIdentifier:
		return "UnknownIdentifier"
	case UnknownFunction:
		return "UnknownFunction"
	case TypeMismatch:
		return "TypeMismatch"
	case OperandSizeUnknown:
		return "OperandSizeUnknown"
	case DuplicateVariable:
		return "DuplicateVariable"
	case DuplicateFunction:
		return "DuplicateFunction"
	case UnsupportedConstruct:
		return "UnsupportedConstruct"
	default:
		return "Unknown"
	}
}

// CodegenError is spec.md §4.2's CodegenError: a kind tag plus enough
// node context (line, a human message) to report a one-line diagnostic.
type CodegenError struct {
	Kind    ErrorKind
	Line    int
	Message string
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Message)
}
