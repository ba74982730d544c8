package main

import (
	"fmt"
	"os"
	"strings"

	"occ.dev/compiler/pkg/backend"
	"occ.dev/compiler/pkg/clex"
	"occ.dev/compiler/pkg/codegen"
	"occ.dev/compiler/pkg/cparse"
	"occ.dev/compiler/pkg/cpre"
	"occ.dev/compiler/pkg/image"
	"occ.dev/compiler/pkg/resolver"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
occ compiles a single translation unit of a C subset (after preprocessing and
concatenating #include'd files) directly to native x86 or x86-64 machine code,
and emits it as an ELF32, ELF64, or PE executable, a raw opcode dump, or runs
it immediately from an executable memory buffer.
`, "\n", " ")

var Occ = cli.New(Description).
	WithArg(cli.NewArg("inputs", "The source (.c) files to compile, last argument is the output path").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("a", "Dump the parsed AST and stop").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("i", "Print emitted machine-code bytes to standard output instead of writing a file").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("d", "Insert breakpoints on int3() calls").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("v", "Verbose progress").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("bwindows", "Emit a PE image").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("blinux", "Emit an ELF image").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("bmemory", "Run directly from an executable memory buffer").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("bopcodes", "Dump raw opcodes, no container format").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("m32", "Target 32-bit x86 instead of the x86-64 default").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("l", "Load a native library's exports into the resolver (memory target only)").WithType(cli.TypeString)).
	WithAction(Handler)

func verbosef(verbose bool, format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func Handler(args []string, options map[string]string) int {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "ERROR: Not enough arguments, need at least one input and an output path, use --help\n")
		return 1
	}

	inputs, output := args[:len(args)-1], args[len(args)-1]
	_, verbose := options["v"]
	_, dumpAST := options["a"]
	_, printBytes := options["i"]
	_, debugBreaks := options["d"]
	_, is32 := options["m32"]

	pre := cpre.New([]string{"."}, map[string]string{})

	var unit strings.Builder
	for _, in := range inputs {
		verbosef(verbose, "occ: preprocessing %s\n", in)
		text, err := pre.Preprocess(in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'preprocess' pass: %s\n", err)
			return 1
		}
		unit.WriteString(text)
		unit.WriteString("\n")
	}

	verbosef(verbose, "occ: lexing\n")
	tokens, err := clex.Lex(unit.String(), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'lex' pass: %s\n", err)
		return 1
	}

	verbosef(verbose, "occ: parsing\n")
	parser := cparse.NewParser(tokens)
	root, arena, err := parser.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'parse' pass: %s\n", err)
		return 1
	}

	if dumpAST {
		arena.Dump(os.Stdout, root)
		return 0
	}

	var be backend.Backend
	if is32 {
		be = backend.NewX86()
	} else {
		be = backend.NewX64()
	}

	res := resolver.NewStatic()
	if lib, enabled := options["l"]; enabled {
		if err := resolver.LoadLibrary(res, lib); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to load library '%s': %s\n", lib, err)
			return 1
		}
	}

	verbosef(verbose, "occ: codegen\n")
	driver := codegen.New(arena, be, res, debugBreaks)
	mod, err := driver.Codegen(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return 1
	}

	if printBytes {
		if err := image.WriteOpcodes(os.Stdout, mod, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to dump opcodes: %s\n", err)
			return 1
		}
		return 0
	}

	if _, enabled := options["bmemory"]; enabled {
		verbosef(verbose, "occ: running from memory\n")
		status, err := image.Run(mod, res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to execute from memory: %s\n", err)
			return 1
		}
		return status
	}

	if _, enabled := options["bopcodes"]; enabled {
		out, err := os.Create(output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to open output file: %s\n", err)
			return 1
		}
		defer out.Close()
		if err := image.WriteOpcodes(out, mod, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Unable to write opcode dump: %s\n", err)
			return 1
		}
		return 0
	}

	out, err := os.Create(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to open output file: %s\n", err)
		return 1
	}
	defer out.Close()

	_, windows := options["bwindows"]
	switch {
	case windows:
		verbosef(verbose, "occ: writing PE image to %s\n", output)
		err = image.WritePE(out, mod)
	case is32:
		verbosef(verbose, "occ: writing ELF32 image to %s\n", output)
		err = image.WriteELF32(out, mod)
	default:
		verbosef(verbose, "occ: writing ELF64 image to %s\n", output)
		err = image.WriteELF64(out, mod)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to write output image: %s\n", err)
		return 1
	}
	if err := os.Chmod(output, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to mark output executable: %s\n", err)
		return 1
	}

	return 0
}

func main() { os.Exit(Occ.Run(os.Args, os.Stdout)) }
