// Package cpre implements the preprocessor collaborator named in the core
// spec: it resolves #include, #define (object and function-like) and
// #ifdef/#endif over a source file and yields a single concatenated text
// blob. No macro expansion fidelity beyond textual substitution and
// concatenation is required by the core.
//
// Directive lines are matched with goparsec combinators (this package is
// the module's only user of the library); a directive line is exactly the
// flat, non-recursive shape the library is good at.
package cpre

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	pc "github.com/prataprc/goparsec"
)

type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("preprocess %s: %s", e.Path, e.Reason) }

type macro struct {
	params []string
	body   string
	isFunc bool
}

// Preprocessor resolves #include/#define/#ifdef/#endif over a translation
// unit and every file it transitively includes.
type Preprocessor struct {
	includePaths []string
	defines      map[string]macro
	visited      map[string]bool
}

func New(includePaths []string, defines map[string]string) *Preprocessor {
	p := &Preprocessor{
		includePaths: includePaths,
		defines:      map[string]macro{},
		visited:      map[string]bool{},
	}
	for name, body := range defines {
		p.defines[name] = macro{body: body}
	}
	return p
}

// Preprocess resolves path and returns the fully expanded, concatenated
// source text.
func (p *Preprocessor) Preprocess(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Path: path, Reason: err.Error()}
	}
	return p.process(path, string(content))
}

// ----------------------------------------------------------------------------
// Directive grammar
//
// A preprocessor directive is matched line-by-line: the concatenation
// contract only needs to recognize whole directive lines, never to parse
// expressions, so a flat AST (one level deep) built with goparsec
// combinators is the right tool here.

var ast = pc.NewAST("directive", 8)

var (
	pIdent = pc.Token(`[A-Za-z_][0-9a-zA-Z_]*`, "IDENT")
	pBody  = pc.Token(`.*`, "BODY")
	pComma = pc.Atom(",", ",")

	pInclude = ast.And("include", nil,
		pc.Atom("#include", "HASH_INCLUDE"),
		ast.OrdChoice("path", nil, pc.Token(`"[^"]*"`, "LOCAL_PATH"), pc.Token(`<[^>]*>`, "SYSTEM_PATH")),
	)

	pDefineFunc = ast.And("define_func", nil,
		pc.Atom("#define", "HASH_DEFINE"), pIdent, pc.Atom("(", "("),
		ast.Kleene("params", nil, pIdent, pComma), pc.Atom(")", ")"), ast.Maybe("body", nil, pBody),
	)

	pDefineObj = ast.And("define_obj", nil,
		pc.Atom("#define", "HASH_DEFINE"), pIdent, ast.Maybe("body", nil, pBody),
	)

	pIfdef = ast.And("ifdef", nil, pc.Atom("#ifdef", "HASH_IFDEF"), pIdent)
	pEndif = ast.And("endif", nil, pc.Atom("#endif", "HASH_ENDIF"))

	pDirective = ast.OrdChoice("directive", nil, pDefineFunc, pDefineObj, pInclude, pIfdef, pEndif)
)

// process expands one translation unit; skip tracks whether we're
// inside a false #ifdef block (a stack, since blocks may nest).
func (p *Preprocessor) process(path, content string) (string, error) {
	abs, _ := filepath.Abs(path)
	if p.visited[abs] {
		return "", nil // already concatenated, matches C's usual include-guard behavior
	}
	p.visited[abs] = true
	dir := filepath.Dir(path)

	var out strings.Builder
	var skip []bool // stack of active #ifdef suppression states

	lines := strings.Split(content, "\n")
	for lineno, raw := range lines {
		line := strings.TrimSpace(raw)
		suppressed := len(skip) > 0 && skip[len(skip)-1]

		if !strings.HasPrefix(line, "#") {
			if !suppressed {
				out.WriteString(raw)
				out.WriteString("\n")
			}
			continue
		}

		node, ok := ast.Parsewith(pDirective, pc.NewScanner([]byte(line)))
		if !ok {
			return "", &Error{Path: path, Reason: fmt.Sprintf("line %d: unrecognized directive %q", lineno+1, line)}
		}

		switch node.GetName() {
		case "ifdef":
			name := node.GetChildren()[1].GetValue()
			_, defined := p.defines[name]
			skip = append(skip, suppressed || !defined)
			continue
		case "endif":
			if len(skip) == 0 {
				return "", &Error{Path: path, Reason: fmt.Sprintf("line %d: unmatched #endif", lineno+1)}
			}
			skip = skip[:len(skip)-1]
			continue
		}

		if suppressed {
			continue
		}

		switch node.GetName() {
		case "include":
			pathNode := node.GetChildren()[1]
			raw := pathNode.GetChildren()[0].GetValue()
			system := pathNode.GetChildren()[0].GetName() == "SYSTEM_PATH"
			incName := strings.Trim(strings.Trim(raw, `"`), "<>")

			resolved, err := p.resolveInclude(dir, incName, system)
			if err != nil {
				return "", &Error{Path: path, Reason: fmt.Sprintf("line %d: %s", lineno+1, err)}
			}
			incContent, err := os.ReadFile(resolved)
			if err != nil {
				return "", &Error{Path: path, Reason: err.Error()}
			}
			expanded, err := p.process(resolved, string(incContent))
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)

		case "define_func":
			children := node.GetChildren()
			name := children[1].GetValue()
			var params []string
			for _, param := range children[3].GetChildren() {
				params = append(params, param.GetValue())
			}
			body := ""
			if bodyNode := children[5]; len(bodyNode.GetChildren()) > 0 {
				body = strings.TrimSpace(bodyNode.GetChildren()[0].GetValue())
			}
			p.defines[name] = macro{params: params, body: body, isFunc: true}

		case "define_obj":
			children := node.GetChildren()
			name := children[1].GetValue()
			body := ""
			if bodyNode := children[2]; len(bodyNode.GetChildren()) > 0 {
				body = strings.TrimSpace(bodyNode.GetChildren()[0].GetValue())
			}
			p.defines[name] = macro{body: body}

		default:
			return "", &Error{Path: path, Reason: fmt.Sprintf("line %d: unrecognized directive %q", lineno+1, line)}
		}
	}

	if len(skip) != 0 {
		return "", &Error{Path: path, Reason: "unterminated #ifdef"}
	}
	return expandMacros(out.String(), p.defines), nil
}

func (p *Preprocessor) resolveInclude(localDir, name string, system bool) (string, error) {
	if !system {
		candidate := filepath.Join(localDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	for _, dir := range p.includePaths {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("cannot resolve include %q", name)
}

// expandMacros performs the only substitution fidelity the core requires:
// whole-token replacement of object-like macros. Function-like macro
// call-sites are left untouched; the core's contract with the preprocessor
// is "yields a single concatenated source string", not full macro hygiene.
func expandMacros(text string, defines map[string]macro) string {
	if len(defines) == 0 {
		return text
	}
	var out strings.Builder
	for _, line := range strings.Split(text, "\n") {
		out.WriteString(expandLine(line, defines))
		out.WriteString("\n")
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func expandLine(line string, defines map[string]macro) string {
	for name, m := range defines {
		if m.isFunc || m.body == "" {
			continue
		}
		line = replaceToken(line, name, m.body)
	}
	return line
}

func replaceToken(line, name, body string) string {
	var out strings.Builder
	i := 0
	for i < len(line) {
		if strings.HasPrefix(line[i:], name) {
			before := byte(0)
			if i > 0 {
				before = line[i-1]
			}
			after := byte(0)
			if i+len(name) < len(line) {
				after = line[i+len(name)]
			}
			if !isIdentByte(before) && !isIdentByte(after) {
				out.WriteString(body)
				i += len(name)
				continue
			}
		}
		out.WriteByte(line[i])
		i++
	}
	return out.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
