// Package clex implements the lexer collaborator named in the core spec:
// given a source string it produces a flat token stream. The core treats
// this pass as an external contract ("given a source string, produce
// tokens"); this is a from-scratch implementation of that contract so the
// module is self-contained.
package clex

import (
	"fmt"
	"strings"

	"occ.dev/compiler/pkg/ctoken"
)

// Flags requests lexer behaviors that only the preprocessor cares about.
type Flags uint8

const (
	// KeepNewlines preserves newline tokens instead of treating them as
	// plain whitespace, used by the preprocessor to find directive ends.
	KeepNewlines Flags = 1 << iota
)

type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// Lex scans text and returns the complete token stream, terminated by a
// single EOF token. It fails fast: the first malformed lexeme aborts the
// scan.
func Lex(text string, flags Flags) ([]ctoken.Token, error) {
	l := &lexer{src: text, line: 1, flags: flags}
	var out []ctoken.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == ctoken.EOF {
			return out, nil
		}
	}
}

type lexer struct {
	src   string
	pos   int
	line  int
	flags Flags
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
	}
	return c
}

func (l *lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.peek()
		switch {
		case c == '\n' && l.flags&KeepNewlines != 0:
			return nil
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			startLine := l.line
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return &Error{Line: startLine, Message: "unterminated block comment"}
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }
func isDigit(c byte) bool     { return c >= '0' && c <= '9' }

func (l *lexer) next() (ctoken.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return ctoken.Token{}, err
	}
	if l.pos >= len(l.src) {
		return ctoken.Token{Kind: ctoken.EOF, Line: l.line}, nil
	}

	line := l.line
	c := l.peek()

	if l.flags&KeepNewlines != 0 && c == '\n' {
		l.advance()
		return ctoken.Token{Kind: ctoken.Kind('\n'), Lexeme: "\n", Line: line}, nil
	}

	if isIdentStart(c) {
		start := l.pos
		for l.pos < len(l.src) && isIdentCont(l.peek()) {
			l.advance()
		}
		lexeme := l.src[start:l.pos]
		if kind, ok := ctoken.Keywords[lexeme]; ok {
			return ctoken.Token{Kind: kind, Lexeme: lexeme, Line: line}, nil
		}
		return ctoken.Token{Kind: ctoken.IDENT, Lexeme: lexeme, Line: line}, nil
	}

	if isDigit(c) {
		return l.lexNumber(line)
	}

	if c == '"' {
		return l.lexString(line)
	}
	if c == '\'' {
		return l.lexChar(line)
	}

	return l.lexPunct(line)
}

func (l *lexer) lexNumber(line int) (ctoken.Token, error) {
	start := l.pos
	isFloat := false
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	lexeme := l.src[start:l.pos]
	if isFloat {
		var f float64
		if _, err := fmt.Sscanf(lexeme, "%g", &f); err != nil {
			return ctoken.Token{}, &Error{Line: line, Message: "malformed numeric literal " + lexeme}
		}
		return ctoken.Token{Kind: ctoken.NUMBER, Number: f, Lexeme: lexeme, Line: line}, nil
	}
	var n int64
	if _, err := fmt.Sscanf(lexeme, "%d", &n); err != nil {
		return ctoken.Token{}, &Error{Line: line, Message: "malformed integer literal " + lexeme}
	}
	return ctoken.Token{Kind: ctoken.INTEGER, Integer: n, Lexeme: lexeme, Line: line}, nil
}

func (l *lexer) lexString(line int) (ctoken.Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return ctoken.Token{}, &Error{Line: line, Message: "unterminated string literal"}
		}
		c := l.advance()
		if c == '"' {
			break
		}
		if c == '\\' && l.pos < len(l.src) {
			sb.WriteByte(unescape(l.advance()))
			continue
		}
		sb.WriteByte(c)
	}
	return ctoken.Token{Kind: ctoken.STRING, Str: sb.String(), Line: line}, nil
}

func (l *lexer) lexChar(line int) (ctoken.Token, error) {
	l.advance() // opening quote
	if l.pos >= len(l.src) {
		return ctoken.Token{}, &Error{Line: line, Message: "unterminated char literal"}
	}
	var value byte
	c := l.advance()
	if c == '\\' && l.pos < len(l.src) {
		value = unescape(l.advance())
	} else {
		value = c
	}
	if l.peek() != '\'' {
		return ctoken.Token{}, &Error{Line: line, Message: "malformed char literal"}
	}
	l.advance()
	return ctoken.Token{Kind: ctoken.INTEGER, Integer: int64(value), Line: line}, nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

type punct struct {
	text string
	kind ctoken.Kind
}

// Longest-match-first table for multi-character operators.
var multiChar = []punct{
	{"...", ctoken.ELLIPSIS},
	{"<<", ctoken.SHL}, {">>", ctoken.SHR},
	{"==", ctoken.EQ}, {"!=", ctoken.NEQ}, {"<=", ctoken.LEQ}, {">=", ctoken.GEQ},
	{"+=", ctoken.ADDEQ}, {"-=", ctoken.SUBEQ}, {"*=", ctoken.MULEQ}, {"/=", ctoken.DIVEQ},
	{"%=", ctoken.MODEQ}, {"&=", ctoken.ANDEQ}, {"|=", ctoken.OREQ}, {"^=", ctoken.XOREQ},
	{"++", ctoken.INC}, {"--", ctoken.DEC}, {"->", ctoken.ARROW},
}

func (l *lexer) lexPunct(line int) (ctoken.Token, error) {
	rest := l.src[l.pos:]
	for _, p := range multiChar {
		if strings.HasPrefix(rest, p.text) {
			for range p.text {
				l.advance()
			}
			return ctoken.Token{Kind: p.kind, Lexeme: p.text, Line: line}, nil
		}
	}
	c := l.advance()
	if !strings.ContainsRune("+-*/%=<>!&|^~()[]{},;.:?#", rune(c)) {
		return ctoken.Token{}, &Error{Line: line, Message: fmt.Sprintf("unexpected character %q", c)}
	}
	return ctoken.Token{Kind: ctoken.Kind(c), Lexeme: string(c), Line: line}, nil
}
