package clex_test

import (
	"testing"

	"occ.dev/compiler/pkg/clex"
	"occ.dev/compiler/pkg/ctoken"
)

func kinds(toks []ctoken.Token) []ctoken.Kind {
	out := make([]ctoken.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexPunctuationLongestMatch(t *testing.T) {
	test := func(src string, expected []ctoken.Kind) {
		toks, err := clex.Lex(src, 0)
		if err != nil {
			t.Fatalf("Lex(%q): %s", src, err)
		}
		got := kinds(toks)
		if len(got) != len(expected)+1 { // +1 for the trailing EOF
			t.Fatalf("Lex(%q): got %d tokens, want %d (+EOF)", src, len(got), len(expected))
		}
		for i, k := range expected {
			if got[i] != k {
				t.Errorf("Lex(%q): token %d = %v, want %v", src, i, got[i], k)
			}
		}
	}

	// '<<=' is not a token of this language, so '<<' must win over '<'
	// and leave '=' as its own token rather than being swallowed whole.
	test("<<=", []ctoken.Kind{ctoken.SHL, ctoken.Kind('=')})
	test("->", []ctoken.Kind{ctoken.ARROW})
	test("-", []ctoken.Kind{ctoken.Kind('-')})
	test("==", []ctoken.Kind{ctoken.EQ})
	test("=", []ctoken.Kind{ctoken.Kind('=')})
}

func TestLexKeywordsVsIdentifiers(t *testing.T) {
	toks, err := clex.Lex("while whileLoop", 0)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if toks[0].Kind != ctoken.WHILE {
		t.Errorf("expected WHILE, got %v", toks[0].Kind)
	}
	if toks[1].Kind != ctoken.IDENT || toks[1].Lexeme != "whileLoop" {
		t.Errorf("expected IDENT(whileLoop), got %v", toks[1])
	}
}

func TestLexIntegerAndString(t *testing.T) {
	toks, err := clex.Lex(`42 "hi\n"`, 0)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if toks[0].Kind != ctoken.INTEGER || toks[0].Integer != 42 {
		t.Errorf("expected INTEGER(42), got %v", toks[0])
	}
	if toks[1].Kind != ctoken.STRING || toks[1].Str != "hi\n" {
		t.Errorf("expected STRING(hi\\n), got %v", toks[1])
	}
}

func TestLexKeepNewlines(t *testing.T) {
	without, err := clex.Lex("a\nb", 0)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if len(without) != 3 { // a, b, EOF
		t.Fatalf("expected newline dropped by default, got %d tokens", len(without))
	}

	with, err := clex.Lex("a\nb", clex.KeepNewlines)
	if err != nil {
		t.Fatalf("Lex: %s", err)
	}
	if len(with) != 4 { // a, \n, b, EOF
		t.Fatalf("expected newline preserved with KeepNewlines, got %d tokens", len(with))
	}
}

func TestLexUnterminatedStringFails(t *testing.T) {
	if _, err := clex.Lex(`"unterminated`, 0); err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}
