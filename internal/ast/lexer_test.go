package ast

import (
	"strings"
	"testing"
)

func lexAll(t *testing.T, input string) []*Token {
	t.Helper()
	l := NewLexer(strings.NewReader(input))
	var tokens []*Token
	for {
		tok, err := l.Scan()
		if err != nil {
			t.Fatalf("scan error: %v", err)
		}
		if tok.Type == EOF {
			return tokens
		}
		if tok.Type == WS {
			continue
		}
		tokens = append(tokens, tok)
	}
}

func TestLexerSymbolOrder(t *testing.T) {
	// Test that >= is lexed as GTE, not as GT followed by EQ
	tokens := lexAll(t, "age >= 25")
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	if tokens[1].Type != GTE {
		t.Errorf("expected GTE, got %s (%q)", tokens[1].Type, string(tokens[1].Raw))
	}
}

func TestLexerStatement(t *testing.T) {
	tokens := lexAll(t, "SELECT id, name FROM users WHERE id <= 10;")
	want := []TokenType{SELECT, IDENT, COMMA, IDENT, FROM, IDENT, WHERE, IDENT, LTE, NUMERIC, SEMICOLON}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token %d: expected %s, got %s (%q)", i, typ, tokens[i].Type, string(tokens[i].Raw))
		}
	}
}

func TestLexerKeywordsCaseInsensitive(t *testing.T) {
	tokens := lexAll(t, "select * from users")
	want := []TokenType{SELECT, STAR, FROM, IDENT}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token %d: expected %s, got %s", i, typ, tokens[i].Type)
		}
	}
}

func TestLexerKeywordPrefixIdent(t *testing.T) {
	// "selection" starts with the SELECT keyword but must lex as an ident.
	tokens := lexAll(t, "selection intake")
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	for i, tok := range tokens {
		if tok.Type != IDENT {
			t.Errorf("token %d: expected IDENT, got %s (%q)", i, tok.Type, string(tok.Raw))
		}
	}
}

func TestLexerString(t *testing.T) {
	tokens := lexAll(t, "INSERT INTO t VALUES (1, 'a b c')")
	var str *Token
	for _, tok := range tokens {
		if tok.Type == STRING {
			str = tok
		}
	}
	if str == nil {
		t.Fatal("expected a STRING token")
	}
	if string(str.Raw) != "'a b c'" {
		t.Errorf("expected raw %q, got %q", "'a b c'", string(str.Raw))
	}
}

func TestLexerComment(t *testing.T) {
	tokens := lexAll(t, "-- creates nothing\nDROP TABLE t")
	if tokens[0].Type != COMMENT {
		t.Fatalf("expected COMMENT first, got %s", tokens[0].Type)
	}
	if tokens[1].Type != DROP {
		t.Errorf("expected DROP after comment, got %s", tokens[1].Type)
	}
}

func TestLexerNumericForms(t *testing.T) {
	for _, input := range []string{"42", "-7", "3.14", "-0.5"} {
		tokens := lexAll(t, input)
		if len(tokens) != 1 || tokens[0].Type != NUMERIC {
			t.Errorf("%q: expected a single NUMERIC token, got %v", input, tokens)
		}
	}
}
