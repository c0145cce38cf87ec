// Package asm implements the textual assembly reader and writer from
// spec.md §4.7/§6: a round-trip-faithful, deterministic, ASCII-stable
// serialization of a Module. Only the token-level and abstract-syntactic
// contract of the grammar is specified (spec.md §1 explicitly puts the
// LALR-style grammar itself out of scope); this package tokenizes with a
// participle stateful lexer, in the style of the teacher's
// grammar/lexer.go, and drives a hand-written recursive-descent reader
// over the resulting token stream rather than a declarative participle
// struct grammar, since instruction operand shapes vary per opcode far
// more than the teacher's expression grammar does.
package asm

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// asmLexer tokenizes LLHD assembly text. Token categories mirror spec.md
// §6's sketch: Global (@name) and Local (%name) identifiers, bare
// keyword/opcode identifiers, integer literals, time-literal components,
// and punctuation.
var asmLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Comment", Pattern: `;[^\n]*`, Action: nil},
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`, Action: nil},
		{Name: "Global", Pattern: `@[a-zA-Z_][a-zA-Z0-9_.$]*`, Action: nil},
		{Name: "Local", Pattern: `%[a-zA-Z_][a-zA-Z0-9_.$]*|%[0-9]+`, Action: nil},
		{Name: "TimeNum", Pattern: `[0-9]+(\.[0-9]+)?(s|ms|us|ns|ps|fs)`, Action: nil},
		{Name: "DeltaNum", Pattern: `[0-9]+d`, Action: nil},
		{Name: "EpsilonNum", Pattern: `[0-9]+e`, Action: nil},
		{Name: "HexInt", Pattern: `0x[0-9a-fA-F]+`, Action: nil},
		{Name: "Integer", Pattern: `[0-9]+`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`, Action: nil},
		{Name: "Arrow", Pattern: `->`, Action: nil},
		{Name: "Punct", Pattern: `[{}()\[\],:*$=]`, Action: nil},
	},
})

// token is one lexed unit: its category name, literal text, and source
// position, flattened out of participle's lexer.Token for the reader's
// convenience.
type token struct {
	Kind string
	Text string
	Pos  lexer.Position
}

// tokenize drains the stateful lexer over source, eliding comments and
// whitespace the way the teacher's parser elides them via
// participle.Elide — done by hand here since the reader walks a token
// slice rather than invoking participle.Build.
func tokenize(filename, source string) ([]token, error) {
	symbols := asmLexer.Symbols()
	names := make(map[lexer.TokenType]string, len(symbols))
	for name, tt := range symbols {
		names[tt] = name
	}

	lx, err := asmLexer.Lex(filename, strings.NewReader(source))
	if err != nil {
		return nil, err
	}

	var out []token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if t.EOF() {
			break
		}
		kind := names[t.Type]
		if kind == "Whitespace" || kind == "Comment" {
			continue
		}
		out = append(out, token{Kind: kind, Text: t.Value, Pos: t.Pos})
	}
	return out, nil
}
