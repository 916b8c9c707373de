package parser

import (
	"github.com/alecthomas/participle/v2" // lib for building the parser
	"github.com/alecthomas/participle/v2/lexer" // lib for building the lexer
)

// This module parses contract source from plain text into symbolic
// expressions. The language is a small lisp:
//
// (define-map tokens ((account principal)) ((balance int)))
// (define-public (transfer (to principal) (amount int))
//   (if (> amount 0) (ok amount) (err 1)))
//
// Literals: ints, 0x-prefixed hex buffers, "strings" (buffers) and
// 'PRINCIPAL. Everything else that is not a parenthesis is an atom.

// Lexer for the contract code. Rules are specified with regexp and tried
// in order, so buffers come before ints and ints before atoms.
var SMTLexer = lexer.MustSimple([]lexer.Rule{
	{Name: `Comment`, Pattern: `;[^\n]*`, Action: nil},
	{Name: `Whitespace`, Pattern: `\s+`, Action: nil},
	{Name: `Buffer`, Pattern: `0x[0-9a-fA-F]*`, Action: nil},
	{Name: `Int`, Pattern: `-?[0-9]+`, Action: nil},
	{Name: `String`, Pattern: `"(\\.|[^"\\])*"`, Action: nil}, // quoted string tokens
	{Name: `Principal`, Pattern: `'[A-Za-z0-9.][A-Za-z0-9._\-]*`, Action: nil},
	{Name: `Ident`, Pattern: `[a-zA-Z_+\-*/<>=!?][a-zA-Z0-9_+\-*/<>=!?.]*`, Action: nil},
	{Name: `Punct`, Pattern: `[()]`, Action: nil},
})

// Program is a whole contract: zero or more top level expressions.
type Program struct {
	Expressions []*Expression `parser:"@@*"`
}

// Expression is one symbolic expression. Exactly one field is set.
type Expression struct {
	Pos lexer.Position

	List      *List   `parser:"  @@"`
	Buffer    *string `parser:"| @Buffer"`
	Int       *string `parser:"| @Int"`
	Str       *string `parser:"| @String"`
	Principal *string `parser:"| @Principal"`
	Atom      *string `parser:"| @Ident"`
}

// List is a parenthesized expression. Open is captured so that `()` still
// produces a non-nil List.
type List struct {
	Open  string        `parser:"@\"(\""`
	Items []*Expression `parser:"@@* \")\""`
}

// parser for contract code
var SMTParser = participle.MustBuild(&Program{},
	participle.Lexer(SMTLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
)

// Parse parses contract code into its top level expressions.
func Parse(plain_code string) ([]*Expression, error) {
	ast := &Program{}
	err := SMTParser.ParseString("", plain_code, ast)
	if err != nil {
		return nil, err
	}
	return ast.Expressions, nil
}
