// Package sqlsplit tokenizes SQL scripts so that migration bodies can be executed statement by
// statement and view definitions can be scanned for the relations they reference.
package sqlsplit

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Token names shared by every dialect lexer.
const (
	tokLineComment  = "LineComment"
	tokBlockComment = "BlockComment"
	tokDollarOpen   = "DollarOpen"
	tokDollarClose  = "DollarClose"
	tokDollarBody   = "DollarBody"
	tokString       = "String"
	tokQuotedIdent  = "QuotedIdent"
	tokBacktick     = "BacktickIdent"
	tokIdent        = "Ident"
	tokNumber       = "Number"
	tokSemicolon    = "Semicolon"
	tokWhitespace   = "Whitespace"
	tokPunct        = "Punct"
)

func rules(stringPattern string) lexer.Rules {
	return lexer.Rules{
		"Root": {
			{Name: tokLineComment, Pattern: `--[^\n]*`},
			{Name: tokBlockComment, Pattern: `/\*(?:[^*]|\*+[^*/])*\*+/`},
			{Name: tokDollarOpen, Pattern: `\$([A-Za-z_][A-Za-z0-9_]*)?\$`, Action: lexer.Push("Dollar")},
			{Name: tokString, Pattern: stringPattern},
			{Name: tokQuotedIdent, Pattern: `"(?:[^"]|"")*"`},
			{Name: tokBacktick, Pattern: "`(?:[^`]|``)*`"},
			{Name: tokIdent, Pattern: `[\p{L}_][\p{L}\p{N}_$]*`},
			{Name: tokNumber, Pattern: `\d+(?:\.\d+)?(?:[eE][-+]?\d+)?`},
			{Name: tokSemicolon, Pattern: `;`},
			{Name: tokWhitespace, Pattern: `\s+`},
			{Name: tokPunct, Pattern: "[^\\s'\"`;]"},
		},
		"Dollar": {
			{Name: tokDollarClose, Pattern: `\$\1\$`, Action: lexer.Pop()},
			{Name: tokDollarBody, Pattern: `[^$]+|\$`},
		},
	}
}

// StandardLexer treats backslashes in string literals as ordinary characters (PostgreSQL, SQLite),
// except in PostgreSQL escape strings (E'...') where a backslash escapes the next character.
var StandardLexer = lexer.MustStateful(rules(`[Ee]'(?:\\.|''|[^'\\])*'|[NnXxBb]?'(?:[^']|'')*'`))

// BackslashLexer honours backslash escapes in string literals (MySQL).
var BackslashLexer = lexer.MustStateful(rules(`[NnXxBb]?'(?:\\.|''|[^'\\])*'`))
