package sqlsplit

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// CheckClause is a CHECK constraint declared in a CREATE TABLE statement.
type CheckClause struct {
	// Name is empty for an unnamed constraint.
	Name string
	// Expr is the checked expression without its enclosing parentheses.
	Expr string
}

// TableClauses holds the parts of a CREATE TABLE statement that SQLite's catalog pragmas do not report.
type TableClauses struct {
	Checks        []CheckClause
	AutoIncrement bool
}

// CreateTable scans a CREATE TABLE statement for column and table level CHECK constraints and
// the AUTOINCREMENT keyword.
func (s *Splitter) CreateTable(stmt string) (*TableClauses, error) {
	tokens, err := s.tokenize(stmt)
	if err != nil {
		return nil, err
	}
	out := &TableClauses{}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !s.is(tok, tokIdent) {
			continue
		}
		switch {
		case keyword(tok, "AUTOINCREMENT"):
			out.AutoIncrement = true
		case keyword(tok, "CHECK"):
			open := s.nextSignificant(tokens, i)
			if open < 0 || !s.punct(tokens[open], "(") {
				continue
			}
			end := s.closing(tokens, open)
			if end < 0 {
				continue
			}
			var expr strings.Builder
			for _, inner := range tokens[open+1 : end] {
				expr.WriteString(inner.Value)
			}
			out.Checks = append(out.Checks, CheckClause{
				Name: s.constraintName(tokens, i),
				Expr: strings.TrimSpace(expr.String()),
			})
			i = end
		}
	}
	return out, nil
}

func (s *Splitter) punct(tok lexer.Token, value string) bool {
	return s.is(tok, tokPunct) && tok.Value == value
}

// closing returns the index of the parenthesis matching the one at open, or -1.
func (s *Splitter) closing(tokens []lexer.Token, open int) int {
	depth := 0
	for j := open; j < len(tokens); j++ {
		switch {
		case s.punct(tokens[j], "("):
			depth++
		case s.punct(tokens[j], ")"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// previousSignificant returns the index of the last non-trivia token before i, or -1.
func (s *Splitter) previousSignificant(tokens []lexer.Token, i int) int {
	for j := i - 1; j >= 0; j-- {
		if !s.trivia(tokens[j]) {
			return j
		}
	}
	return -1
}

// constraintName returns the name given by "CONSTRAINT name" right before the token at i.
func (s *Splitter) constraintName(tokens []lexer.Token, i int) string {
	name := s.previousSignificant(tokens, i)
	if name < 0 {
		return ""
	}
	kw := s.previousSignificant(tokens, name)
	if kw < 0 || !s.is(tokens[kw], tokIdent) || !keyword(tokens[kw], "CONSTRAINT") {
		return ""
	}
	tok := tokens[name]
	switch {
	case s.is(tok, tokIdent):
		return tok.Value
	case s.is(tok, tokQuotedIdent):
		return strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], `""`, `"`)
	case s.is(tok, tokBacktick):
		return strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], "``", "`")
	}
	return ""
}
