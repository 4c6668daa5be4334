package sqlsplit

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// Splitter splits SQL scripts into statements.
type Splitter struct {
	def     *lexer.StatefulDefinition
	symbols map[string]lexer.TokenType
}

// New returns a splitter for a dialect.
func New(dialect domain.SQLDialect) *Splitter {
	def := StandardLexer
	if dialect == domain.MySQL {
		def = BackslashLexer
	}
	return &Splitter{def: def, symbols: def.Symbols()}
}

// Split splits body with the splitter for dialect.
func Split(dialect domain.SQLDialect, body string) ([]string, error) {
	return New(dialect).Split(body)
}

func (s *Splitter) is(tok lexer.Token, name string) bool {
	return tok.Type == s.symbols[name]
}

func (s *Splitter) trivia(tok lexer.Token) bool {
	return s.is(tok, tokWhitespace) || s.is(tok, tokLineComment) || s.is(tok, tokBlockComment)
}

func (s *Splitter) tokenize(body string) ([]lexer.Token, error) {
	lex, err := s.def.LexString("", body)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize SQL: %w", err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize SQL: %w", err)
	}
	open := 0
	for _, tok := range tokens {
		switch {
		case s.is(tok, tokDollarOpen):
			open++
		case s.is(tok, tokDollarClose):
			open--
		}
	}
	if open != 0 {
		return nil, fmt.Errorf("failed to tokenize SQL: unterminated dollar-quoted string")
	}
	if n := len(tokens); n > 0 && tokens[n-1].EOF() {
		tokens = tokens[:n-1]
	}
	return tokens, nil
}

// nextSignificant returns the index of the next non-trivia token after i, or -1.
func (s *Splitter) nextSignificant(tokens []lexer.Token, i int) int {
	for j := i + 1; j < len(tokens); j++ {
		if !s.trivia(tokens[j]) {
			return j
		}
	}
	return -1
}

func keyword(tok lexer.Token, words ...string) bool {
	for _, w := range words {
		if strings.EqualFold(tok.Value, w) {
			return true
		}
	}
	return false
}

// Split returns the statements of body without their terminating semicolons. Semicolons inside
// literals, comments, dollar-quoted bodies, and BEGIN ... END blocks do not split. Statements
// consisting only of comments are dropped.
func (s *Splitter) Split(body string) ([]string, error) {
	tokens, err := s.tokenize(body)
	if err != nil {
		return nil, err
	}

	var (
		stmts       []string
		cur         strings.Builder
		significant bool
		depth       int
		skip        = -1
		prev        lexer.Token
	)
	flush := func() {
		if significant {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
		}
		cur.Reset()
		significant = false
		depth = 0
	}

	for i, tok := range tokens {
		if s.trivia(tok) {
			if significant {
				cur.WriteString(tok.Value)
			}
			continue
		}
		if s.is(tok, tokSemicolon) && depth == 0 {
			flush()
			prev = tok
			continue
		}
		if s.is(tok, tokIdent) && i != skip && !(s.is(prev, tokPunct) && prev.Value == ".") {
			depth = s.blockDepth(tokens, i, depth, &skip)
		}
		significant = true
		cur.WriteString(tok.Value)
		prev = tok
	}
	flush()
	return stmts, nil
}

// blockDepth tracks compound statement nesting used by trigger and routine bodies.
func (s *Splitter) blockDepth(tokens []lexer.Token, i, depth int, skip *int) int {
	tok := tokens[i]
	next := s.nextSignificant(tokens, i)
	switch {
	case keyword(tok, "BEGIN"):
		if next < 0 || s.is(tokens[next], tokSemicolon) ||
			keyword(tokens[next], "WORK", "TRANSACTION", "DEFERRED", "IMMEDIATE", "EXCLUSIVE", "ISOLATION", "READ") {
			return depth
		}
		return depth + 1
	case keyword(tok, "CASE"):
		return depth + 1
	case keyword(tok, "END"):
		if next >= 0 && keyword(tokens[next], "IF", "LOOP", "WHILE", "REPEAT") {
			*skip = next
			return depth
		}
		if next >= 0 && keyword(tokens[next], "CASE") {
			*skip = next
		}
		if depth > 0 {
			return depth - 1
		}
	}
	return depth
}

// Identifiers returns the distinct identifiers referenced by sql in order of appearance, with
// quotes removed. Identifiers inside literals and comments are ignored. Unquoted identifiers are
// lower-cased.
func (s *Splitter) Identifiers(sql string) ([]string, error) {
	tokens, err := s.tokenize(sql)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, tok := range tokens {
		switch {
		case s.is(tok, tokIdent):
			add(strings.ToLower(tok.Value))
		case s.is(tok, tokQuotedIdent):
			add(strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], `""`, `"`))
		case s.is(tok, tokBacktick):
			add(strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], "``", "`"))
		}
	}
	return out, nil
}
