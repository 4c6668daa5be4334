// Package sqlgen renders dialect specific DDL for the differ and the ledger.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
)

// NewRenderer returns the renderer for a dialect.
func NewRenderer(dialect domain.SQLDialect) (domain.Renderer, error) {
	switch dialect {
	case domain.PostgreSQL:
		return NewPostgresRenderer(), nil
	case domain.MySQL:
		return NewMySQLRenderer(), nil
	case domain.SQLite:
		return NewSQLiteRenderer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDialect, dialect)
	}
}

// Placeholder returns the n-th (1-based) bind parameter marker.
func Placeholder(dialect domain.SQLDialect, n int) string {
	if dialect == domain.PostgreSQL {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func quoteWith(ident string, quote string) string {
	return quote + strings.ReplaceAll(ident, quote, quote+quote) + quote
}

func trimQuery(query string) string {
	return strings.TrimSuffix(strings.TrimSpace(query), ";")
}
