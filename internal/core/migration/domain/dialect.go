package domain

import (
	"fmt"
	"strings"
)

// SQLDialect identifies a database flavour.
type SQLDialect string

const (
	// PostgreSQL dialect.
	PostgreSQL SQLDialect = "postgres"
	// MySQL dialect.
	MySQL SQLDialect = "mysql"
	// SQLite dialect.
	SQLite SQLDialect = "sqlite"
)

// ParseDialect resolves a provider name.
func ParseDialect(name string) (SQLDialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
}

// Capabilities describes what DDL a dialect can express incrementally.
type Capabilities struct {
	// InlineForeignKeys is set when foreign keys can only be declared inside CREATE TABLE.
	InlineForeignKeys bool
	// ReplaceRoutine is set when CREATE OR REPLACE works for functions.
	ReplaceRoutine bool
	// ReplaceView is set when CREATE OR REPLACE works for views.
	ReplaceView bool
	// Schemas is set when the dialect has schema, extension, sequence, and enum type objects.
	Schemas bool
	// AutoIncrementKey is set when an auto-increment column declares its single column primary
	// key inline (SQLite's INTEGER PRIMARY KEY AUTOINCREMENT).
	AutoIncrementKey bool
}

// Renderer renders dialect-specific DDL fragments. Table arguments are already qualified and quoted.
type Renderer interface {
	Dialect() SQLDialect
	Capabilities() Capabilities
	Quote(ident string) string
	Qualify(schema, name string) string
	Literal(value string) string

	ColumnClause(name string, c *ColumnDef) string
	AlterColumn(table, name string, from, to *ColumnDef) ([]string, error)
	DropColumn(table, name string) (string, error)

	AddConstraint(table, name string, c *ConstraintDef) (string, error)
	DropConstraint(table, name string, c *ConstraintDef) (string, error)

	DropIndex(schema, table, name string) string
	DropTrigger(schema, table, name string) string

	CreateView(qualified string, v *ViewDef, replace bool) string
	DropView(qualified string, v *ViewDef) string
	DropRoutine(schema, name string, f *FunctionDef) string
}
