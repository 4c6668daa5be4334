// Package executor implements migration execution.
package executor

import (
	"context"
	"fmt"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/sqlsplit"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// StatementError reports the statement of a body that failed.
type StatementError struct {
	// Index is 1-based.
	Index int
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("failed to execute SQL statement %d: %v\nSQL: %s", e.Index, e.Err, e.SQL)
}

func (e *StatementError) Unwrap() error { return e.Err }

// MigrationExecutor runs migration bodies statement by statement.
type MigrationExecutor struct {
	db       database.Adapter
	splitter *sqlsplit.Splitter
}

// NewMigrationExecutor creates a new migration executor.
func NewMigrationExecutor(db database.Adapter) *MigrationExecutor {
	return &MigrationExecutor{
		db:       db,
		splitter: sqlsplit.New(db.GetDialect()),
	}
}

// ExecuteIn runs every statement of body inside tx and returns how many ran. The caller owns the
// transaction.
func (e *MigrationExecutor) ExecuteIn(ctx context.Context, tx database.Transaction, body string) (int, error) {
	stmts, err := e.splitter.Split(body)
	if err != nil {
		return 0, fmt.Errorf("failed to split migration body: %w", err)
	}
	for i, stmt := range stmts {
		if _, err := tx.Execute(ctx, stmt); err != nil {
			return i, &StatementError{Index: i + 1, SQL: stmt, Err: err}
		}
	}
	return len(stmts), nil
}

// Execute runs body in its own transaction.
func (e *MigrationExecutor) Execute(ctx context.Context, body string) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	n, err := e.ExecuteIn(ctx, tx, body)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	debug.Debug("executed statements", "count", n, "dialect", e.db.GetDialect())
	return nil
}

// ExecutePlan runs every emitted statement of plan in one transaction.
func (e *MigrationExecutor) ExecutePlan(ctx context.Context, plan *domain.Plan) error {
	if plan.Dialect != e.db.GetDialect() {
		return fmt.Errorf("%w: plan for %s, database is %s", domain.ErrDialectMismatch, plan.Dialect, e.db.GetDialect())
	}
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i, stmt := range plan.Statements() {
		if _, err := tx.Execute(ctx, stmt.SQL); err != nil {
			_ = tx.Rollback()
			return &StatementError{Index: i + 1, SQL: stmt.SQL, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
