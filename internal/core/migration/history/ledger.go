// Package history records applied migration versions in the target database and manages the
// migration file directory they come from.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/executor"
	"github.com/satishbabariya/dbdelta/internal/core/migration/sqlgen"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// TableName is the bookkeeping table.
const TableName = "_schema_versions"

// BaselineSlug names the file written by Compact.
const BaselineSlug = "compacted_initial"

// queryer is satisfied by both an adapter and an open transaction.
type queryer interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Ledger tracks which migration versions have been applied to one database.
//
// Mutual exclusion between concurrent ledgers is left to the database: every apply re-reads the
// maximum version inside its transaction and the version column is unique. MySQL commits DDL
// implicitly, so there a failed migration may leave earlier statements of its body applied.
type Ledger struct {
	db       database.Adapter
	executor *executor.MigrationExecutor
	now      func() time.Time
}

// NewLedger creates a ledger on db.
func NewLedger(db database.Adapter) *Ledger {
	return &Ledger{
		db:       db,
		executor: executor.NewMigrationExecutor(db),
		now:      time.Now,
	}
}

func (l *Ledger) placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = sqlgen.Placeholder(l.db.GetDialect(), i+1)
	}
	return strings.Join(marks, ", ")
}

// Initialize creates the bookkeeping table when it does not exist yet.
func (l *Ledger) Initialize(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
	version_number CHAR(14) NOT NULL UNIQUE,
	description VARCHAR(255) NOT NULL DEFAULT '',
	checksum CHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := l.db.Execute(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", TableName, err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, or "" for an empty ledger.
func (l *Ledger) CurrentVersion(ctx context.Context) (string, error) {
	return currentVersion(ctx, l.db)
}

func currentVersion(ctx context.Context, q queryer) (string, error) {
	var version sql.NullString
	if err := q.QueryRow(ctx, `SELECT MAX(version_number) FROM `+TableName).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to read current version: %w", err)
	}
	return strings.TrimSpace(version.String), nil
}

// Applied returns every ledger row sorted by version.
func (l *Ledger) Applied(ctx context.Context) ([]domain.AppliedVersion, error) {
	rows, err := l.db.Query(ctx, `SELECT version_number, description, checksum, applied_at FROM `+TableName+` ORDER BY version_number`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied versions: %w", err)
	}
	defer rows.Close()

	var out []domain.AppliedVersion
	for rows.Next() {
		var v domain.AppliedVersion
		if err := rows.Scan(&v.Version, &v.Description, &v.Checksum, &v.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan applied version: %w", err)
		}
		v.Version = strings.TrimSpace(v.Version)
		v.Checksum = strings.TrimSpace(v.Checksum)
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListPending returns the migrations newer than the current version, ascending.
func (l *Ledger) ListPending(ctx context.Context, dir *Directory) ([]domain.MigrationRecord, error) {
	current, err := l.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	records, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}
	var pending []domain.MigrationRecord
	for _, rec := range records {
		if rec.Version > current {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// Apply runs rec's body and records its version in one transaction. A version not newer than the
// current one is rejected before any statement runs.
func (l *Ledger) Apply(ctx context.Context, rec domain.MigrationRecord) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return &domain.ApplyError{Version: rec.Version, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	current, err := currentVersion(ctx, tx)
	if err != nil {
		return &domain.ApplyError{Version: rec.Version, Err: err}
	}
	if current != "" && rec.Version <= current {
		cause := domain.ErrOutOfOrder
		if exists, err := l.recorded(ctx, tx, rec.Version); err != nil {
			return &domain.ApplyError{Version: rec.Version, Err: err}
		} else if exists {
			cause = domain.ErrAlreadyApplied
		}
		return &domain.ApplyError{Version: rec.Version, Err: fmt.Errorf("%w (current version %s)", cause, current)}
	}

	if _, err := l.executor.ExecuteIn(ctx, tx, rec.Body); err != nil {
		var stmtErr *executor.StatementError
		if errors.As(err, &stmtErr) {
			return &domain.ApplyError{Version: rec.Version, Statement: stmtErr.Index, Err: stmtErr.Err}
		}
		return &domain.ApplyError{Version: rec.Version, Err: err}
	}
	if err := l.insert(ctx, tx, rec); err != nil {
		return &domain.ApplyError{Version: rec.Version, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &domain.ApplyError{Version: rec.Version, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	committed = true
	debug.Info("applied migration", "version", rec.Version, "slug", rec.Slug)
	return nil
}

func (l *Ledger) recorded(ctx context.Context, q queryer, version string) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM ` + TableName + ` WHERE version_number = ` + l.placeholders(1)
	if err := q.QueryRow(ctx, query, version).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up version %s: %w", version, err)
	}
	return n > 0, nil
}

func (l *Ledger) insert(ctx context.Context, tx database.Transaction, rec domain.MigrationRecord) error {
	query := `INSERT INTO ` + TableName + ` (version_number, description, checksum, applied_at) VALUES (` + l.placeholders(4) + `)`
	if _, err := tx.Execute(ctx, query, rec.Version, rec.Slug, rec.Checksum, l.now().UTC()); err != nil {
		if l.db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrAlreadyApplied, err)
		}
		return fmt.Errorf("failed to record version %s: %w", rec.Version, err)
	}
	return nil
}

// ApplyOptions tunes ApplyAll.
type ApplyOptions struct {
	// DryRun lists the pending migrations without running them.
	DryRun bool
	// OnApplied is called after each committed migration.
	OnApplied func(rec domain.MigrationRecord, elapsed time.Duration)
}

// ApplyAll initializes the ledger and applies every pending migration in ascending order, stopping
// at the first failure. Migrations committed before the failure stay applied. It returns the
// migrations that were applied, or that would be in dry-run mode.
func (l *Ledger) ApplyAll(ctx context.Context, dir *Directory, opts ApplyOptions) ([]domain.MigrationRecord, error) {
	if err := l.Initialize(ctx); err != nil {
		return nil, err
	}
	pending, err := l.ListPending(ctx, dir)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return pending, nil
	}
	applied := make([]domain.MigrationRecord, 0, len(pending))
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		start := time.Now()
		if err := l.Apply(ctx, rec); err != nil {
			return applied, err
		}
		applied = append(applied, rec)
		if opts.OnApplied != nil {
			opts.OnApplied(rec, time.Since(start))
		}
	}
	return applied, nil
}

// Drift is an applied migration whose file no longer matches what was recorded.
type Drift struct {
	Version  string `json:"version" yaml:"version"`
	Recorded string `json:"recorded" yaml:"recorded"`
	Current  string `json:"current" yaml:"current"`
}

// Status describes the ledger against the migration directory.
type Status struct {
	Current string                   `json:"current" yaml:"current"`
	Applied []domain.AppliedVersion  `json:"applied" yaml:"applied"`
	Pending []domain.MigrationRecord `json:"pending" yaml:"pending"`
	// Skipped lists files older than the current version that were never applied.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Missing lists applied versions without a file.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Drifted []Drift  `json:"drifted,omitempty" yaml:"drifted,omitempty"`
}

// Clean reports whether nothing is pending and no file drifted.
func (s *Status) Clean() bool {
	return len(s.Pending) == 0 && len(s.Skipped) == 0 && len(s.Drifted) == 0
}

// Status compares the ledger with dir. An uninitialized ledger is treated as empty.
func (l *Ledger) Status(ctx context.Context, dir *Directory) (*Status, error) {
	if err := l.Initialize(ctx); err != nil {
		return nil, err
	}
	applied, err := l.Applied(ctx)
	if err != nil {
		return nil, err
	}
	records, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{Applied: applied}
	byVersion := make(map[string]domain.AppliedVersion, len(applied))
	for _, v := range applied {
		byVersion[v.Version] = v
		if v.Version > st.Current {
			st.Current = v.Version
		}
	}
	files := make(map[string]bool, len(records))
	for _, rec := range records {
		files[rec.Version] = true
		row, ok := byVersion[rec.Version]
		switch {
		case ok && row.Checksum != "" && row.Checksum != rec.Checksum:
			st.Drifted = append(st.Drifted, Drift{Version: rec.Version, Recorded: row.Checksum, Current: rec.Checksum})
		case ok:
		case rec.Version > st.Current:
			st.Pending = append(st.Pending, rec)
		default:
			st.Skipped = append(st.Skipped, rec.Filename())
		}
	}
	for _, v := range applied {
		if !files[v.Version] {
			st.Missing = append(st.Missing, v.Version)
		}
	}
	return st, nil
}

// BaselineBuilder renders the body that recreates the current schema from empty.
type BaselineBuilder func(ctx context.Context) (string, error)

// CompactResult describes a finished compaction.
type CompactResult struct {
	Baseline domain.MigrationRecord
	// Folded is the number of migration files the baseline replaced.
	Folded int
	// Applied lists the pending migrations applied before folding.
	Applied []domain.MigrationRecord
}

// Compact folds the whole history into one baseline migration. Pending migrations are applied
// first; the ledger must then account for every file. The baseline keeps the highest applied
// version, the ledger is reset to that single row and the directory to that single file, both
// or neither.
func (l *Ledger) Compact(ctx context.Context, dir *Directory, build BaselineBuilder) (*CompactResult, error) {
	applied, err := l.ApplyAll(ctx, dir, ApplyOptions{})
	if err != nil {
		return nil, &domain.CompactionPrecheckError{Reason: "pending migrations could not be applied", Err: err}
	}
	current, err := l.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	if current == "" {
		return nil, &domain.CompactionPrecheckError{Reason: "the ledger is empty, nothing to compact"}
	}

	records, err := dir.List(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := l.Applied(ctx)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]bool, len(rows))
	for _, row := range rows {
		recorded[row.Version] = true
	}
	for _, rec := range records {
		if rec.Version > current {
			return nil, &domain.CompactionPrecheckError{Reason: fmt.Sprintf("migration %s is still pending", rec.Filename())}
		}
		if !recorded[rec.Version] {
			return nil, &domain.CompactionPrecheckError{Reason: fmt.Sprintf("migration %s was never applied", rec.Filename())}
		}
	}

	body, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build baseline: %w", err)
	}
	baseline := domain.NewMigrationRecord(current, BaselineSlug, body)

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Execute(ctx, `DELETE FROM `+TableName); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to clear %s: %w", TableName, err)
	}
	if err := l.insert(ctx, tx, baseline); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	undo, err := dir.Replace(ctx, baseline)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to replace migrations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if rerr := undo(ctx); rerr != nil {
			debug.Error("failed to restore migrations after aborted compaction", "error", rerr)
		}
		return nil, fmt.Errorf("failed to commit compaction: %w", err)
	}

	debug.Info("compacted migrations", "baseline", baseline.Filename(), "folded", len(records))
	return &CompactResult{Baseline: baseline, Folded: len(records), Applied: applied}, nil
}
