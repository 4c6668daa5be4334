package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/telemetry"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/executor"
	"github.com/satishbabariya/dbdelta/internal/core/migration/history"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// ErrNoChanges is returned when a diff-derived migration would be empty.
var ErrNoChanges = errors.New("no schema changes detected")

// MigrationService orchestrates migration operations on one target database.
type MigrationService struct {
	db        database.Adapter
	ledger    *history.Ledger
	dir       *history.Directory
	diffs     *DiffService
	telemetry telemetry.Telemetry
}

// NewMigrationService creates a new migration service. db may be nil for operations that only
// touch the migration directory.
func NewMigrationService(db database.Adapter, dir *history.Directory, diffs *DiffService, tel telemetry.Telemetry) *MigrationService {
	if tel == nil {
		tel = telemetry.NewNoopTelemetry()
	}
	s := &MigrationService{db: db, dir: dir, diffs: diffs, telemetry: tel}
	if db != nil {
		s.ledger = history.NewLedger(db)
	}
	return s
}

func (s *MigrationService) requireDB() error {
	if s.db == nil {
		return fmt.Errorf("no database configured: set database_url or DATABASE_URL")
	}
	return nil
}

// CreateMigrationInput represents input for creating a migration.
type CreateMigrationInput struct {
	Description string
	// Diff derives the body from Source and Target when both are set; otherwise the file is a stub.
	Diff   DiffInput
	Unsafe bool
}

// CreateMigrationResult describes a written migration.
type CreateMigrationResult struct {
	Record domain.MigrationRecord
	// Plan is nil for stub migrations.
	Plan *domain.Plan
}

// CreateMigration writes a new migration file.
func (s *MigrationService) CreateMigration(ctx context.Context, input CreateMigrationInput) (*CreateMigrationResult, error) {
	if input.Diff.Source == "" && input.Diff.Target == "" {
		rec, err := s.dir.Create(ctx, input.Description, "-- "+input.Description+"\n")
		if err != nil {
			return nil, err
		}
		return &CreateMigrationResult{Record: rec}, nil
	}
	if input.Diff.Source == "" || input.Diff.Target == "" {
		return nil, fmt.Errorf("both a source and a target database are required to derive a migration")
	}

	cs, err := s.diffs.Compare(ctx, input.Diff, nil)
	if err != nil {
		return nil, err
	}
	plan, err := s.diffs.Plan(cs, input.Unsafe)
	if err != nil {
		return nil, err
	}
	if plan.Empty() && len(plan.Withheld) == 0 {
		return nil, ErrNoChanges
	}
	rec, err := s.dir.Create(ctx, input.Description, plan.SQL())
	if err != nil {
		return nil, err
	}
	return &CreateMigrationResult{Record: rec, Plan: plan}, nil
}

// UpOptions tunes Up.
type UpOptions struct {
	DryRun    bool
	OnApplied func(rec domain.MigrationRecord, elapsed time.Duration)
}

// Up applies every pending migration.
func (s *MigrationService) Up(ctx context.Context, opts UpOptions) ([]domain.MigrationRecord, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	applied, err := s.ledger.ApplyAll(ctx, s.dir, history.ApplyOptions{
		DryRun: opts.DryRun,
		OnApplied: func(rec domain.MigrationRecord, elapsed time.Duration) {
			s.telemetry.RecordMigration(ctx, telemetry.MigrationInfo{Version: rec.Version, Duration: elapsed, Success: true})
			if opts.OnApplied != nil {
				opts.OnApplied(rec, elapsed)
			}
		},
	})
	if err != nil {
		var applyErr *domain.ApplyError
		if errors.As(err, &applyErr) {
			s.telemetry.RecordMigration(ctx, telemetry.MigrationInfo{Version: applyErr.Version, Success: false})
		}
		return applied, err
	}
	return applied, nil
}

// Status compares the ledger with the migration directory.
func (s *MigrationService) Status(ctx context.Context) (*history.Status, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	return s.ledger.Status(ctx, s.dir)
}

// CompactOptions tunes Compact.
type CompactOptions struct {
	// ShadowURL names an empty scratch database used to check that the baseline reproduces the
	// live schema. Verification is skipped when empty.
	ShadowURL string
	// Ignore lists extra tables to leave out of the baseline.
	Ignore []string
}

// Compact folds the migration history into one baseline rendered from the live schema.
func (s *MigrationService) Compact(ctx context.Context, opts CompactOptions) (*history.CompactResult, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	scope := DiffInput{Ignore: opts.Ignore}.Scope(s.db.Descriptor())
	return s.ledger.Compact(ctx, s.dir, func(ctx context.Context) (string, error) {
		live, err := s.diffs.snapshot(ctx, s.db, scope)
		if err != nil {
			return "", err
		}
		body, err := s.baseline(ctx, live)
		if err != nil {
			return "", err
		}
		if opts.ShadowURL == "" {
			debug.Warn("no shadow database configured, baseline is not verified")
			return body, nil
		}
		if err := s.verifyBaseline(ctx, opts.ShadowURL, scope, live, body); err != nil {
			return "", err
		}
		return body, nil
	})
}

// baseline renders the statements that create live from an empty database.
func (s *MigrationService) baseline(ctx context.Context, live *domain.Snapshot) (string, error) {
	empty := domain.NewSnapshot(live.Dialect, live.Scope)
	empty.Seal()
	cs, err := s.diffs.differ.Compare(ctx, empty, live, domain.DiffOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to compare with an empty schema: %w", err)
	}
	plan, err := s.diffs.Plan(cs, true)
	if err != nil {
		return "", err
	}
	if len(plan.Warnings) > 0 {
		return "", fmt.Errorf("baseline cannot be rendered exactly: %v", plan.Warnings)
	}
	return plan.SQL(), nil
}

// verifyBaseline applies body to the shadow database and checks that the result matches live.
func (s *MigrationService) verifyBaseline(ctx context.Context, shadowURL string, scope domain.Scope, live *domain.Snapshot, body string) error {
	shadow, err := s.diffs.connect(ctx, shadowURL)
	if err != nil {
		return fmt.Errorf("failed to connect to shadow database: %w", err)
	}
	defer shadow.Disconnect(context.Background())
	if shadow.GetDialect() != live.Dialect {
		return fmt.Errorf("%w: shadow database is %s, target is %s", domain.ErrDialectMismatch, shadow.GetDialect(), live.Dialect)
	}

	before, err := s.diffs.snapshot(ctx, shadow, scope)
	if err != nil {
		return err
	}
	for _, obj := range before.TopLevel() {
		if obj.ObjectType != domain.ObjectSchema && obj.ObjectType != domain.ObjectExtension {
			return fmt.Errorf("shadow database %s is not empty: found %s", shadow.Descriptor(), obj.Ref())
		}
	}
	if err := executor.NewMigrationExecutor(shadow).Execute(ctx, body); err != nil {
		return fmt.Errorf("baseline failed on shadow database: %w", err)
	}
	after, err := s.diffs.snapshot(ctx, shadow, scope)
	if err != nil {
		return err
	}
	cs, err := s.diffs.differ.Compare(ctx, after, live, domain.DiffOptions{})
	if err != nil {
		return err
	}
	if cs.HasChanges() {
		var drift []string
		for _, e := range cs.Entries() {
			if e.Status != domain.StatusIdentical {
				drift = append(drift, e.Ref.String()+" "+string(e.Status))
			}
		}
		return fmt.Errorf("baseline does not reproduce the live schema: %v", drift)
	}
	debug.Info("baseline verified on shadow database", "shadow", shadow.Descriptor().String())
	return nil
}
