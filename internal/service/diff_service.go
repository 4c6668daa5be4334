// Package service implements application services (use cases).
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/satishbabariya/dbdelta/internal/adapters/database"
	"github.com/satishbabariya/dbdelta/internal/adapters/telemetry"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/executor"
	"github.com/satishbabariya/dbdelta/internal/core/migration/history"
	"github.com/satishbabariya/dbdelta/internal/core/migration/progress"
	"github.com/satishbabariya/dbdelta/internal/debug"
)

// Connector opens a connected adapter for a connection descriptor.
type Connector func(ctx context.Context, raw string) (database.Adapter, error)

// IntrospectorFactory returns the introspector for an adapter.
type IntrospectorFactory func(db database.Adapter) (domain.Introspector, error)

// DiffService compares two live databases.
type DiffService struct {
	connect     Connector
	introspect  IntrospectorFactory
	differ      domain.Differ
	planner     domain.Planner
	telemetry   telemetry.Telemetry
	coordinator *progress.Coordinator
}

// NewDiffService creates a new diff service.
func NewDiffService(
	connect Connector,
	introspect IntrospectorFactory,
	differ domain.Differ,
	planner domain.Planner,
	tel telemetry.Telemetry,
) *DiffService {
	if tel == nil {
		tel = telemetry.NewNoopTelemetry()
	}
	return &DiffService{
		connect:     connect,
		introspect:  introspect,
		differ:      differ,
		planner:     planner,
		telemetry:   tel,
		coordinator: progress.NewCoordinator(),
	}
}

// DiffInput represents input for a diff run.
type DiffInput struct {
	Source string
	Target string
	Filter domain.ObjectFilter
	// Schema overrides the schema scope of both descriptors.
	Schema string
	// Ignore lists extra tables to leave out. The ledger table is always left out.
	Ignore []string
}

// Scope returns the introspection scope for a database described by desc.
func (in DiffInput) Scope(desc database.Descriptor) domain.Scope {
	schema := desc.Schema
	if in.Schema != "" {
		schema = in.Schema
	}
	return domain.Scope{Schema: schema, Ignore: append([]string{history.TableName}, in.Ignore...)}
}

// Compare connects to both databases, introspects them concurrently and compares the snapshots.
// report receives phase labels and non-decreasing percentages and may be nil.
func (s *DiffService) Compare(ctx context.Context, in DiffInput, report progress.Reporter) (cs *domain.ChangeSet, err error) {
	if report == nil {
		report = func(string, int) {}
	}
	start := time.Now()
	var dialect domain.SQLDialect
	defer func() {
		info := telemetry.DiffInfo{Dialect: string(dialect), Duration: time.Since(start), Success: err == nil}
		if cs != nil {
			info.Entries = make(map[string]int)
			for _, st := range []domain.Status{domain.StatusIdentical, domain.StatusAdded, domain.StatusRemoved, domain.StatusModified} {
				info.Entries[strings.ToLower(string(st))] = cs.Count(st)
			}
		}
		s.telemetry.RecordDiff(ctx, info)
	}()

	report("connecting", 0)
	source, target, err := s.connectPair(ctx, in.Source, in.Target)
	if err != nil {
		return nil, err
	}
	defer source.Disconnect(context.Background())
	defer target.Disconnect(context.Background())

	dialect = target.GetDialect()
	if source.GetDialect() != dialect {
		return nil, fmt.Errorf("%w: source is %s, target is %s", domain.ErrDialectMismatch, source.GetDialect(), dialect)
	}

	report("introspecting", 10)
	var srcSnap, tgtSnap *domain.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.snapshot(gctx, source, in.Scope(source.Descriptor()))
		srcSnap = snap
		return err
	})
	g.Go(func() error {
		snap, err := s.snapshot(gctx, target, in.Scope(target.Descriptor()))
		tgtSnap = snap
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report("comparing", 40)
	cs, err = s.differ.Compare(ctx, srcSnap, tgtSnap, domain.DiffOptions{
		Filter: in.Filter,
		Progress: func(done, total int, current domain.ObjectType) {
			report("comparing "+string(current)+"s", 40+55*done/total)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compare snapshots: %w", err)
	}
	debug.Info("diff finished", "entries", cs.Len(), "changes", cs.Len()-cs.Count(domain.StatusIdentical), "elapsed", time.Since(start))
	return cs, nil
}

func (s *DiffService) connectPair(ctx context.Context, sourceURL, targetURL string) (database.Adapter, database.Adapter, error) {
	var source, target database.Adapter
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		source, err = s.connect(gctx, sourceURL)
		return err
	})
	g.Go(func() (err error) {
		target, err = s.connect(gctx, targetURL)
		return err
	})
	if err := g.Wait(); err != nil {
		if source != nil {
			_ = source.Disconnect(context.Background())
		}
		if target != nil {
			_ = target.Disconnect(context.Background())
		}
		return nil, nil, err
	}
	return source, target, nil
}

func (s *DiffService) snapshot(ctx context.Context, db database.Adapter, scope domain.Scope) (*domain.Snapshot, error) {
	in, err := s.introspect(db)
	if err != nil {
		return nil, err
	}
	return in.Introspect(ctx, scope)
}

// Plan orders a change set into statement groups.
func (s *DiffService) Plan(cs *domain.ChangeSet, unsafe bool) (*domain.Plan, error) {
	plan, err := s.planner.Plan(cs, domain.PlanOptions{Unsafe: unsafe})
	if err != nil {
		return nil, fmt.Errorf("failed to plan changes: %w", err)
	}
	return plan, nil
}

// Apply runs the emitted statements of plan against the database at url in one transaction.
// Withheld entries are not applied.
func (s *DiffService) Apply(ctx context.Context, url string, plan *domain.Plan) error {
	db, err := s.connect(ctx, url)
	if err != nil {
		return err
	}
	defer db.Disconnect(context.Background())
	if err := executor.NewMigrationExecutor(db).ExecutePlan(ctx, plan); err != nil {
		return err
	}
	debug.Info("applied plan", "database", db.Descriptor(), "statements", len(plan.Statements()))
	return nil
}

// Start runs Compare in the background for sessionID. Only one run per session may be in flight.
func (s *DiffService) Start(ctx context.Context, sessionID string, in DiffInput) (*progress.Run, error) {
	return s.coordinator.Start(ctx, sessionID, func(ctx context.Context, report progress.Reporter) (*domain.ChangeSet, error) {
		return s.Compare(ctx, in, report)
	})
}

// Lookup returns the latest run of a session.
func (s *DiffService) Lookup(sessionID string) (*progress.Run, bool) {
	return s.coordinator.Lookup(sessionID)
}
