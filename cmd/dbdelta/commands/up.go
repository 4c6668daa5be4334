package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbdelta/internal/config"
	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/service"
	"github.com/satishbabariya/dbdelta/internal/ui"
	"github.com/satishbabariya/dbdelta/internal/watch"
)

func newUpCommand(a *app) *cobra.Command {
	var dryRun, watchDir bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long: `Apply every migration newer than the latest recorded version, oldest first. Each
migration runs in its own transaction and stops the run on the first failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.container.MigrationService(ctx, true)
			if err != nil {
				return err
			}
			if !watchDir {
				return runUp(ctx, svc, dryRun)
			}
			return watchUp(ctx, a, svc, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	cmd.Flags().BoolVar(&watchDir, "watch", false, "keep running and apply new migrations as they appear")
	return cmd
}

func runUp(ctx context.Context, svc *service.MigrationService, dryRun bool) error {
	applied, err := svc.Up(ctx, service.UpOptions{
		DryRun: dryRun,
		OnApplied: func(rec domain.MigrationRecord, elapsed time.Duration) {
			ui.PrintSuccess("Applied %s (%s)", rec.Filename(), elapsed.Round(time.Millisecond))
		},
	})
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	switch {
	case len(applied) == 0:
		ui.PrintInfo("Database is up to date")
	case dryRun:
		ui.PrintInfo("%d pending migration(s):", len(applied))
		items := make([]string, len(applied))
		for i, rec := range applied {
			items[i] = rec.Filename()
		}
		ui.PrintList(items)
	default:
		ui.PrintSuccess("Applied %d migration(s)", len(applied))
	}
	return nil
}

func watchUp(ctx context.Context, a *app, svc *service.MigrationService, dryRun bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := filepath.FromSlash(a.cfg.MigrationsDir)
	if err := config.AppFs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	w, err := watch.NewWatcher(dir, func(ctx context.Context) error {
		return runUp(ctx, svc, dryRun)
	}, func(err error) {
		ui.PrintError("%v", err)
	})
	if err != nil {
		return err
	}
	ui.PrintInfo("Watching %s for new migrations, press Ctrl+C to stop", dir)
	return w.Run(ctx)
}
