package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/service"
	"github.com/satishbabariya/dbdelta/internal/ui"
)

func newMigrateCommand(a *app) *cobra.Command {
	var source, target string

	cmd := &cobra.Command{
		Use:   "migrate <description...>",
		Short: "Create a new migration file",
		Long: `Create a new migration in the migration directory.

Without --source and --target the file is an empty stub to fill in by hand. With both, the body
is the SQL that turns the source schema into the target schema. Destructive changes are left
out as comments unless --unsafe is given.`,
		Example: `  dbdelta migrate add users table
  dbdelta migrate add nickname --source postgres://localhost/app --target postgres://localhost/app_next`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.container.MigrationService(ctx, false)
			if err != nil {
				return err
			}
			res, err := svc.CreateMigration(ctx, service.CreateMigrationInput{
				Description: strings.Join(args, " "),
				Diff:        service.DiffInput{Source: source, Target: target, Schema: a.cfg.Schema},
				Unsafe:      a.cfg.Unsafe,
			})
			if errors.Is(err, service.ErrNoChanges) {
				ui.PrintInfo("Schemas are identical, no migration written")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}

			ui.PrintSuccess("Created %s", a.container.Directory().Path()+"/"+res.Record.Filename())
			if res.Plan != nil {
				printWithheld(res.Plan)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "database the migration starts from")
	cmd.Flags().StringVar(&target, "target", "", "database the migration should produce")
	cmd.Flags().Bool("unsafe", false, "include destructive statements")
	return cmd
}

func printWithheld(plan *domain.Plan) {
	for _, w := range plan.Warnings {
		ui.PrintWarning("%s", w)
	}
	if len(plan.Withheld) == 0 {
		return
	}
	ui.PrintWarning("%d destructive change(s) were withheld, rerun with --unsafe to include them:", len(plan.Withheld))
	items := make([]string, len(plan.Withheld))
	for i, w := range plan.Withheld {
		items[i] = w.Entry.Ref.String() + ": " + w.Reason
	}
	ui.PrintList(items)
}
