package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbdelta/internal/service"
	"github.com/satishbabariya/dbdelta/internal/ui"
)

func newCompactCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Fold the migration history into one baseline",
		Long: `Apply any pending migrations, then replace every migration file and ledger row with a
single baseline rendered from the live schema. The baseline keeps the newest applied version.

With --shadow-url the baseline is first applied to that empty database and the result compared
with the live schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.container.MigrationService(ctx, true)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm("Replace every migration file and ledger row with a single baseline?")
				if err != nil {
					return err
				}
				if !ok {
					ui.PrintInfo("Compaction cancelled")
					return nil
				}
			}

			var spinner interface{ Stop() error }
			if ui.Interactive() {
				if s, err := ui.Spinner("Compacting migrations"); err == nil {
					spinner = s
				}
			}
			res, err := svc.Compact(ctx, service.CompactOptions{ShadowURL: a.cfg.ShadowDatabaseURL})
			if spinner != nil {
				_ = spinner.Stop()
			}
			if err != nil {
				return fmt.Errorf("failed to compact migrations: %w", err)
			}

			for _, rec := range res.Applied {
				ui.PrintInfo("Applied pending %s first", rec.Filename())
			}
			ui.PrintSuccess("Folded %d migration(s) into %s", res.Folded, res.Baseline.Filename())
			if a.cfg.ShadowDatabaseURL == "" {
				ui.PrintWarning("Baseline was not verified, pass --shadow-url to check it on an empty database")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().String("shadow-url", "", "empty scratch database used to verify the baseline")
	return cmd
}

// confirm asks a yes/no question. Without a terminal it refuses rather than guessing.
func confirm(message string) (bool, error) {
	if !ui.Interactive() {
		return false, fmt.Errorf("confirmation required: rerun with --yes")
	}
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
