package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbdelta/internal/ui"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.container.MigrationService(ctx, true)
			if err != nil {
				return err
			}
			st, err := svc.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}

			current := st.Current
			if current == "" {
				current = "none"
			}
			ui.PrintInfo("Current version: %s", current)

			var rows [][]string
			for _, v := range st.Applied {
				rows = append(rows, []string{v.Version, v.Description, "applied", v.AppliedAt.Local().Format("2006-01-02 15:04:05")})
			}
			for _, rec := range st.Pending {
				rows = append(rows, []string{rec.Version, rec.Slug, "pending", ""})
			}
			if len(rows) > 0 {
				if err := ui.PrintTable([]string{"Version", "Description", "State", "Applied at"}, rows); err != nil {
					return err
				}
			}

			for _, name := range st.Skipped {
				ui.PrintWarning("%s is older than the current version and was never applied", name)
			}
			for _, version := range st.Missing {
				ui.PrintWarning("version %s is recorded but its file is gone", version)
			}
			for _, d := range st.Drifted {
				ui.PrintWarning("version %s changed after it was applied (recorded %s, now %s)", d.Version, short(d.Recorded), short(d.Current))
			}
			if st.Clean() {
				ui.PrintSuccess("Database is up to date")
			}
			return nil
		},
	}
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
