package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbdelta/internal/ui"
)

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <version>",
		Short:   "Print a migration file",
		Example: `  dbdelta show 20240501120000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.container.Directory().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ui.PrintInfo("%s (checksum %s)", rec.Filename(), short(rec.Checksum))
			ui.PrintSQL(rec.Body)
			return nil
		},
	}
}
