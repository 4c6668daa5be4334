package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/service"
	"github.com/satishbabariya/dbdelta/internal/ui"
)

// ErrSchemasDiffer is returned by check when the schemas are not identical.
var ErrSchemasDiffer = errors.New("schemas differ")

func newCheckCommand(a *app) *cobra.Command {
	var include, exclude []string

	cmd := &cobra.Command{
		Use:   "check <source> <target>",
		Short: "Exit non-zero when two schemas differ",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := domain.NewObjectFilter(include, exclude)
			if err != nil {
				return err
			}
			cs, err := a.container.DiffService().Compare(cmd.Context(), service.DiffInput{
				Source: args[0],
				Target: args[1],
				Filter: filter,
				Schema: a.cfg.Schema,
			}, nil)
			if err != nil {
				return fmt.Errorf("diff failed: %w", err)
			}
			if !cs.HasChanges() {
				ui.PrintSuccess("Schemas are identical (%d objects compared)", cs.Len())
				return nil
			}

			rows := make([][]string, 0)
			for _, e := range changed(cs) {
				rows = append(rows, []string{ui.StatusLabel(string(e.Status)), string(e.Ref.Type), e.Ref.Name})
			}
			if err := ui.PrintTable([]string{"Status", "Type", "Object"}, rows); err != nil {
				return err
			}
			return fmt.Errorf("%w: %d of %d objects changed", ErrSchemasDiffer, len(rows), cs.Len())
		},
	}

	cmd.Flags().StringSliceVar(&include, "include-objects", nil, "only compare these object types")
	cmd.Flags().StringSliceVar(&exclude, "exclude-objects", nil, "leave these object types out")
	cmd.MarkFlagsMutuallyExclusive("include-objects", "exclude-objects")
	cmd.Flags().String("schema", "", "schema to compare (postgres)")
	return cmd
}
