package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/dbdelta/internal/core/migration/domain"
	"github.com/satishbabariya/dbdelta/internal/core/migration/progress"
	"github.com/satishbabariya/dbdelta/internal/debug"
	"github.com/satishbabariya/dbdelta/internal/service"
	"github.com/satishbabariya/dbdelta/internal/ui"
)

// Output formats of the diff command.
const (
	FormatSQL      = "sql"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

func newDiffCommand(a *app) *cobra.Command {
	var (
		include, exclude []string
		jsonDiff, apply  bool
		format           string
	)

	cmd := &cobra.Command{
		Use:   "diff <source> <target>",
		Short: "Show the SQL that turns the source schema into the target schema",
		Long: `Introspect both databases and print the statements that make source match target.

Destructive statements are withheld unless --unsafe is given. --json-diff prints the raw
per-object comparison instead of a script. --apply runs the printed script against source.

Object types: ` + objectTypeNames() + `.`,
		Example: `  dbdelta diff postgres://localhost/prod postgres://localhost/dev
  dbdelta diff prod.db dev.db --include-objects table,view --format markdown
  dbdelta diff sqlite://dev.db sqlite://model.db --apply`,
		Args: cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case FormatSQL, FormatYAML, FormatMarkdown:
				return nil
			default:
				return fmt.Errorf("unknown format %q (expected sql, yaml or markdown)", format)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := domain.NewObjectFilter(include, exclude)
			if err != nil {
				return err
			}
			in := service.DiffInput{Source: args[0], Target: args[1], Filter: filter, Schema: a.cfg.Schema}
			cs, err := a.runDiff(cmd, in)
			if err != nil {
				return err
			}
			if jsonDiff {
				enc := json.NewEncoder(ui.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(cs)
			}

			plan, err := a.container.DiffService().Plan(cs, a.cfg.Unsafe)
			if err != nil {
				return err
			}
			switch format {
			case FormatYAML:
				err = writeYAML(cs, plan)
			case FormatMarkdown:
				err = ui.PrintMarkdown(markdownReport(cs, plan))
			default:
				if plan.Empty() && len(plan.Withheld) == 0 && len(plan.Warnings) == 0 {
					ui.PrintInfo("Schemas are identical")
				} else {
					ui.PrintSQL(plan.SQL())
				}
			}
			if err != nil || !apply {
				return err
			}
			if plan.Empty() {
				ui.PrintInfo("Nothing to apply")
				return nil
			}
			if err := a.container.DiffService().Apply(cmd.Context(), args[0], plan); err != nil {
				return err
			}
			ui.PrintSuccess("Applied %d statement(s) to %s", len(plan.Statements()), args[0])
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&include, "include-objects", nil, "only compare these top-level object types (e.g. table,view)")
	cmd.Flags().StringSliceVar(&exclude, "exclude-objects", nil, "leave these object types out")
	cmd.MarkFlagsMutuallyExclusive("include-objects", "exclude-objects")
	cmd.Flags().BoolVar(&jsonDiff, "json-diff", false, "print the per-object comparison as JSON")
	cmd.Flags().BoolVar(&apply, "apply", false, "run the script against the source database")
	cmd.MarkFlagsMutuallyExclusive("json-diff", "apply")
	cmd.Flags().StringVarP(&format, "format", "f", FormatSQL, "output format: sql, yaml or markdown")
	cmd.Flags().Bool("unsafe", false, "include destructive statements")
	cmd.Flags().String("schema", "", "schema to compare (postgres)")
	cmd.Flags().Duration("poll-interval", progress.DefaultPollInterval, "how often progress is refreshed")
	return cmd
}

func objectTypeNames() string {
	var names []string
	for _, t := range domain.AllObjectTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// runDiff starts a background diff and polls it, drawing a progress bar on terminals.
// Interrupting the command cancels the run.
func (a *app) runDiff(cmd *cobra.Command, in service.DiffInput) (*domain.ChangeSet, error) {
	ctx := cmd.Context()
	run, err := a.container.DiffService().Start(ctx, progress.NewSessionID(), in)
	if err != nil {
		return nil, err
	}

	onPoll := func(st progress.Status) {
		debug.Debug("diff progress", "phase", st.Phase, "percent", st.PercentComplete)
	}
	if ui.Interactive() {
		if bar, err := ui.NewProgress("connecting"); err == nil {
			defer bar.Stop()
			onPoll = func(st progress.Status) { bar.Update(st.Phase, st.PercentComplete) }
		}
	}

	st := run.Wait(ctx, a.cfg.PollInterval, onPoll)
	cs, err := st.Result()
	if err != nil {
		return nil, fmt.Errorf("diff failed: %w", err)
	}
	return cs, nil
}

// report is the yaml document of the diff command.
type report struct {
	Dialect domain.SQLDialect    `yaml:"dialect"`
	Summary map[string]int       `yaml:"summary"`
	Changes []domain.ChangeEntry `yaml:"changes,omitempty"`
	Plan    *domain.Plan         `yaml:"plan"`
}

func summarize(cs *domain.ChangeSet) map[string]int {
	summary := make(map[string]int)
	for _, st := range []domain.Status{domain.StatusIdentical, domain.StatusAdded, domain.StatusRemoved, domain.StatusModified} {
		summary[strings.ToLower(string(st))] = cs.Count(st)
	}
	return summary
}

func changed(cs *domain.ChangeSet) []domain.ChangeEntry {
	var out []domain.ChangeEntry
	for _, e := range cs.Entries() {
		if e.Status != domain.StatusIdentical {
			out = append(out, e)
		}
	}
	return out
}

func writeYAML(cs *domain.ChangeSet, plan *domain.Plan) error {
	enc := yaml.NewEncoder(ui.Out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(report{
		Dialect: cs.Dialect(),
		Summary: summarize(cs),
		Changes: changed(cs),
		Plan:    plan,
	})
}

func markdownReport(cs *domain.ChangeSet, plan *domain.Plan) string {
	var b strings.Builder
	b.WriteString("# Schema diff\n\n")
	fmt.Fprintf(&b, "Dialect: **%s**\n\n", cs.Dialect())

	summary := summarize(cs)
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("| Status | Objects |\n|---|---|\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "| %s | %d |\n", k, summary[k])
	}

	if entries := changed(cs); len(entries) > 0 {
		b.WriteString("\n## Changes\n\n")
		for _, e := range entries {
			line := fmt.Sprintf("- **%s** `%s`", e.Status, e.Ref)
			if e.Destructive {
				line += " (destructive)"
			}
			b.WriteString(line + "\n")
		}
	}
	if len(plan.Withheld) > 0 {
		b.WriteString("\n## Withheld\n\n")
		for _, w := range plan.Withheld {
			fmt.Fprintf(&b, "- `%s`: %s\n", w.Entry.Ref, w.Reason)
		}
	}
	if !plan.Empty() {
		b.WriteString("\n## SQL\n\n```sql\n" + strings.TrimRight(plan.SQL(), "\n") + "\n```\n")
	}
	return b.String()
}
