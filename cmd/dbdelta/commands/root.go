// Package commands implements CLI commands.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/satishbabariya/dbdelta/internal/config"
	"github.com/satishbabariya/dbdelta/internal/debug"
	"github.com/satishbabariya/dbdelta/internal/ui"
	"github.com/satishbabariya/dbdelta/internal/utils/container"
)

// flagKeys maps command flags to config keys. Only flags the user actually set override the
// config file and environment.
var flagKeys = map[string]string{
	"database-url":   config.KeyDatabaseURL,
	"migrations-dir": config.KeyMigrationsDir,
	"shadow-url":     config.KeyShadowDatabaseURL,
	"poll-interval":  config.KeyPollInterval,
	"unsafe":         config.KeyUnsafe,
	"schema":         config.KeySchema,
	"metrics-file":   config.KeyMetricsTextfile,
	"debug":          config.KeyDebug,
}

// app is the state shared by every command of one invocation.
type app struct {
	v         *viper.Viper
	cfg       *config.Config
	container *container.Container
	// options are applied to the container, tests use them to swap the store.
	options []container.Option
}

// NewRootCommand builds the dbdelta command tree.
func NewRootCommand(opts ...container.Option) *cobra.Command {
	return newRootCommand(&app{v: viper.New(), options: opts})
}

func newRootCommand(a *app) *cobra.Command {
	var configFile string
	var noColor bool

	root := &cobra.Command{
		Use:   "dbdelta",
		Short: "Compare live database schemas and manage SQL migrations",
		Long: `dbdelta compares the schemas of two live databases, renders the SQL that turns one into
the other, and keeps a directory of versioned migrations in step with a ledger table.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Argument errors have been reported by now; runtime errors should not print usage.
			cmd.SilenceUsage = true
			if noColor {
				ui.DisableColor()
			}
			ui.Out = cmd.OutOrStdout()
			if configFile != "" {
				a.v.SetConfigFile(configFile)
			}
			if err := bindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(a.v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			debug.Init(cfg.Debug)
			if cfg.ConfigFile != "" {
				debug.Debug("loaded config", "file", cfg.ConfigFile)
			}
			c, err := container.NewContainer(cfg, a.options...)
			if err != nil {
				return fmt.Errorf("failed to initialize container: %w", err)
			}
			a.container = c
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./.dbdelta.yaml)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().String("database-url", "", "target database (defaults to DATABASE_URL)")
	root.PersistentFlags().String("migrations-dir", "", "migration directory")
	root.PersistentFlags().String("metrics-file", "", "write run metrics to this file in Prometheus text format")

	root.AddCommand(newMigrateCommand(a))
	root.AddCommand(newUpCommand(a))
	root.AddCommand(newCompactCommand(a))
	root.AddCommand(newDiffCommand(a))
	root.AddCommand(newCheckCommand(a))
	root.AddCommand(newStatusCommand(a))
	root.AddCommand(newShowCommand(a))
	root.AddCommand(newVersionCommand())
	return root
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.container == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := a.container.Close(ctx)
	a.container = nil
	return err
}

// Execute runs the CLI. Errors are returned for the caller to print.
func Execute(ctx context.Context) error {
	a := &app{v: viper.New()}
	err := newRootCommand(a).ExecuteContext(ctx)
	// PersistentPostRunE is skipped when a command fails.
	if closeErr := a.close(ctx); err == nil {
		err = closeErr
	}
	return err
}
