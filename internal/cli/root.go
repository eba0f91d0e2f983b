package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that set flags, e.g.
// SPOTTER_DB for --db and SPOTTER_LISTEN for --listen.
const EnvPrefix = "SPOTTER"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // optional config file (yaml, toml or json)
	Database string // ledger SQLite path
	Caller   string // ledger identity making engine calls
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the spotter CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "spotter",
		Short: "spotter - cross-chain operation relay",
		Long: `Relay cross-chain operations through keeper consensus.

Operations originated on a source chain are loaded into the ledger, signed
by keepers and executed once the protocol's consensus threshold is met.
Governance operations amend the protocol registry the same way.

Every flag can also be set from the environment (SPOTTER_<FLAG>, dashes
as underscores) or from the file named by --config. Explicit flags win.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, opts.Config); err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "spotter.db", "path to SQLite ledger database")
	cmd.PersistentFlags().StringVar(&opts.Caller, "caller", "", "caller identity (hex)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewKeeperCommand(opts))
	cmd.AddCommand(NewGovCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewSignCommand(opts))
	cmd.AddCommand(NewExecuteCommand(opts))
	cmd.AddCommand(NewExecuteGovCommand(opts))
	cmd.AddCommand(NewProposeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// applyConfig layers the config file and SPOTTER_* environment under the
// command's flags: a flag the user did not set takes its configured value.
func applyConfig(cmd *cobra.Command, configFile string) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	var firstErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "config" || !v.IsSet(f.Name) || firstErr != nil {
			return
		}
		var err error
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			err = sv.Replace(v.GetStringSlice(f.Name))
		} else {
			err = cmd.Flags().Set(f.Name, v.GetString(f.Name))
		}
		if err != nil {
			firstErr = fmt.Errorf("%s: %w", f.Name, err)
		}
	})
	return firstErr
}

// newLogger builds the command's structured logger on w. Verbose always
// selects Debug.
func newLogger(w io.Writer, verbose bool, level slog.Level) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newFormatter returns the command's output formatter.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
