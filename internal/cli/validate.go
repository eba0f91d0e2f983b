package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/genesis"
)

// ValidationError is one genesis problem with its source position.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Genesis *genesis.Genesis  `json:"genesis,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <genesis.cue>",
		Short: "Validate a genesis file without touching the ledger",
		Long: `Validate a CUE genesis file against the genesis schema.

Checks syntax, the schema (hex keeper addresses, a consensus rate between
0 and 10000, non-empty keeper and executor sets) and duplicate members.

Example:
  spotter validate ./genesis.cue
  spotter validate ./genesis.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "genesis file not found", err)
	}

	g, err := loadGenesis(path)
	if err != nil {
		result := ValidationResult{Errors: []ValidationError{validationError(err)}}
		if outErr := formatter.Result(result, func(w io.Writer) {
			fmt.Fprintf(w, "✗ %s\n", path)
			for _, e := range result.Errors {
				if e.Line > 0 {
					fmt.Fprintf(w, "  %d:%d %s: %s\n", e.Line, e.Column, e.Field, e.Message)
				} else {
					fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
				}
			}
		}); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, "genesis is invalid")
	}

	formatter.VerboseLog("genesis %s: %d keepers, %d executors", path, len(g.Keepers), len(g.Executors))
	return formatter.Result(ValidationResult{Valid: true, Genesis: g}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s\n", path)
		fmt.Fprintf(w, "  home chain %d, rate %d, %d keepers, %d executors\n",
			g.HomeChainID, g.ConsensusTargetRate, len(g.Keepers), len(g.Executors))
	})
}

// loadGenesis loads and fully checks a genesis file.
func loadGenesis(path string) (*genesis.Genesis, error) {
	g, err := genesis.Load(path)
	if err != nil {
		return nil, err
	}
	if _, _, err := g.InitParams(); err != nil {
		return nil, err
	}
	return g, nil
}

func validationError(err error) ValidationError {
	var gerr *genesis.Error
	if !errors.As(err, &gerr) {
		return ValidationError{Field: "genesis", Message: err.Error()}
	}
	ve := ValidationError{Field: gerr.Field, Message: gerr.Message}
	if gerr.Pos.IsValid() {
		ve.Line = gerr.Pos.Line()
		ve.Column = gerr.Pos.Column()
	}
	return ve
}
