package cli

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/ir"
)

// HashResult is the output of the hash command.
type HashResult struct {
	Hash      common.Hash   `json:"hash"`
	Canonical hexutil.Bytes `json:"canonical,omitempty"`
}

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	var canonical bool

	cmd := &cobra.Command{
		Use:   "hash <operation.json>",
		Short: "Compute the hash of an operation",
		Long: `Compute the identity hash of an operation.

The hash is keccak256 over the domain-separated canonical encoding. It is
what keepers sign and what load, sign and execute refer to. Use "-" to
read the operation from stdin.

Example:
  spotter hash ./op.json
  spotter gov encode set-consensus-rate --protocol onefunc --rate 5000 | spotter hash -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			op, err := readOperation(cmd, args[0])
			if err != nil {
				return err
			}
			enc, err := ir.MarshalCanonical(op)
			if err != nil {
				return formatter.EngineError(err)
			}
			hash, err := ir.OperationHash(op)
			if err != nil {
				return formatter.EngineError(err)
			}

			result := HashResult{Hash: hash}
			if canonical {
				result.Canonical = enc
			}
			return formatter.Result(result, func(w io.Writer) {
				fmt.Fprintln(w, hash.Hex())
				if canonical {
					fmt.Fprintln(w, hexutil.Encode(enc))
				}
			})
		},
	}

	cmd.Flags().BoolVar(&canonical, "canonical", false, "also print the canonical encoding")
	return cmd
}
