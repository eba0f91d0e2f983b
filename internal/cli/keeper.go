package cli

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/roach88/spotter/internal/signature"
)

// KeeperOptions holds flags for the keeper commands.
type KeeperOptions struct {
	*RootOptions
	Key     string // hex private key
	KeyFile string // file holding a hex private key
}

// KeeperSignature is the output of keeper sign.
type KeeperSignature struct {
	Hash      common.Hash    `json:"hash"`
	Keeper    common.Address `json:"keeper"`
	Signature hexutil.Bytes  `json:"signature"`
}

// NewKeeperCommand creates the keeper command group.
func NewKeeperCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeeperOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Keeper key tooling",
		Long: `Keeper key tooling.

Keepers sign the EIP-191 personal-message digest of an operation hash with
a secp256k1 key. The key comes from --key, --key-file or SPOTTER_KEY.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "", "keeper private key (hex)")
	cmd.PersistentFlags().StringVar(&opts.KeyFile, "key-file", "", "file containing the keeper private key (hex)")

	cmd.AddCommand(&cobra.Command{
		Use:   "sign <hash>",
		Short: "Sign an operation hash",
		Example: `  spotter keeper sign 0x3c4a...e578 --key-file ./keeper.key
  spotter sign 0x3c4a...e578 $(spotter keeper sign 0x3c4a...e578 --key $KEY)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			hash, err := parseHash(args[0])
			if err != nil {
				return err
			}
			key, err := opts.privateKey()
			if err != nil {
				return err
			}
			sig, err := signature.Sign(key, hash)
			if err != nil {
				return formatter.EngineError(err)
			}

			out := KeeperSignature{Hash: hash, Keeper: signature.Address(key), Signature: sig}
			return formatter.Result(out, func(w io.Writer) {
				fmt.Fprintln(w, hexutil.Encode(sig))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "address",
		Short:         "Print the keeper address of a key",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := opts.privateKey()
			if err != nil {
				return err
			}
			addr := signature.Address(key)
			return newFormatter(rootOpts, cmd).Result(map[string]common.Address{"keeper": addr}, func(w io.Writer) {
				fmt.Fprintln(w, addr.Hex())
			})
		},
	})

	return cmd
}

func (o *KeeperOptions) privateKey() (*ecdsa.PrivateKey, error) {
	raw := o.Key
	if raw == "" && o.KeyFile != "" {
		data, err := os.ReadFile(o.KeyFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read key file", err)
		}
		raw = string(data)
	}
	if raw == "" {
		return nil, NewExitError(ExitCommandError, "--key or --key-file is required")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid keeper key", err)
	}
	return key, nil
}
