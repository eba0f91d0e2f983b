// Command spotter runs the cross-chain operation relay ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/spotter/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
