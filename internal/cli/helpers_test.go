package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spotter/internal/testutil"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// mustExecute runs the root command and fails the test on error.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	require.NoError(t, err, "spotter %s\n%s", strings.Join(args, " "), out)
	return out
}

// jsonData runs a command with --format json and decodes its data payload.
func jsonData(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out := mustExecute(t, append(args, "--format", "json")...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// writeGenesis writes a genesis for keepers 0..n-1 and executor 0xe1.
func writeGenesis(t *testing.T, dir string, homeChain uint64, rate uint64, n int) string {
	t.Helper()
	var keepers []string
	for _, k := range testutil.Keepers(n) {
		keepers = append(keepers, fmt.Sprintf("%q", k.Address.Hex()))
	}
	src := fmt.Sprintf(`genesis: {
	home_chain_id:         %d
	consensus_target_rate: %d
	admin:                 "0xad"
	keepers: [%s]
	executors: ["0xe1"]
}
`, homeChain, rate, strings.Join(keepers, ", "))
	path := filepath.Join(dir, "genesis.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// keeperKeyHex returns the hex private key of test keeper i.
func keeperKeyHex(i int) string {
	return hexutil.Encode(crypto.FromECDSA(testutil.KeeperKey(i)))
}
