package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

// ledgerFixture is an initialized ledger database with three genesis
// keepers at rate 6000 (threshold 2) and executor 0xe1.
type ledgerFixture struct {
	dir string
	db  string
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	dir := t.TempDir()
	f := &ledgerFixture{dir: dir, db: filepath.Join(dir, "ledger.db")}
	mustExecute(t, "init", writeGenesis(t, dir, 7, 6000, 3), "--db", f.db)
	return f
}

func (f *ledgerFixture) run(t *testing.T, args ...string) string {
	t.Helper()
	return mustExecute(t, append(args, "--db", f.db)...)
}

func (f *ledgerFixture) try(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execute(t, append(args, "--db", f.db)...)
}

// encode writes a governance operation built by gov encode and returns
// its path and hash.
func (f *ledgerFixture) encode(t *testing.T, name string, args ...string) (string, string) {
	t.Helper()
	out := mustExecute(t, append([]string{"gov", "encode"}, args...)...)
	path := filepath.Join(f.dir, name+".json")
	require.NoError(t, os.WriteFile(path, []byte(out), 0644))
	hash := strings.TrimSpace(mustExecute(t, "hash", path))
	return path, hash
}

// sign returns keeper signatures over hash produced by keeper sign.
func sign(t *testing.T, hash string, keepers ...int) []string {
	t.Helper()
	sigs := make([]string, len(keepers))
	for i, k := range keepers {
		sigs[i] = strings.TrimSpace(mustExecute(t, "keeper", "sign", hash, "--key", keeperKeyHex(k)))
	}
	return sigs
}

// govern loads, signs with keepers 0 and 1 and executes a governance operation.
func (f *ledgerFixture) govern(t *testing.T, name string, args ...string) string {
	t.Helper()
	path, hash := f.encode(t, name, args...)
	f.run(t, "load", path, "--caller", "0xe1")
	f.run(t, append([]string{"sign", hash}, append(sign(t, hash, 0, 1), "--caller", "0xe1")...)...)
	f.run(t, "execute", hash, "--caller", "0xe1")
	return hash
}

func TestInitTwiceFails(t *testing.T) {
	f := newLedgerFixture(t)

	out, err := f.try(t, "init", writeGenesis(t, f.dir, 7, 6000, 3))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [AlreadyInitialized]")
}

func TestGovernanceLifecycle(t *testing.T) {
	f := newLedgerFixture(t)

	path, hash := f.encode(t, "register",
		"register-protocol", "--protocol", "onefunc", "--rate", "10000",
		"--keeper", "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4",
		"--src-chain", "1", "--nonce", "1", "--dest-chain", "7")

	// The hash command agrees with the canonical hash.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var op ir.Operation
	require.NoError(t, json.Unmarshal(data, &op))
	assert.Equal(t, ir.MustOperationHash(op).Hex(), hash)

	out := f.run(t, "load", path, "--caller", "0xe1")
	assert.Contains(t, out, "Loaded "+hash)

	_, err = f.try(t, "load", path, "--caller", "0xe1")
	require.Error(t, err)

	sigs := sign(t, hash, 0, 1)

	var first SignOutput
	jsonData(t, &first, "sign", hash, sigs[0], "--caller", "0xe1", "--db", f.db)
	assert.Equal(t, 1, first.TotalAdded)
	assert.Equal(t, 2, first.Threshold)
	assert.False(t, first.ConsensusReached)

	out, err = f.try(t, "execute", hash, "--caller", "0xe1")
	require.Error(t, err)
	assert.Contains(t, out, "Error [ConsensusNotReached]")

	// Resubmitting keeper 0 is a no-op; keeper 1 completes consensus.
	out = f.run(t, "sign", hash, sigs[0], sigs[1], "--chunk", "1", "--caller", "0xe1")
	assert.Contains(t, out, "1 added in 2 call(s)")
	assert.Contains(t, out, "consensus reached: true")

	out = f.run(t, "execute", hash, "--caller", "0xe1")
	assert.Contains(t, out, "register-protocol applied to onefunc")

	out, err = f.try(t, "execute", hash, "--caller", "0xe1")
	require.Error(t, err)
	assert.Contains(t, out, "Error [AlreadyExecuted]")

	var proto ir.ProtocolConfig
	jsonData(t, &proto, "show", "protocol", "onefunc", "--db", f.db)
	assert.Equal(t, uint64(10000), proto.ConsensusTargetRate)
	assert.Len(t, proto.Keepers, 1)

	var trace TraceResult
	jsonData(t, &trace, "trace", hash, "--db", f.db)
	require.Len(t, trace.Timeline, 4)
	assert.Equal(t, engine.StepLoaded, trace.Timeline[0].Step)
	assert.Equal(t, engine.StepExecuted, trace.Timeline[3].Step)
	assert.Equal(t, 2, trace.Stats.Attestations)
	assert.True(t, trace.Stats.Executed)

	var st engine.OperationStatus
	jsonData(t, &st, "show", "operation", hash, "--db", f.db)
	assert.True(t, st.Executed)
	assert.Equal(t, ir.StateExecuted, st.State)

	out = f.run(t, "show", "protocols")
	assert.Contains(t, out, "aggregation-gov")
	assert.Contains(t, out, "onefunc")

	out = f.run(t, "show", "operations", "--protocol", "aggregation-gov")
	assert.Contains(t, out, hash)
}

func TestSignRejectsNonKeeper(t *testing.T) {
	f := newLedgerFixture(t)
	path, hash := f.encode(t, "fee",
		"set-protocol-fee", "--protocol", "aggregation-gov", "--fee", "5", "--src-chain", "1", "--nonce", "9", "--dest-chain", "7")
	f.run(t, "load", path, "--caller", "0xe1")

	// Keeper 3 is not in the genesis set: its whole call is rejected.
	out, err := f.try(t, append([]string{"sign", hash}, append(sign(t, hash, 0, 3), "--caller", "0xe1")...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [UnauthorizedKeeper]")

	var st engine.OperationStatus
	jsonData(t, &st, "show", "operation", hash, "--db", f.db)
	assert.Empty(t, st.Signers)
}

func TestExecuteGovTargetMismatch(t *testing.T) {
	f := newLedgerFixture(t)
	f.govern(t, "register",
		"register-protocol", "--protocol", "onefunc", "--rate", "5000", "--src-chain", "1", "--nonce", "1", "--dest-chain", "7")

	path, hash := f.encode(t, "rate",
		"set-consensus-rate", "--protocol", "onefunc", "--rate", "7000", "--src-chain", "1", "--nonce", "2", "--dest-chain", "7")
	f.run(t, "load", path, "--caller", "0xe1")
	f.run(t, append([]string{"sign", hash}, append(sign(t, hash, 1, 2), "--caller", "0xe1")...)...)

	out, err := f.try(t, "execute-gov", hash, "--target-protocol", "otherfunc", "--caller", "0xe1")
	require.Error(t, err)
	assert.Contains(t, out, "Error [TargetProtocolMismatch]")

	out = f.run(t, "execute-gov", hash, "--target-protocol", "onefunc", "--caller", "0xe1")
	assert.Contains(t, out, "set-consensus-rate applied to onefunc")
}

func TestProposeAndEvents(t *testing.T) {
	f := newLedgerFixture(t)
	f.govern(t, "register",
		"register-protocol", "--protocol", "onefunc", "--rate", "5000", "--src-chain", "1", "--nonce", "1", "--dest-chain", "7")
	f.govern(t, "proposer",
		"add-proposer", "--protocol", "onefunc", "--member", "0xcafe", "--src-chain", "1", "--nonce", "2", "--dest-chain", "7")

	propose := []string{"propose", "--protocol", "onefunc", "--dst-chain", "56", "--target", "0xbeef",
		"--selector-kind", "name", "--selector", "increment"}

	out, err := f.try(t, append(propose, "--caller", "0xe1")...)
	require.Error(t, err)
	assert.Contains(t, out, "Error [UnauthorizedProposer]")

	out = f.run(t, append(propose, "--caller", "0xcafe")...)
	assert.Contains(t, out, "(nonce 0, dst chain 56)")
	f.run(t, append(propose, "--params", "0x01", "--caller", "0xcafe")...)

	var events []ir.ProposeEvent
	jsonData(t, &events, "events", "--db", f.db)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(0), events[0].Nonce)
	assert.Equal(t, uint64(1), events[1].Nonce)
	assert.Equal(t, "increment", events[0].Selector.String())

	jsonData(t, &events, "events", "--after", "0", "--db", f.db)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Nonce)
}

func TestGovDecode(t *testing.T) {
	dir := t.TempDir()
	out := mustExecute(t, "gov", "encode", "add-keepers", "--protocol", "onefunc",
		"--keeper", "0x5B38Da6a701c568545dCfcB03FcB875f56beddC4", "--dest-chain", "7")
	path := filepath.Join(dir, "op.json")
	require.NoError(t, os.WriteFile(path, []byte(out), 0644))

	var decoded struct {
		Opcode   string        `json:"opcode"`
		Protocol ir.ProtocolID `json:"protocol"`
	}
	jsonData(t, &decoded, "gov", "decode", path)
	assert.Equal(t, "add-keepers", decoded.Opcode)
	assert.Equal(t, ir.MustProtocolID("onefunc"), decoded.Protocol)
	assert.Equal(t, "onefunc_________________________", decoded.Protocol.String())

	// Reading from stdin works for hash too.
	hashOut, err := executeWithInput(t, out, "hash", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hashOut, "0x"))
}

func TestGovEncodeRejectsBadInput(t *testing.T) {
	_, err := execute(t, "gov", "encode", "mint", "--protocol", "onefunc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "gov", "encode", "add-executor", "--protocol", "onefunc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a member")

	_, err = execute(t, "gov", "encode", "add-keepers", "--protocol", "onefunc", "--keeper", "0x12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid keeper address")
}

func TestCommandErrors(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.try(t, "execute", "0x1234")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "missing caller")

	_, err = f.try(t, "execute", "0x1234", "--caller", "0xe1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "short hash")

	out, err := f.try(t, "show", "operation", "0x"+strings.Repeat("ab", 32))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [OperationNotFound]")

	_, err = f.try(t, "load", filepath.Join(f.dir, "absent.json"), "--caller", "0xe1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "keeper", "sign", "0x"+strings.Repeat("ab", 32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--key or --key-file is required")
}

func TestKeeperAddress(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "keeper.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(keeperKeyHex(0)+"\n"), 0600))

	out := mustExecute(t, "keeper", "address", "--key-file", keyFile)
	fromFlag := mustExecute(t, "keeper", "address", "--key", keeperKeyHex(0))
	assert.Equal(t, fromFlag, out)
	assert.True(t, strings.HasPrefix(out, "0x"))
}
