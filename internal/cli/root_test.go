package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "spotter", cmd.Use)
	assert.Contains(t, cmd.Long, "keeper consensus")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"serve"}, {"validate"}, {"hash"},
		{"keeper", "sign"}, {"keeper", "address"},
		{"gov", "encode"}, {"gov", "decode"},
		{"load"}, {"sign"}, {"execute"}, {"execute-gov"}, {"propose"},
		{"show", "operation"}, {"show", "operations"}, {"show", "protocol"},
		{"show", "protocols"}, {"show", "config"},
		{"trace"}, {"events"}, {"test"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "spotter.db", dbFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("caller"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestSignCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	signCmd, _, err := cmd.Find([]string{"sign"})
	require.NoError(t, err)

	chunkFlag := signCmd.Flags().Lookup("chunk")
	require.NotNil(t, chunkFlag)
	assert.Equal(t, "4", chunkFlag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	listenFlag := serveCmd.Flags().Lookup("listen")
	require.NotNil(t, listenFlag)
	assert.Equal(t, ":8080", listenFlag.DefValue)

	eventsFlag := serveCmd.Flags().Lookup("events-out")
	require.NotNil(t, eventsFlag)
	assert.Equal(t, "-", eventsFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "validate", "genesis.cue", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEnvironmentSetsFlags(t *testing.T) {
	dir := t.TempDir()
	genesisPath := writeGenesis(t, dir, 7, 10000, 1)
	dbPath := filepath.Join(dir, "env.db")

	t.Setenv("SPOTTER_DB", dbPath)
	out := mustExecute(t, "init", genesisPath)
	assert.Contains(t, out, "Ledger initialized")

	_, err := os.Stat(dbPath)
	require.NoError(t, err, "ledger should be created at $SPOTTER_DB")
}

func TestConfigFileSetsFlags(t *testing.T) {
	dir := t.TempDir()
	genesisPath := writeGenesis(t, dir, 7, 10000, 1)
	dbPath := filepath.Join(dir, "config.db")
	configPath := filepath.Join(dir, "spotter.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("db: "+dbPath+"\nformat: json\n"), 0644))

	out := mustExecute(t, "init", genesisPath, "--config", configPath)
	assert.Contains(t, out, `"status":"ok"`)
	_, err := os.Stat(dbPath)
	require.NoError(t, err)

	// Explicit flags win over the config file.
	out = mustExecute(t, "show", "config", "--config", configPath, "--format", "text")
	assert.Contains(t, out, "home chain:  7")
}

func TestConfigFileMissing(t *testing.T) {
	_, err := execute(t, "show", "config", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
