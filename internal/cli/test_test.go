package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenariosDir = "../harness/testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

func TestTestCommandPasses(t *testing.T) {
	out := mustExecute(t, "test", scenariosDir, "--golden", goldenDir)
	assert.Contains(t, out, "✓ governance_threshold")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := execute(t, "test", scenariosDir, "--golden", goldenDir, "--filter", "failing_*", "--format", "json")
	require.NoError(t, err, out)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "failing_target", resp.Data.Scenarios[0].Name)
}

func TestTestCommandUpdateGolden(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	out := mustExecute(t, "test", scenariosDir, "--golden", golden, "--filter", "protocol_*", "--update")
	assert.Contains(t, out, "golden updated")

	written, err := os.ReadFile(filepath.Join(golden, "protocol_lifecycle.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile(filepath.Join(goldenDir, "protocol_lifecycle.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))

	// A stale golden file fails the run.
	require.NoError(t, os.WriteFile(filepath.Join(golden, "protocol_lifecycle.golden"), []byte("{}\n"), 0644))
	out, err = execute(t, "test", scenariosDir, "--golden", golden, "--filter", "protocol_*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandNoMatches(t *testing.T) {
	out := mustExecute(t, "test", scenariosDir, "--filter", "nothing_*")
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
