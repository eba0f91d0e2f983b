package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/spotter/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Struct fields marshal in declaration order and map keys sorted, so the
// encoding is deterministic.
type TraceSnapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Trace        []TraceEvent      `json:"trace"`
	Events       []ir.ProposeEvent `json:"events"`
}

// Snapshot encodes the result's trace and events for golden comparison.
func Snapshot(name string, result *Result) ([]byte, error) {
	out, err := json.MarshalIndent(TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Events:       result.Events,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
