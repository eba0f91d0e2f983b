package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", i+1, event.Action, event.Op, event.Outcome)
		}
	}
	return buf.String()
}

// matches reports whether event satisfies the assertion's action, op and
// outcome filters. Empty filters match anything.
func matches(event TraceEvent, a Assertion) bool {
	if event.Action != a.Action {
		return false
	}
	if a.Op != "" && event.Op != a.Op {
		return false
	}
	if a.Outcome != "" && event.Outcome != a.Outcome {
		return false
	}
	return true
}

// assertTraceContains checks if the trace contains a call matching the
// assertion's action, op and outcome.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s with outcome %q", assertion.Action, assertion.Op, assertion.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of actions appear in
// the specified order. Intervening calls are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, expected := range assertion.Actions {
			if event.Action == expected && positions[expected] == 0 {
				positions[expected] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that matching calls appear exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", assertion.Count, assertion.Action, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState reads the operation or protocol the assertion names
// and checks the expected fields (subset semantics).
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	var (
		subject string
		state   map[string]interface{}
		err     error
	)
	if assertion.Op != "" {
		subject = "operation " + assertion.Op
		state, err = operationState(actx.Ctx, actx.Engine, actx.Hashes[assertion.Op])
	} else {
		subject = "protocol " + assertion.Protocol
		state, err = protocolState(actx.Ctx, actx.Engine, assertion.Protocol)
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: subject,
			Actual:   fmt.Sprintf("read error: %s", engine.Kind(err)),
		}
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []string
	for _, k := range keys {
		actual, ok := state[k]
		if !ok {
			mismatches = append(mismatches, fmt.Sprintf("%s: unknown field", k))
			continue
		}
		if !stateValuesEqual(assertion.Expect[k], actual) {
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %v", k, assertion.Expect[k], actual))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s matches %v", subject, assertion.Expect),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func operationState(ctx context.Context, eng *engine.Engine, hash common.Hash) (map[string]interface{}, error) {
	st, err := eng.Operation(ctx, hash)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"state":             string(st.State),
		"executed":          st.Executed,
		"signers":           len(st.Signers),
		"valid":             st.Valid,
		"threshold":         st.Threshold,
		"consensus_reached": st.ConsensusReached,
	}, nil
}

func protocolState(ctx context.Context, eng *engine.Engine, name string) (map[string]interface{}, error) {
	id, err := ir.ParseProtocolID(name)
	if err != nil {
		return nil, err
	}
	p, err := eng.Protocol(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"consensus_target_rate": p.ConsensusTargetRate,
		"protocol_fee":          p.ProtocolFee,
		"keepers":               len(p.Keepers),
		"executors":             len(p.Executors),
		"proposers":             len(p.Proposers),
		"allowed_targets":       len(p.AllowedTargets),
	}, nil
}

// stateValuesEqual compares a YAML-decoded expected value with a state
// field. Integers compare by value whatever their Go type.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

// assertTargetCalls checks how many executed operations reached a target.
func assertTargetCalls(actx *AssertionContext, assertion Assertion) error {
	addr, err := ir.ParseAccount(assertion.Target)
	if err != nil {
		return fmt.Errorf("target_calls: %w", err)
	}
	rt, ok := actx.Targets[addr]
	if !ok {
		return &AssertionError{
			Type:     AssertTargetCalls,
			Expected: fmt.Sprintf("registered target %s", addr),
			Actual:   "no such target",
		}
	}
	if got := len(rt.Calls()); got != assertion.Count {
		return &AssertionError{
			Type:     AssertTargetCalls,
			Expected: fmt.Sprintf("%d calls to %s", assertion.Count, addr),
			Actual:   fmt.Sprintf("%d calls", got),
		}
	}
	return nil
}

// AssertionContext provides ledger access for state assertions.
type AssertionContext struct {
	Ctx     context.Context
	Engine  *engine.Engine
	Hashes  map[string]common.Hash
	Targets map[ir.Account]*RecordingTarget
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions need actx; trace assertions do not.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertEventCount:
			if got := len(result.Events); got != assertion.Count {
				err = &AssertionError{
					Type:     AssertEventCount,
					Expected: fmt.Sprintf("%d proposal events", assertion.Count),
					Actual:   fmt.Sprintf("%d events", got),
				}
			}
		case AssertFinalState, AssertTargetCalls:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx, assertion)
			} else {
				err = assertTargetCalls(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
