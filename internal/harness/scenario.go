package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/spotter/internal/governance"
	"github.com/roach88/spotter/internal/ir"
)

// Scenario defines a conformance test scenario: a ledger genesis, the
// operations under test, a sequence of engine calls and the assertions
// the final trace and ledger state must satisfy.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Genesis initialises the ledger before the first step.
	Genesis Genesis `yaml:"genesis"`

	// Targets are destination contracts with recording handlers.
	Targets []TargetDef `yaml:"targets,omitempty"`

	// Operations are named operation definitions referenced by steps.
	Operations map[string]OperationDef `yaml:"operations,omitempty"`

	// Steps are engine calls, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, target_calls, event_count
	Assertions []Assertion `yaml:"assertions"`
}

// Genesis is the scenario's Initialize call. Keepers are deterministic test
// keeper indices (testutil.KeeperKey).
type Genesis struct {
	HomeChainID         uint64   `yaml:"home_chain_id"`
	ConsensusTargetRate uint64   `yaml:"consensus_target_rate"`
	Admin               string   `yaml:"admin,omitempty"`
	Keepers             []int    `yaml:"keepers"`
	Executors           []string `yaml:"executors"`
}

// TargetDef registers a recording target. Fail makes every call to it
// fail, rolling back the execution.
type TargetDef struct {
	Address string `yaml:"address"`
	Fail    bool   `yaml:"fail,omitempty"`
}

// OperationDef describes an inbound operation. When Governance is set the
// selector and params are derived from it and Protocol defaults to the
// governance protocol.
type OperationDef struct {
	Protocol    string         `yaml:"protocol,omitempty"`
	SrcChainID  uint64         `yaml:"src_chain_id"`
	SrcBlock    uint64         `yaml:"src_block,omitempty"`
	SrcTx       string         `yaml:"src_tx,omitempty"`
	Nonce       uint64         `yaml:"nonce"`
	DestChainID *uint64        `yaml:"dest_chain_id,omitempty"`
	Target      string         `yaml:"target,omitempty"`
	Selector    *SelectorDef   `yaml:"selector,omitempty"`
	Params      string         `yaml:"params,omitempty"`
	Governance  *GovernanceDef `yaml:"governance,omitempty"`
}

// SelectorDef is the YAML form of ir.Selector.
type SelectorDef struct {
	Kind         string `yaml:"kind"`
	Value        string `yaml:"value"`
	DispatchByID bool   `yaml:"dispatch_by_id,omitempty"`
}

// GovernanceDef is the YAML form of governance.Spec with keeper indices.
type GovernanceDef struct {
	Opcode   string `yaml:"opcode"`
	Protocol string `yaml:"protocol"`
	Rate     uint64 `yaml:"rate,omitempty"`
	Fee      uint64 `yaml:"fee,omitempty"`
	Keepers  []int  `yaml:"keepers,omitempty"`
	Member   string `yaml:"member,omitempty"`
}

// Step actions.
const (
	ActionLoad       = "load"
	ActionSign       = "sign"
	ActionExecute    = "execute"
	ActionExecuteGov = "execute-gov"
	ActionPropose    = "propose"
	// ActionGovern loads an operation, signs it with every genesis keeper
	// and executes it.
	ActionGovern = "govern"
)

var stepActions = map[string]bool{
	ActionLoad:       true,
	ActionSign:       true,
	ActionExecute:    true,
	ActionExecuteGov: true,
	ActionPropose:    true,
	ActionGovern:     true,
}

// Step is one engine call.
type Step struct {
	Action string `yaml:"action"`

	// Caller defaults to the first genesis executor.
	Caller string `yaml:"caller,omitempty"`

	// Op names an entry of Scenario.Operations.
	Op string `yaml:"op,omitempty"`

	// Keepers sign (sign), by test keeper index.
	Keepers []int `yaml:"keepers,omitempty"`

	// Chunk splits a sign step into calls of at most Chunk signatures.
	Chunk int `yaml:"chunk,omitempty"`

	// TargetProtocol is the protocol an execute-gov call claims to target.
	TargetProtocol string `yaml:"target_protocol,omitempty"`

	Propose *ProposeDef `yaml:"propose,omitempty"`

	// Expect defaults to success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// ProposeDef is an outbound proposal.
type ProposeDef struct {
	Protocol   string      `yaml:"protocol"`
	DstChainID uint64      `yaml:"dst_chain_id"`
	Target     string      `yaml:"target"`
	Selector   SelectorDef `yaml:"selector"`
	Params     string      `yaml:"params,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Error is the expected error kind, e.g. "ConsensusNotReached".
	Error string `yaml:"error,omitempty"`

	ConsensusReached *bool   `yaml:"consensus_reached,omitempty"`
	Valid            *int    `yaml:"valid,omitempty"`
	Threshold        *int    `yaml:"threshold,omitempty"`
	Nonce            *uint64 `yaml:"nonce,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step with Action (and Op, Outcome) appears
	// - "trace_order": Actions appear in order
	// - "trace_count": Action appears exactly Count times
	// - "final_state": the operation Op or protocol Protocol matches Expect
	// - "target_calls": Target received exactly Count calls
	// - "event_count": exactly Count proposal events were delivered
	Type string `yaml:"type"`

	Action  string   `yaml:"action,omitempty"`
	Op      string   `yaml:"op,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
	Count   int      `yaml:"count,omitempty"`

	Protocol string                 `yaml:"protocol,omitempty"`
	Target   string                 `yaml:"target,omitempty"`
	Expect   map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertTargetCalls   = "target_calls"
	AssertEventCount    = "event_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// reference resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Genesis.Keepers) == 0 {
		return fmt.Errorf("genesis.keepers is required and must be non-empty")
	}
	if len(s.Genesis.Executors) == 0 {
		return fmt.Errorf("genesis.executors is required and must be non-empty")
	}
	if err := validateKeeperIndices("genesis.keepers", s.Genesis.Keepers); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, t := range s.Targets {
		if _, err := ir.ParseAccount(t.Address); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}

	for name, op := range s.Operations {
		if err := validateOperation(name, op); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s, i, step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(s, i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateKeeperIndices(field string, keepers []int) error {
	for i, k := range keepers {
		if k < 0 {
			return fmt.Errorf("%s[%d]: keeper index must be non-negative", field, i)
		}
	}
	return nil
}

func validateOperation(name string, op OperationDef) error {
	if op.Governance != nil {
		if op.Selector != nil || op.Params != "" {
			return fmt.Errorf("operations.%s: governance operations derive selector and params", name)
		}
		if _, err := governance.ParseOpcode(op.Governance.Opcode); err != nil {
			return fmt.Errorf("operations.%s: %w", name, err)
		}
		return validateKeeperIndices("operations."+name+".governance.keepers", op.Governance.Keepers)
	}
	if op.Protocol == "" {
		return fmt.Errorf("operations.%s: protocol is required", name)
	}
	if op.Target == "" {
		return fmt.Errorf("operations.%s: target is required", name)
	}
	if op.Selector == nil {
		return fmt.Errorf("operations.%s: selector is required", name)
	}
	return nil
}

func validateStep(s *Scenario, i int, step Step) error {
	if !stepActions[step.Action] {
		return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
	}
	if step.Action == ActionPropose {
		if step.Propose == nil {
			return fmt.Errorf("steps[%d]: propose is required for propose", i)
		}
		return nil
	}
	if step.Op == "" {
		return fmt.Errorf("steps[%d]: op is required for %s", i, step.Action)
	}
	if _, ok := s.Operations[step.Op]; !ok {
		return fmt.Errorf("steps[%d]: unknown operation %q", i, step.Op)
	}
	switch step.Action {
	case ActionSign:
		if len(step.Keepers) == 0 {
			return fmt.Errorf("steps[%d]: keepers is required for sign", i)
		}
		if step.Chunk < 0 {
			return fmt.Errorf("steps[%d]: chunk must be non-negative", i)
		}
		return validateKeeperIndices(fmt.Sprintf("steps[%d].keepers", i), step.Keepers)
	case ActionExecuteGov:
		if step.TargetProtocol == "" {
			return fmt.Errorf("steps[%d]: target_protocol is required for execute-gov", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(s *Scenario, index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if (a.Op == "") == (a.Protocol == "") {
			return fmt.Errorf("assertions[%d]: exactly one of op or protocol is required for final_state", index)
		}
		if a.Op != "" {
			if _, ok := s.Operations[a.Op]; !ok {
				return fmt.Errorf("assertions[%d]: unknown operation %q", index, a.Op)
			}
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTargetCalls:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for target_calls", index)
		}
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
