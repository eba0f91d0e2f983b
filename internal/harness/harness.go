package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/governance"
	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
	"github.com/roach88/spotter/internal/testutil"
)

// defaultAdmin initialises scenarios that name no admin.
const defaultAdmin = ir.Account("0xad")

// RecordingTarget is a destination contract that records every call.
type RecordingTarget struct {
	Fail bool

	mu    sync.Mutex
	calls []engine.Call
}

// Invoke records call, or fails if the target is configured to.
func (r *RecordingTarget) Invoke(_ context.Context, call engine.Call) error {
	if r.Fail {
		return fmt.Errorf("target %s rejected call", call.Target)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

// Calls returns the recorded calls in order.
func (r *RecordingTarget) Calls() []engine.Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Call(nil), r.calls...)
}

// Harness executes one scenario against a fresh engine.
// Proposal event ids come from a sequential generator and keepers from
// deterministic test keys, so traces are reproducible.
type Harness struct {
	scenario *Scenario
	engine   *engine.Engine
	logger   *slog.Logger

	caller     ir.Account
	govKeepers []testutil.Keeper
	ops        map[string]ir.Operation
	hashes     map[string]common.Hash
	targets    map[ir.Account]*RecordingTarget
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database in a temporary directory.
//
// Execution flow:
// 1. Build every named operation and compute its hash
// 2. Initialize the ledger from the scenario genesis
// 3. Execute steps, checking each against its expectation
// 4. Drain proposal events
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "spotter-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	result := NewResult()
	h := &Harness{
		scenario: scenario,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		ops:      make(map[string]ir.Operation),
		hashes:   make(map[string]common.Hash),
		targets:  make(map[ir.Account]*RecordingTarget),
	}

	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithIDGenerator(testutil.NewSequentialIDGenerator("event")),
		engine.WithEventSink(engine.EventSinkFunc(func(_ context.Context, ev ir.ProposeEvent) error {
			result.Events = append(result.Events, ev)
			return nil
		})),
	}
	for _, td := range scenario.Targets {
		addr, err := ir.ParseAccount(td.Address)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", td.Address, err)
		}
		rt := &RecordingTarget{Fail: td.Fail}
		h.targets[addr] = rt
		opts = append(opts, engine.WithTarget(addr, rt))
	}

	eng, err := engine.New(ctx, st, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	h.engine = eng

	if err := h.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	if err := h.buildOperations(); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	eng.Stop()
	if err := eng.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain events: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Engine:  eng,
		Hashes:  h.hashes,
		Targets: h.targets,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) initialize(ctx context.Context) error {
	g := h.scenario.Genesis

	admin := defaultAdmin
	if g.Admin != "" {
		a, err := ir.ParseAccount(g.Admin)
		if err != nil {
			return fmt.Errorf("genesis.admin: %w", err)
		}
		admin = a
	}

	executors := make([]ir.Account, len(g.Executors))
	for i, x := range g.Executors {
		a, err := ir.ParseAccount(x)
		if err != nil {
			return fmt.Errorf("genesis.executors[%d]: %w", i, err)
		}
		executors[i] = a
	}
	h.caller = executors[0]
	h.govKeepers = keepers(g.Keepers)

	_, err := h.engine.Initialize(ctx, admin, engine.InitParams{
		HomeChainID:         g.HomeChainID,
		ConsensusTargetRate: g.ConsensusTargetRate,
		Keepers:             testutil.Addresses(h.govKeepers),
		Executors:           executors,
	})
	return err
}

// buildOperations resolves every named operation and computes its hash.
func (h *Harness) buildOperations() error {
	for name, def := range h.scenario.Operations {
		op, err := h.buildOperation(def)
		if err != nil {
			return fmt.Errorf("operation %s: %w", name, err)
		}
		hash, err := ir.OperationHash(op)
		if err != nil {
			return fmt.Errorf("operation %s: %w", name, err)
		}
		h.ops[name] = op
		h.hashes[name] = hash
	}
	return nil
}

func (h *Harness) buildOperation(def OperationDef) (ir.Operation, error) {
	op := ir.Operation{
		SrcChainID:     def.SrcChainID,
		SrcBlockNumber: def.SrcBlock,
		Nonce:          def.Nonce,
		DestChainID:    h.scenario.Genesis.HomeChainID,
		ProtocolAddr:   []byte{0x01},
	}
	if def.DestChainID != nil {
		op.DestChainID = *def.DestChainID
	}
	if def.SrcTx != "" {
		op.SrcOpTxID = common.HexToHash(def.SrcTx)
	}
	if def.Target != "" {
		addr, err := hexutil.Decode(def.Target)
		if err != nil {
			return op, fmt.Errorf("target: %w", err)
		}
		op.ProtocolAddr = addr
	}

	if def.Governance != nil {
		op.ProtocolID = ir.GovernanceProtocolID
		if def.Protocol != "" {
			id, err := ir.ParseProtocolID(def.Protocol)
			if err != nil {
				return op, err
			}
			op.ProtocolID = id
		}
		m, err := governance.Spec{
			Opcode:   def.Governance.Opcode,
			Protocol: def.Governance.Protocol,
			Rate:     def.Governance.Rate,
			Fee:      def.Governance.Fee,
			Keepers:  testutil.Addresses(keepers(def.Governance.Keepers)),
			Member:   def.Governance.Member,
		}.Mutation()
		if err != nil {
			return op, err
		}
		sel, params, err := governance.Call(m)
		if err != nil {
			return op, err
		}
		op.Selector = sel
		op.Params = params
		return op, nil
	}

	id, err := ir.ParseProtocolID(def.Protocol)
	if err != nil {
		return op, err
	}
	op.ProtocolID = id
	sel, err := ir.ParseSelector(def.Selector.Kind, def.Selector.Value, def.Selector.DispatchByID)
	if err != nil {
		return op, fmt.Errorf("selector: %w", err)
	}
	op.Selector = sel
	if def.Params != "" {
		params, err := hexutil.Decode(def.Params)
		if err != nil {
			return op, fmt.Errorf("params: %w", err)
		}
		op.Params = params
	}
	return op, nil
}

// executeStep runs one step and records its trace events. Only harness
// failures are returned; engine rejections are compared against the
// step's expectation.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	caller := h.caller
	if step.Caller != "" {
		a, err := ir.ParseAccount(step.Caller)
		if err != nil {
			return fmt.Errorf("caller: %w", err)
		}
		caller = a
	}

	var (
		ev  TraceEvent
		err error
	)
	switch step.Action {
	case ActionLoad:
		ev, err = h.load(ctx, caller, step)
	case ActionSign:
		ev, err = h.sign(ctx, caller, step, step.Keepers)
	case ActionExecute:
		ev, err = h.execute(ctx, caller, step)
	case ActionExecuteGov:
		ev, err = h.executeGov(ctx, caller, step)
	case ActionPropose:
		ev, err = h.propose(ctx, caller, step)
	case ActionGovern:
		return h.govern(ctx, caller, i, step, result)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	h.record(i, step, ev, err, result)
	h.checkExpect(i, step, result)
	return nil
}

// govern loads, fully signs and executes a governance operation. It is
// setup shorthand: any failure fails the scenario.
func (h *Harness) govern(ctx context.Context, caller ir.Account, i int, step Step, result *Result) error {
	all := make([]int, len(h.scenario.Genesis.Keepers))
	copy(all, h.scenario.Genesis.Keepers)

	calls := []func() (TraceEvent, error){
		func() (TraceEvent, error) { return h.load(ctx, caller, step) },
		func() (TraceEvent, error) { return h.sign(ctx, caller, step, all) },
		func() (TraceEvent, error) { return h.execute(ctx, caller, step) },
	}
	for _, call := range calls {
		ev, err := call()
		h.record(i, step, ev, err, result)
		if err != nil {
			h.checkExpect(i, step, result)
			return nil
		}
	}
	h.checkExpect(i, step, result)
	return nil
}

func (h *Harness) load(ctx context.Context, caller ir.Account, step Step) (TraceEvent, error) {
	ev := TraceEvent{Action: ActionLoad, Op: step.Op, Hash: h.hashes[step.Op].Hex()}
	_, err := h.engine.LoadOperation(ctx, caller, h.ops[step.Op], h.hashes[step.Op])
	return ev, err
}

func (h *Harness) sign(ctx context.Context, caller ir.Account, step Step, indices []int) (TraceEvent, error) {
	hash := h.hashes[step.Op]
	ev := TraceEvent{Action: ActionSign, Op: step.Op, Hash: hash.Hex()}
	sigs := testutil.SignAll(hash, keepers(indices))

	chunk := step.Chunk
	if chunk <= 0 {
		chunk = len(sigs)
	}

	var (
		res   engine.SignResult
		added int
	)
	for start := 0; start < len(sigs); start += chunk {
		end := min(start+chunk, len(sigs))
		r, err := h.engine.SignOperation(ctx, caller, hash, sigs[start:end])
		if err != nil {
			return ev, err
		}
		res = r
		added += len(r.Added)
	}

	ev.Detail = map[string]interface{}{
		"added":             added,
		"valid":             res.Valid,
		"threshold":         res.Threshold,
		"consensus_reached": res.ConsensusReached,
	}
	return ev, nil
}

func (h *Harness) execute(ctx context.Context, caller ir.Account, step Step) (TraceEvent, error) {
	ev := TraceEvent{Action: ActionExecute, Op: step.Op, Hash: h.hashes[step.Op].Hex()}
	res, err := h.engine.ExecuteOperation(ctx, caller, h.hashes[step.Op])
	if err != nil {
		return ev, err
	}
	ev.Detail = executeDetail(res)
	return ev, nil
}

func (h *Harness) executeGov(ctx context.Context, caller ir.Account, step Step) (TraceEvent, error) {
	ev := TraceEvent{Action: ActionExecuteGov, Op: step.Op, Hash: h.hashes[step.Op].Hex()}
	target, err := ir.ParseProtocolID(step.TargetProtocol)
	if err != nil {
		return ev, fmt.Errorf("target_protocol: %w", err)
	}
	res, err := h.engine.ExecuteGovOperation(ctx, caller, h.hashes[step.Op], target)
	if err != nil {
		return ev, err
	}
	ev.Detail = executeDetail(res)
	return ev, nil
}

func executeDetail(res engine.ExecuteResult) map[string]interface{} {
	d := map[string]interface{}{"protocol": res.Protocol.String()}
	if res.Mutation != "" {
		d["mutation"] = res.Mutation
	}
	if res.TargetProtocol != nil {
		d["target_protocol"] = res.TargetProtocol.String()
	}
	return d
}

func (h *Harness) propose(ctx context.Context, caller ir.Account, step Step) (TraceEvent, error) {
	ev := TraceEvent{Action: ActionPropose}
	p := step.Propose

	id, err := ir.ParseProtocolID(p.Protocol)
	if err != nil {
		return ev, fmt.Errorf("propose.protocol: %w", err)
	}
	target, err := hexutil.Decode(p.Target)
	if err != nil {
		return ev, fmt.Errorf("propose.target: %w", err)
	}
	sel, err := ir.ParseSelector(p.Selector.Kind, p.Selector.Value, p.Selector.DispatchByID)
	if err != nil {
		return ev, err
	}
	var params []byte
	if p.Params != "" {
		if params, err = hexutil.Decode(p.Params); err != nil {
			return ev, fmt.Errorf("propose.params: %w", err)
		}
	}

	out, err := h.engine.ProposeToOtherChain(ctx, caller, engine.ProposeRequest{
		ProtocolID:    id,
		DstChainID:    p.DstChainID,
		TargetAddress: target,
		Selector:      sel,
		Params:        params,
	})
	if err != nil {
		return ev, err
	}
	ev.Detail = map[string]interface{}{
		"event_id": out.ID,
		"nonce":    out.Nonce,
	}
	return ev, nil
}

// record appends ev to the trace with its outcome and the clock position.
func (h *Harness) record(i int, step Step, ev TraceEvent, err error, result *Result) {
	ev.Seq = h.engine.Clock().Current()
	ev.Step = i
	ev.Outcome = OutcomeOK
	if err != nil {
		ev.Outcome = engine.Kind(err)
		ev.Detail = nil
	}
	result.AddTrace(ev)

	h.logger.Info("scenario step",
		"step", i,
		"action", ev.Action,
		"op", step.Op,
		"outcome", ev.Outcome,
	)
}

// checkExpect compares the recorded event against the step's expectation.
func (h *Harness) checkExpect(i int, step Step, result *Result) {
	recorded := result.Trace[len(result.Trace)-1]

	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if recorded.Outcome != want {
		result.AddError(fmt.Sprintf("steps[%d] %s %s: expected %s, got %s", i, step.Action, step.Op, want, recorded.Outcome))
		return
	}
	if step.Expect == nil || recorded.Outcome != OutcomeOK {
		return
	}

	check := func(field string, want, got interface{}) {
		if fmt.Sprint(want) != fmt.Sprint(got) {
			result.AddError(fmt.Sprintf("steps[%d] %s %s: expected %s %v, got %v", i, step.Action, step.Op, field, want, got))
		}
	}
	d := recorded.Detail
	if e := step.Expect.ConsensusReached; e != nil {
		check("consensus_reached", *e, d["consensus_reached"])
	}
	if e := step.Expect.Valid; e != nil {
		check("valid", *e, d["valid"])
	}
	if e := step.Expect.Threshold; e != nil {
		check("threshold", *e, d["threshold"])
	}
	if e := step.Expect.Nonce; e != nil {
		check("nonce", *e, d["nonce"])
	}
}

func keepers(indices []int) []testutil.Keeper {
	out := make([]testutil.Keeper, len(indices))
	for i, idx := range indices {
		out[i] = testutil.KeepersFrom(idx, 1)[0]
	}
	return out
}
