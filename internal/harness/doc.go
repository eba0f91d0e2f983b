// Package harness runs YAML conformance scenarios against a real engine.
//
// Each scenario gets a fresh SQLite ledger, deterministic keeper keys
// (testutil.KeeperKey) and sequential proposal event ids, so the trace of
// engine calls it produces is reproducible and can be compared against a
// golden file.
//
// # Scenario Format
//
//	name: governance_needs_every_keeper
//	description: "A governance operation signed by two of three keepers stays pending"
//	genesis:
//	  home_chain_id: 111111111
//	  consensus_target_rate: 10000
//	  keepers: [0, 1, 2]
//	  executors: ["0xe1"]
//	operations:
//	  lower-rate:
//	    src_chain_id: 33133
//	    nonce: 1
//	    governance:
//	      opcode: set-consensus-rate
//	      protocol: aggregation-gov
//	      rate: 6000
//	steps:
//	  - action: load
//	    op: lower-rate
//	  - action: sign
//	    op: lower-rate
//	    keepers: [0, 1]
//	    expect: {consensus_reached: false, threshold: 3}
//	  - action: execute
//	    op: lower-rate
//	    expect: {error: ConsensusNotReached}
//	assertions:
//	  - type: final_state
//	    op: lower-rate
//	    expect: {executed: false, signers: 2}
//
// Steps are load, sign, execute, execute-gov, propose and govern (load,
// sign with every genesis keeper, execute). A step without expect must
// succeed; expect.error names the error kind it must fail with.
//
// # Assertion Types
//
//   - trace_contains: a call with action (and op, outcome) appears
//   - trace_order: actions appear in the given order
//   - trace_count: matching calls appear exactly count times
//   - final_state: an operation or protocol matches expect
//   - target_calls: a target received exactly count calls
//   - event_count: exactly count proposal events were delivered
package harness
