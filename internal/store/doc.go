// Package store provides SQLite-backed durable ledger state for spotter.
//
// The store holds:
//   - Config: the single global configuration written by initialize
//   - Protocols and protocol members: keeper, executor, proposer and target sets
//   - Operations: loaded operations keyed by hash, stored as canonical bytes
//   - Attestations: the attested signer set of each operation
//   - Proposals: the outbound proposal outbox, keyed by nonce
//
// # Critical Patterns
//
// One Call, One Transaction
//   - Every engine call runs in exactly one Update transaction
//   - Transactions begin IMMEDIATE; the single connection serialises writers
//   - Any error rolls the whole transaction back
//
// Create-If-Absent
//   - Loads use INSERT ... ON CONFLICT(hash) DO NOTHING and RowsAffected
//   - Member and attestation inserts have set semantics the same way
//
// Compare-And-Swap Execution
//   - MarkExecuted is UPDATE ... WHERE executed = 0; only one caller can win
//
// Logical Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - uint64 chain ids and fees are stored bit-cast to INTEGER
//
// Not-found reads return sql.ErrNoRows; the engine maps them to error kinds.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
