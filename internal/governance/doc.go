// Package governance decodes and applies governance operations.
//
// A governance operation is an ordinary operation of the reserved governance
// protocol whose selector is a Numeric opcode and whose params are an
// Ethereum-ABI payload. Decode turns such an operation into one of a closed
// set of Mutation variants; Dispatcher.Apply runs the mutation against the
// protocol registry inside the caller's transaction.
//
// Invariants enforced here:
//   - the governance protocol cannot be re-registered (ir.ErrProtocolReserved)
//   - the governance protocol keeps at least one keeper and one executor
//     (ir.ErrGovernanceLockout)
//   - consensus target rates never exceed 10000 basis points
package governance
