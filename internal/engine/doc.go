// Package engine implements the spotter operation lifecycle.
//
// The engine is the single entry point that mutates ledger state. Each call
// (Initialize, LoadOperation, SignOperation, ExecuteOperation,
// ExecuteGovOperation, ProposeToOtherChain) runs inside exactly one store
// transaction. Any error rolls the transaction back, so a failed call leaves
// no partial mutation behind.
//
// ARCHITECTURE:
//
// Synchronous calls:
// Lifecycle calls are synchronous and safe from any goroutine. The store
// holds a single connection and opens every write with BEGIN IMMEDIATE, so
// concurrent calls serialise at the database. Load is an atomic
// create-if-absent insert and execute flips the executed flag with a
// compare-and-swap update in the same transaction as the dispatch.
//
// Event delivery:
// ProposeToOtherChain appends to the proposals outbox and, after commit,
// enqueues the event. Run drains the queue into the registered EventSinks
// from exactly one goroutine.
//
// Logical clock:
// Every mutation is stamped with a seq from Clock.Next(). The clock resumes
// from the store's highest recorded seq at startup. Wall-clock time is
// never used for ordering.
package engine
