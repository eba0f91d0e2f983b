// Package testutil provides deterministic fixtures for spotter tests:
// keeper keys derived from fixed seeds, sequential event ids and
// temp-dir ledgers.
package testutil
