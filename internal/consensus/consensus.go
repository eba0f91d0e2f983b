// Package consensus implements the keeper threshold and the signature tally.
//
// A tally is all-or-nothing: a single unrecoverable signature, or a single
// signer outside the keeper set, rejects the whole batch and nothing is
// recorded. Accepted signers merge into the attested set with set semantics,
// so resubmitting a signature never changes the count.
package consensus

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/signature"
)

// Threshold returns the number of distinct keeper signatures required for
// consensus: ceiling(rate/10000 * keepers), and never less than one.
// rate is in basis points and clamped to 10000.
func Threshold(rate uint64, keepers int) int {
	if keepers <= 0 {
		return 1
	}
	if rate > ir.MaxConsensusTargetRate {
		rate = ir.MaxConsensusTargetRate
	}
	n := (rate*uint64(keepers) + ir.MaxConsensusTargetRate - 1) / ir.MaxConsensusTargetRate
	if n < 1 {
		return 1
	}
	return int(n)
}

// Result describes the outcome of a tally.
type Result struct {
	// Added lists signers newly merged into the attested set, in submission order.
	Added []common.Address
	// Attested is the full attested set after the merge, ascending.
	Attested []common.Address
	// Valid counts attested signers that are current keepers.
	Valid            int
	Threshold        int
	ConsensusReached bool
}

// Tally verifies signatures over hash and merges the recovered signers into
// attested. keepers is the protocol keeper set at verification time.
//
// Errors: ir.ErrInvalidSignature if any signature fails recovery,
// ir.ErrUnauthorizedKeeper if any recovered signer is not a keeper.
func Tally(hash common.Hash, keepers []common.Address, rate uint64, attested []common.Address, signatures [][]byte) (Result, error) {
	keeperSet := make(map[common.Address]struct{}, len(keepers))
	for _, k := range keepers {
		keeperSet[k] = struct{}{}
	}

	recovered := make([]common.Address, 0, len(signatures))
	for i, sig := range signatures {
		addr, err := signature.Recover(hash, sig)
		if err != nil {
			return Result{}, errorsmod.Wrapf(err, "signature %d", i)
		}
		if _, ok := keeperSet[addr]; !ok {
			return Result{}, errorsmod.Wrapf(ir.ErrUnauthorizedKeeper, "signature %d: %s is not a keeper", i, addr.Hex())
		}
		recovered = append(recovered, addr)
	}

	merged := make(map[common.Address]struct{}, len(attested)+len(recovered))
	for _, a := range attested {
		merged[a] = struct{}{}
	}
	var added []common.Address
	for _, a := range recovered {
		if _, ok := merged[a]; ok {
			continue
		}
		merged[a] = struct{}{}
		added = append(added, a)
	}

	all := make([]common.Address, 0, len(merged))
	for a := range merged {
		all = append(all, a)
	}
	ir.SortAddresses(all)

	res := Evaluate(keepers, rate, all)
	res.Added = added
	return res, nil
}

// Evaluate reports whether the attested set satisfies the threshold for the
// current keeper set. Attested signers that have since left the keeper set
// do not count.
func Evaluate(keepers []common.Address, rate uint64, attested []common.Address) Result {
	keeperSet := make(map[common.Address]struct{}, len(keepers))
	for _, k := range keepers {
		keeperSet[k] = struct{}{}
	}
	valid := 0
	for _, a := range attested {
		if _, ok := keeperSet[a]; ok {
			valid++
		}
	}
	threshold := Threshold(rate, len(keeperSet))
	return Result{
		Attested:         attested,
		Valid:            valid,
		Threshold:        threshold,
		ConsensusReached: len(keeperSet) > 0 && valid >= threshold,
	}
}
