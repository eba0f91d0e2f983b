package engine

import (
	"errors"

	errorsmod "cosmossdk.io/errors"

	"github.com/roach88/spotter/internal/ir"
)

// KindInternal is reported for failures that carry no registered error
// kind: storage faults, cancelled contexts, target handler errors.
const KindInternal = "Internal"

// kinds maps registered errors to their stable kind names.
// Order matters only for readability; registered errors never wrap each other.
var kinds = []struct {
	err  *errorsmod.Error
	name string
}{
	{ir.ErrAlreadyLoaded, "AlreadyLoaded"},
	{ir.ErrOperationNotFound, "OperationNotFound"},
	{ir.ErrHashMismatch, "HashMismatch"},
	{ir.ErrInvalidSignature, "InvalidSignature"},
	{ir.ErrUnauthorizedKeeper, "UnauthorizedKeeper"},
	{ir.ErrUnauthorizedExecutor, "UnauthorizedExecutor"},
	{ir.ErrUnauthorizedProposer, "UnauthorizedProposer"},
	{ir.ErrConsensusNotReached, "ConsensusNotReached"},
	{ir.ErrAlreadyExecuted, "AlreadyExecuted"},
	{ir.ErrProtocolNotRegistered, "ProtocolNotRegistered"},
	{ir.ErrTargetAddressNotAllowed, "TargetAddressNotAllowed"},
	{ir.ErrUnknownGovernanceOpcode, "UnknownGovernanceOpcode"},
	{ir.ErrAlreadyInitialized, "AlreadyInitialized"},
	{ir.ErrNotInitialized, "NotInitialized"},
	{ir.ErrInvalidSelector, "InvalidSelector"},
	{ir.ErrInvalidGovernancePayload, "InvalidGovernancePayload"},
	{ir.ErrTargetProtocolMismatch, "TargetProtocolMismatch"},
	{ir.ErrProtocolReserved, "ProtocolReserved"},
	{ir.ErrGovernanceLockout, "GovernanceLockout"},
	{ir.ErrDestinationChainMismatch, "DestinationChainMismatch"},
	{ir.ErrNotGovernanceOperation, "NotGovernanceOperation"},
	{ir.ErrTargetNotFound, "TargetNotFound"},
	{ir.ErrInvalidOperation, "InvalidOperation"},
}

// Kind returns the stable kind name of err, "" for nil and KindInternal
// for errors without a registered kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return KindInternal
}

// Kinds returns every registered kind name in code order.
func Kinds() []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.name
	}
	return out
}

// ErrorForKind returns the registered error for a kind name.
func ErrorForKind(name string) (*errorsmod.Error, bool) {
	for _, k := range kinds {
		if k.name == name {
			return k.err, true
		}
	}
	return nil, false
}
