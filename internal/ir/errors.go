package ir

import errorsmod "cosmossdk.io/errors"

// Codespace groups every spotter error code.
const Codespace = "spotter"

// Error kinds returned by the engine. Codes are stable; never renumber.
var (
	ErrAlreadyLoaded            = errorsmod.Register(Codespace, 2, "operation already loaded")
	ErrOperationNotFound        = errorsmod.Register(Codespace, 3, "operation not found")
	ErrHashMismatch             = errorsmod.Register(Codespace, 4, "operation hash mismatch")
	ErrInvalidSignature         = errorsmod.Register(Codespace, 5, "invalid signature")
	ErrUnauthorizedKeeper       = errorsmod.Register(Codespace, 6, "signer is not a protocol keeper")
	ErrUnauthorizedExecutor     = errorsmod.Register(Codespace, 7, "caller is not a protocol executor")
	ErrUnauthorizedProposer     = errorsmod.Register(Codespace, 8, "caller is not a protocol proposer")
	ErrConsensusNotReached      = errorsmod.Register(Codespace, 9, "consensus not reached")
	ErrAlreadyExecuted          = errorsmod.Register(Codespace, 10, "operation already executed")
	ErrProtocolNotRegistered    = errorsmod.Register(Codespace, 11, "protocol not registered")
	ErrTargetAddressNotAllowed  = errorsmod.Register(Codespace, 12, "target address not allowed")
	ErrUnknownGovernanceOpcode  = errorsmod.Register(Codespace, 13, "unknown governance opcode")
	ErrAlreadyInitialized       = errorsmod.Register(Codespace, 14, "already initialized")
	ErrNotInitialized           = errorsmod.Register(Codespace, 15, "not initialized")
	ErrInvalidSelector          = errorsmod.Register(Codespace, 16, "invalid function selector")
	ErrInvalidGovernancePayload = errorsmod.Register(Codespace, 17, "invalid governance payload")
	ErrTargetProtocolMismatch   = errorsmod.Register(Codespace, 18, "governance payload targets a different protocol")
	ErrProtocolReserved         = errorsmod.Register(Codespace, 19, "protocol id is reserved")
	ErrGovernanceLockout        = errorsmod.Register(Codespace, 20, "governance protocol would be left without keepers")
	ErrDestinationChainMismatch = errorsmod.Register(Codespace, 21, "destination chain is not the home chain")
	ErrNotGovernanceOperation   = errorsmod.Register(Codespace, 22, "operation does not belong to the governance protocol")
	ErrTargetNotFound           = errorsmod.Register(Codespace, 23, "no handler registered for target")
	ErrInvalidOperation         = errorsmod.Register(Codespace, 24, "invalid operation")
)
