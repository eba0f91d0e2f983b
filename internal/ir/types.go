package ir

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ProtocolIDLength is the fixed size of a protocol identifier.
const ProtocolIDLength = 32

// protocolIDPad fills short human-readable protocol names up to 32 bytes.
const protocolIDPad = '_'

// MaxConsensusTargetRate is 100% expressed in basis points.
const MaxConsensusTargetRate = 10000

// Encoding limits for variable-length operation fields.
const (
	MaxAddressLength = 64
	MaxParamsLength  = 64 * 1024
)

// ProtocolID identifies a registered protocol.
//
// Protocol ids are usually padded ASCII names such as
// "aggregation-gov_________________"; arbitrary 32-byte values are also valid.
type ProtocolID [ProtocolIDLength]byte

// GovernanceProtocolID is the reserved identifier of the governance protocol.
// It is registered by Initialize and can never be re-registered or removed.
var GovernanceProtocolID = MustProtocolID("aggregation-gov")

// PaddedProtocolID builds a protocol id from a name of at most 32 bytes,
// right-padded with '_'.
func PaddedProtocolID(name string) (ProtocolID, error) {
	var id ProtocolID
	if name == "" {
		return id, fmt.Errorf("protocol name is empty")
	}
	if len(name) > ProtocolIDLength {
		return id, fmt.Errorf("protocol name %q exceeds %d bytes", name, ProtocolIDLength)
	}
	for i := range id {
		id[i] = protocolIDPad
	}
	copy(id[:], name)
	return id, nil
}

// MustProtocolID is like PaddedProtocolID but panics on error.
// Use only in tests or for compile-time constants.
func MustProtocolID(name string) ProtocolID {
	id, err := PaddedProtocolID(name)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseProtocolID accepts either a 0x-prefixed 64-digit hex string or a
// printable name of at most 32 bytes (padded with '_').
func ParseProtocolID(s string) (ProtocolID, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 2+2*ProtocolIDLength {
		var id ProtocolID
		b, err := hex.DecodeString(s[2:])
		if err != nil {
			return id, fmt.Errorf("parse protocol id: %w", err)
		}
		copy(id[:], b)
		return id, nil
	}
	if !isPrintableASCII([]byte(s)) {
		return ProtocolID{}, fmt.Errorf("parse protocol id: %q is neither hex nor printable ASCII", s)
	}
	return PaddedProtocolID(s)
}

// String renders printable ids as text and anything else as hex.
func (p ProtocolID) String() string {
	if isPrintableASCII(p[:]) {
		return string(p[:])
	}
	return p.Hex()
}

// Hex returns the 0x-prefixed hex form.
func (p ProtocolID) Hex() string {
	return "0x" + hex.EncodeToString(p[:])
}

// Bytes returns a copy of the identifier bytes.
func (p ProtocolID) Bytes() []byte {
	return bytes.Clone(p[:])
}

// IsGovernance reports whether p is the reserved governance protocol.
func (p ProtocolID) IsGovernance() bool {
	return p == GovernanceProtocolID
}

// MarshalText implements encoding.TextMarshaler.
func (p ProtocolID) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ProtocolID) UnmarshalText(text []byte) error {
	id, err := ParseProtocolID(string(text))
	if err != nil {
		return err
	}
	*p = id
	return nil
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return len(b) > 0
}

// Account is a variable-length ledger identity (executor, proposer, target
// address) in canonical lowercase 0x-hex form.
type Account string

// AccountFromBytes converts raw identity bytes to an Account.
func AccountFromBytes(b []byte) Account {
	return Account(hexutil.Encode(b))
}

// AccountFromAddress converts an Ethereum address to an Account.
func AccountFromAddress(addr common.Address) Account {
	return AccountFromBytes(addr.Bytes())
}

// ParseAccount parses a 0x-prefixed hex identity.
func ParseAccount(s string) (Account, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return "", fmt.Errorf("parse account %q: %w", s, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("parse account: empty identity")
	}
	if len(b) > MaxAddressLength {
		return "", fmt.Errorf("parse account: %d bytes exceeds %d", len(b), MaxAddressLength)
	}
	return AccountFromBytes(b), nil
}

// Bytes returns the raw identity bytes. Invalid accounts yield nil.
func (a Account) Bytes() []byte {
	b, err := hexutil.Decode(string(a))
	if err != nil {
		return nil
	}
	return b
}

// String implements fmt.Stringer.
func (a Account) String() string {
	return string(a)
}

// Operation is a cross-chain operation originated on a source chain.
// Operations are immutable once hashed; see MarshalCanonical.
type Operation struct {
	ProtocolID     ProtocolID    `json:"protocol_id"`
	SrcChainID     uint64        `json:"src_chain_id"`
	SrcBlockNumber uint64        `json:"src_block_number"`
	SrcOpTxID      common.Hash   `json:"src_op_tx_id"`
	Nonce          uint64        `json:"nonce"`
	DestChainID    uint64        `json:"dest_chain_id"`
	ProtocolAddr   hexutil.Bytes `json:"protocol_addr"`
	Selector       Selector      `json:"function_selector"`
	Params         hexutil.Bytes `json:"params"`
}

// Validate checks the structural constraints of the variable-length fields.
func (op Operation) Validate() error {
	if len(op.ProtocolAddr) == 0 {
		return fmt.Errorf("protocol_addr is empty: %w", ErrInvalidOperation)
	}
	if len(op.ProtocolAddr) > MaxAddressLength {
		return fmt.Errorf("protocol_addr has %d bytes, max %d: %w", len(op.ProtocolAddr), MaxAddressLength, ErrInvalidOperation)
	}
	if len(op.Params) > MaxParamsLength {
		return fmt.Errorf("params has %d bytes, max %d: %w", len(op.Params), MaxParamsLength, ErrInvalidOperation)
	}
	return op.Selector.Validate()
}

// Target returns the destination-chain target identity.
func (op Operation) Target() Account {
	return AccountFromBytes(op.ProtocolAddr)
}

// OperationState is the stored lifecycle state of an operation.
// "Signing" and "consensus reached" are derived, never stored.
type OperationState string

const (
	StateLoaded   OperationState = "loaded"
	StateExecuted OperationState = "executed"
)

// OperationRecord is the registry entry for a loaded operation, keyed by hash.
//
// INVARIANTS:
//   - Executed, once true, is never reset
//   - Signers only grows (set union); records are never deleted
type OperationRecord struct {
	Hash        common.Hash      `json:"hash"`
	Operation   Operation        `json:"operation"`
	State       OperationState   `json:"state"`
	Signers     []common.Address `json:"attested_signers"` // ascending byte order
	Executed    bool             `json:"executed"`
	LoadedSeq   int64            `json:"loaded_seq"`
	ExecutedSeq int64            `json:"executed_seq,omitempty"`
}

// ProtocolConfig is the registry entry for a protocol.
// Mutated only by governance operations (and Initialize for governance itself).
type ProtocolConfig struct {
	ID                  ProtocolID       `json:"id"`
	Keepers             []common.Address `json:"keepers"`
	Executors           []Account        `json:"executors"`
	Proposers           []Account        `json:"proposers"`
	AllowedTargets      []Account        `json:"allowed_targets"`
	ConsensusTargetRate uint64           `json:"consensus_target_rate"`
	ProtocolFee         uint64           `json:"protocol_fee"`
	CreatedSeq          int64            `json:"created_seq"`
}

// IsExecutor reports whether a is in the executor set.
func (p ProtocolConfig) IsExecutor(a Account) bool {
	return containsAccount(p.Executors, a)
}

// IsProposer reports whether a is in the proposer set.
func (p ProtocolConfig) IsProposer(a Account) bool {
	return containsAccount(p.Proposers, a)
}

// AllowsTarget reports whether a is an allowed target address.
func (p ProtocolConfig) AllowsTarget(a Account) bool {
	return containsAccount(p.AllowedTargets, a)
}

func containsAccount(set []Account, a Account) bool {
	for _, m := range set {
		if m == a {
			return true
		}
	}
	return false
}

// GlobalConfig is the single process-wide configuration written by Initialize.
type GlobalConfig struct {
	HomeChainID    uint64    `json:"home_chain_id"`
	Admin          Account   `json:"admin"`
	Executors      []Account `json:"bootstrap_executors"`
	InitializedSeq int64     `json:"initialized_seq"`
}

// ProposeEvent carries a candidate operation toward another chain.
// Exactly one is emitted per successful proposal.
type ProposeEvent struct {
	ID            string        `json:"id"`
	ProtocolID    ProtocolID    `json:"protocol_id"`
	DstChainID    uint64        `json:"dst_chain_id"`
	TargetAddress hexutil.Bytes `json:"target_address"`
	Selector      Selector      `json:"function_selector"`
	Params        hexutil.Bytes `json:"params"`
	Nonce         uint64        `json:"nonce"`
	Proposer      Account       `json:"proposer"`
	Seq           int64         `json:"seq"`
}

// SortAddresses sorts addresses in ascending byte order, in place.
func SortAddresses(addrs []common.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}

// DedupAddresses returns addrs without duplicates, preserving first occurrence.
func DedupAddresses(addrs []common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(addrs))
	out := make([]common.Address, 0, len(addrs))
	for _, a := range addrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
