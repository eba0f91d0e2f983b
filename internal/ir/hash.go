package ir

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DomainOperation prefixes every operation hash.
// The version suffix allows a future encoding migration.
const DomainOperation = "spotter/operation/v1"

// hashWithDomain computes Keccak-256 with domain separation.
// Format: keccak256(domain + 0x00 + data)
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) common.Hash {
	return crypto.Keccak256Hash([]byte(domain), []byte{0x00}, data)
}

// OperationHash computes the identity of an operation.
// Identical operations always produce identical hashes.
func OperationHash(op Operation) (common.Hash, error) {
	enc, err := MarshalCanonical(op)
	if err != nil {
		return common.Hash{}, fmt.Errorf("operation hash: %w", err)
	}
	return hashWithDomain(DomainOperation, enc), nil
}

// MustOperationHash is like OperationHash but panics on error.
// Use only in tests or when the operation is known to be valid.
func MustOperationHash(op Operation) common.Hash {
	h, err := OperationHash(op)
	if err != nil {
		panic(err)
	}
	return h
}
