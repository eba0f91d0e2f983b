// Package signature recovers keeper identities from operation signatures.
//
// Keepers sign the EIP-191 personal-message digest of an operation hash,
// which is what standard Ethereum wallets and signers produce. The recovered
// 20-byte address is the keeper identity. Membership in a keeper set is not
// checked here; see package consensus.
package signature

import (
	"bytes"
	"crypto/ecdsa"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/spotter/internal/ir"
)

// Length is the expected length of an ECDSA signature (r||s||v).
const Length = 65

// Digest returns the message keepers sign for an operation hash.
func Digest(hash common.Hash) []byte {
	return accounts.TextHash(hash[:])
}

// Recover returns the address that produced sig over the operation hash.
// v may be 0/1 or 27/28.
func Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != Length {
		return common.Address{}, errorsmod.Wrapf(ir.ErrInvalidSignature, "expected %d bytes, got %d", Length, len(sig))
	}

	normalized := bytes.Clone(sig)
	if v := normalized[crypto.RecoveryIDOffset]; v == 27 || v == 28 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, errorsmod.Wrapf(ir.ErrInvalidSignature, "invalid recovery id %d", sig[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(Digest(hash), normalized)
	if err != nil {
		return common.Address{}, errorsmod.Wrapf(ir.ErrInvalidSignature, "failed to recover public key: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Sign signs the operation hash with a keeper key. The returned signature
// carries v in 27/28 form, as wallets emit it.
func Sign(key *ecdsa.PrivateKey, hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(Digest(hash), key)
	if err != nil {
		return nil, errorsmod.Wrapf(ir.ErrInvalidSignature, "sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Address returns the keeper identity of a private key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
