package testutil

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/roach88/spotter/internal/signature"
)

// Keeper is a deterministic keeper identity for tests.
type Keeper struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// Sign signs an operation hash the way keeper tooling does.
func (k Keeper) Sign(hash common.Hash) []byte {
	sig, err := signature.Sign(k.Key, hash)
	if err != nil {
		panic(fmt.Sprintf("testutil: sign: %v", err))
	}
	return sig
}

// KeeperKey derives the private key for keeper index i.
// The same index always yields the same key.
func KeeperKey(i int) *ecdsa.PrivateKey {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(i))
	seed := crypto.Keccak256([]byte("spotter/test-keeper"), idx[:])
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		panic(fmt.Sprintf("testutil: keeper key %d: %v", i, err))
	}
	return key
}

// Keepers returns n deterministic keepers with indices 0..n-1.
func Keepers(n int) []Keeper {
	return KeepersFrom(0, n)
}

// KeepersFrom returns n deterministic keepers starting at index first.
// Use it for keepers disjoint from those returned by Keepers.
func KeepersFrom(first, n int) []Keeper {
	out := make([]Keeper, n)
	for i := range out {
		key := KeeperKey(first + i)
		out[i] = Keeper{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
	}
	return out
}

// Addresses returns the keepers' addresses in input order.
func Addresses(keepers []Keeper) []common.Address {
	out := make([]common.Address, len(keepers))
	for i, k := range keepers {
		out[i] = k.Address
	}
	return out
}

// SignAll returns one signature over hash per keeper, in input order.
func SignAll(hash common.Hash, keepers []Keeper) [][]byte {
	out := make([][]byte, len(keepers))
	for i, k := range keepers {
		out[i] = k.Sign(hash)
	}
	return out
}
