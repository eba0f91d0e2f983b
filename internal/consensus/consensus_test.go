package consensus

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/signature"
)

var testHash = common.HexToHash("0x3c4ae5780d4da843f98491044c88005e0d7ead694ae1616a779aea0f4300c41c")

func generateKeepers(t *testing.T, n int) ([]*ecdsa.PrivateKey, []common.Address) {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	addrs := make([]common.Address, n)
	for i := range keys {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = key
		addrs[i] = signature.Address(key)
	}
	return keys, addrs
}

func sign(t *testing.T, keys ...*ecdsa.PrivateKey) [][]byte {
	t.Helper()
	sigs := make([][]byte, len(keys))
	for i, k := range keys {
		sig, err := signature.Sign(k, testHash)
		require.NoError(t, err)
		sigs[i] = sig
	}
	return sigs
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		rate    uint64
		keepers int
		want    int
	}{
		{10000, 3, 3},
		{6000, 3, 2},
		{5000, 4, 2},
		{5001, 4, 3},
		{6667, 3, 3},
		{6666, 3, 2},
		{1, 10, 1},
		{0, 5, 1},
		{20000, 3, 3},
		{10000, 0, 1},
		{10000, 1, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Threshold(tt.rate, tt.keepers), "rate=%d keepers=%d", tt.rate, tt.keepers)
	}
}

func TestEvaluateNeverPassesWithoutSignatures(t *testing.T) {
	_, keepers := generateKeepers(t, 3)

	r := Evaluate(keepers, 0, nil)
	assert.Equal(t, 1, r.Threshold)
	assert.False(t, r.ConsensusReached, "rate 0 still needs one keeper signature")

	r = Evaluate(nil, 10000, keepers)
	assert.Equal(t, 0, r.Valid)
	assert.False(t, r.ConsensusReached, "an empty keeper set cannot attest")
}

func TestTallyReachesConsensus(t *testing.T) {
	keys, keepers := generateKeepers(t, 3)

	res, err := Tally(testHash, keepers, 6000, nil, sign(t, keys[0]))
	require.NoError(t, err)
	assert.Len(t, res.Added, 1)
	assert.Equal(t, 2, res.Threshold)
	assert.False(t, res.ConsensusReached)

	res, err = Tally(testHash, keepers, 6000, res.Attested, sign(t, keys[1]))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Valid)
	assert.True(t, res.ConsensusReached)
}

func TestTallyIsIdempotent(t *testing.T) {
	keys, keepers := generateKeepers(t, 3)
	sigs := sign(t, keys[0])

	first, err := Tally(testHash, keepers, 10000, nil, sigs)
	require.NoError(t, err)

	second, err := Tally(testHash, keepers, 10000, first.Attested, sigs)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Equal(t, first.Attested, second.Attested)

	dup, err := Tally(testHash, keepers, 10000, nil, append(sigs, sigs...))
	require.NoError(t, err)
	assert.Len(t, dup.Added, 1, "duplicates within a batch count once")
}

func TestTallyRejectsWholeBatch(t *testing.T) {
	keys, keepers := generateKeepers(t, 2)
	outsider, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = Tally(testHash, keepers, 10000, nil, sign(t, keys[0], outsider))
	assert.ErrorIs(t, err, ir.ErrUnauthorizedKeeper)

	bad := append(sign(t, keys[0]), []byte{1, 2, 3})
	_, err = Tally(testHash, keepers, 10000, nil, bad)
	assert.ErrorIs(t, err, ir.ErrInvalidSignature)
}

// Submitting signatures one call at a time or all at once ends in the same state.
func TestTallyChunkedEquivalence(t *testing.T) {
	keys, keepers := generateKeepers(t, 4)
	all := sign(t, keys...)

	batch, err := Tally(testHash, keepers, 7500, nil, all)
	require.NoError(t, err)

	var attested []common.Address
	var chunked Result
	for _, sig := range all {
		chunked, err = Tally(testHash, keepers, 7500, attested, [][]byte{sig})
		require.NoError(t, err)
		attested = chunked.Attested
	}

	assert.Equal(t, batch.Attested, chunked.Attested)
	assert.Equal(t, batch.ConsensusReached, chunked.ConsensusReached)
}

func TestEvaluateIgnoresRemovedKeepers(t *testing.T) {
	_, keepers := generateKeepers(t, 3)
	attested := append([]common.Address{}, keepers...)

	res := Evaluate(keepers[:1], 10000, attested)
	assert.Equal(t, 1, res.Valid)
	assert.True(t, res.ConsensusReached)

	res = Evaluate(nil, 10000, attested)
	assert.False(t, res.ConsensusReached, "an empty keeper set never reaches consensus")
}
