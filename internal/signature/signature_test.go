package signature

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/spotter/internal/ir"
)

var testHash = common.HexToHash("0x3c4ae5780d4da843f98491044c88005e0d7ead694ae1616a779aea0f4300c41c")

func TestSignRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign(key, testHash)
	require.NoError(t, err)
	require.Len(t, sig, Length)
	assert.Contains(t, []byte{27, 28}, sig[64], "v is emitted in 27/28 form")

	addr, err := Recover(testHash, sig)
	require.NoError(t, err)
	assert.Equal(t, Address(key), addr)
}

func TestRecoverAcceptsZeroOneRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign(key, testHash)
	require.NoError(t, err)
	sig[64] -= 27

	addr, err := Recover(testHash, sig)
	require.NoError(t, err)
	assert.Equal(t, Address(key), addr)
}

func TestRecoverDifferentHashYieldsDifferentSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := Sign(key, testHash)
	require.NoError(t, err)

	other := testHash
	other[0] ^= 0xff
	addr, err := Recover(other, sig)
	if err == nil {
		assert.NotEqual(t, Address(key), addr)
	}
}

func TestRecoverRejectsMalformed(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	valid, err := Sign(key, testHash)
	require.NoError(t, err)

	badV := append([]byte{}, valid...)
	badV[64] = 5

	zeroRS := make([]byte, Length)

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"short", valid[:64]},
		{"long", append(append([]byte{}, valid...), 0)},
		{"bad recovery id", badV},
		{"zero r and s", zeroRS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Recover(testHash, tt.sig)
			assert.ErrorIs(t, err, ir.ErrInvalidSignature)
		})
	}
}

func TestRecoverDoesNotMutateInput(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := Sign(key, testHash)
	require.NoError(t, err)

	before := append([]byte{}, sig...)
	_, err = Recover(testHash, sig)
	require.NoError(t, err)
	assert.Equal(t, before, sig)
}
