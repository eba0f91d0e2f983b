package ir

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleOperation is an "increment" call on the onefunc example protocol,
// originated on the EOB chain and destined for chain 111111111.
func sampleOperation() Operation {
	return Operation{
		ProtocolID:     MustProtocolID("onefunc"),
		SrcChainID:     33133,
		SrcBlockNumber: 1,
		SrcOpTxID:      common.HexToHash("0xce25f58a7fd8625deadc00a59b67c530c7d92acec1e5753c588269ade6ebf99f"),
		Nonce:          7,
		DestChainID:    111111111,
		ProtocolAddr:   []byte{1, 54, 22, 87, 84, 85, 0, 0, 71},
		Selector:       NameSelector("increment"),
		Params:         []byte{1, 2, 3},
	}
}

func TestMarshalCanonicalGolden(t *testing.T) {
	enc, err := MarshalCanonical(sampleOperation())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "canonical_onefunc", []byte(hex.EncodeToString(enc)+"\n"))
}

func TestMarshalCanonicalLayout(t *testing.T) {
	enc, err := MarshalCanonical(sampleOperation())
	require.NoError(t, err)

	assert.Equal(t, EncodingVersion, enc[0], "first byte is the encoding version")
	assert.Equal(t, []byte("onefunc_"), enc[1:9], "protocol id follows the version")
	// 1 + 32 + 8 + 8 + 32 + 8 + 8 + (4+9) + (1+4+9) + (4+3)
	assert.Len(t, enc, 131)
}

func TestCanonicalRoundTrip(t *testing.T) {
	ops := map[string]Operation{
		"name selector": sampleOperation(),
		"numeric selector": func() Operation {
			op := sampleOperation()
			op.Selector = NumericSelector(0xa8da4c51)
			return op
		}(),
		"raw selector by id": func() Operation {
			op := sampleOperation()
			op.Selector = RawSelector([]byte{0xde, 0xad}, true)
			return op
		}(),
		"empty params": func() Operation {
			op := sampleOperation()
			op.Params = nil
			return op
		}(),
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			enc, err := MarshalCanonical(op)
			require.NoError(t, err)

			decoded, err := UnmarshalCanonical(enc)
			require.NoError(t, err)

			assert.Equal(t, op.ProtocolID, decoded.ProtocolID)
			assert.Equal(t, op.SrcOpTxID, decoded.SrcOpTxID)
			assert.Equal(t, []byte(op.ProtocolAddr), []byte(decoded.ProtocolAddr))
			assert.True(t, op.Selector.Equal(decoded.Selector))
			assert.Equal(t, MustOperationHash(op), MustOperationHash(decoded))
		})
	}
}

func TestUnmarshalCanonicalRejectsMalformed(t *testing.T) {
	enc, err := MarshalCanonical(sampleOperation())
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", enc[:len(enc)-1]},
		{"trailing bytes", append(append([]byte{}, enc...), 0xff)},
		{"wrong version", append([]byte{0x02}, enc[1:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCanonical(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOperation)
		})
	}
}

func TestMarshalCanonicalRejectsInvalid(t *testing.T) {
	op := sampleOperation()
	op.ProtocolAddr = nil
	_, err := MarshalCanonical(op)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	op = sampleOperation()
	op.Selector = NameSelector("not an identifier")
	_, err = MarshalCanonical(op)
	assert.ErrorIs(t, err, ErrInvalidSelector)

	op = sampleOperation()
	op.Selector = Selector{}
	_, err = MarshalCanonical(op)
	assert.ErrorIs(t, err, ErrInvalidSelector)
}
