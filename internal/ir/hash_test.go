package ir

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationHashKnownVector(t *testing.T) {
	h, err := OperationHash(sampleOperation())
	require.NoError(t, err)

	assert.Equal(t,
		common.HexToHash("0x3c4ae5780d4da843f98491044c88005e0d7ead694ae1616a779aea0f4300c41c"),
		h,
		"keccak256(domain || 0x00 || encoding) must not drift",
	)
}

func TestOperationHashDeterminism(t *testing.T) {
	h1 := MustOperationHash(sampleOperation())
	h2 := MustOperationHash(sampleOperation())
	assert.Equal(t, h1, h2, "OperationHash must be deterministic")
}

func TestOperationHashChangesWithEveryField(t *testing.T) {
	base := MustOperationHash(sampleOperation())

	mutations := map[string]func(*Operation){
		"protocol id":  func(op *Operation) { op.ProtocolID = MustProtocolID("twofunc") },
		"src chain":    func(op *Operation) { op.SrcChainID++ },
		"src block":    func(op *Operation) { op.SrcBlockNumber++ },
		"src tx":       func(op *Operation) { op.SrcOpTxID[31] ^= 1 },
		"nonce":        func(op *Operation) { op.Nonce++ },
		"dest chain":   func(op *Operation) { op.DestChainID++ },
		"address":      func(op *Operation) { op.ProtocolAddr = append(op.ProtocolAddr, 0) },
		"selector":     func(op *Operation) { op.Selector = NameSelector("decrement") },
		"params":       func(op *Operation) { op.Params = []byte{1, 2} },
		"selector tag": func(op *Operation) { op.Selector = RawSelector([]byte("increment"), false) },
	}

	seen := map[common.Hash]string{base: "base"}
	for name, mutate := range mutations {
		op := sampleOperation()
		mutate(&op)
		h := MustOperationHash(op)
		prev, dup := seen[h]
		assert.False(t, dup, "%s collides with %s", name, prev)
		seen[h] = name
	}
}

// Moving bytes between adjacent variable-length fields must change the hash.
func TestOperationHashLengthPrefixed(t *testing.T) {
	a := sampleOperation()
	a.Selector = RawSelector([]byte{0xaa, 0xbb}, false)
	a.Params = []byte{0xcc}

	b := sampleOperation()
	b.Selector = RawSelector([]byte{0xaa}, false)
	b.Params = []byte{0xbb, 0xcc}

	assert.NotEqual(t, MustOperationHash(a), MustOperationHash(b))
}
