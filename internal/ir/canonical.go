package ir

import (
	"encoding/binary"
	"fmt"
)

// MarshalCanonical produces the canonical binary encoding of an operation.
// CRITICAL: This is the ONLY serialization used for operation identity.
//
// Layout (all integers big-endian):
//
//	version        u8 (EncodingVersion)
//	protocol_id    32 bytes
//	src_chain_id   u64
//	src_block      u64
//	src_op_tx_id   32 bytes
//	nonce          u64
//	dest_chain_id  u64
//	protocol_addr  u32 length + bytes
//	selector       u8 kind + u32 length + bytes
//	params         u32 length + bytes
//
// Every variable-length field is length-prefixed, so no two distinct
// operations share an encoding.
func MarshalCanonical(op Operation) ([]byte, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	sel := op.Selector.Wire()

	buf := make([]byte, 0, 1+32+8+8+32+8+8+4+len(op.ProtocolAddr)+1+4+len(sel)+4+len(op.Params))
	buf = append(buf, EncodingVersion)
	buf = append(buf, op.ProtocolID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, op.SrcChainID)
	buf = binary.BigEndian.AppendUint64(buf, op.SrcBlockNumber)
	buf = append(buf, op.SrcOpTxID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, op.Nonce)
	buf = binary.BigEndian.AppendUint64(buf, op.DestChainID)
	buf = appendBytes(buf, op.ProtocolAddr)
	buf = append(buf, byte(op.Selector.Kind()))
	buf = appendBytes(buf, sel)
	buf = appendBytes(buf, op.Params)
	return buf, nil
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// UnmarshalCanonical decodes an encoding produced by MarshalCanonical.
// Trailing bytes are rejected.
func UnmarshalCanonical(data []byte) (Operation, error) {
	var op Operation
	r := &reader{buf: data}

	version := r.readByte()
	if r.err == nil && version != EncodingVersion {
		return op, fmt.Errorf("unsupported encoding version %d: %w", version, ErrInvalidOperation)
	}
	copy(op.ProtocolID[:], r.fixed(32))
	op.SrcChainID = r.readUint64()
	op.SrcBlockNumber = r.readUint64()
	copy(op.SrcOpTxID[:], r.fixed(32))
	op.Nonce = r.readUint64()
	op.DestChainID = r.readUint64()
	op.ProtocolAddr = r.readBytes()
	kind := SelectorKind(r.readByte())
	wire := r.readBytes()
	op.Params = r.readBytes()
	if r.err != nil {
		return Operation{}, r.err
	}
	if len(r.buf) != 0 {
		return Operation{}, fmt.Errorf("%d trailing bytes: %w", len(r.buf), ErrInvalidOperation)
	}

	sel, err := DecodeSelector(kind, wire)
	if err != nil {
		return Operation{}, err
	}
	op.Selector = sel
	if err := op.Validate(); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// reader consumes a byte slice, remembering the first error.
type reader struct {
	buf []byte
	err error
}

func (r *reader) fixed(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = fmt.Errorf("truncated encoding: need %d bytes, have %d: %w", n, len(r.buf), ErrInvalidOperation)
		return nil
	}
	out := r.buf[:n:n]
	r.buf = r.buf[n:]
	return out
}

func (r *reader) readByte() byte {
	b := r.fixed(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) readUint64() uint64 {
	b := r.fixed(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *reader) readBytes() []byte {
	lb := r.fixed(4)
	if lb == nil {
		return nil
	}
	n := binary.BigEndian.Uint32(lb)
	if uint64(n) > uint64(MaxParamsLength) {
		r.err = fmt.Errorf("field length %d exceeds limit: %w", n, ErrInvalidOperation)
		return nil
	}
	b := r.fixed(int(n))
	if len(b) == 0 {
		return nil
	}
	return append([]byte{}, b...)
}
