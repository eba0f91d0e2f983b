package governance

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
)

var (
	bytes32Type, _      = abi.NewType("bytes32", "", nil)
	uint256Type, _      = abi.NewType("uint256", "", nil)
	bytesType, _        = abi.NewType("bytes", "", nil)
	addressArrayType, _ = abi.NewType("address[]", "", nil)

	registerProtocolArgs = abi.Arguments{
		{Name: "protocolId", Type: bytes32Type},
		{Name: "consensusTargetRate", Type: uint256Type},
		{Name: "protocolFee", Type: uint256Type},
		{Name: "keepers", Type: addressArrayType},
	}

	memberArgs = abi.Arguments{
		{Name: "protocolId", Type: bytes32Type},
		{Name: "member", Type: bytesType},
	}

	keepersArgs = abi.Arguments{
		{Name: "protocolId", Type: bytes32Type},
		{Name: "keepers", Type: addressArrayType},
	}

	uintArgs = abi.Arguments{
		{Name: "protocolId", Type: bytes32Type},
		{Name: "value", Type: uint256Type},
	}
)

// Encode returns the ABI payload for a mutation. Together with
// NumericSelector(m.Opcode()) it forms the params of a governance operation.
func Encode(m Mutation) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch m := m.(type) {
	case RegisterProtocol:
		out, err = registerProtocolArgs.Pack([32]byte(m.ID), new(big.Int).SetUint64(m.Rate), new(big.Int).SetUint64(m.Fee), keepersOrEmpty(m.Keepers))
	case SetConsensusRate:
		out, err = uintArgs.Pack([32]byte(m.ID), new(big.Int).SetUint64(m.Rate))
	case SetProtocolFee:
		out, err = uintArgs.Pack([32]byte(m.ID), new(big.Int).SetUint64(m.Fee))
	case AddKeepers:
		out, err = keepersArgs.Pack([32]byte(m.ID), keepersOrEmpty(m.Keepers))
	case RemoveKeepers:
		out, err = keepersArgs.Pack([32]byte(m.ID), keepersOrEmpty(m.Keepers))
	case AddMember:
		out, err = memberArgs.Pack([32]byte(m.ID), m.Member.Bytes())
	case RemoveMember:
		out, err = memberArgs.Pack([32]byte(m.ID), m.Member.Bytes())
	default:
		return nil, errorsmod.Wrapf(ir.ErrUnknownGovernanceOpcode, "unsupported mutation %T", m)
	}
	if err != nil {
		return nil, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "failed to ABI encode %s: %v", m.Opcode(), err)
	}
	return out, nil
}

// Call returns the selector and params of a governance operation carrying m.
func Call(m Mutation) (ir.Selector, []byte, error) {
	payload, err := Encode(m)
	if err != nil {
		return ir.Selector{}, nil, err
	}
	return ir.NumericSelector(uint32(m.Opcode())), payload, nil
}

// Decode resolves a governance operation into its mutation.
//
// Errors: ir.ErrUnknownGovernanceOpcode for non-numeric selectors or opcodes
// outside the table, ir.ErrInvalidGovernancePayload for malformed payloads.
func Decode(op ir.Operation) (Mutation, error) {
	number, ok := op.Selector.Number()
	if !ok {
		return nil, errorsmod.Wrapf(ir.ErrUnknownGovernanceOpcode, "selector %s is not numeric", op.Selector)
	}
	opcode := Opcode(number)
	if !opcode.Known() {
		return nil, errorsmod.Wrapf(ir.ErrUnknownGovernanceOpcode, "opcode %s", opcode)
	}
	return DecodePayload(opcode, op.Params)
}

// DecodePayload decodes the ABI payload of a known opcode.
func DecodePayload(opcode Opcode, data []byte) (Mutation, error) {
	switch opcode {
	case OpRegisterProtocol:
		values, err := unpack(opcode, registerProtocolArgs, data)
		if err != nil {
			return nil, err
		}
		id, err := protocolIDValue(opcode, values[0])
		if err != nil {
			return nil, err
		}
		rate, err := rateValue(opcode, values[1])
		if err != nil {
			return nil, err
		}
		fee, err := uint64Value(opcode, values[2])
		if err != nil {
			return nil, err
		}
		keepers, err := addressesValue(opcode, values[3], false)
		if err != nil {
			return nil, err
		}
		return RegisterProtocol{ID: id, Rate: rate, Fee: fee, Keepers: keepers}, nil

	case OpSetConsensusRate, OpSetProtocolFee:
		values, err := unpack(opcode, uintArgs, data)
		if err != nil {
			return nil, err
		}
		id, err := protocolIDValue(opcode, values[0])
		if err != nil {
			return nil, err
		}
		if opcode == OpSetConsensusRate {
			rate, err := rateValue(opcode, values[1])
			if err != nil {
				return nil, err
			}
			return SetConsensusRate{ID: id, Rate: rate}, nil
		}
		fee, err := uint64Value(opcode, values[1])
		if err != nil {
			return nil, err
		}
		return SetProtocolFee{ID: id, Fee: fee}, nil

	case OpAddKeepers, OpRemoveKeepers:
		values, err := unpack(opcode, keepersArgs, data)
		if err != nil {
			return nil, err
		}
		id, err := protocolIDValue(opcode, values[0])
		if err != nil {
			return nil, err
		}
		keepers, err := addressesValue(opcode, values[1], true)
		if err != nil {
			return nil, err
		}
		if opcode == OpAddKeepers {
			return AddKeepers{ID: id, Keepers: keepers}, nil
		}
		return RemoveKeepers{ID: id, Keepers: keepers}, nil

	case OpAddAllowedTarget, OpRemoveAllowedTarget,
		OpAddProposer, OpRemoveProposer,
		OpAddExecutor, OpRemoveExecutor:
		values, err := unpack(opcode, memberArgs, data)
		if err != nil {
			return nil, err
		}
		id, err := protocolIDValue(opcode, values[0])
		if err != nil {
			return nil, err
		}
		member, err := memberValue(opcode, values[1])
		if err != nil {
			return nil, err
		}
		role := memberRole[opcode]
		switch opcode {
		case OpAddAllowedTarget, OpAddProposer, OpAddExecutor:
			return AddMember{ID: id, Role: role, Member: member}, nil
		default:
			return RemoveMember{ID: id, Role: role, Member: member}, nil
		}
	}
	return nil, errorsmod.Wrapf(ir.ErrUnknownGovernanceOpcode, "opcode %s", opcode)
}

func unpack(opcode Opcode, args abi.Arguments, data []byte) ([]interface{}, error) {
	values, err := args.Unpack(data)
	if err != nil {
		return nil, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "failed to ABI decode %s: %v", opcode, err)
	}
	if len(values) != len(args) {
		return nil, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: expected %d fields, got %d", opcode, len(args), len(values))
	}
	return values, nil
}

func protocolIDValue(opcode Opcode, v interface{}) (ir.ProtocolID, error) {
	raw, ok := v.([32]byte)
	if !ok {
		return ir.ProtocolID{}, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: invalid protocolId type", opcode)
	}
	return ir.ProtocolID(raw), nil
}

func uint64Value(opcode Opcode, v interface{}) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return 0, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: invalid uint256 type", opcode)
	}
	if !n.IsUint64() {
		return 0, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: value %s overflows uint64", opcode, n)
	}
	return n.Uint64(), nil
}

func rateValue(opcode Opcode, v interface{}) (uint64, error) {
	rate, err := uint64Value(opcode, v)
	if err != nil {
		return 0, err
	}
	if rate > ir.MaxConsensusTargetRate {
		return 0, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: rate %d exceeds %d", opcode, rate, ir.MaxConsensusTargetRate)
	}
	return rate, nil
}

func addressesValue(opcode Opcode, v interface{}, nonEmpty bool) ([]common.Address, error) {
	addrs, ok := v.([]common.Address)
	if !ok {
		return nil, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: invalid address[] type", opcode)
	}
	if nonEmpty && len(addrs) == 0 {
		return nil, errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: keeper list is empty", opcode)
	}
	return ir.DedupAddresses(addrs), nil
}

func memberValue(opcode Opcode, v interface{}) (ir.Account, error) {
	raw, ok := v.([]byte)
	if !ok {
		return "", errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: invalid bytes type", opcode)
	}
	if len(raw) == 0 || len(raw) > ir.MaxAddressLength {
		return "", errorsmod.Wrapf(ir.ErrInvalidGovernancePayload, "%s: member has %d bytes, want 1..%d", opcode, len(raw), ir.MaxAddressLength)
	}
	return ir.AccountFromBytes(raw), nil
}

func keepersOrEmpty(k []common.Address) []common.Address {
	if k == nil {
		return []common.Address{}
	}
	return k
}
