package governance

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// Spec is the flat textual form of a mutation, as written in scenario
// files and CLI flags. Fields an opcode does not use are ignored.
type Spec struct {
	Opcode   string
	Protocol string
	Rate     uint64
	Fee      uint64
	Keepers  []common.Address
	Member   string
}

// Mutation builds the mutation described by s.
func (s Spec) Mutation() (Mutation, error) {
	op, err := ParseOpcode(s.Opcode)
	if err != nil {
		return nil, err
	}
	id, err := ir.ParseProtocolID(s.Protocol)
	if err != nil {
		return nil, err
	}

	member := func() (ir.Account, error) {
		if s.Member == "" {
			return "", fmt.Errorf("%s requires a member", op)
		}
		return ir.ParseAccount(s.Member)
	}

	switch op {
	case OpRegisterProtocol:
		return RegisterProtocol{ID: id, Rate: s.Rate, Fee: s.Fee, Keepers: s.Keepers}, nil
	case OpSetConsensusRate:
		return SetConsensusRate{ID: id, Rate: s.Rate}, nil
	case OpSetProtocolFee:
		return SetProtocolFee{ID: id, Fee: s.Fee}, nil
	case OpAddKeepers:
		return AddKeepers{ID: id, Keepers: s.Keepers}, nil
	case OpRemoveKeepers:
		return RemoveKeepers{ID: id, Keepers: s.Keepers}, nil
	}

	mo, ok := memberOpcodes[op]
	if !ok {
		return nil, fmt.Errorf("opcode %s has no textual form", op)
	}
	m, err := member()
	if err != nil {
		return nil, err
	}
	if mo.add {
		return AddMember{ID: id, Role: mo.role, Member: m}, nil
	}
	return RemoveMember{ID: id, Role: mo.role, Member: m}, nil
}

type memberOpcode struct {
	role store.Role
	add  bool
}

var memberOpcodes = map[Opcode]memberOpcode{
	OpAddExecutor:         {store.RoleExecutor, true},
	OpRemoveExecutor:      {store.RoleExecutor, false},
	OpAddProposer:         {store.RoleProposer, true},
	OpRemoveProposer:      {store.RoleProposer, false},
	OpAddAllowedTarget:    {store.RoleTarget, true},
	OpRemoveAllowedTarget: {store.RoleTarget, false},
}
