package governance

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
	"github.com/roach88/spotter/internal/store"
)

// Mutation is a decoded governance action. The set of implementations is
// closed: RegisterProtocol, SetConsensusRate, SetProtocolFee, AddKeepers,
// RemoveKeepers, AddMember and RemoveMember.
type Mutation interface {
	// Opcode returns the selector this mutation is encoded under.
	Opcode() Opcode
	// Protocol returns the protocol the mutation targets.
	Protocol() ir.ProtocolID

	mutation()
}

// RegisterProtocol creates a protocol, or updates rate and fee and adds
// keepers if it already exists.
type RegisterProtocol struct {
	ID      ir.ProtocolID
	Rate    uint64
	Fee     uint64
	Keepers []common.Address
}

// SetConsensusRate changes the consensus target rate in basis points.
type SetConsensusRate struct {
	ID   ir.ProtocolID
	Rate uint64
}

// SetProtocolFee changes the recorded protocol fee.
type SetProtocolFee struct {
	ID  ir.ProtocolID
	Fee uint64
}

// AddKeepers adds keepers to a protocol.
type AddKeepers struct {
	ID      ir.ProtocolID
	Keepers []common.Address
}

// RemoveKeepers removes keepers from a protocol.
type RemoveKeepers struct {
	ID      ir.ProtocolID
	Keepers []common.Address
}

// AddMember adds an executor, proposer or allowed target.
type AddMember struct {
	ID     ir.ProtocolID
	Role   store.Role
	Member ir.Account
}

// RemoveMember removes an executor, proposer or allowed target.
type RemoveMember struct {
	ID     ir.ProtocolID
	Role   store.Role
	Member ir.Account
}

func (RegisterProtocol) Opcode() Opcode { return OpRegisterProtocol }
func (SetConsensusRate) Opcode() Opcode { return OpSetConsensusRate }
func (SetProtocolFee) Opcode() Opcode   { return OpSetProtocolFee }
func (AddKeepers) Opcode() Opcode       { return OpAddKeepers }
func (RemoveKeepers) Opcode() Opcode    { return OpRemoveKeepers }

func (m AddMember) Opcode() Opcode {
	switch m.Role {
	case store.RoleExecutor:
		return OpAddExecutor
	case store.RoleProposer:
		return OpAddProposer
	default:
		return OpAddAllowedTarget
	}
}

func (m RemoveMember) Opcode() Opcode {
	switch m.Role {
	case store.RoleExecutor:
		return OpRemoveExecutor
	case store.RoleProposer:
		return OpRemoveProposer
	default:
		return OpRemoveAllowedTarget
	}
}

func (m RegisterProtocol) Protocol() ir.ProtocolID { return m.ID }
func (m SetConsensusRate) Protocol() ir.ProtocolID { return m.ID }
func (m SetProtocolFee) Protocol() ir.ProtocolID   { return m.ID }
func (m AddKeepers) Protocol() ir.ProtocolID       { return m.ID }
func (m RemoveKeepers) Protocol() ir.ProtocolID    { return m.ID }
func (m AddMember) Protocol() ir.ProtocolID        { return m.ID }
func (m RemoveMember) Protocol() ir.ProtocolID     { return m.ID }

func (RegisterProtocol) mutation() {}
func (SetConsensusRate) mutation() {}
func (SetProtocolFee) mutation()   {}
func (AddKeepers) mutation()       {}
func (RemoveKeepers) mutation()    {}
func (AddMember) mutation()        {}
func (RemoveMember) mutation()     {}

// memberRole maps member opcodes to the role set they mutate.
var memberRole = map[Opcode]store.Role{
	OpAddAllowedTarget:    store.RoleTarget,
	OpRemoveAllowedTarget: store.RoleTarget,
	OpAddProposer:         store.RoleProposer,
	OpRemoveProposer:      store.RoleProposer,
	OpAddExecutor:         store.RoleExecutor,
	OpRemoveExecutor:      store.RoleExecutor,
}
