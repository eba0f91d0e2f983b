package governance

import "fmt"

// Opcode is a governance function selector.
// Values are the 4-byte selectors of the on-chain governance contract.
type Opcode uint32

const (
	OpRegisterProtocol    Opcode = 0x45a004b9
	OpAddAllowedTarget    Opcode = 0xd296a0ff
	OpRemoveAllowedTarget Opcode = 0xb0a4ca98
	OpAddProposer         Opcode = 0xce0940a5
	OpRemoveProposer      Opcode = 0xb8e5f3f4
	OpAddExecutor         Opcode = 0xe0aafb68
	OpRemoveExecutor      Opcode = 0x04fa384a
	OpAddKeepers          Opcode = 0xa8da4c51
	OpRemoveKeepers       Opcode = 0x80936851
	OpSetConsensusRate    Opcode = 0x970b6109
	OpSetProtocolFee      Opcode = 0xafe50cc2
)

var opcodeNames = map[Opcode]string{
	OpRegisterProtocol:    "register-protocol",
	OpAddAllowedTarget:    "add-allowed-target",
	OpRemoveAllowedTarget: "remove-allowed-target",
	OpAddProposer:         "add-proposer",
	OpRemoveProposer:      "remove-proposer",
	OpAddExecutor:         "add-executor",
	OpRemoveExecutor:      "remove-executor",
	OpAddKeepers:          "add-keepers",
	OpRemoveKeepers:       "remove-keepers",
	OpSetConsensusRate:    "set-consensus-rate",
	OpSetProtocolFee:      "set-protocol-fee",
}

// Opcodes returns every known opcode in table order.
func Opcodes() []Opcode {
	return []Opcode{
		OpRegisterProtocol,
		OpAddAllowedTarget,
		OpRemoveAllowedTarget,
		OpAddProposer,
		OpRemoveProposer,
		OpAddExecutor,
		OpRemoveExecutor,
		OpAddKeepers,
		OpRemoveKeepers,
		OpSetConsensusRate,
		OpSetProtocolFee,
	}
}

// Known reports whether op is in the opcode table.
func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

// String returns the opcode name, or its hex value if unknown.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(op))
}

// ParseOpcode resolves an opcode by name.
func ParseOpcode(name string) (Opcode, error) {
	for op, n := range opcodeNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown governance opcode %q", name)
}
