// Package genesis loads the one-time ledger bootstrap file.
//
// Genesis files are CUE. The top-level genesis field is unified with the
// embedded #Genesis schema and must be concrete:
//
//	genesis: {
//		home_chain_id:         111111111
//		consensus_target_rate: 6000
//		admin:                 "0xad"
//		keepers: ["0x5b38da6a701c568545dcfcb03fcb875f56beddc4"]
//		executors: ["0xe1"]
//	}
package genesis

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

const schemaFilename = "schema.cue"

//go:embed schema.cue
var schemaSource string

// Genesis is a validated genesis file.
type Genesis struct {
	HomeChainID         uint64   `json:"home_chain_id"`
	ConsensusTargetRate uint64   `json:"consensus_target_rate"`
	Admin               string   `json:"admin"`
	Keepers             []string `json:"keepers"`
	Executors           []string `json:"executors"`
}

// Error is a genesis validation failure with its CUE source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and validates the genesis file at path.
func Load(path string) (*Genesis, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return Parse(path, src)
}

// Parse validates CUE source against the genesis schema.
func Parse(filename string, src []byte) (*Genesis, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename(schemaFilename))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("genesis schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	g := v.LookupPath(cue.ParsePath("genesis"))
	if !g.Exists() {
		return nil, &Error{Field: "genesis", Message: "genesis field is required", Pos: v.Pos()}
	}

	unified := schema.LookupPath(cue.ParsePath("#Genesis")).Unify(g)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var out Genesis
	if err := unified.Decode(&out); err != nil {
		return nil, formatCUEError(err)
	}
	return &out, nil
}

// InitParams converts the genesis into engine initialisation parameters
// and the administrator identity. Duplicate keepers or executors are
// rejected rather than silently merged.
func (g *Genesis) InitParams() (ir.Account, engine.InitParams, error) {
	admin, err := ir.ParseAccount(g.Admin)
	if err != nil {
		return "", engine.InitParams{}, &Error{Field: "admin", Message: err.Error()}
	}

	p := engine.InitParams{
		HomeChainID:         g.HomeChainID,
		ConsensusTargetRate: g.ConsensusTargetRate,
	}

	seenKeeper := make(map[common.Address]struct{}, len(g.Keepers))
	for i, k := range g.Keepers {
		addr := common.HexToAddress(k)
		if _, dup := seenKeeper[addr]; dup {
			return "", engine.InitParams{}, &Error{Field: fmt.Sprintf("keepers[%d]", i), Message: "duplicate keeper " + k}
		}
		seenKeeper[addr] = struct{}{}
		p.Keepers = append(p.Keepers, addr)
	}

	seenExecutor := make(map[ir.Account]struct{}, len(g.Executors))
	for i, x := range g.Executors {
		acct, err := ir.ParseAccount(x)
		if err != nil {
			return "", engine.InitParams{}, &Error{Field: fmt.Sprintf("executors[%d]", i), Message: err.Error()}
		}
		if _, dup := seenExecutor[acct]; dup {
			return "", engine.InitParams{}, &Error{Field: fmt.Sprintf("executors[%d]", i), Message: "duplicate executor " + x}
		}
		seenExecutor[acct] = struct{}{}
		p.Executors = append(p.Executors, acct)
	}
	return admin, p, nil
}

// formatCUEError reports the first CUE error with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	// Prefer a position in the user's file over one in the schema.
	var pos token.Pos
	for _, p := range errors.Positions(first) {
		if !pos.IsValid() || pos.Filename() == schemaFilename {
			pos = p
		}
	}
	field := "genesis"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	msg, args := first.Msg()
	return &Error{Field: field, Message: fmt.Sprintf(msg, args...), Pos: pos}
}
