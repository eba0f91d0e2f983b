package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/spotter/internal/ir"
)

// Call is the dispatch of an executed ordinary operation to its target.
type Call struct {
	OperationHash common.Hash
	Protocol      ir.ProtocolID
	Target        ir.Account
	Selector      ir.Selector
	Params        []byte
	SrcChainID    uint64
	Seq           int64
}

// Target receives executed operations addressed to it.
//
// Invoke runs inside the execute transaction: returning an error rolls the
// execution back and the operation stays executable. Invoke must not call
// back into the engine.
type Target interface {
	Invoke(ctx context.Context, call Call) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(ctx context.Context, call Call) error

// Invoke calls f.
func (f TargetFunc) Invoke(ctx context.Context, call Call) error {
	return f(ctx, call)
}

// router resolves target addresses to handlers.
type router struct {
	mu      sync.RWMutex
	targets map[ir.Account]Target
}

func newRouter() *router {
	return &router{targets: make(map[ir.Account]Target)}
}

func (r *router) register(addr ir.Account, t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[addr] = t
}

func (r *router) lookup(addr ir.Account) (Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[addr]
	return t, ok
}
