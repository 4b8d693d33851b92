package commit

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/yangstore/pkg/types"
)

// maxIDAttempts bounds the id re-roll loop (spec §4.8 Phase A: "give
// up with internal after the bound"). A uuid collision is
// astronomically unlikely; the bound exists to honor the invariant
// without looping forever on a broken RNG.
const maxIDAttempts = 16

// contextRegistry owns the set of live Commit Contexts, keyed by id,
// released when every notified subscriber has acknowledged (spec §4.8
// "Commit Context lifecycle").
type contextRegistry struct {
	mu    sync.Mutex
	ctxes map[string]*types.CommitContext
}

func newContextRegistry() *contextRegistry {
	return &contextRegistry{ctxes: make(map[string]*types.CommitContext)}
}

func (r *contextRegistry) allocate(originatingSession string) (*types.CommitContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := uuid.NewString()
		if _, exists := r.ctxes[id]; exists {
			continue
		}
		cc := &types.CommitContext{
			ID:                 id,
			OriginatingSession: originatingSession,
			PreviousTrees:      make(map[string]*types.Node),
			Diffs:              make(map[string][]types.DiffEntry),
			GeneratedChanges:   make(map[string][]types.DiffEntry),
		}
		cc.ReleaseFunc = r.release
		r.ctxes[id] = cc
		return cc, nil
	}
	return nil, types.NewError(types.Internal, "exhausted commit context id allocation after %d attempts", maxIDAttempts)
}

func (r *contextRegistry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ctxes, id)
}

// Get returns the live Commit Context for id, used by change-iteration
// queries and an external commit-release instruction (spec §4.8).
func (r *contextRegistry) Get(id string) (*types.CommitContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc, ok := r.ctxes[id]
	return cc, ok
}

// ForceRelease implements the "external commit-release instruction"
// escape hatch, releasing a context regardless of its waiters count.
func (r *contextRegistry) ForceRelease(id string) {
	r.mu.Lock()
	cc, ok := r.ctxes[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	cc.SetWaiters(0)
}
