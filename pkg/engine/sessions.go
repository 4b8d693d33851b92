package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/types"
)

// sessionRegistry tracks every open Session so the dispatcher can look
// one up by id and the metrics Collector can report counts per
// datastore. Sessions themselves stay ignorant of this bookkeeping,
// matching the teacher's convention of keeping a manager's owned
// collections separate from the objects they own.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	nextID   uint64
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session.Session)}
}

func (r *sessionRegistry) open(creds types.Credentials, ds types.Datastore, loader session.Loader, schema session.SchemaProvider, materialize func(string, []*types.Node) ([]*types.Node, error)) *session.Session {
	id := fmt.Sprintf("sess-%d", atomic.AddUint64(&r.nextID, 1))
	sess := session.New(id, creds, ds, loader, schema, materialize)

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return sess
}

func (r *sessionRegistry) get(id string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// countByDatastore reports how many open sessions are currently bound
// to each datastore (spec's session count is keyed by current
// binding, which can change via session-switch-ds).
func (r *sessionRegistry) countByDatastore() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string]int{"startup": 0, "running": 0, "candidate": 0}
	for _, s := range r.sessions {
		out[s.CurrentDatastore().String()]++
	}
	return out
}
