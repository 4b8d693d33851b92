package session

import (
	"sync"

	"github.com/cuemby/yangstore/pkg/types"
)

// PendingRequest is the opaque, re-enqueueable request a session
// parks while WAITING_FOR_PROVIDER_DATA (spec §4.10); the Request
// Dispatcher and Operational-Data Broker own its concrete shape, the
// Session just carries the pointer.
type PendingRequest interface{}

// Session is the datastore's session (spec §3 "Session"): one id,
// one set of credentials, a current datastore, and a WorkingSet plus
// operation Log per datastore. Isolation is structural: a Session
// never shares its working sets with another, so it only ever sees
// its own uncommitted edits.
type Session struct {
	ID    string
	Creds types.Credentials

	mu                      sync.Mutex
	currentDatastore        types.Datastore
	workingSets             map[types.Datastore]*WorkingSet
	opLogs                  map[types.Datastore]*Log
	lockedFiles             map[string]struct{}
	holdsDatastoreLock      bool
	errorState              error
	state                   types.SessionState
	pendingRequest          PendingRequest
	commitIDForNotification string
}

// New builds a Session bound to startup/running/candidate datastores,
// all backed by loader, with schema used to prune the candidate
// working set's disabled subtrees and materialize the default
// re-materialization step described in spec §4.5/§4.7.
func New(id string, creds types.Credentials, ds types.Datastore, loader Loader, schema SchemaProvider, materialize func(string, []*types.Node) ([]*types.Node, error)) *Session {
	s := &Session{
		ID:               id,
		Creds:            creds,
		currentDatastore: ds,
		workingSets:      make(map[types.Datastore]*WorkingSet),
		opLogs:           make(map[types.Datastore]*Log),
		lockedFiles:      make(map[string]struct{}),
		state:            types.Idle,
	}
	for _, d := range []types.Datastore{types.Startup, types.Running, types.Candidate} {
		if d == types.Candidate {
			s.workingSets[d] = NewCandidateWorkingSet(loader, schema, id, materialize)
		} else {
			s.workingSets[d] = NewWorkingSet(d, loader, id, materialize)
		}
		s.opLogs[d] = NewLog()
	}
	return s
}

// CurrentDatastore reports the datastore this session is currently bound to.
func (s *Session) CurrentDatastore() types.Datastore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentDatastore
}

// SwitchDatastore rebinds the session's current datastore (spec §6
// "session-switch-ds").
func (s *Session) SwitchDatastore(ds types.Datastore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDatastore = ds
}

// WorkingSet returns the WorkingSet bound to ds.
func (s *Session) WorkingSet(ds types.Datastore) *WorkingSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingSets[ds]
}

// OpLog returns the operation Log bound to ds.
func (s *Session) OpLog(ds types.Datastore) *Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opLogs[ds]
}

// DiscardChanges empties ds's operation log and drops its working
// copies, per spec §4.6: changes are undone only this way.
func (s *Session) DiscardChanges(ds types.Datastore) {
	s.mu.Lock()
	ws, log := s.workingSets[ds], s.opLogs[ds]
	s.mu.Unlock()
	log.Clear()
	ws.Discard()
}

// State reports the session's current point in the explicit state
// machine (spec §3 "Session", §9 DESIGN NOTES).
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session's state.
func (s *Session) SetState(st types.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// HoldsDatastoreLock reports whether this session currently holds the
// exclusive datastore-global lock (spec §4.3).
func (s *Session) HoldsDatastoreLock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdsDatastoreLock
}

// SetHoldsDatastoreLock records whether this session holds the
// datastore-global lock.
func (s *Session) SetHoldsDatastoreLock(held bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdsDatastoreLock = held
}

// ErrorState reports the sticky error recorded against this session,
// or nil.
func (s *Session) ErrorState() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorState
}

// SetErrorState records err as the session's sticky error.
func (s *Session) SetErrorState(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorState = err
}

// PendingRequest returns the parked request set by SetPendingRequest, or nil.
func (s *Session) PendingRequest() PendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingRequest
}

// SetPendingRequest parks req for later re-enqueue (spec §4.10).
func (s *Session) SetPendingRequest(req PendingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRequest = req
}

// CommitIDForNotification returns the Commit Context id this session
// is bound to when it is itself a commit-local notification session
// (spec §4.8 Phase A), or "" if none.
func (s *Session) CommitIDForNotification() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitIDForNotification
}

// SetCommitIDForNotification binds this session to a Commit Context id.
func (s *Session) SetCommitIDForNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitIDForNotification = id
}

// AddLockedFile records that this session holds a file lock at path,
// so it can be released on session end.
func (s *Session) AddLockedFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedFiles[path] = struct{}{}
}

// RemoveLockedFile forgets a released file lock.
func (s *Session) RemoveLockedFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lockedFiles, path)
}

// LockedFiles lists the paths this session currently believes it holds a lock on.
func (s *Session) LockedFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.lockedFiles))
	for p := range s.lockedFiles {
		out = append(out, p)
	}
	return out
}
