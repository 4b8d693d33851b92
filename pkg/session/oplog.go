package session

import (
	"sync"

	"github.com/cuemby/yangstore/pkg/types"
)

// Log is the append-only per-(session, datastore) operation log (spec
// §4.6). Each edit API call records exactly one entry; the log is the
// sole owner of its entries until they are freed by Clear or Replay.
type Log struct {
	mu      sync.Mutex
	entries []types.Operation
}

// NewLog builds an empty operation log.
func NewLog() *Log {
	return &Log{}
}

// Append records op as the newest entry.
func (l *Log) Append(op types.Operation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, op)
}

// Entries returns a snapshot copy of the log, oldest first.
func (l *Log) Entries() []types.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Operation, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries currently logged.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear empties the log, freeing its entries (spec §3 "Operation":
// "entries are freed when the log is cleared or the session ends").
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Replay applies every entry in order against the refreshed base via
// apply (spec §4.6 "Replay semantics"). An entry whose apply call
// errors has its HasError flag set and is removed before the rest of
// the pass continues; the whole pass repeats while errors keep
// shrinking the log, so a later entry's success can depend on an
// earlier one having been dropped. It stops retrying once a pass
// produces no errors, or once a pass removes nothing (the log has
// stabilized with irreducible failures).
func (l *Log) Replay(apply func(op *types.Operation) error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		before := len(l.entries)
		remaining := l.entries[:0]
		anyError := false
		for i := range l.entries {
			op := l.entries[i]
			if err := apply(&op); err != nil {
				op.HasError = true
				anyError = true
				continue
			}
			remaining = append(remaining, op)
		}
		l.entries = remaining
		if !anyError {
			return
		}
		if len(l.entries) == before {
			// no progress possible: every remaining entry still errors.
			return
		}
	}
}
