package lockset

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/cuemby/yangstore/pkg/metrics"
	"github.com/cuemby/yangstore/pkg/types"
)

type lockEntry struct {
	owner   string
	write   bool
	kind    types.LockKind
	waiters int
	flk     *flock.Flock
}

// Set is the Lock Set (spec §4.3): module locks (logical, in-memory,
// coordinated by a condition variable) and file locks (advisory, via
// gofrs/flock) behind one table.
type Set struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[string]*lockEntry
}

// NewSet builds an empty Lock Set.
func NewSet() *Set {
	s := &Set{held: make(map[string]*lockEntry)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// LockModule acquires the in-memory module lock named key on behalf of
// owner. Re-acquisition by the same owner is a no-op. With blocking,
// the caller waits (cancellable via ctx) until the lock is free; without,
// it returns a Locked error immediately if held by another owner.
func (s *Set) LockModule(ctx context.Context, key, owner string, write, blocking bool) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		e, exists := s.held[key]
		if !exists {
			s.held[key] = &lockEntry{owner: owner, write: write, kind: types.ModuleLock}
			metrics.LocksHeld.WithLabelValues("module").Inc()
			return nil
		}
		if e.owner == owner {
			return nil
		}
		if !blocking {
			metrics.LockContentionTotal.Inc()
			return types.NewError(types.Locked, "module lock %q held by another session", key)
		}
		e.waiters++
		metrics.LockContentionTotal.Inc()
		waitWithContext(s.cond, ctx)
		e.waiters--
		if ctx.Err() != nil {
			metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
			return types.NewError(types.TimedOut, "timed out waiting for module lock %q", key)
		}
	}
}

// LockFile acquires an advisory OS-level lock on the file at path,
// backed by gofrs/flock. Non-blocking acquisition is a single
// try-lock, and fails at once with Locked when another local owner
// holds the in-process record for this path; blocking polls the OS
// lock until acquired or ctx is done.
func (s *Set) LockFile(ctx context.Context, path, owner string, write, blocking bool) error {
	s.mu.Lock()
	if e, exists := s.held[path]; exists {
		held := e.owner == owner
		s.mu.Unlock()
		if held {
			return nil
		}
		if !blocking {
			metrics.LockContentionTotal.Inc()
			return types.NewError(types.Locked, "file lock %q held by another session", path)
		}
	} else {
		s.mu.Unlock()
	}

	flk := flock.New(path)
	var locked bool
	var err error
	start := time.Now()
	if blocking {
		locked, err = flk.TryLockContext(ctx, 25*time.Millisecond)
	} else {
		locked, err = flk.TryLock()
	}
	if err != nil {
		return types.NewError(types.IO, "acquire file lock %q: %v", path, err)
	}
	if !locked {
		metrics.LockContentionTotal.Inc()
		if ctx.Err() != nil {
			metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
			return types.NewError(types.TimedOut, "timed out waiting for file lock %q", path)
		}
		return types.NewError(types.Locked, "file lock %q held by another process", path)
	}
	if blocking {
		metrics.LockWaitDuration.Observe(time.Since(start).Seconds())
	}

	s.mu.Lock()
	s.held[path] = &lockEntry{owner: owner, write: write, kind: types.FileLock, flk: flk}
	s.mu.Unlock()
	metrics.LocksHeld.WithLabelValues("file").Inc()
	return nil
}

// RLockFile acquires a shared (read) advisory lock on path, usable
// concurrently by any number of readers and mutually exclusive with a
// writer's LockFile — the OS-level flock(2) semantics gofrs/flock
// exposes via TryRLock. Shared locks are not recorded in this Set's
// in-process table (reads never contend with each other, so there is
// nothing to track); when owner itself already holds path through
// LockFile, the read is covered by that lock and no shared lock is
// taken. The returned release func must be called exactly once.
func (s *Set) RLockFile(ctx context.Context, path, owner string) (func() error, error) {
	s.mu.Lock()
	e, exists := s.held[path]
	s.mu.Unlock()
	if exists && e.owner == owner {
		return func() error { return nil }, nil
	}

	flk := flock.New(path)
	deadline, hasDeadline := ctx.Deadline()
	for {
		locked, err := flk.TryRLock()
		if err != nil {
			return nil, types.NewError(types.IO, "acquire shared file lock %q: %v", path, err)
		}
		if locked {
			metrics.LocksHeld.WithLabelValues("file").Inc()
			return func() error {
				metrics.LocksHeld.WithLabelValues("file").Dec()
				err := flk.Unlock()
				_ = flk.Close()
				return err
			}, nil
		}
		if hasDeadline && time.Now().After(deadline) {
			return nil, types.NewError(types.TimedOut, "timed out waiting for shared file lock %q", path)
		}
		select {
		case <-ctx.Done():
			return nil, types.NewError(types.TimedOut, "timed out waiting for shared file lock %q", path)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Unlock releases key if held by owner; returns Internal ("invalid" in
// spec terms) if not held by the caller.
func (s *Set) Unlock(key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.held[key]
	if !ok || e.owner != owner {
		return types.NewError(types.Internal, "lock %q not held by %s", key, owner)
	}
	if e.flk != nil {
		_ = e.flk.Unlock()
		_ = e.flk.Close()
	}
	delete(s.held, key)
	metrics.LocksHeld.WithLabelValues(lockKindLabel(e.kind)).Dec()
	s.cond.Broadcast()
	return nil
}

// UnlockAllOwnedBy releases every lock currently held by owner, used
// when a session ends (spec §4.3: "Locks are released automatically on
// session end").
func (s *Set) UnlockAllOwnedBy(owner string) {
	s.mu.Lock()
	var toRelease []string
	for key, e := range s.held {
		if e.owner == owner {
			toRelease = append(toRelease, key)
		}
	}
	s.mu.Unlock()
	for _, key := range toRelease {
		_ = s.Unlock(key, owner)
	}
}

// LockAll acquires the datastore-global lock (datastoreKey) then every
// module key in moduleKeys, in the order given (callers pass
// dependency order per depindex.LoadOrder). On any failure it releases
// everything it acquired, including the datastore lock, and returns the
// offending error.
func (s *Set) LockAll(ctx context.Context, datastoreKey string, moduleKeys []string, owner string) (func(), error) {
	if err := s.LockModule(ctx, datastoreKey, owner, true, true); err != nil {
		return nil, err
	}
	acquired := []string{datastoreKey}
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = s.Unlock(acquired[i], owner)
		}
	}
	for _, m := range moduleKeys {
		if err := s.LockModule(ctx, m, owner, true, false); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, m)
	}
	return release, nil
}

// CountByKind reports the number of currently held locks per kind,
// consumed by metrics.Collector.
func (s *Set) CountByKind() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int{"module": 0, "file": 0}
	for _, e := range s.held {
		out[lockKindLabel(e.kind)]++
	}
	return out
}

func lockKindLabel(k types.LockKind) string {
	if k == types.FileLock {
		return "file"
	}
	return "module"
}

// waitWithContext calls cond.Wait (the caller must hold cond.L), but
// returns early if ctx is cancelled by spawning a watcher goroutine
// that broadcasts on cancellation.
func waitWithContext(cond *sync.Cond, ctx context.Context) {
	if ctx.Done() == nil {
		cond.Wait()
		return
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		case <-stop:
		}
	}()
	cond.Wait()
	close(stop)
}
