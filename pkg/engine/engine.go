package engine

import (
	"context"
	"time"

	"github.com/cuemby/yangstore/pkg/commit"
	"github.com/cuemby/yangstore/pkg/datastore"
	"github.com/cuemby/yangstore/pkg/depindex"
	"github.com/cuemby/yangstore/pkg/dispatcher"
	"github.com/cuemby/yangstore/pkg/lockset"
	"github.com/cuemby/yangstore/pkg/opdata"
	"github.com/cuemby/yangstore/pkg/schema"
	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/subscription"
	"github.com/cuemby/yangstore/pkg/types"
	"github.com/cuemby/yangstore/pkg/validator"
)

// Config collects every collaborator and tunable the Engine needs to
// wire the whole stack. SchemaLoader and FeatureStore are true
// collaborators (schema compilation and persisted settings are out of
// scope per spec §1 Non-goals); the caller supplies concrete
// implementations appropriate to its deployment.
type Config struct {
	RepoRoot               string
	SchemaLoader           types.SchemaLoader
	FeatureStore           types.FeatureStore
	SubscriberDialer       subscription.Dialer
	ProviderTransport      opdata.ProviderTransport
	CommitGranularity      time.Duration
	OperationalDataTimeout time.Duration
	Dispatcher             dispatcher.Config
}

// Engine is the single process-wide value described in DESIGN NOTES
// §9 "Global mutable state": every subsystem is a field here, wired
// once by New.
type Engine struct {
	Schema    *schema.Registry
	Deps      *depindex.Index
	Locks     *lockset.Set
	Store     *datastore.Store
	Validator *validator.Validator
	Subs      *subscription.Registry
	OpData    *opdata.Broker
	Commit    *commit.Engine
	Dispatch  *dispatcher.Dispatcher

	sessions *sessionRegistry
}

// New wires every subsystem per SPEC_FULL.md §4 and starts the
// Request Dispatcher's worker pool.
func New(cfg Config) (*Engine, error) {
	if cfg.CommitGranularity <= 0 {
		cfg.CommitGranularity = time.Second
	}
	if cfg.OperationalDataTimeout <= 0 {
		cfg.OperationalDataTimeout = 5 * time.Second
	}
	if cfg.SubscriberDialer == nil {
		cfg.SubscriberDialer = subscription.UnixDialer{}
	}
	if cfg.ProviderTransport == nil {
		cfg.ProviderTransport = opdata.UnixProviderTransport{}
	}

	schemaRegistry := schema.NewRegistry(cfg.SchemaLoader, cfg.FeatureStore)
	v := validator.New(schemaRegistry)
	locks := lockset.NewSet()

	store, err := datastore.NewStore(cfg.RepoRoot, locks, v.Materialize)
	if err != nil {
		return nil, err
	}

	subs := subscription.New(cfg.SubscriberDialer)
	opBroker := opdata.New(cfg.ProviderTransport, subs, cfg.OperationalDataTimeout)
	commitEngine := commit.New(locks, store, v, schemaRegistry, subs, subs, cfg.CommitGranularity)

	e := &Engine{
		Schema:    schemaRegistry,
		Deps:      depindex.NewIndex(),
		Locks:     locks,
		Store:     store,
		Validator: v,
		Subs:      subs,
		OpData:    opBroker,
		Commit:    commitEngine,
		Dispatch:  dispatcher.New(cfg.Dispatcher),
		sessions:  newSessionRegistry(),
	}
	return e, nil
}

// Stop releases the Dispatcher's worker pool. Subsystems with no
// background goroutines (Schema, Locks, Store, Commit) need no
// teardown of their own.
func (e *Engine) Stop() {
	e.Dispatch.Stop()
}

// OpenSession starts a new Session bound to ds (spec §3 "Session").
// The candidate working set is pruned against the Schema Registry's
// enablement state and re-materializes defaults through the
// Validator, exactly as a direct running/startup working set does.
func (e *Engine) OpenSession(creds types.Credentials, ds types.Datastore) *session.Session {
	return e.sessions.open(creds, ds, e.Store, e.Schema, e.Validator.Materialize)
}

// CloseSession ends sess: releases any locks it still holds and drops
// it from the registry (spec §4.3 "locks are released when their
// owning session ends").
func (e *Engine) CloseSession(sess *session.Session) {
	e.Locks.UnlockAllOwnedBy(sess.ID)
	e.sessions.close(sess.ID)
	e.Dispatch.ForgetSession(sess.ID)
}

// Session looks up a still-open session by id, for a transport layer
// resuming a parked request.
func (e *Engine) Session(id string) (*session.Session, bool) {
	return e.sessions.get(id)
}

// SetItem applies a SET edit immediately against sess's working tree
// for module and appends it to the session's operation log (spec
// §4.6). module names the top-level container/list/leaf the xpath
// addresses into; callers supply it explicitly since resolving a
// YANG prefix out of xpath itself is an XPath-engine concern the core
// does not implement (spec §1 Non-goals).
func (e *Engine) SetItem(ctx context.Context, sess *session.Session, module, xpath string, value types.Value, flags types.EditFlags) error {
	return e.edit(ctx, sess, types.Operation{
		Module: module,
		Kind:   types.OpSet,
		XPath:  xpath,
		Value:  value,
		Flags:  flags,
	})
}

// DeleteItem applies a DELETE edit (spec §4.6).
func (e *Engine) DeleteItem(ctx context.Context, sess *session.Session, module, xpath string, flags types.EditFlags) error {
	return e.edit(ctx, sess, types.Operation{
		Module: module,
		Kind:   types.OpDelete,
		XPath:  xpath,
		Flags:  flags,
	})
}

// MoveItem applies a MOVE edit on a user-ordered list or leaf-list
// (spec §4.6).
func (e *Engine) MoveItem(ctx context.Context, sess *session.Session, module, xpath string, pos types.MovePosition, relXPath string) error {
	return e.edit(ctx, sess, types.Operation{
		Module:   module,
		Kind:     types.OpMove,
		XPath:    xpath,
		Position: pos,
		RelXPath: relXPath,
	})
}

func (e *Engine) edit(ctx context.Context, sess *session.Session, op types.Operation) error {
	ws := sess.WorkingSet(sess.CurrentDatastore())
	info, err := ws.GetOrLoad(ctx, op.Module)
	if err != nil {
		return err
	}
	if err := session.ApplyOperation(info.Root, op.Module, &op); err != nil {
		op.HasError = true
		sess.OpLog(sess.CurrentDatastore()).Append(op)
		return err
	}
	info.Modified = true
	sess.OpLog(sess.CurrentDatastore()).Append(op)
	return nil
}

// GetItem resolves xpath against sess's current working tree for
// module, loading it on first reference (spec §4.5 "lazy per-module
// load").
func (e *Engine) GetItem(ctx context.Context, sess *session.Session, module, xpath string) (*types.Node, error) {
	ws := sess.WorkingSet(sess.CurrentDatastore())
	info, err := ws.GetOrLoad(ctx, module)
	if err != nil {
		return nil, err
	}
	return session.FindNode(info.Root, xpath)
}

// ValidateSession runs full structural validation on every module
// sess has modified in its current datastore (spec §4.7
// "validate(session)").
func (e *Engine) ValidateSession(sess *session.Session) []validator.ValidationError {
	ws := sess.WorkingSet(sess.CurrentDatastore())
	var errs []validator.ValidationError
	for _, m := range ws.Modules() {
		info := ws.Peek(m)
		if info == nil || !info.Modified {
			continue
		}
		errs = append(errs, e.Validator.Validate(m, info.Root)...)
	}
	return errs
}

// LockModule acquires the advisory module-scoped lock sess's owner id
// names (spec §4.3).
func (e *Engine) LockModule(ctx context.Context, sess *session.Session, ds types.Datastore, module string, blocking bool) error {
	key := ds.String() + ":" + module
	return e.Locks.LockModule(ctx, key, sess.ID, true, blocking)
}

// UnlockModule releases a module lock sess holds.
func (e *Engine) UnlockModule(sess *session.Session, ds types.Datastore, module string) error {
	key := ds.String() + ":" + module
	return e.Locks.Unlock(key, sess.ID)
}

// LockDatastore acquires the exclusive whole-datastore lock, refusing
// if sess's current working set holds any uncommitted modification
// (spec §8 property 6 "Lock hierarchy").
func (e *Engine) LockDatastore(ctx context.Context, sess *session.Session, ds types.Datastore, blocking bool) error {
	ws := sess.WorkingSet(ds)
	for _, m := range ws.Modules() {
		if info := ws.Peek(m); info != nil && info.Modified {
			return types.NewError(types.OperationFailed, "cannot lock %s: session has uncommitted changes", ds.String())
		}
	}
	if err := e.Locks.LockModule(ctx, ds.String(), sess.ID, true, blocking); err != nil {
		return err
	}
	sess.SetHoldsDatastoreLock(true)
	return nil
}

// UnlockDatastore releases the whole-datastore lock.
func (e *Engine) UnlockDatastore(sess *session.Session, ds types.Datastore) error {
	if err := e.Locks.Unlock(ds.String(), sess.ID); err != nil {
		return err
	}
	sess.SetHoldsDatastoreLock(false)
	return nil
}

// CommitSession runs the four-phase Commit Engine over every module
// sess has touched in its current datastore (spec §4.8).
func (e *Engine) CommitSession(ctx context.Context, sess *session.Session) (*commit.Result, error) {
	return e.Commit.Commit(ctx, sess, sess.ID)
}

// SessionCountByDatastore implements metrics.Stats.
func (e *Engine) SessionCountByDatastore() map[string]int {
	return e.sessions.countByDatastore()
}

// LockCountByKind implements metrics.Stats.
func (e *Engine) LockCountByKind() map[string]int {
	return e.Locks.CountByKind()
}

// SubscriptionCountByKind implements metrics.Stats.
func (e *Engine) SubscriptionCountByKind() map[string]int {
	return e.Subs.CountByKind()
}
