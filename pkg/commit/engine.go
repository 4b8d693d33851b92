package commit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/yangstore/pkg/log"
	"github.com/cuemby/yangstore/pkg/metrics"
	"github.com/cuemby/yangstore/pkg/schema"
	"github.com/cuemby/yangstore/pkg/session"
	"github.com/cuemby/yangstore/pkg/types"
	"github.com/cuemby/yangstore/pkg/validator"
)

// LockSet is the narrow contract the Commit Engine needs from the Lock
// Set (pkg/lockset.Set satisfies it).
type LockSet interface {
	LockModule(ctx context.Context, key, owner string, write, blocking bool) error
	LockFile(ctx context.Context, path, owner string, write, blocking bool) error
	Unlock(key, owner string) error
}

// DataStore is the narrow contract the Commit Engine needs from the
// Data Store (pkg/datastore.Store satisfies it).
type DataStore interface {
	Load(ctx context.Context, module string, ds types.Datastore, owner string) (*types.DataInfo, error)
	Write(module string, ds types.Datastore, roots []*types.Node) error
	FilePath(module string, ds types.Datastore) string
}

// Validator is the narrow contract the Commit Engine needs from the
// Validator (pkg/validator.Validator satisfies it).
type Validator interface {
	Validate(module string, root *types.Node) []validator.ValidationError
}

// SchemaProvider is the narrow contract the Commit Engine needs from
// the Schema Registry.
type SchemaProvider interface {
	Get(module, revision string) (*types.SchemaInfo, error)
}

// SubscriptionSource supplies the per-module subscription snapshot a
// commit fans VERIFY/NOTIFY events out to (pkg/subscription.Registry
// satisfies it).
type SubscriptionSource interface {
	Snapshot(module string) []types.Subscription
}

// Notifier delivers a VERIFY or NOTIFY event for one subscription,
// carrying the diff entries that matched it (pkg/subscription.Registry
// satisfies it). A non-nil error from a VERIFY delivery fails the
// commit; a NOTIFY delivery error is logged but never rolls back an
// already-persisted commit (spec §7 "Propagation").
type Notifier interface {
	Deliver(ctx context.Context, phase string, commitID, module string, sub types.Subscription, diffs []types.DiffEntry) error
}

// Engine is the Commit Engine (spec §4.8): orchestrates the four-phase
// commit described in the package doc.
type Engine struct {
	locks    LockSet
	store    DataStore
	validate Validator
	schema   SchemaProvider
	subs     SubscriptionSource
	notify   Notifier
	contexts *contextRegistry

	mu             sync.Mutex
	lastCommitTime time.Time
	granularity    time.Duration
}

// New builds a Commit Engine over the given collaborators. granularity
// is the freshness "granularity threshold" of spec §3 "Timestamps".
func New(locks LockSet, store DataStore, v Validator, sp SchemaProvider, subs SubscriptionSource, notify Notifier, granularity time.Duration) *Engine {
	return &Engine{
		locks:       locks,
		store:       store,
		validate:    v,
		schema:      sp,
		subs:        subs,
		notify:      notify,
		contexts:    newContextRegistry(),
		granularity: granularity,
	}
}

// LastCommitTime returns the engine-wide timestamp of the most recent
// successful commit (spec §3 "Timestamps").
func (e *Engine) LastCommitTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCommitTime
}

func (e *Engine) setLastCommitTime(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastCommitTime = t
}

// Context returns the live Commit Context for id, used for
// change-iteration queries (spec §4.8 "Commit Context lifecycle").
func (e *Engine) Context(id string) (*types.CommitContext, bool) {
	return e.contexts.Get(id)
}

// ForceRelease implements the external commit-release instruction.
func (e *Engine) ForceRelease(id string) {
	e.contexts.ForceRelease(id)
}

// replayModule replays only the entries of log addressed at module
// onto post, leaving every other module's entries untouched (a
// session's operation log is shared across all modules it has
// touched, per pkg/session.Session).
func replayModule(log *session.Log, module string, post *types.Node) {
	log.Replay(func(op *types.Operation) error {
		if op.Module != module {
			return nil
		}
		return session.ApplyOperation(post, module, op)
	})
}

func lockKey(ds types.Datastore, module string) string {
	return fmt.Sprintf("%s:%s", ds, module)
}

// Result is the outcome of a Commit call: the Commit Context id and,
// on validation failure, the per-module errors that caused the abort.
type Result struct {
	ID           string
	ModuleErrors map[string][]validator.ValidationError
}

// Commit runs the full four-phase pipeline against sess's current
// datastore, committing every module sess has modified.
func (e *Engine) Commit(ctx context.Context, sess *session.Session, owner string) (*Result, error) {
	source := sess.CurrentDatastore()
	target := source
	if source == types.Candidate {
		target = types.Running
	}

	ws := sess.WorkingSet(source)
	modules := ws.Modules()
	if len(modules) == 0 {
		return &Result{}, nil
	}
	sort.Strings(modules)

	// Phase A: prepare context.
	cc, err := e.contexts.allocate(sess.ID)
	if err != nil {
		return nil, err
	}
	subsSnapshot := make(map[string][]types.Subscription, len(modules))
	for _, m := range modules {
		subs := append([]types.Subscription(nil), e.subs.Snapshot(m)...)
		sort.SliceStable(subs, func(i, j int) bool { return subs[i].Priority > subs[j].Priority })
		subsSnapshot[m] = subs
	}
	log.WithComponent("commit").Debug().Str("commit_id", cc.ID).Int("modules", len(modules)).Msg("phase A: prepare context")

	// Phase B: lock & load.
	timerB := metrics.NewTimer()
	var acquired []string
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			_ = e.locks.Unlock(acquired[i], owner)
		}
	}
	defer release()

	for _, m := range modules {
		tk := lockKey(target, m)
		if err := e.locks.LockModule(ctx, tk, owner, true, true); err != nil {
			metrics.CommitsTotal.WithLabelValues("locked").Inc()
			return nil, err
		}
		acquired = append(acquired, tk)

		if source == types.Candidate {
			ck := lockKey(types.Candidate, m)
			if err := e.locks.LockModule(ctx, ck, owner, true, true); err != nil {
				metrics.CommitsTotal.WithLabelValues("locked").Inc()
				return nil, err
			}
			acquired = append(acquired, ck)
		}

		filePath := e.store.FilePath(m, target) + ".lock"
		if err := e.locks.LockFile(ctx, filePath, owner, true, false); err != nil {
			metrics.CommitsTotal.WithLabelValues("operation_failed").Inc()
			return nil, types.NewError(types.OperationFailed, "acquire write lock for %s: %v", m, err)
		}
		acquired = append(acquired, filePath)
	}

	if source == types.Candidate {
		if err := e.verifyEnabledSubtrees(ws, modules); err != nil {
			metrics.CommitsTotal.WithLabelValues("operation_failed").Inc()
			return nil, err
		}
	}

	var optimized map[string]bool
	if source != types.Candidate {
		optimized, err = ws.Refresh(e.LastCommitTime(), e.granularity)
		if err != nil {
			return nil, err
		}
	}

	prevTrees := make(map[string]*types.Node, len(modules))
	postTrees := make(map[string]*types.Node, len(modules))
	moduleErrors := make(map[string][]validator.ValidationError)

	for _, m := range modules {
		prevInfo, err := e.store.Load(ctx, m, target, owner)
		if err != nil {
			return nil, err
		}
		prevTrees[m] = prevInfo.Root

		var post *types.Node
		if source == types.Candidate {
			// The candidate working tree already reflects every
			// logged operation (pkg/engine.edit applies each edit
			// in place as it's logged) — replaying the log again
			// here would double-apply every operation onto a tree
			// that already has it, turning a successful strict
			// set/delete into a spurious DATA_EXISTS/DATA_MISSING.
			post = ws.Peek(m).Root
		} else if optimized[m] {
			post = ws.Peek(m).Root
		} else {
			post = prevInfo.Root.Clone()
			replayModule(sess.OpLog(source), m, post)
		}
		postTrees[m] = post

		if errs := e.validate.Validate(m, post); len(errs) > 0 {
			moduleErrors[m] = errs
		}
	}
	timerB.ObserveDurationVec(metrics.CommitPhaseDuration, "lock_load")

	if len(moduleErrors) > 0 {
		metrics.CommitsTotal.WithLabelValues("validation_failed").Inc()
		return &Result{ID: cc.ID, ModuleErrors: moduleErrors}, types.NewError(types.ValidationFailed, "validation failed for %d module(s)", len(moduleErrors))
	}

	// Phase C: diff & verify.
	timerC := metrics.NewTimer()
	skipFanout := target == types.Startup
	schemaRoots := make(map[string]*types.SchemaNode, len(modules))
	for _, m := range modules {
		diff := diffTrees(prevTrees[m], postTrees[m])
		cc.Diffs[m] = diff

		if skipFanout {
			continue
		}
		sinfo, err := e.schema.Get(m, "")
		if err != nil {
			continue
		}
		schemaRoots[m] = sinfo.Root
		for _, sub := range subsSnapshot[m] {
			if !sub.WantsVerify() {
				continue
			}
			matched := matchingEntries(schemaRoots[m], postTrees[m], sub, diff)
			if len(matched) == 0 {
				continue
			}
			if err := e.notify.Deliver(ctx, "VERIFY", cc.ID, m, sub, matched); err != nil {
				metrics.CommitsTotal.WithLabelValues("verify_failed").Inc()
				timerC.ObserveDurationVec(metrics.CommitPhaseDuration, "diff_verify")
				return &Result{ID: cc.ID}, types.NewError(types.OperationFailed, "verify rejected by subscriber for module %s: %v", m, err)
			}
		}
	}
	timerC.ObserveDurationVec(metrics.CommitPhaseDuration, "diff_verify")

	// Phase D: persist & notify.
	timerD := metrics.NewTimer()
	generatedChanges := make(map[string][]types.DiffEntry, len(modules))
	for _, m := range modules {
		if err := e.store.Write(m, target, postTrees[m].Children); err != nil {
			metrics.CommitsTotal.WithLabelValues("internal").Inc()
			return &Result{ID: cc.ID}, types.NewError(types.Internal, "persist %s: %v", m, err)
		}
		generatedChanges[m] = cc.Diffs[m]
	}
	cc.GeneratedChanges = generatedChanges
	e.setLastCommitTime(time.Now())

	type delivery struct {
		module string
		sub    types.Subscription
		diffs  []types.DiffEntry
	}
	var deliveries []delivery
	for _, m := range modules {
		if skipFanout {
			continue
		}
		for _, sub := range subsSnapshot[m] {
			if !sub.WantsNotify() {
				continue
			}
			matched := matchingEntries(schemaRoots[m], postTrees[m], sub, cc.Diffs[m])
			if len(matched) == 0 {
				continue
			}
			deliveries = append(deliveries, delivery{module: m, sub: sub, diffs: matched})
		}
	}
	// The waiter count is set before any delivery starts, so an early
	// acknowledgment is always counted.
	cc.SetWaiters(len(deliveries))
	for _, d := range deliveries {
		go func(module string, sub types.Subscription, diffs []types.DiffEntry) {
			if err := e.notify.Deliver(ctx, "NOTIFY", cc.ID, module, sub, diffs); err != nil {
				log.WithComponent("commit").Warn().Str("commit_id", cc.ID).Str("module", module).Err(err).Msg("notify delivery failed")
			}
			cc.Acknowledge()
		}(d.module, d.sub, d.diffs)
	}
	timerD.ObserveDurationVec(metrics.CommitPhaseDuration, "persist_notify")
	metrics.CommitsTotal.WithLabelValues("ok").Inc()

	for _, m := range modules {
		ws.Put(m, &types.DataInfo{Module: m, Root: postTrees[m], Modified: false, LastLoad: time.Now()})
	}
	sess.OpLog(source).Clear()

	return &Result{ID: cc.ID}, nil
}

func (e *Engine) verifyEnabledSubtrees(ws *session.WorkingSet, modules []string) error {
	for _, m := range modules {
		info := ws.Peek(m)
		if info == nil {
			continue
		}
		sinfo, err := e.schema.Get(m, "")
		if err != nil || sinfo.Root == nil {
			continue
		}
		for _, top := range info.Root.Children {
			csn := sinfo.Root.FindChild(top.Name)
			if csn == nil || !csn.EnablementPath() {
				return types.NewXPathError(types.OperationFailed, top.Path(), "top-level node belongs to a disabled subtree")
			}
		}
	}
	return nil
}

// matchingEntries filters diff to the entries that match sub per spec
// §4.9's three-rule predicate: an ancestor-or-self subscription on the
// changed node (rule 1), or a subscription nested under a created or
// deleted subtree (rule 2). schemaRoot is cached by the caller across
// the VERIFY and NOTIFY passes over the same module.
func matchingEntries(schemaRoot *types.SchemaNode, dataRoot *types.Node, sub types.Subscription, diff []types.DiffEntry) []types.DiffEntry {
	if schemaRoot == nil {
		return nil
	}
	var subSchema *types.SchemaNode
	if sub.XPath == "" {
		subSchema = schemaRoot
	} else {
		var err error
		subSchema, err = schema.ResolvePath(schemaRoot, sub.XPath)
		if err != nil {
			return nil
		}
	}

	var out []types.DiffEntry
	for _, entry := range diff {
		if entry.Node == nil {
			continue
		}
		dataSchema := schemaNodeForDataNode(schemaRoot, dataRoot, entry.Node)
		if dataSchema == nil {
			continue
		}
		if subSchema.IsAncestorOf(dataSchema) {
			out = append(out, entry)
			continue
		}
		if dataSchema.IsAncestorOf(subSchema) && (entry.Op == types.Created || entry.Op == types.Deleted) {
			if walkForSchema(entry.Node, dataRoot, schemaRoot, subSchema) {
				out = append(out, entry)
			}
		}
	}
	return out
}

// schemaNodeForDataNode resolves the SchemaNode corresponding to n by
// walking n's ancestor chain up to the root of the tree n belongs to
// (dataRoot, or the pre-commit root for a DELETED entry's node) and
// replaying the same names down from schemaRoot.
func schemaNodeForDataNode(schemaRoot *types.SchemaNode, dataRoot, n *types.Node) *types.SchemaNode {
	var names []string
	for cur := n; cur != nil && cur != dataRoot && cur.Parent != nil; cur = cur.Parent {
		names = append([]string{cur.Name}, names...)
	}
	cur := schemaRoot
	for _, name := range names {
		if cur == nil {
			return nil
		}
		cur = cur.FindChild(name)
	}
	return cur
}

func walkForSchema(n *types.Node, dataRoot *types.Node, schemaRoot *types.SchemaNode, target *types.SchemaNode) bool {
	if schemaNodeForDataNode(schemaRoot, dataRoot, n) == target {
		return true
	}
	for _, c := range n.Children {
		if walkForSchema(c, dataRoot, schemaRoot, target) {
			return true
		}
	}
	return false
}
