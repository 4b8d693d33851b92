package session

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/yangstore/pkg/types"
)

// Loader is the narrow contract a WorkingSet needs from the Data Store
// (pkg/datastore.Store satisfies it): load a module's tree and report
// its on-disk mtime.
type Loader interface {
	Load(ctx context.Context, module string, ds types.Datastore, owner string) (*types.DataInfo, error)
	Mtime(module string, ds types.Datastore) (time.Time, error)
}

// SchemaProvider is the narrow contract needed to resolve a module's
// schema root for candidate pruning (pkg/schema.Registry satisfies
// it).
type SchemaProvider interface {
	Get(module, revision string) (*types.SchemaInfo, error)
}

// WorkingSet is the per-datastore map module_name -> Data Info (spec
// §4.5). The candidate variant loads from running and prunes disabled
// subtrees before re-materializing defaults.
type WorkingSet struct {
	mu         sync.Mutex
	ds         types.Datastore
	owner      string
	loader     Loader
	schema     SchemaProvider // nil except for the candidate working set
	materialize func(module string, roots []*types.Node) ([]*types.Node, error)
	entries    map[string]*types.DataInfo
}

// NewWorkingSet builds a WorkingSet bound to datastore ds, loading
// through loader on a miss and materializing defaults via materialize
// (nil is allowed: trees are then returned as stored).
func NewWorkingSet(ds types.Datastore, loader Loader, owner string, materialize func(string, []*types.Node) ([]*types.Node, error)) *WorkingSet {
	return &WorkingSet{
		ds:          ds,
		owner:       owner,
		loader:      loader,
		materialize: materialize,
		entries:     make(map[string]*types.DataInfo),
	}
}

// NewCandidateWorkingSet builds the candidate variant: get_or_load
// loads module from running, clones it, prunes nodes whose schema
// ancestry is DISABLED, then re-materializes defaults (spec §4.5: "For
// candidate it loads from running and then prunes nodes whose schema
// ancestry is DISABLED before re-materializing defaults").
func NewCandidateWorkingSet(loader Loader, schema SchemaProvider, owner string, materialize func(string, []*types.Node) ([]*types.Node, error)) *WorkingSet {
	return &WorkingSet{
		ds:          types.Candidate,
		owner:       owner,
		loader:      loader,
		schema:      schema,
		materialize: materialize,
		entries:     make(map[string]*types.DataInfo),
	}
}

// GetOrLoad returns the cached Data Info for module, loading it on a
// miss (spec §4.5: "get_or_load(module) returns an existing entry,
// otherwise asks Data Store to load, then inserts").
func (w *WorkingSet) GetOrLoad(ctx context.Context, module string) (*types.DataInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if info, ok := w.entries[module]; ok {
		return info, nil
	}

	var info *types.DataInfo
	var err error
	if w.ds == types.Candidate && w.schema != nil {
		info, err = w.loadCandidate(ctx, module)
	} else {
		info, err = w.loader.Load(ctx, module, w.ds, w.owner)
	}
	if err != nil {
		return nil, err
	}
	w.entries[module] = info
	return info, nil
}

func (w *WorkingSet) loadCandidate(ctx context.Context, module string) (*types.DataInfo, error) {
	base, err := w.loader.Load(ctx, module, types.Running, w.owner)
	if err != nil {
		return nil, err
	}
	root := base.Root.Clone()

	if sinfo, err := w.schema.Get(module, ""); err == nil && sinfo != nil && sinfo.Root != nil {
		pruneDisabled(root, sinfo.Root)
	}

	roots := []*types.Node{root}
	if w.materialize != nil {
		roots, err = w.materialize(module, roots)
		if err != nil {
			return nil, err
		}
	}
	if len(roots) > 0 {
		root = roots[0]
	}

	return &types.DataInfo{
		Module:   module,
		Root:     root,
		Modified: false,
		LastLoad: time.Now(),
	}, nil
}

// pruneDisabled removes, in place, every child of n whose schema
// counterpart under sn is DISABLED, recursing into children that
// survive.
func pruneDisabled(n *types.Node, sn *types.SchemaNode) {
	if n == nil || sn == nil {
		return
	}
	kept := n.Children[:0]
	for _, c := range n.Children {
		csn := sn.FindChild(c.Name)
		if csn != nil && csn.Enablement == types.Disabled {
			continue
		}
		if csn != nil {
			pruneDisabled(c, csn)
		}
		kept = append(kept, c)
	}
	n.Children = kept
}

// Put inserts or overwrites the cached entry for module, used after an
// edit mutates the in-memory tree so Modified reflects the change.
func (w *WorkingSet) Put(module string, info *types.DataInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[module] = info
}

// Peek returns the cached entry for module without loading, or nil.
func (w *WorkingSet) Peek(module string) *types.DataInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries[module]
}

// Modules lists the currently-loaded module names.
func (w *WorkingSet) Modules() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.entries))
	for m := range w.entries {
		out = append(out, m)
	}
	return out
}

// Discard drops every loaded entry, so the next get_or_load re-reads
// from the Data Store (spec §4.6: discard_changes "drops all working
// copies so they will be re-loaded on next access").
func (w *WorkingSet) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = make(map[string]*types.DataInfo)
}

// Refresh implements the freshness check (spec §4.5 "Freshness check",
// §3 "Timestamps"): a loaded module is fresh only if its load
// timestamp strictly post-dates both the file's current mtime and
// lastCommitTime, and that mtime is separated from now by more than
// granularity. Stale modules are evicted; it returns the set of
// modules judged fresh-and-modified, which the Commit Engine may then
// treat as an optimized commit (skip replay).
func (w *WorkingSet) Refresh(lastCommitTime time.Time, granularity time.Duration) (map[string]bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	optimized := make(map[string]bool)
	now := time.Now()
	for module, info := range w.entries {
		mtime, err := w.loader.Mtime(module, w.ds)
		if err != nil {
			return nil, err
		}
		fresh := info.LastLoad.After(mtime) &&
			info.LastLoad.After(lastCommitTime) &&
			now.Sub(mtime) > granularity
		if !fresh {
			delete(w.entries, module)
			continue
		}
		if info.Modified {
			optimized[module] = true
		}
	}
	return optimized, nil
}
