package schema

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/cuemby/yangstore/pkg/log"
	"github.com/cuemby/yangstore/pkg/types"
)

// Registry is the Schema Registry (spec §4.1): a keyed cache of installed
// module schemas guarded by a reader/writer lock, backed by a
// types.SchemaLoader on cache miss and a types.FeatureStore for
// persisted feature flags.
type Registry struct {
	mu       sync.RWMutex
	loader   types.SchemaLoader
	features types.FeatureStore
	schemas  map[string]*types.SchemaInfo // keyed by module name
	disabled map[string]bool

	watcher *fsnotify.Watcher
	watchWg sync.WaitGroup
}

// NewRegistry builds an empty registry over the given collaborators.
func NewRegistry(loader types.SchemaLoader, features types.FeatureStore) *Registry {
	return &Registry{
		loader:   loader,
		features: features,
		schemas:  make(map[string]*types.SchemaInfo),
		disabled: make(map[string]bool),
	}
}

// Get returns the shared SchemaInfo for module, loading it on a cache
// miss. An empty revision means "whatever is cached or loaded by
// default"; a non-empty revision mismatching the cached entry forces a
// reload. A disabled module always reports UnknownModel.
func (r *Registry) Get(module, revision string) (*types.SchemaInfo, error) {
	r.mu.RLock()
	if r.disabled[module] {
		r.mu.RUnlock()
		return nil, types.NewError(types.UnknownModel, "module is disabled: "+module)
	}
	if info, ok := r.schemas[module]; ok && (revision == "" || info.Revision == revision) {
		r.mu.RUnlock()
		return info, nil
	}
	r.mu.RUnlock()

	info, err := r.loader.Load(module, revision)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled[module] {
		return nil, types.NewError(types.UnknownModel, "module is disabled: "+module)
	}
	r.schemas[module] = info
	log.WithComponent("schema").Debug().Str("module", module).Str("revision", info.Revision).Msg("schema loaded")
	return info, nil
}

// FeatureEnable toggles a feature under the registry's own write lock
// and persists through the FeatureStore; the in-memory flag is set
// before the persist and restored if it fails, so a write failure
// leaves the previous state observable (rollback on persistence
// failure, §4.1).
func (r *Registry) FeatureEnable(module, feature string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.schemas[module]
	if !ok {
		return types.NewError(types.NotFound, "unknown module: "+module)
	}
	if info.Features == nil {
		info.Features = make(map[string]bool)
	}
	prev, existed := info.Features[feature]
	info.Features[feature] = enabled

	if err := r.features.SaveFeatures(module, info.Features); err != nil {
		if existed {
			info.Features[feature] = prev
		} else {
			delete(info.Features, feature)
		}
		return fmt.Errorf("persist features for %s: %w", module, err)
	}
	return nil
}

// NodeStateSet sets the enablement flag on the schema node addressed by
// a simple slash-separated path under module's root.
func (r *Registry) NodeStateSet(module, nodePath string, state types.Enablement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.schemas[module]
	if !ok {
		return types.NewError(types.NotFound, "unknown module: "+module)
	}
	node, err := ResolvePath(info.Root, nodePath)
	if err != nil {
		return err
	}
	node.Enablement = state
	return nil
}

// NodeStateGet returns the enablement flag of a schema node.
func (r *Registry) NodeStateGet(module, nodePath string) (types.Enablement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.schemas[module]
	if !ok {
		return types.Disabled, types.NewError(types.NotFound, "unknown module: "+module)
	}
	node, err := ResolvePath(info.Root, nodePath)
	if err != nil {
		return types.Disabled, err
	}
	return node.Enablement, nil
}

// DisableModule marks module unknown to future Get calls. Per spec
// (Open Question b), there is deliberately no corresponding enable
// method: re-enabling a disabled module requires a process restart.
func (r *Registry) DisableModule(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[name] = true
	delete(r.schemas, name)
}

// IsDisabled reports whether name is in the disabled set.
func (r *Registry) IsDisabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.disabled[name]
}

// ResolvePath walks path (slash-separated, module prefixes on segments
// ignored) from root's children down to the addressed node. Exported
// so collaborators outside the registry (pkg/validator's procedure
// lookup) can resolve a schema path the same way node_state_set/get do.
func ResolvePath(root *types.SchemaNode, path string) (*types.SchemaNode, error) {
	if root == nil {
		return nil, types.NewXPathError(types.BadElement, path, "schema has no root")
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	cur := root
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if i := strings.Index(seg, ":"); i >= 0 {
			seg = seg[i+1:]
		}
		if i := strings.Index(seg, "["); i >= 0 {
			seg = seg[:i]
		}
		next := cur.FindChild(seg)
		if next == nil {
			return nil, types.NewXPathError(types.BadElement, path, "no such schema node: %s", seg)
		}
		cur = next
	}
	return cur, nil
}

// WatchDir watches dir (the repo's yang/ directory) for newly installed
// schema files and eagerly primes the registry cache for them, so a
// MODULE_INSTALL subscription fan-out (pkg/subscription) observes a
// warm registry by the time it fires. Returns a stop function.
func (r *Registry) WatchDir(dir string) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create schema watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	r.watcher = w
	r.watchWg.Add(1)
	go r.watchLoop(w)
	return w.Close, nil
}

func (r *Registry) watchLoop(w *fsnotify.Watcher) {
	defer r.watchWg.Done()
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".yang") && !strings.HasSuffix(ev.Name, ".yin") {
				continue
			}
			module := moduleNameFromFile(ev.Name)
			if _, err := r.Get(module, ""); err != nil {
				log.WithComponent("schema").Warn().Str("file", ev.Name).Err(err).Msg("failed to prime schema on watch event")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.WithComponent("schema").Warn().Err(err).Msg("schema watcher error")
		}
	}
}

func moduleNameFromFile(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(base, "@"); i >= 0 {
		base = base[:i]
	}
	return base
}
