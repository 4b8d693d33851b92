package depindex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/yangstore/pkg/types"
)

// Index is the Module Dependency Index (spec §4.2). Schema parsing
// itself is out of scope (§1 Non-goals); callers resolve a module's
// ModuleDepEntry through the SchemaLoader collaborator and hand the
// result to Insert.
type Index struct {
	mu      sync.RWMutex
	entries map[string]types.ModuleDepEntry
}

// NewIndex builds an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]types.ModuleDepEntry)}
}

// Info returns the entry for name, optionally constrained to revision.
func (idx *Index) Info(name, revision string) (types.ModuleDepEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok := idx.entries[name]
	if !ok || (revision != "" && entry.Revision != revision) {
		return types.ModuleDepEntry{}, types.NewError(types.NotFound, "no such module: %s", name)
	}
	return entry, nil
}

// Insert adds entry to the index. Re-inserting an already-present
// module (same name) is a no-op returning nil, per spec.
func (idx *Index) Insert(entry types.ModuleDepEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[entry.Name]; ok {
		return nil
	}
	idx.entries[entry.Name] = entry
	return nil
}

// Remove deletes name from the index. Removing an absent module is not
// an error.
func (idx *Index) Remove(name, revision string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, ok := idx.entries[name]
	if !ok {
		return nil
	}
	if revision != "" && entry.Revision != revision {
		return types.NewError(types.NotFound, "no such revision %s for module %s", revision, name)
	}
	delete(idx.entries, name)
	return nil
}

// LoadOrder returns all entries in dependency order: every module
// appears after every module it imports or extends. Returns Internal
// if the dependency graph has a cycle.
func (idx *Index) LoadOrder() ([]types.ModuleDepEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	visited := make(map[string]int) // 0=unvisited, 1=in-progress, 2=done
	var order []types.ModuleDepEntry

	var visit func(name string) error
	visit = func(name string) error {
		switch visited[name] {
		case 2:
			return nil
		case 1:
			return types.NewError(types.Internal, "dependency cycle at module %s", name)
		}
		visited[name] = 1
		entry, ok := idx.entries[name]
		if !ok {
			// A dependency edge to a module not yet installed is not
			// this index's problem to resolve; skip it silently.
			visited[name] = 2
			return nil
		}
		for _, dep := range entry.Deps {
			if err := visit(dep.To); err != nil {
				return err
			}
		}
		visited[name] = 2
		order = append(order, entry)
		return nil
	}

	names := make([]string, 0, len(idx.entries))
	for name := range idx.entries {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic iteration among independent modules

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// String renders a small debug summary of the index.
func (idx *Index) String() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return fmt.Sprintf("depindex{%d modules}", len(idx.entries))
}
