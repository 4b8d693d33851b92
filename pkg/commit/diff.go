package commit

import "github.com/cuemby/yangstore/pkg/types"

// diffTrees compares prev (the pre-commit snapshot, possibly nil for
// a previously-empty module) against next (the post-commit tree) and
// returns one DiffEntry per changed node: CREATED/DELETED for nodes
// that appear only on one side, MODIFIED for a leaf whose value
// differs, and a recursive descent into matched containers so nested
// changes are reported at their own level rather than as one blanket
// MODIFIED on the module root. List-reordering (MOVED_FROM/
// MOVED_TO) is intentionally not generated by this pass — see
// DESIGN.md for the scope decision — the kinds remain defined in
// pkg/types for a subscriber or future pass to produce.
func diffTrees(prev, next *types.Node) []types.DiffEntry {
	var out []types.DiffEntry
	diffChildren(prev, next, &out)
	return out
}

func diffChildren(prev, next *types.Node, out *[]types.DiffEntry) {
	var prevChildren, nextChildren []*types.Node
	if prev != nil {
		prevChildren = prev.Children
	}
	if next != nil {
		nextChildren = next.Children
	}

	matchedPrev := make(map[*types.Node]bool, len(prevChildren))

	for _, nc := range nextChildren {
		pc := findMatch(prevChildren, nc)
		if pc == nil {
			*out = append(*out, types.DiffEntry{Op: types.Created, XPath: nc.Path(), New: nc.Value, Node: nc})
			continue
		}
		matchedPrev[pc] = true
		if nc.Value != nil || pc.Value != nil {
			if !valuesEqual(pc.Value, nc.Value) {
				*out = append(*out, types.DiffEntry{Op: types.Modified, XPath: nc.Path(), Old: pc.Value, New: nc.Value, Node: nc})
			}
			continue
		}
		diffChildren(pc, nc, out)
	}

	for _, pc := range prevChildren {
		if !matchedPrev[pc] {
			*out = append(*out, types.DiffEntry{Op: types.Deleted, XPath: pc.Path(), Old: pc.Value, Node: pc})
		}
	}
}

// findMatch locates the sibling in candidates identified by the same
// (name, keys) as target — a list entry's identity, or a container's
// plain name.
func findMatch(candidates []*types.Node, target *types.Node) *types.Node {
	for _, c := range candidates {
		if c.Name != target.Name {
			continue
		}
		if keysEqual(c.Keys, target.Keys) {
			return c
		}
	}
	return nil
}

func keysEqual(a, b map[string]types.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		ov, ok := b[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b *types.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
