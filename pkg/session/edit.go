package session

import (
	"strings"

	"github.com/cuemby/yangstore/pkg/types"
)

// ApplyOperation applies op against root using the edit semantics of
// spec §4.6, mutating the tree in place. It is the single
// implementation shared by a session's best-effort immediate mutation
// and the Commit Engine's replay-on-stale-base pass.
func ApplyOperation(root *types.Node, module string, op *types.Operation) error {
	segs, err := parseXPath(op.XPath)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return types.NewXPathError(types.InvalidArg, op.XPath, "empty xpath")
	}

	switch op.Kind {
	case types.OpSet:
		return applySet(root, module, segs, op.Value, op.Flags)
	case types.OpDelete:
		return applyDelete(root, segs, op.Flags)
	case types.OpMove:
		return applyMove(root, segs, op.Position, op.RelXPath)
	default:
		return types.NewXPathError(types.InvalidArg, op.XPath, "unknown operation kind")
	}
}

// FindNode resolves xpath against root and returns the matching node,
// or nil if no such node exists. Root itself represents the module's
// synthetic wrapper (types.NewNode(module, module)), so xpath's first
// segment addresses one of root's own children. Used by read
// operations (pkg/engine's get_item) that need the same path-walking
// semantics as edits without mutating anything.
func FindNode(root *types.Node, xpath string) (*types.Node, error) {
	segs, err := parseXPath(xpath)
	if err != nil {
		return nil, err
	}
	cur := root
	for _, s := range segs {
		next := findChildMatching(cur, s)
		if next == nil {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

// segment is one slash-separated xpath step: a node name plus any
// key=value predicates (e.g. "list-node[id='a']").
type segment struct {
	name string
	keys map[string]string
}

func parseXPath(xpath string) ([]segment, error) {
	trimmed := strings.Trim(xpath, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		name := p
		keys := map[string]string{}
		if i := strings.Index(p, "["); i >= 0 {
			name = p[:i]
			predicates := p[i:]
			for _, pr := range strings.Split(predicates, "[") {
				pr = strings.TrimSuffix(pr, "]")
				if pr == "" {
					continue
				}
				eq := strings.Index(pr, "=")
				if eq < 0 {
					return nil, types.NewXPathError(types.MalformedMsg, xpath, "malformed predicate %q", pr)
				}
				key := pr[:eq]
				val := strings.Trim(pr[eq+1:], "'\"")
				keys[key] = val
			}
		}
		if i := strings.Index(name, ":"); i >= 0 {
			name = name[i+1:]
		}
		segs = append(segs, segment{name: name, keys: keys})
	}
	return segs, nil
}

func matchesSegment(n *types.Node, s segment) bool {
	if n.Name != s.name {
		return false
	}
	for k, v := range s.keys {
		kv, ok := n.Keys[k]
		if !ok || kv.String() != v {
			return false
		}
	}
	return true
}

func findChildMatching(parent *types.Node, s segment) *types.Node {
	for _, c := range parent.Children {
		if matchesSegment(c, s) {
			return c
		}
	}
	return nil
}

func findAllMatchingName(parent *types.Node, name string) []*types.Node {
	var out []*types.Node
	for _, c := range parent.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func segmentToKeys(s segment) map[string]types.Value {
	if len(s.keys) == 0 {
		return nil
	}
	keys := make(map[string]types.Value, len(s.keys))
	for k, v := range s.keys {
		keys[k] = types.Value{Kind: types.KindString, Str: v}
	}
	return keys
}

// applySet implements *set* (spec §4.6 "Edit semantics"): with
// default flags, missing ancestor containers/lists are created
// (non_recursive requires they already exist); strict forbids the
// final node already existing.
func applySet(root *types.Node, module string, segs []segment, value types.Value, flags types.EditFlags) error {
	cur := root
	for _, s := range segs[:len(segs)-1] {
		next := findChildMatching(cur, s)
		if next == nil {
			if flags.NonRecursive() {
				return types.NewXPathError(types.DataMissing, s.name, "ancestor %q does not exist", s.name)
			}
			next = types.NewNode(module, s.name)
			next.Keys = segmentToKeys(s)
			cur.AppendChild(next)
		}
		cur = next
	}

	last := segs[len(segs)-1]
	existing := findChildMatching(cur, last)
	if existing != nil {
		if flags.Strict() {
			return types.NewXPathError(types.DataExists, last.name, "node already exists")
		}
		v := value
		existing.Value = &v
		return nil
	}

	n := types.NewNode(module, last.name)
	n.Keys = segmentToKeys(last)
	v := value
	n.Value = &v
	cur.AppendChild(n)
	return nil
}

// applyDelete implements *delete*: strict requires the node exist;
// non_recursive forbids deleting a non-empty list/container; omitting
// keys in the final segment deletes every instance of that list.
func applyDelete(root *types.Node, segs []segment, flags types.EditFlags) error {
	cur := root
	for _, s := range segs[:len(segs)-1] {
		next := findChildMatching(cur, s)
		if next == nil {
			if flags.Strict() {
				return types.NewXPathError(types.DataMissing, s.name, "ancestor %q does not exist", s.name)
			}
			return nil
		}
		cur = next
	}

	last := segs[len(segs)-1]
	if len(last.keys) == 0 {
		matches := findAllMatchingName(cur, last.name)
		if len(matches) == 0 {
			if flags.Strict() {
				return types.NewXPathError(types.DataMissing, last.name, "node does not exist")
			}
			return nil
		}
		for _, m := range matches {
			if flags.NonRecursive() && len(m.Children) > 0 {
				return types.NewXPathError(types.OperationFailed, last.name, "non_recursive delete of non-empty node")
			}
			cur.RemoveChild(m)
		}
		return nil
	}

	target := findChildMatching(cur, last)
	if target == nil {
		if flags.Strict() {
			return types.NewXPathError(types.DataMissing, last.name, "node does not exist")
		}
		return nil
	}
	if flags.NonRecursive() && len(target.Children) > 0 {
		return types.NewXPathError(types.OperationFailed, last.name, "non_recursive delete of non-empty node")
	}
	cur.RemoveChild(target)
	return nil
}

// applyMove implements *move*: relocates the node addressed by segs
// within its parent's Children, relative to relXPath's node (BEFORE,
// AFTER) or to an absolute end (FIRST, LAST). Applicable only to
// user-ordered lists/leaf-lists; the caller (validator/schema) is
// responsible for rejecting moves on non-ordered nodes before this
// runs.
func applyMove(root *types.Node, segs []segment, pos types.MovePosition, relXPath string) error {
	cur := root
	for _, s := range segs[:len(segs)-1] {
		next := findChildMatching(cur, s)
		if next == nil {
			return types.NewXPathError(types.DataMissing, s.name, "ancestor %q does not exist", s.name)
		}
		cur = next
	}
	last := segs[len(segs)-1]
	target := findChildMatching(cur, last)
	if target == nil {
		return types.NewXPathError(types.DataMissing, last.name, "node does not exist")
	}
	cur.RemoveChild(target)

	switch pos {
	case types.First:
		cur.InsertChildAt(target, 0)
		return nil
	case types.Last:
		cur.InsertChildAt(target, len(cur.Children))
		return nil
	}

	relSegs, err := parseXPath(relXPath)
	if err != nil || len(relSegs) == 0 {
		return types.NewXPathError(types.InvalidArg, relXPath, "malformed relative anchor")
	}
	anchor := findChildMatching(cur, relSegs[len(relSegs)-1])
	if anchor == nil {
		return types.NewXPathError(types.DataMissing, relXPath, "move anchor does not exist")
	}
	idx := 0
	for i, c := range cur.Children {
		if c == anchor {
			idx = i
			break
		}
	}
	if pos == types.After {
		idx++
	}
	cur.InsertChildAt(target, idx)
	return nil
}
