package types

// OpKind tags the edit primitive carried by an Operation.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
	OpMove
)

// Operation is one entry of a Session's operation log (§3
// "Operation"). Exactly one of the fields below besides XPath/Flags is
// meaningful, selected by Kind. HasError is sticky: once set by a
// failed replay it is never cleared except by removing the entry.
type Operation struct {
	Module   string // the top-level module XPath addresses into
	Kind     OpKind
	XPath    string
	Flags    EditFlags
	Value    Value        // OpSet
	Position MovePosition // OpMove
	RelXPath string       // OpMove: the BEFORE/AFTER anchor
	HasError bool
}

// DiffEntry is one element of a per-module change list produced by a
// commit (§3 "Commit Context", §6 "Change operations").
type DiffEntry struct {
	Op       ChangeOp
	XPath    string
	Old      *Value
	New      *Value
	Node     *Node // the node this entry concerns: the post-commit node, or the pre-commit node for DELETED
}
