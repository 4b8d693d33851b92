package validator

import (
	"fmt"

	"github.com/cuemby/yangstore/pkg/schema"
	"github.com/cuemby/yangstore/pkg/types"
)

// SchemaProvider is the narrow contract the Validator needs from the
// Schema Registry.
type SchemaProvider interface {
	Get(module, revision string) (*types.SchemaInfo, error)
}

// ValidationError is one (message, xpath) pair a validation pass
// produced (spec §4.7).
type ValidationError struct {
	Message string
	XPath   string
}

// Validator implements structural validation and default
// materialization against a module's compiled schema.
type Validator struct {
	schema SchemaProvider
}

// New builds a Validator over the given Schema Registry.
func New(schemaProvider SchemaProvider) *Validator {
	return &Validator{schema: schemaProvider}
}

// Validate runs full structural validation on root (one module's
// working tree), re-materializing default nodes in place, and returns
// the (possibly empty) list of errors found (spec §4.7: "validate(session)
// iterates the modified modules and runs a full structural validation
// on each").
func (v *Validator) Validate(module string, root *types.Node) []ValidationError {
	sinfo, err := v.schema.Get(module, "")
	if err != nil {
		return []ValidationError{{Message: err.Error(), XPath: root.Path()}}
	}
	var errs []ValidationError
	validateChildren(root, sinfo.Root, &errs)
	materializeDefaults(root, sinfo.Root)
	return errs
}

// Materialize implements the datastore.Materializer shape so the Data
// Store's Load path can re-materialize defaults without importing
// pkg/validator's concrete type.
func (v *Validator) Materialize(module string, roots []*types.Node) ([]*types.Node, error) {
	sinfo, err := v.schema.Get(module, "")
	if err != nil {
		// An unknown module is reported by the Schema Registry itself on
		// lookup; the Data Store still needs to hand back a tree.
		return roots, nil
	}
	for _, r := range roots {
		materializeDefaults(r, sinfo.Root)
	}
	return roots, nil
}

// ValidateProcedure checks a procedure's arguments against its schema
// (input vs output direction per spec §4.7), materializes defaults on
// the completed argument tree, and returns it. xpath addresses the
// RPC/action/notification node in the schema tree; action and nested
// notification procedures additionally require that their data-tree
// parent exists in parentView (nil means "module-level, no parent
// check required").
func (v *Validator) ValidateProcedure(module, xpath string, args *types.Node, direction types.ProcedureDirection, parentView *types.Node) (*types.Node, []ValidationError, error) {
	sinfo, err := v.schema.Get(module, "")
	if err != nil {
		return nil, nil, err
	}
	procNode, err := schema.ResolvePath(sinfo.Root, xpath)
	if err != nil {
		return nil, nil, err
	}

	if parentView != nil {
		if _, ok := findProcedureParent(parentView, procNode); !ok {
			return nil, nil, types.NewXPathError(types.BadElement, xpath, "procedure parent does not exist in session view")
		}
	}

	dirName := "input"
	if direction == types.DirOutput {
		dirName = "output"
	}
	dirNode := procNode.FindChild(dirName)
	if dirNode == nil {
		// No declared input/output container: nothing to validate or
		// materialize, hand args back unchanged.
		return args, nil, nil
	}

	if args == nil {
		args = types.NewNode(module, dirName)
	}
	var errs []ValidationError
	validateChildren(args, dirNode, &errs)
	materializeDefaults(args, dirNode)
	return args, errs, nil
}

// findProcedureParent walks up from procNode's schema ancestry to the
// nearest data-bearing ancestor name and checks it is present
// somewhere under view. Procedures declared at module level (whose
// schema parent is the module root) need no such check.
func findProcedureParent(view *types.Node, procNode *types.SchemaNode) (*types.Node, bool) {
	if procNode == nil || procNode.Parent == nil {
		return view, true
	}
	parentSchema := procNode.Parent
	if parentSchema.Parent == nil {
		// parent is the module root: the procedure is module-level.
		return view, true
	}
	if found := findNodeByPath(view, parentSchema); found != nil {
		return found, true
	}
	return nil, false
}

// findNodeByPath locates the data node matching target's schema
// ancestry under root, walking both trees in lock-step by name.
func findNodeByPath(root *types.Node, target *types.SchemaNode) *types.Node {
	var chain []*types.SchemaNode
	for cur := target; cur != nil && cur.Parent != nil; cur = cur.Parent {
		chain = append([]*types.SchemaNode{cur}, chain...)
	}
	cur := root
	for _, sn := range chain {
		if cur == nil {
			return nil
		}
		cur = cur.FindChild(sn.Name)
	}
	return cur
}

// validateChildren walks data tree n against schema tree sn, reporting
// an error for any child with no schema counterpart or a list/leaf
// missing a required key.
func validateChildren(n *types.Node, sn *types.SchemaNode, errs *[]ValidationError) {
	if n == nil || sn == nil {
		return
	}
	for _, c := range n.Children {
		csn := sn.FindChild(c.Name)
		if csn == nil {
			*errs = append(*errs, ValidationError{
				Message: fmt.Sprintf("unknown element %q", c.Name),
				XPath:   c.Path(),
			})
			continue
		}
		for _, key := range csn.Keys {
			if _, ok := c.Keys[key]; !ok {
				*errs = append(*errs, ValidationError{
					Message: fmt.Sprintf("missing key %q", key),
					XPath:   c.Path(),
				})
			}
		}
		validateChildren(c, csn, errs)
	}
}

// materializeDefaults instantiates, under n, any default leaves and
// non-presence containers sn's schema declares that n is missing
// (spec §4.7: "default nodes are re-materialized").
func materializeDefaults(n *types.Node, sn *types.SchemaNode) {
	if n == nil || sn == nil {
		return
	}
	for _, def := range sn.Defaults {
		if n.FindChild(def.XPath) != nil {
			continue
		}
		leaf := types.NewNode(sn.Module, def.XPath)
		v := def
		v.Default = true
		leaf.Value = &v
		n.AppendChild(leaf)
	}
	for _, csn := range sn.Children {
		child := n.FindChild(csn.Name)
		if child == nil {
			if csn.Presence || len(csn.Keys) > 0 {
				continue
			}
			child = types.NewNode(csn.Module, csn.Name)
			n.AppendChild(child)
		}
		materializeDefaults(child, csn)
	}
}
