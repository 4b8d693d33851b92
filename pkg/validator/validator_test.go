package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/yangstore/pkg/types"
)

type fakeSchema struct {
	info map[string]*types.SchemaInfo
}

func (f *fakeSchema) Get(module, revision string) (*types.SchemaInfo, error) {
	if s, ok := f.info[module]; ok {
		return s, nil
	}
	return nil, types.NewError(types.UnknownModel, "no such module %s", module)
}

// buildSchema constructs:
//
//	example-module (root)
//	  container           [Defaults: mtu=1500]
//	    action-node        (nested action, parent = container)
//	      input
//	        arg1
//	  list-node            [Keys: id]
//	  rpc-example           (module-level rpc, parent = root)
//	    input             [Defaults: arg1-default="hi"]
//	    output
//	      result
func buildSchema() *types.SchemaInfo {
	root := &types.SchemaNode{Name: "example-module", Module: "example-module"}

	container := &types.SchemaNode{
		Name:   "container",
		Module: "example-module",
		Parent: root,
		Defaults: []types.Value{
			{XPath: "mtu", Kind: types.KindUint32, Uint: 1500},
		},
	}

	actionInput := &types.SchemaNode{Name: "input", Module: "example-module", Parent: nil}
	arg1 := &types.SchemaNode{
		Name:   "arg1",
		Module: "example-module",
		Parent: actionInput,
	}
	actionInput.Children = []*types.SchemaNode{arg1}
	actionNode := &types.SchemaNode{
		Name:     "action-node",
		Module:   "example-module",
		Parent:   container,
		Children: []*types.SchemaNode{actionInput},
	}
	actionInput.Parent = actionNode
	container.Children = []*types.SchemaNode{actionNode}

	listNode := &types.SchemaNode{
		Name:   "list-node",
		Module: "example-module",
		Parent: root,
		Keys:   []string{"id"},
	}

	rpcInput := &types.SchemaNode{
		Name:   "input",
		Module: "example-module",
		Defaults: []types.Value{
			{XPath: "arg1-default", Kind: types.KindString, Str: "hi"},
		},
	}
	rpcOutput := &types.SchemaNode{Name: "output", Module: "example-module"}
	rpcResult := &types.SchemaNode{Name: "result", Module: "example-module", Parent: rpcOutput}
	rpcOutput.Children = []*types.SchemaNode{rpcResult}
	rpc := &types.SchemaNode{
		Name:     "rpc-example",
		Module:   "example-module",
		Parent:   root,
		Children: []*types.SchemaNode{rpcInput, rpcOutput},
	}
	rpcInput.Parent = rpc
	rpcOutput.Parent = rpc

	root.Children = []*types.SchemaNode{container, listNode, rpc}

	return &types.SchemaInfo{Module: "example-module", Root: root}
}

func newTestValidator() *Validator {
	return New(&fakeSchema{info: map[string]*types.SchemaInfo{"example-module": buildSchema()}})
}

func TestValidateReportsUnknownElement(t *testing.T) {
	v := newTestValidator()
	root := types.NewNode("example-module", "example-module")
	root.AppendChild(types.NewNode("example-module", "not-in-schema"))

	errs := v.Validate("example-module", root)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "unknown element")
}

func TestValidateReportsMissingKey(t *testing.T) {
	v := newTestValidator()
	root := types.NewNode("example-module", "example-module")
	root.AppendChild(types.NewNode("example-module", "list-node"))

	errs := v.Validate("example-module", root)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "missing key")
}

func TestValidateMaterializesDefaultLeaf(t *testing.T) {
	v := newTestValidator()
	root := types.NewNode("example-module", "example-module")

	errs := v.Validate("example-module", root)
	assert.Empty(t, errs)

	container := root.FindChild("container")
	require.NotNil(t, container)
	mtu := container.FindChild("mtu")
	require.NotNil(t, mtu)
	assert.True(t, mtu.Value.Default)
	assert.Equal(t, uint64(1500), mtu.Value.Uint)
}

func TestValidateUnknownModuleReturnsSchemaError(t *testing.T) {
	v := newTestValidator()
	root := types.NewNode("other-module", "other-module")
	errs := v.Validate("other-module", root)
	require.Len(t, errs, 1)
}

func TestMaterializeSatisfiesDatastoreMaterializerShape(t *testing.T) {
	v := newTestValidator()
	root := types.NewNode("example-module", "example-module")

	roots, err := v.Materialize("example-module", []*types.Node{root})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.NotNil(t, roots[0].FindChild("container").FindChild("mtu"))
}

func TestValidateProcedureModuleLevelRPCMaterializesInputDefault(t *testing.T) {
	v := newTestValidator()
	out, errs, err := v.ValidateProcedure("example-module", "/rpc-example", nil, types.DirInput, nil)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.NotNil(t, out)
	def := out.FindChild("arg1-default")
	require.NotNil(t, def)
	assert.Equal(t, "hi", def.Value.Str)
}

func TestValidateProcedureOutputDirection(t *testing.T) {
	v := newTestValidator()
	args := types.NewNode("example-module", "output")
	args.AppendChild(types.NewNode("example-module", "result"))
	out, errs, err := v.ValidateProcedure("example-module", "/rpc-example", args, types.DirOutput, nil)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.NotNil(t, out.FindChild("result"))
}

func TestValidateProcedureNestedActionMissingParentIsBadElement(t *testing.T) {
	v := newTestValidator()
	emptyView := types.NewNode("example-module", "example-module")

	_, _, err := v.ValidateProcedure("example-module", "/container/action-node", nil, types.DirInput, emptyView)
	require.Error(t, err)
	assert.Equal(t, types.BadElement, types.KindOf(err))
}

func TestValidateProcedureNestedActionParentPresentSucceeds(t *testing.T) {
	v := newTestValidator()
	view := types.NewNode("example-module", "example-module")
	view.AppendChild(types.NewNode("example-module", "container"))

	out, errs, err := v.ValidateProcedure("example-module", "/container/action-node", nil, types.DirInput, view)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.NotNil(t, out)
}
