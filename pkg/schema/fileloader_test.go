package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/yangstore/pkg/types"
)

func writeSchemaFixture(t *testing.T, dir, module string, info *types.SchemaInfo) {
	t.Helper()
	data, err := json.Marshal(info)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, module+".schema.json"), data, 0o644))
}

func TestFileLoaderLoadRelinksParents(t *testing.T) {
	dir := t.TempDir()
	root := &types.SchemaNode{Name: "example-module", Module: "example-module"}
	container := &types.SchemaNode{Name: "container", Module: "example-module"}
	root.Children = []*types.SchemaNode{container}
	writeSchemaFixture(t, dir, "example-module", &types.SchemaInfo{
		Module: "example-module", Revision: "2024-01-01", Root: root,
	})

	loader := NewFileLoader(dir)
	info, err := loader.Load("example-module", "")
	require.NoError(t, err)
	require.Equal(t, "example-module", info.Module)
	require.Len(t, info.Root.Children, 1)
	require.Same(t, info.Root, info.Root.Children[0].Parent)
}

func TestFileLoaderMissingModule(t *testing.T) {
	loader := NewFileLoader(t.TempDir())
	_, err := loader.Load("no-such-module", "")
	te, ok := err.(*types.Error)
	require.True(t, ok)
	require.Equal(t, types.UnknownModel, te.Kind)
}

func TestFileLoaderRevisionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFixture(t, dir, "example-module", &types.SchemaInfo{
		Module: "example-module", Revision: "2024-01-01",
		Root: &types.SchemaNode{Name: "example-module"},
	})

	loader := NewFileLoader(dir)
	_, err := loader.Load("example-module", "2099-01-01")
	te, ok := err.(*types.Error)
	require.True(t, ok)
	require.Equal(t, types.UnknownModel, te.Kind)
}
