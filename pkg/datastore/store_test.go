package datastore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/yangstore/pkg/lockset"
	"github.com/cuemby/yangstore/pkg/types"
)

func TestLoadMissingFileReturnsEmptyTree(t *testing.T) {
	st, err := NewStore(t.TempDir(), lockset.NewSet(), nil)
	require.NoError(t, err)

	info, err := st.Load(context.Background(), "example-module", types.Running, "session-a")
	require.NoError(t, err)
	assert.False(t, info.Modified)
	assert.Empty(t, info.Root.Children)
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	st, err := NewStore(t.TempDir(), lockset.NewSet(), nil)
	require.NoError(t, err)

	root := types.NewNode("example-module", "container")
	leaf := types.NewNode("example-module", "leaf")
	leaf.Value = &types.Value{Kind: types.KindString, Str: "v"}
	root.AppendChild(leaf)

	require.NoError(t, st.Write("example-module", types.Running, []*types.Node{root}))

	info, err := st.Load(context.Background(), "example-module", types.Running, "session-a")
	require.NoError(t, err)
	require.NotNil(t, info.Root)

	got := info.Root.FindChild("container")
	require.NotNil(t, got)
	gotLeaf := got.FindChild("leaf")
	require.NotNil(t, gotLeaf)
	require.NotNil(t, gotLeaf.Value)
	assert.Equal(t, "v", gotLeaf.Value.Str)
}

func TestWriteStripsDefaultValuedNodes(t *testing.T) {
	st, err := NewStore(t.TempDir(), lockset.NewSet(), nil)
	require.NoError(t, err)

	root := types.NewNode("example-module", "container")
	defLeaf := types.NewNode("example-module", "mtu")
	defLeaf.Value = &types.Value{Kind: types.KindUint32, Uint: 1500, Default: true}
	root.AppendChild(defLeaf)

	require.NoError(t, st.Write("example-module", types.Running, []*types.Node{root}))

	info, err := st.Load(context.Background(), "example-module", types.Running, "session-a")
	require.NoError(t, err)
	got := info.Root.FindChild("container")
	require.NotNil(t, got)
	assert.Nil(t, got.FindChild("mtu"), "default-flagged values must not be persisted")
}

func TestMtimeOfMissingFileIsZero(t *testing.T) {
	st, err := NewStore(t.TempDir(), lockset.NewSet(), nil)
	require.NoError(t, err)
	mt, err := st.Mtime("example-module", types.Running)
	require.NoError(t, err)
	assert.True(t, mt.IsZero())
}

func TestMaterializerIsAppliedOnLoad(t *testing.T) {
	called := false
	materialize := func(module string, roots []*types.Node) ([]*types.Node, error) {
		called = true
		return roots, nil
	}
	st, err := NewStore(t.TempDir(), lockset.NewSet(), materialize)
	require.NoError(t, err)

	_, err = st.Load(context.Background(), "example-module", types.Running, "session-a")
	require.NoError(t, err)
	assert.True(t, called)
}

func TestLoadSurfacesParseErrors(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStore(dir, lockset.NewSet(), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(st.FilePath("broken-module", types.Running), []byte("not xml"), 0o644))

	_, err = st.Load(context.Background(), "broken-module", types.Running, "session-a")
	require.Error(t, err)
	assert.Equal(t, types.OperationFailed, types.KindOf(err))
}
