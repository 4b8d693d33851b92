package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/yangstore/pkg/types"
)

type stubLoader struct {
	infos map[string]*types.SchemaInfo
	calls int
}

func (s *stubLoader) Load(module, revision string) (*types.SchemaInfo, error) {
	s.calls++
	info, ok := s.infos[module]
	if !ok {
		return nil, types.NewError(types.UnknownModel, "no such module: "+module)
	}
	return info, nil
}

func newTestRegistry(t *testing.T) (*Registry, *stubLoader, *FileFeatureStore) {
	t.Helper()
	loader := &stubLoader{infos: map[string]*types.SchemaInfo{
		"example-module": {
			Module:   "example-module",
			Revision: "2024-01-01",
			Features: map[string]bool{},
			Root: &types.SchemaNode{
				Name: "example-module",
				Children: []*types.SchemaNode{
					{Name: "container"},
				},
			},
		},
	}}
	fs, err := NewFileFeatureStore(t.TempDir())
	require.NoError(t, err)
	return NewRegistry(loader, fs), loader, fs
}

func TestRegistryGetCachesAfterFirstLoad(t *testing.T) {
	reg, loader, _ := newTestRegistry(t)

	info1, err := reg.Get("example-module", "")
	require.NoError(t, err)
	info2, err := reg.Get("example-module", "")
	require.NoError(t, err)

	assert.Same(t, info1, info2)
	assert.Equal(t, 1, loader.calls)
}

func TestRegistryGetUnknownModule(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Get("no-such-module", "")
	require.Error(t, err)
	assert.Equal(t, types.UnknownModel, types.KindOf(err))
}

func TestDisableModuleMakesItUnknown(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Get("example-module", "")
	require.NoError(t, err)

	reg.DisableModule("example-module")

	_, err = reg.Get("example-module", "")
	require.Error(t, err)
	assert.Equal(t, types.UnknownModel, types.KindOf(err))
	assert.True(t, reg.IsDisabled("example-module"))
}

func TestFeatureEnablePersistsAndRollsBackOnFailure(t *testing.T) {
	reg, _, fs := newTestRegistry(t)
	_, err := reg.Get("example-module", "")
	require.NoError(t, err)

	require.NoError(t, reg.FeatureEnable("example-module", "ipv6", true))

	loaded, err := fs.LoadFeatures("example-module")
	require.NoError(t, err)
	assert.True(t, loaded["ipv6"])

	// Persisting to an unwritable directory should roll back the
	// in-memory flag rather than leaving it desynced from disk.
	broken := &Registry{
		loader:   reg.loader,
		features: brokenFeatureStore{},
		schemas:  reg.schemas,
		disabled: reg.disabled,
	}
	err = broken.FeatureEnable("example-module", "ipv6", false)
	require.Error(t, err)

	info, _ := reg.Get("example-module", "")
	assert.True(t, info.Features["ipv6"], "flag must not flip until persist succeeds")
}

func TestNodeStateSetGet(t *testing.T) {
	reg, _, _ := newTestRegistry(t)
	_, err := reg.Get("example-module", "")
	require.NoError(t, err)

	require.NoError(t, reg.NodeStateSet("example-module", "/container", types.Disabled))
	state, err := reg.NodeStateGet("example-module", "/container")
	require.NoError(t, err)
	assert.Equal(t, types.Disabled, state)
}

type brokenFeatureStore struct{}

func (brokenFeatureStore) SaveFeatures(module string, features map[string]bool) error {
	return assert.AnError
}

func (brokenFeatureStore) LoadFeatures(module string) (map[string]bool, error) {
	return nil, assert.AnError
}
