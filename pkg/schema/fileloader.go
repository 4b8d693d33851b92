package schema

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cuemby/yangstore/pkg/types"
)

// FileLoader is the default types.SchemaLoader: one compiled schema
// descriptor per module, stored as JSON under dir. It does not parse
// YANG itself (no schema language/compiler is in scope, spec §1
// Non-goals) — it deserializes the already-compiled SchemaInfo tree a
// separate build step produced, the same division of labor
// FileFeatureStore uses for persisted feature flags.
type FileLoader struct {
	dir string
}

var _ types.SchemaLoader = FileLoader{}

// NewFileLoader returns a loader rooted at dir.
func NewFileLoader(dir string) FileLoader {
	return FileLoader{dir: dir}
}

func (l FileLoader) path(module string) string {
	return filepath.Join(l.dir, module+".schema.json")
}

// Load reads and decodes module's descriptor, relinking each
// SchemaNode's Parent back-edge (omitted from the JSON form since it
// would otherwise serialize as a cycle).
func (l FileLoader) Load(module, revision string) (*types.SchemaInfo, error) {
	data, err := os.ReadFile(l.path(module))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewError(types.UnknownModel, "no compiled schema for module: %s", module)
		}
		return nil, err
	}

	var info types.SchemaInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, types.NewError(types.OperationFailed, "malformed schema descriptor for %s: %v", module, err)
	}
	if revision != "" && info.Revision != revision {
		return nil, types.NewError(types.UnknownModel, "module %s revision %s not found", module, revision)
	}
	relinkParents(info.Root, nil)
	return &info, nil
}

func relinkParents(n *types.SchemaNode, parent *types.SchemaNode) {
	if n == nil {
		return
	}
	n.Parent = parent
	for _, c := range n.Children {
		relinkParents(c, n)
	}
}
