package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/yangstore/pkg/types"
)

// FileFeatureStore is the default filesystem-backed types.FeatureStore,
// persisting one JSON document per module under <repo>/data/internal/
// (spec.md §6 on-disk layout, "Persistent settings").
type FileFeatureStore struct {
	mu   sync.Mutex
	dir  string
}

var _ types.FeatureStore = (*FileFeatureStore)(nil)

// NewFileFeatureStore returns a store rooted at dir, creating it if
// necessary.
func NewFileFeatureStore(dir string) (*FileFeatureStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileFeatureStore{dir: dir}, nil
}

func (s *FileFeatureStore) path(module string) string {
	return filepath.Join(s.dir, module+".features.json")
}

// SaveFeatures writes the module's feature document to a ".tmp"
// sibling and renames it over the previous one.
func (s *FileFeatureStore) SaveFeatures(module string, features map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(module) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(module))
}

// LoadFeatures returns the persisted feature set, or an empty map if
// the module has never had a feature toggled.
func (s *FileFeatureStore) LoadFeatures(module string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(module))
	if os.IsNotExist(err) {
		return make(map[string]bool), nil
	}
	if err != nil {
		return nil, err
	}
	features := make(map[string]bool)
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, err
	}
	return features, nil
}
