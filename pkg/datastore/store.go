package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/yangstore/pkg/lockset"
	"github.com/cuemby/yangstore/pkg/log"
	"github.com/cuemby/yangstore/pkg/types"
)

// Materializer fills in default-valued nodes a schema declares but a
// stored tree omits; it is supplied by the Validator (spec §4.7) so the
// Data Store does not itself need schema knowledge.
type Materializer func(module string, roots []*types.Node) ([]*types.Node, error)

// Store is the Data Store on-disk layer (spec §4.4): one XML file per
// (module, datastore), guarded by an advisory file lock from a shared
// lockset.Set.
type Store struct {
	repoRoot     string
	locks        *lockset.Set
	materialize  Materializer
}

// NewStore roots a Data Store at repoRoot/data, creating the directory
// if needed. materialize may be nil, in which case loaded trees are
// returned as stored.
func NewStore(repoRoot string, locks *lockset.Set, materialize Materializer) (*Store, error) {
	dir := filepath.Join(repoRoot, "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{repoRoot: repoRoot, locks: locks, materialize: materialize}, nil
}

func dsTag(ds types.Datastore) string {
	switch ds {
	case types.Startup:
		return "startup"
	case types.Candidate:
		return "candidate"
	default:
		return "running"
	}
}

// FilePath returns the canonical data file path for a (module, datastore) pair.
func (s *Store) FilePath(module string, ds types.Datastore) string {
	return filepath.Join(s.repoRoot, "data", fmt.Sprintf("%s.%s", module, dsTag(ds)))
}

func (s *Store) lockFilePath(module string, ds types.Datastore) string {
	return s.FilePath(module, ds) + ".lock"
}

// Load opens module's (module, datastore) file read-only under a
// shared advisory lock, parses it, materializes defaults, and returns a
// DataInfo with the file mtime captured. A missing file is not an
// error: it returns an empty, default-materialized tree.
func (s *Store) Load(ctx context.Context, module string, ds types.Datastore, owner string) (*types.DataInfo, error) {
	path := s.FilePath(module, ds)
	release, err := s.locks.RLockFile(ctx, s.lockFilePath(module, ds), owner)
	if err != nil {
		return nil, err
	}
	defer func() { _ = release() }()

	var roots []*types.Node
	var loadTime time.Time

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		loadTime = time.Now()
	case err != nil:
		return nil, types.NewError(types.IO, "read %s: %v", path, err)
	default:
		roots, err = DecodeForest(data)
		if err != nil {
			return nil, types.NewError(types.OperationFailed, "parse %s: %v", path, err)
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, types.NewError(types.IO, "stat %s: %v", path, statErr)
		}
		loadTime = info.ModTime()
	}

	if s.materialize != nil {
		roots, err = s.materialize(module, roots)
		if err != nil {
			return nil, err
		}
	}

	// Root is always a synthetic module-root wrapper around the file's
	// top-level forest, regardless of how many roots it held, so
	// callers can treat DataInfo.Root.Children uniformly as "the
	// module's top-level nodes" whether there are zero, one, or many.
	root := types.NewNode(module, module)
	for _, r := range roots {
		root.AppendChild(r)
	}

	log.WithDatastore(ds).Debug().Str("module", module).Time("mtime", loadTime).Msg("data store load")
	return &types.DataInfo{
		Module:   module,
		Root:     root,
		Modified: false,
		LastLoad: loadTime,
	}, nil
}

// Mtime reports the current on-disk modification time for a module's
// file in datastore ds, used by the freshness check (spec §3
// "Timestamps"). A missing file reports the zero time.
func (s *Store) Mtime(module string, ds types.Datastore) (time.Time, error) {
	info, err := os.Stat(s.FilePath(module, ds))
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, types.NewError(types.IO, "stat %s: %v", s.FilePath(module, ds), err)
	}
	return info.ModTime(), nil
}

// Write truncates module's (module, datastore) file and serializes
// roots (default-valued nodes stripped), fsyncing before close. The
// caller is responsible for holding the write lock (via lockset.Set)
// across the whole commit phase this write belongs to — Write itself
// does not lock, since the Commit Engine holds the lock across
// validate-then-write (spec §4.4: "the engine must not truncate before
// it is ready to write").
func (s *Store) Write(module string, ds types.Datastore, roots []*types.Node) error {
	path := s.FilePath(module, ds)
	data, err := EncodeForest(roots)
	if err != nil {
		return types.NewError(types.Internal, "encode %s: %v", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return types.NewError(types.IO, "open %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return types.NewError(types.IO, "write %s: %v", path, err)
	}
	if err := f.Sync(); err != nil {
		return types.NewError(types.IO, "fsync %s: %v", path, err)
	}
	return nil
}
