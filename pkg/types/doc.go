/*
Package types defines the core data structures shared across yangstore's
datastore engine.

This package contains the domain model described by the system's data
model: schema metadata, data trees, sessions, operations, diffs,
subscriptions, and commit contexts. It also defines the narrow
collaborator interfaces (schema loader, XPath evaluator, feature and
subscription persistence, access control) that the engine depends on
but does not itself implement — those concerns live outside the
datastore core and are injected at construction.

# Core Types

Schema side:
  - SchemaInfo: one loaded YANG module, its features and node enablement
  - ModuleDepEntry: a module's position in the dependency graph
  - SchemaNode / SchemaPath: the schema tree the validator and matcher walk

Data side:
  - Node: one data-tree node, owned by its parent, addressed by Value
  - Value: a tagged union of the typed leaf payloads a node can hold

Session side:
  - Operation: a tagged SET/DELETE/MOVE edit-log entry
  - DiffEntry: one CREATED/MODIFIED/DELETED/MOVED change
  - Subscription / CommitContext: the types the commit pipeline hands
    between the engine and its registered subscribers

# Design Patterns

Enumerations use typed string/int constants, matching the rest of the
codebase. Tagged unions (Value, Operation, DiffEntry) use a Kind
discriminant plus a single typed payload field rather than interface{},
so a switch over Kind is exhaustive and payload access never needs an
unchecked type assertion.

# Thread Safety

Types in this package carry no synchronization of their own. A Node
tree is owned by exactly one Session (or, during commit, by one Commit
Context) at a time; callers that need to share a tree across goroutines
must copy it (Node.Clone) or hold it behind one of the engine's own
locks (pkg/lockset, pkg/session).

# See Also

  - pkg/schema for the Schema Registry that owns SchemaInfo values
  - pkg/datastore for the on-disk persistence of Node trees
  - pkg/session for the working-set and operation log that mutate them
  - pkg/commit for the pipeline that turns operations into persisted diffs
*/
package types
