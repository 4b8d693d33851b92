package types

// The interfaces below are the narrow contracts §6 names for
// components explicitly out of scope for the datastore core (schema
// compiler, XPath engine, persistent settings store, access control).
// The core depends on them; it does not implement them beyond the
// minimal default implementations documented in SPEC_FULL.md.

// SchemaLoader loads a compiled SchemaInfo for a module, triggered by
// the Schema Registry on a cache miss (§4.1).
type SchemaLoader interface {
	Load(module, revision string) (*SchemaInfo, error)
}

// XPathEvaluator resolves an xpath string against a schema tree and
// tests data-tree predicates against it. The datastore core never
// parses XPath itself (§1 Non-goals).
type XPathEvaluator interface {
	ResolveSchemaPath(root *SchemaNode, xpath string) (SchemaPath, error)
	MatchesPredicate(n *Node, xpath string) (bool, error)
}

// FeatureStore persists per-module enabled feature names (§6
// "Persistent settings").
type FeatureStore interface {
	SaveFeatures(module string, features map[string]bool) error
	LoadFeatures(module string) (map[string]bool, error)
}

// SubscriptionStore persists subscription descriptors across restarts
// (§6 "Persistent settings").
type SubscriptionStore interface {
	SaveSubscriptions(module string, subs []Subscription) error
	LoadSubscriptions(module string) ([]Subscription, error)
}

// AccessChecker authorizes an operation against a session's
// credentials (§1: "it asks a collaborator" for access control).
type AccessChecker interface {
	Authorize(creds Credentials, xpath string, kind AccessKind) error
}

// ProcedureDirection distinguishes RPC/action input from output for
// ValidateProcedure (§4.7).
type ProcedureDirection int

const (
	DirInput ProcedureDirection = iota
	DirOutput
)
