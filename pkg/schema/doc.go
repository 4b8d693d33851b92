/*
Package schema implements the Schema Registry: the keyed lookup of
installed module schemas, their enabled-feature sets, and the
per-schema-node enablement state that governs what the running
datastore may hold.

Lookups are served from an in-memory cache guarded by a
reader/writer lock; a miss triggers a load through the
types.SchemaLoader collaborator. Feature flags persist through the
types.FeatureStore collaborator (the default FileFeatureStore writes a
temporary file and renames it into place), so a failed persist never
leaves the in-memory flag out of sync with disk.
*/
package schema
