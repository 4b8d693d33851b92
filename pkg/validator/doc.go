/*
Package validator implements the Validator (spec §4.7): structural
validation of a module's working tree against its schema, default-leaf
materialization, and procedure (RPC/action) argument validation.

It depends only on a SchemaProvider (pkg/schema.Registry satisfies it)
and pkg/types; it never parses XPath itself beyond the simple
slash-path resolution pkg/schema already exposes for schema paths.
*/
package validator
