/*
Package depindex implements the Module Dependency Index (spec §4.2): an
ordered graph of installed modules with import/extension edges, used to
load transitively required schemas and to iterate modules in a safe
load order. Guarded by a reader/writer lock on every query, mirroring
the Schema Registry's locking discipline.
*/
package depindex
