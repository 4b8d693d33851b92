/*
Package engine wires every datastore subsystem into the single
process-wide value described in SPEC_FULL.md's DESIGN NOTES "Global
mutable state": the Schema Registry, Module Dependency Index, Lock
Set, Data Store, Validator, Commit Engine, Subscription Registry,
Operational-Data Broker, and Request Dispatcher all live as fields on
one *Engine, built once by New and handed to cmd/sysrepod's server
loop. No package-level var holds engine state; pkg/log.Logger is the
one sanctioned exception, used exactly as the teacher uses it.

Engine also exposes the high-level session operations (open/close a
session, set/delete/get an element, lock/unlock a module, validate,
commit) that a transport layer (out of scope per spec §1 Non-goals)
would otherwise expose over the wire, and implements metrics.Stats so
a single Collector can sample session, lock, and subscription gauges.
*/
package engine
