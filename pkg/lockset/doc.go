/*
Package lockset implements the Lock Set (spec §4.3): a process-wide
table mapping a lock key to its owner, kind, and waiters, covering two
kinds of lock — in-memory module locks and gofrs/flock-backed advisory
file locks over filesystem paths.

LockAll takes the datastore lock, then every module lock in dependency
order, rolling back everything it acquired on the first failure. The
Commit Engine does not use it: it takes each modified module's lock
with LockModule and its data file's lock with LockFile.
*/
package lockset
