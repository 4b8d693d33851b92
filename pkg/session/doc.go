/*
Package session implements the Session Working Set and Operation Log
(spec §4.5, §4.6): the per-session, per-datastore view of configuration
data plus the append-only log of pending edits that gives a session
optimistic isolation from concurrent commits.

A Session owns one WorkingSet and one Log per datastore (startup,
running, candidate). The candidate WorkingSet loads from running and
prunes subtrees whose schema ancestry is disabled, per §4.5.
*/
package session
