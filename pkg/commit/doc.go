/*
Package commit implements the Commit Engine (spec §4.8): the
four-phase pipeline that takes a session's modified modules from a
working tree to the on-disk Data Store, mediated by the Subscription
Registry's VERIFY/NOTIFY fan-out.

Phase A (Prepare context) allocates a Commit Context; Phase B (Lock &
load) acquires locks and computes each module's post-commit tree,
reusing the in-memory copy when the optimized-commit predicate holds;
Phase C (Diff & verify) generates a diff and asks subscribers to
confirm; Phase D (Persist & notify) writes and notifies.

It reaches the Lock Set, the Data Store, the Validator, the Schema
Registry and the Subscription Registry through narrow interfaces so it
can be tested without a real filesystem or Subscription Registry; the
session's Session, WorkingSet and operation log types from pkg/session
are used directly. Grounded on the teacher's pkg/manager Apply/FSM
two-phase shape.
*/
package commit
