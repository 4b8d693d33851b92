/*
Package dispatcher implements the Request Dispatcher (spec §4.11): a
bounded circular queue of pending requests drained by a fixed pool of
workers. Each worker serializes dispatch for one session at a time via
that session's own mutex, and holds the engine-wide reader/writer lock
around the commit phases so no read observes a commit mid-flight.

Idle workers spin a small, adaptive number of times polling the queue
before parking on its condition variable, grounded on the teacher's
ticker-driven pkg/scheduler/pkg/reconciler loops, generalized from a
fixed-interval poll to a queue-latency-driven spin because the
dispatcher must react to bursts, not a clock.
*/
package dispatcher
