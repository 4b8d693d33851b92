/*
Package metrics provides Prometheus metrics and liveness/readiness
endpoints for the yangstore daemon.

Metrics are package-level prometheus.Collector values registered at
init(); callers update them inline at the point of mutation (pkg/lockset
on acquire/release, pkg/commit at its timed phase boundaries and on each
commit outcome) or via the Collector, which samples gauge-shaped state
(session counts, lock table occupancy, subscription counts) on a ticker
against the Stats interface implemented by pkg/engine. The
sessions-opened, optimized-commit, notify-delivery, operational-data and
dispatcher series in the catalog are registered, but no package updates
them.

# Catalog

Sessions: yangstore_sessions_active{datastore}, yangstore_sessions_opened_total
Locks: yangstore_locks_held{kind}, yangstore_lock_wait_duration_seconds, yangstore_lock_contention_total
Commits: yangstore_commit_phase_duration_seconds{phase}, yangstore_commits_total{result}, yangstore_commits_optimized_total
Subscriptions: yangstore_subscriptions_active{kind}, yangstore_notify_delivery_duration_seconds
Operational data: yangstore_oper_data_requests_total{result}, yangstore_oper_data_request_duration_seconds
Dispatcher: yangstore_dispatcher_queue_depth, yangstore_dispatcher_requests_total{outcome}, yangstore_dispatcher_workers_active

Handler exposes /metrics for scraping. HealthHandler, ReadyHandler, and
LivenessHandler back /health, /ready, and /live; readiness additionally
requires the "datastore", "commit", and "dispatcher" components to have
been registered healthy via RegisterComponent.
*/
package metrics
