/*
Package subscription implements the Subscription Registry (spec §4.9):
an in-memory index of interested parties — module-change, RPC, action,
notification, operational-data, and feature-enable subscribers — keyed
by module and consulted by the Commit Engine's VERIFY/NOTIFY fan-out
and by the Operational-Data Broker's provider fan-out.

It also owns the wire-level delivery to a subscription's out-of-process
delivery address: a small newline-delimited JSON protocol (one JSON
message out, one acknowledgment line back) over a Unix domain socket
rooted at the daemon's subscriptions_socket_dir, since
the retrieval pack carries no ready-made pub-sub transport for this
out-of-process, one-registry-many-plugin-processes shape (teacher's
pkg/events.Broker is in-process only; see DESIGN.md).
*/
package subscription
