/*
Package opdata implements the Operational-Data Broker (spec §4.10): when
a read touches a config-false subtree, it suspends the session at
WAITING_FOR_PROVIDER_DATA, fans a provider request out to every
registered OperationalData subscription on the module, merges arriving
responses into the session's working tree via the *set* primitive, and
resumes the session at DATA_LOADED either once every provider has
answered or a bounded timeout expires, whichever comes first —
grounded on the teacher's pkg/reconciler suspend/resume ticker shape,
generalized from a periodic loop to a per-request waiters countdown.
*/
package opdata
